package api

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"schola/answer"
	"schola/model"
	"schola/types"
)

const (
	photoFailureReply = "Sorry, I could not read that photo. Please try again later."
	voiceFailureReply = "Sorry, I could not make out that voice message. Please try again later."
)

// ImageAnalyzer is the image half of the document analysis service.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte) (string, error)
}

// UserStateStore is the slice of the storage layer the media endpoints
// read conversation state from.
type UserStateStore interface {
	GetUserState(ctx context.Context, userID string) (*types.UserState, error)
}

type MediaHandler struct {
	store       UserStateStore
	composer    *answer.Composer
	analyzer    ImageAnalyzer
	transcriber model.TranscriberInterface
}

func NewMediaHandler(st UserStateStore, composer *answer.Composer, analyzer ImageAnalyzer, transcriber model.TranscriberInterface) *MediaHandler {
	return &MediaHandler{
		store:       st,
		composer:    composer,
		analyzer:    analyzer,
		transcriber: transcriber,
	}
}

// HandlePhoto answers a question about an uploaded photo. The optional
// "caption" form value carries the question. Analysis failures degrade
// to an apology reply, never an error status.
func (h *MediaHandler) HandlePhoto(c *fiber.Ctx) error {
	userID := c.FormValue("user_id")
	if userID == "" {
		return NewValidationError(map[string]string{"user_id": "failed on 'required' tag"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	image, err := readFormFile(fileHeader)
	if err != nil {
		return err
	}

	description, err := h.analyzer.AnalyzeImage(c.Context(), image)
	if err != nil {
		slog.Error("image analysis failed", "user", userID, "error", err)
		return c.JSON(fiber.Map{"reply": photoFailureReply})
	}

	reply := h.composer.AnswerImage(c.Context(), userID, description, c.FormValue("caption"))
	return c.JSON(fiber.Map{"reply": reply})
}

// HandleVoice transcribes a voice message and answers it as a question
// about the user's current subject. Transcription failures degrade to
// an apology reply, never an error status.
func (h *MediaHandler) HandleVoice(c *fiber.Ctx) error {
	userID := c.FormValue("user_id")
	if userID == "" {
		return NewValidationError(map[string]string{"user_id": "failed on 'required' tag"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	audio, err := readFormFile(fileHeader)
	if err != nil {
		return err
	}

	question, err := h.transcriber.Transcribe(c.Context(), audio)
	if err != nil {
		slog.Error("transcription failed", "user", userID, "error", err)
		return c.JSON(fiber.Map{"reply": voiceFailureReply})
	}

	state, err := h.store.GetUserState(c.Context(), userID)
	if err != nil {
		return err
	}

	reply := h.composer.Answer(c.Context(), userID, state.CurrentSubject, question)
	return c.JSON(fiber.Map{
		"question": question,
		"reply":    reply,
	})
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
