package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schola/answer"
	"schola/types"
)

type fakeAnalyzer struct {
	description string
	err         error
}

func (f *fakeAnalyzer) AnalyzeImage(ctx context.Context, image []byte) (string, error) {
	return f.description, f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f.text, f.err
}

type fakeStateStore struct {
	state types.UserState
}

func (f *fakeStateStore) GetUserState(ctx context.Context, userID string) (*types.UserState, error) {
	s := f.state
	s.UserID = userID
	return &s, nil
}

type nilSubjects struct{}

func (nilSubjects) GetSubjectByName(ctx context.Context, name string) (*types.Subject, error) {
	return nil, nil
}

type nopHistory struct{}

func (nopHistory) GetChatHistory(ctx context.Context, userID string, limit int) ([]types.Message, error) {
	return nil, nil
}

func (nopHistory) SaveInteraction(ctx context.Context, in types.Interaction) error {
	return nil
}

type nopRetriever struct{}

func (nopRetriever) Retrieve(ctx context.Context, datasource, query string, limit int) ([]types.RetrievalHit, error) {
	return nil, nil
}

type echoGenerator struct{ reply string }

func (g echoGenerator) Generate(ctx context.Context, messages []types.Message) (string, error) {
	return g.reply, nil
}

func mediaApp(t *testing.T, analyzer ImageAnalyzer, transcriber *fakeTranscriber, reply string) *fiber.App {
	t.Helper()
	composer := answer.NewComposer(nilSubjects{}, nopHistory{}, nopRetriever{}, echoGenerator{reply: reply})
	h := NewMediaHandler(&fakeStateStore{}, composer, analyzer, transcriber)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/photo", h.HandlePhoto)
	app.Post("/voice", h.HandleVoice)
	return app
}

func mediaRequest(t *testing.T, url string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	fw, err := w.CreateFormFile("file", "payload.bin")
	require.NoError(t, err)
	_, err = fw.Write([]byte("binary payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeReply(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandlePhoto_AnalyzerFailureDegrades(t *testing.T) {
	app := mediaApp(t, &fakeAnalyzer{err: errors.New("service down")}, &fakeTranscriber{}, "unused")

	resp, err := app.Test(mediaRequest(t, "/photo", map[string]string{"user_id": "u1"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, photoFailureReply, decodeReply(t, resp)["reply"])
}

func TestHandlePhoto_AnswersAboutTheImage(t *testing.T) {
	app := mediaApp(t, &fakeAnalyzer{description: "a right triangle"}, &fakeTranscriber{}, "It is a triangle.")

	resp, err := app.Test(mediaRequest(t, "/photo", map[string]string{"user_id": "u1", "caption": "what shape?"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "It is a triangle.", decodeReply(t, resp)["reply"])
}

func TestHandlePhoto_MissingUserID(t *testing.T) {
	app := mediaApp(t, &fakeAnalyzer{}, &fakeTranscriber{}, "unused")

	resp, err := app.Test(mediaRequest(t, "/photo", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleVoice_TranscriberFailureDegrades(t *testing.T) {
	app := mediaApp(t, &fakeAnalyzer{}, &fakeTranscriber{err: errors.New("timeout")}, "unused")

	resp, err := app.Test(mediaRequest(t, "/voice", map[string]string{"user_id": "u1"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeReply(t, resp)
	assert.Equal(t, voiceFailureReply, body["reply"])
	assert.Empty(t, body["question"])
}

func TestHandleVoice_AnswersTheTranscribedQuestion(t *testing.T) {
	app := mediaApp(t, &fakeAnalyzer{}, &fakeTranscriber{text: "when did rome fall"}, "In 476.")

	resp, err := app.Test(mediaRequest(t, "/voice", map[string]string{"user_id": "u1"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeReply(t, resp)
	assert.Equal(t, "when did rome fall", body["question"])
	assert.Equal(t, "In 476.", body["reply"])
}
