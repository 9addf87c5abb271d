package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"schola/answer"
	"schola/store"
	"schola/types"
)

const helpReply = `I can help you study. Commands:
/subjects - list available subjects
/subject <name> - pick a subject to study
/quiz - quiz me on the current subject
/stop - back to the start`

type RequestHandler struct {
	store    store.DBStorer
	composer *answer.Composer
}

func NewRequestHandler(st store.DBStorer, composer *answer.Composer) *RequestHandler {
	return &RequestHandler{
		store:    st,
		composer: composer,
	}
}

// HandleAsk answers a single question about a subject without touching
// the user's conversation state.
func (h *RequestHandler) HandleAsk(c *fiber.Ctx) error {
	var params types.AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	reply := h.composer.Answer(c.Context(), params.UserID, params.Subject, params.Prompt)
	return c.JSON(fiber.Map{"answer": reply})
}

// HandleMessage runs one turn of the conversation: commands switch the
// user's pipeline, everything else is routed to whichever pipeline the
// user is currently in.
func (h *RequestHandler) HandleMessage(c *fiber.Ctx) error {
	var params types.MessageParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ctx := c.Context()
	state, err := h.store.GetUserState(ctx, params.UserID)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(params.Text)
	var reply string
	if strings.HasPrefix(text, "/") {
		reply, err = h.handleCommand(ctx, state, text)
	} else {
		reply, err = h.handlePipeline(ctx, state, text)
	}
	if err != nil {
		return err
	}

	state, err = h.store.GetUserState(ctx, params.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"reply":    reply,
		"pipeline": state.Pipeline.String(),
	})
}

func (h *RequestHandler) handleCommand(ctx context.Context, state *types.UserState, text string) (string, error) {
	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/start", "/help":
		return helpReply, nil

	case "/subjects":
		return h.subjectList(ctx)

	case "/subject":
		if arg == "" {
			if err := h.switchPipeline(ctx, state, types.PipelineSelectSubject); err != nil {
				return "", err
			}
			list, err := h.subjectList(ctx)
			if err != nil {
				return "", err
			}
			return "Which subject would you like to study?\n" + list, nil
		}
		return h.selectSubject(ctx, state, arg)

	case "/quiz":
		if state.CurrentSubject == "" {
			return "Pick a subject first with /subject <name>.", nil
		}
		if err := h.switchPipeline(ctx, state, types.PipelineQuiz); err != nil {
			return "", err
		}
		reply, _ := h.composer.Question(ctx, state.UserID, state.CurrentSubject)
		return reply, nil

	case "/stop":
		if err := h.switchPipeline(ctx, state, types.PipelineDefault); err != nil {
			return "", err
		}
		return "Okay, stopped. " + helpReply, nil

	default:
		return "I don't know that command.\n" + helpReply, nil
	}
}

func (h *RequestHandler) handlePipeline(ctx context.Context, state *types.UserState, text string) (string, error) {
	switch state.Pipeline {
	case types.PipelineSelectSubject:
		return h.selectSubject(ctx, state, text)

	case types.PipelineQA:
		return h.composer.Answer(ctx, state.UserID, state.CurrentSubject, text), nil

	case types.PipelineQuiz:
		reply, _ := h.composer.Question(ctx, state.UserID, state.CurrentSubject)
		return reply, nil

	case types.PipelineConfiguration:
		if err := h.switchPipeline(ctx, state, types.PipelineDefault); err != nil {
			return "", err
		}
		return "Configuration is managed through the API. " + helpReply, nil

	default:
		return helpReply, nil
	}
}

// selectSubject makes the named subject current and drops the user into
// question answering.
func (h *RequestHandler) selectSubject(ctx context.Context, state *types.UserState, name string) (string, error) {
	subject, err := h.store.GetSubjectByName(ctx, name)
	if err != nil {
		return "", err
	}
	if subject == nil {
		list, err := h.subjectList(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("I don't know the subject %q.\n%s", name, list), nil
	}

	if err := h.store.SetCurrentSubject(ctx, state.UserID, subject.Name); err != nil {
		return "", err
	}
	state.CurrentSubject = subject.Name
	if err := h.switchPipeline(ctx, state, types.PipelineQA); err != nil {
		return "", err
	}

	reply := fmt.Sprintf("Let's study %s. Ask me anything!", subject.Name)
	if subject.Description != "" {
		reply = fmt.Sprintf("Let's study %s: %s\nAsk me anything!", subject.Name, subject.Description)
	}
	return reply, nil
}

// switchPipeline moves the user to the target pipeline, hopping through
// the default state when there is no direct transition.
func (h *RequestHandler) switchPipeline(ctx context.Context, state *types.UserState, target types.Pipeline) error {
	if state.Pipeline == target {
		return nil
	}
	if !state.Pipeline.CanTransition(target) {
		if !state.Pipeline.CanTransition(types.PipelineDefault) || !types.PipelineDefault.CanTransition(target) {
			return fmt.Errorf("cannot switch from %s to %s", state.Pipeline, target)
		}
	}
	if err := h.store.SetPipeline(ctx, state.UserID, target); err != nil {
		return err
	}
	state.Pipeline = target
	return nil
}

func (h *RequestHandler) subjectList(ctx context.Context) (string, error) {
	subjects, err := h.store.ListSubjects(ctx)
	if err != nil {
		return "", err
	}
	if len(subjects) == 0 {
		return "There are no subjects yet.", nil
	}
	var b strings.Builder
	b.WriteString("Available subjects:")
	for _, s := range subjects {
		b.WriteString("\n- ")
		b.WriteString(s.Name)
		if s.Description != "" {
			b.WriteString(": ")
			b.WriteString(s.Description)
		}
	}
	return b.String(), nil
}
