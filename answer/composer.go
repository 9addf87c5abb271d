package answer

import (
	"context"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"schola/model"
	"schola/types"
)

const (
	defaultTopK         = 5
	defaultHistoryPairs = 10
	historyTokenBudget  = 2000
	quizAttempts        = 2

	searchFailureReply   = "Sorry, I could not search the study materials right now. Please try again later."
	generateFailureReply = "Sorry, I could not come up with an answer right now. Please try again later."
	quizFailureReply     = "I could not put a quiz together, please try again."
)

// SubjectStore is the slice of the storage layer the composer reads
// subjects from.
type SubjectStore interface {
	GetSubjectByName(ctx context.Context, name string) (*types.Subject, error)
}

// HistoryStore records and replays a user's conversation.
type HistoryStore interface {
	GetChatHistory(ctx context.Context, userID string, limit int) ([]types.Message, error)
	SaveInteraction(ctx context.Context, in types.Interaction) error
}

// Composer turns a user question into a grounded, chat-ready answer. Its
// methods return a displayable string in every case; infrastructure
// failures become apology replies, never panics or empty output.
type Composer struct {
	subjects  SubjectStore
	history   HistoryStore
	retriever Retriever
	generator model.GeneratorInterface
	topK      int
	logger    *slog.Logger
}

func NewComposer(subjects SubjectStore, history HistoryStore, retriever Retriever, generator model.GeneratorInterface) *Composer {
	return &Composer{
		subjects:  subjects,
		history:   history,
		retriever: retriever,
		generator: generator,
		topK:      defaultTopK,
		logger:    slog.Default(),
	}
}

// Answer composes a tutoring reply for a question about the named
// subject. An empty subject, an unknown subject or a subject without a
// datasource all fall back to answering without sources.
func (c *Composer) Answer(ctx context.Context, userID, subjectName, query string) string {
	subject := c.lookupSubject(ctx, subjectName)

	sources := NoSourcesMarker
	if subject != nil && subject.UseDatasource {
		hits, err := c.retriever.Retrieve(ctx, types.SubjectCode(subject.Name), query, c.topK)
		if err != nil {
			c.logger.Error("retrieval failed", "subject", subject.Name, "error", err)
			c.record(ctx, userID, query, searchFailureReply)
			return searchFailureReply
		}
		sources = formatSources(hits)
	}

	return c.generate(ctx, userID, query, qaSystemPrompt(subject, sources))
}

// AnswerImage composes a reply about a photo, given the analysis
// service's description of it.
func (c *Composer) AnswerImage(ctx context.Context, userID, description, query string) string {
	if query == "" {
		query = "What is in this photo?"
	}
	return c.generate(ctx, userID, query, imageSystemPrompt(description))
}

// Question generates one multiple-choice quiz question for the subject.
// A reply the model failed to shape as valid quiz JSON becomes an
// apology instead of raw model output.
func (c *Composer) Question(ctx context.Context, userID, subjectName string) (string, *Quiz) {
	subject := c.lookupSubject(ctx, subjectName)

	sources := NoSourcesMarker
	if subject != nil && subject.UseDatasource {
		hits, err := c.retriever.Retrieve(ctx, types.SubjectCode(subject.Name), subjectName, c.topK)
		if err != nil {
			c.logger.Error("retrieval failed", "subject", subject.Name, "error", err)
			c.record(ctx, userID, "quiz question", quizFailureReply)
			return quizFailureReply, nil
		}
		sources = formatSources(hits)
	}

	raw, err := model.GenerateJSON(ctx, c.generator, []types.Message{
		{Role: "system", Content: quizSystemPrompt(subject, sources)},
		{Role: "user", Content: "Give me one question."},
	}, quizAttempts)
	if err != nil {
		c.logger.Error("quiz generation failed", "error", err)
		c.record(ctx, userID, "quiz question", quizFailureReply)
		return quizFailureReply, nil
	}

	quiz, err := ParseQuiz(raw)
	if err != nil {
		c.logger.Error("quiz parsing failed", "error", err, "raw", raw)
		c.record(ctx, userID, "quiz question", quizFailureReply)
		return quizFailureReply, nil
	}

	rendered := quiz.Render()
	c.record(ctx, userID, "quiz question", rendered)
	return rendered, quiz
}

func (c *Composer) generate(ctx context.Context, userID, query, instruction string) string {
	messages := make([]types.Message, 0, defaultHistoryPairs*2+2)
	messages = append(messages, types.Message{Role: "system", Content: instruction})
	messages = append(messages, c.recentHistory(ctx, userID)...)
	messages = append(messages, types.Message{Role: "user", Content: query})

	reply, err := c.generator.Generate(ctx, messages)
	if err != nil {
		c.logger.Error("generation failed", "error", err)
		c.record(ctx, userID, query, generateFailureReply)
		return generateFailureReply
	}

	reply = FormatReply(reply)
	c.record(ctx, userID, query, reply)
	return reply
}

// recentHistory loads the latest exchanges and drops the oldest ones
// until the history fits the token budget. History problems degrade to
// an empty history.
func (c *Composer) recentHistory(ctx context.Context, userID string) []types.Message {
	history, err := c.history.GetChatHistory(ctx, userID, defaultHistoryPairs)
	if err != nil {
		c.logger.Error("history load failed", "user_id", userID, "error", err)
		return nil
	}

	for len(history) > 0 && historyTokens(history) > historyTokenBudget {
		history = history[2:]
	}
	return history
}

func (c *Composer) record(ctx context.Context, userID, query, reply string) {
	err := c.history.SaveInteraction(ctx, types.Interaction{
		UserID:      userID,
		UserMessage: query,
		BotResponse: reply,
	})
	if err != nil {
		c.logger.Error("interaction save failed", "user_id", userID, "error", err)
	}
}

func (c *Composer) lookupSubject(ctx context.Context, name string) *types.Subject {
	if name == "" {
		return nil
	}
	subject, err := c.subjects.GetSubjectByName(ctx, name)
	if err != nil {
		c.logger.Error("subject lookup failed", "subject", name, "error", err)
		return nil
	}
	return subject
}

func historyTokens(messages []types.Message) int {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		// rough character-based estimate when the encoding is unavailable
		total := 0
		for _, m := range messages {
			total += len(m.Content) / 4
		}
		return total
	}
	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total
}
