package answer

import (
	"encoding/json"
	"fmt"
)

// Quiz is one multiple-choice question produced by the quiz pipeline.
type Quiz struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectOption string            `json:"correct_option"`
	Explanation   string            `json:"explanation"`
}

var quizOptionKeys = []string{"A", "B", "C", "D"}

// ParseQuiz decodes and validates a model-generated quiz. The model
// sometimes wraps the JSON in a code fence, so the fence is stripped
// first.
func ParseQuiz(s string) (*Quiz, error) {
	var q Quiz
	if err := json.Unmarshal([]byte(StripFence(s)), &q); err != nil {
		return nil, fmt.Errorf("failed to parse quiz json: %w", err)
	}
	if q.Question == "" {
		return nil, fmt.Errorf("quiz has no question")
	}
	for _, key := range quizOptionKeys {
		if q.Options[key] == "" {
			return nil, fmt.Errorf("quiz is missing option %s", key)
		}
	}
	if len(q.Options) != len(quizOptionKeys) {
		return nil, fmt.Errorf("quiz has unexpected options")
	}
	if _, ok := q.Options[q.CorrectOption]; !ok {
		return nil, fmt.Errorf("quiz correct option %q is not among the options", q.CorrectOption)
	}
	return &q, nil
}

// Render formats a quiz for the chat frontend.
func (q *Quiz) Render() string {
	out := "<b>" + q.Question + "</b>\n"
	for _, key := range quizOptionKeys {
		out += "\n" + key + ") " + q.Options[key]
	}
	return out
}
