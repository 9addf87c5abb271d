package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validQuizJSON = `{"question": "What is 2+2?", "options": {"A": "3", "B": "4", "C": "5", "D": "22"}, "correct_option": "B", "explanation": "Basic addition."}`

func TestParseQuiz(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		q, err := ParseQuiz(validQuizJSON)
		require.NoError(t, err)
		assert.Equal(t, "What is 2+2?", q.Question)
		assert.Equal(t, "4", q.Options["B"])
		assert.Equal(t, "B", q.CorrectOption)
	})

	t.Run("fenced json", func(t *testing.T) {
		q, err := ParseQuiz("```json\n" + validQuizJSON + "\n```")
		require.NoError(t, err)
		assert.Equal(t, "B", q.CorrectOption)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseQuiz("Here is your question: what is 2+2?")
		require.Error(t, err)
	})

	t.Run("missing option", func(t *testing.T) {
		_, err := ParseQuiz(`{"question": "q", "options": {"A": "1", "B": "2", "C": "3"}, "correct_option": "A"}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "option D")
	})

	t.Run("extra option", func(t *testing.T) {
		_, err := ParseQuiz(`{"question": "q", "options": {"A": "1", "B": "2", "C": "3", "D": "4", "E": "5"}, "correct_option": "A"}`)
		require.Error(t, err)
	})

	t.Run("correct option not offered", func(t *testing.T) {
		_, err := ParseQuiz(`{"question": "q", "options": {"A": "1", "B": "2", "C": "3", "D": "4"}, "correct_option": "E"}`)
		require.Error(t, err)
	})

	t.Run("empty question", func(t *testing.T) {
		_, err := ParseQuiz(`{"question": "", "options": {"A": "1", "B": "2", "C": "3", "D": "4"}, "correct_option": "A"}`)
		require.Error(t, err)
	})
}

func TestQuizRender(t *testing.T) {
	q, err := ParseQuiz(validQuizJSON)
	require.NoError(t, err)

	out := q.Render()
	assert.Contains(t, out, "<b>What is 2+2?</b>")
	assert.Contains(t, out, "A) 3")
	assert.Contains(t, out, "D) 22")
}
