package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageMap_PageOf(t *testing.T) {
	pm := PageMap{
		{Number: 0, Offset: 0, Text: "abc"},
		{Number: 1, Offset: 3, Text: "defgh"},
		{Number: 2, Offset: 8, Text: "ij"},
	}

	assert.Equal(t, 0, pm.PageOf(0))
	assert.Equal(t, 0, pm.PageOf(2))
	assert.Equal(t, 1, pm.PageOf(3))
	assert.Equal(t, 1, pm.PageOf(7))
	assert.Equal(t, 2, pm.PageOf(8))
	assert.Equal(t, 2, pm.PageOf(100), "offsets past the end land on the last page")
}

func TestPageMap_PageOf_Empty(t *testing.T) {
	assert.Equal(t, 0, PageMap{}.PageOf(5))
}

func TestPageMap_Text(t *testing.T) {
	pm := PageMap{
		{Number: 0, Offset: 0, Text: "abc"},
		{Number: 1, Offset: 3, Text: "def"},
	}
	assert.Equal(t, "abcdef", pm.Text())
}

func TestSubjectCode(t *testing.T) {
	assert.Equal(t, "World_History", SubjectCode("World History"))
	assert.Equal(t, "Math", SubjectCode("Math"))
}

func TestIngestConfig_Validate(t *testing.T) {
	cfg := DefaultIngestConfig()
	assert.NoError(t, cfg.Validate())

	cfg.SectionOverlap = cfg.MaxSectionLength
	assert.Error(t, cfg.Validate())

	cfg = DefaultIngestConfig()
	cfg.MaxSectionLength = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultIngestConfig()
	cfg.SentenceSearchLimit = -5
	assert.Error(t, cfg.Validate())
}

func TestAskParamsValidate(t *testing.T) {
	params := &AskParams{Prompt: "why is the sky blue"}
	assert.Empty(t, params.Validate())

	empty := &AskParams{}
	errs := empty.Validate()
	assert.Contains(t, errs, "Prompt")
}
