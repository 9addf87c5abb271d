package ingest

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schola/types"
)

func singlePage(text string) types.PageMap {
	return types.PageMap{{Number: 0, Offset: 0, Text: text}}
}

func collect(t *testing.T, seq types.SectionSeq) []types.Section {
	t.Helper()
	var out []types.Section
	for sec, err := range seq {
		require.NoError(t, err)
		out = append(out, sec)
	}
	return out
}

func splitterConfig(maxLen, overlap, searchLimit int) types.IngestConfig {
	cfg := types.DefaultIngestConfig()
	cfg.MaxSectionLength = maxLen
	cfg.SectionOverlap = overlap
	cfg.SentenceSearchLimit = searchLimit
	return cfg
}

func TestNewSplitter(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		s, err := NewSplitter(types.DefaultIngestConfig())
		require.NoError(t, err)
		require.NotNil(t, s)
	})

	t.Run("overlap reaching section length", func(t *testing.T) {
		_, err := NewSplitter(splitterConfig(100, 100, 10))
		assert.Error(t, err)
	})

	t.Run("negative search limit", func(t *testing.T) {
		_, err := NewSplitter(splitterConfig(100, 10, -1))
		assert.Error(t, err)
	})
}

func TestSections_ShortDocument(t *testing.T) {
	s, err := NewSplitter(splitterConfig(1000, 100, 100))
	require.NoError(t, err)

	text := strings.Repeat("word ", 30) // 150 chars, shorter than max
	sections := collect(t, s.Sections(singlePage(text), "ds/doc.pdf", "doc.pdf"))

	require.Len(t, sections, 1)
	assert.Equal(t, text, sections[0].Content)
	assert.Equal(t, sections[0].Content, sections[0].SearchKey)
	assert.Equal(t, "doc_pdf-0", sections[0].ID)
	assert.Equal(t, "ds/doc.pdf#page=1", sections[0].FileURL)
}

func TestSections_EmptyDocument(t *testing.T) {
	s, err := NewSplitter(splitterConfig(1000, 100, 100))
	require.NoError(t, err)

	sections := collect(t, s.Sections(types.PageMap{}, "ds/doc.pdf", "doc.pdf"))
	assert.Empty(t, sections)
}

func TestSections_UnbreakableText(t *testing.T) {
	// No sentence ends and no word breaks anywhere, so boundaries land
	// exactly where the scan limits run out.
	s, err := NewSplitter(splitterConfig(100, 20, 10))
	require.NoError(t, err)

	text := strings.Repeat("a", 250)
	sections := collect(t, s.Sections(singlePage(text), "ds/a.txt", "a.txt"))

	require.Len(t, sections, 3)
	assert.Len(t, []rune(sections[0].Content), 111)
	assert.Len(t, []rune(sections[1].Content), 119)
	assert.Len(t, []rune(sections[2].Content), 119)
	for i, sec := range sections {
		assert.Equal(t, sectionID("a.txt", i), sec.ID)
	}
}

func TestSections_CoverageAndOverlap(t *testing.T) {
	s, err := NewSplitter(splitterConfig(100, 20, 10))
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; b.Len() < 1200; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog number ")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(". ")
	}
	text := b.String()

	sections := collect(t, s.Sections(singlePage(text), "ds/fox.pdf", "fox.pdf"))
	require.NotEmpty(t, sections)

	assert.True(t, strings.HasPrefix(text, sections[0].Content))
	last := sections[len(sections)-1].Content
	assert.True(t, strings.HasSuffix(text, last))

	prevEnd := 0
	for _, sec := range sections {
		idx := strings.Index(text, sec.Content)
		require.GreaterOrEqual(t, idx, 0, "section must be a contiguous slice of the text")
		// consecutive sections must touch or overlap, never leave a gap
		assert.LessOrEqual(t, idx, prevEnd)
		if end := idx + len(sec.Content); end > prevEnd {
			prevEnd = end
		}
		// the backward start recovery can stretch a section to at most
		// max plus twice the sentence search limit
		assert.LessOrEqual(t, len([]rune(sec.Content)), 100+2*10)
	}
	assert.Equal(t, len(text), prevEnd)
}

func TestSections_PageAnchors(t *testing.T) {
	s, err := NewSplitter(splitterConfig(4, 1, 0))
	require.NoError(t, err)

	pm := types.PageMap{
		{Number: 0, Offset: 0, Text: "abc"},
		{Number: 1, Offset: 3, Text: "defgh"},
	}
	sections := collect(t, s.Sections(pm, "ds/doc.pdf", "doc.pdf"))

	require.Len(t, sections, 2)
	assert.Equal(t, "abcde", sections[0].Content)
	assert.Equal(t, "ds/doc.pdf#page=1", sections[0].FileURL)
	assert.Equal(t, "fgh", sections[1].Content)
	assert.Equal(t, "ds/doc.pdf#page=2", sections[1].FileURL)
}

func TestSections_TablePullBack(t *testing.T) {
	s, err := NewSplitter(splitterConfig(60, 10, 5))
	require.NoError(t, err)

	// The sentence end after the opening tag would normally stop the
	// backward boundary recovery, leaving the next section mid-table.
	text := strings.Repeat("x", 30) + "<table>" + strings.Repeat("y", 13) + "." + strings.Repeat("z", 100)
	sections := collect(t, s.Sections(singlePage(text), "ds/t.html", "t.html"))
	require.Greater(t, len(sections), 1)

	second := sections[1].Content
	idx := strings.Index(text, second)
	require.GreaterOrEqual(t, idx, 0)
	assert.LessOrEqual(t, idx, 30, "section after an open table must restart at the table")
	assert.Contains(t, second, "<table>")
}

func TestSections_Unicode(t *testing.T) {
	s, err := NewSplitter(splitterConfig(10, 2, 3))
	require.NoError(t, err)

	text := strings.Repeat("äöüß漢字", 20)
	sections := collect(t, s.Sections(singlePage(text), "ds/u.txt", "u.txt"))
	require.NotEmpty(t, sections)

	for _, sec := range sections {
		assert.True(t, strings.Contains(text, sec.Content),
			"boundaries must never fall inside a multi-byte rune")
	}
}

func TestSectionID(t *testing.T) {
	assert.Equal(t, "my_file_pdf-3", sectionID("my file.pdf", 3))
	assert.Equal(t, "notes_md", documentID("notes.md"))
	assert.Equal(t, "a-b_c_1", documentID("a-b&c!1"))
}
