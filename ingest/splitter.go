package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"schola/types"
)

const (
	sentenceEndings = ".!?"
	wordBreaks      = ",;: ()[]{}\t\n"
)

var idRe = regexp.MustCompile(`[^0-9a-zA-Z_-]`)

// sectionID builds a filesystem-safe section id from a filename and its
// sequence index within the document.
func sectionID(filename string, index int) string {
	return idRe.ReplaceAllString(fmt.Sprintf("%s-%d", filename, index), "_")
}

// documentID builds a filesystem-safe id for a whole, unsliced document.
func documentID(filename string) string {
	return idRe.ReplaceAllString(filename, "_")
}

func isSentenceEnd(r rune) bool { return strings.ContainsRune(sentenceEndings, r) }
func isWordBreak(r rune) bool   { return strings.ContainsRune(wordBreaks, r) }

// runeLastIndex returns the rune index of the last occurrence of needle in
// hay, or -1.
func runeLastIndex(hay []rune, needle string) int {
	n := []rune(needle)
	if len(n) == 0 || len(n) > len(hay) {
		return -1
	}
	for i := len(hay) - len(n); i >= 0; i-- {
		match := true
		for j := range n {
			if hay[i+j] != n[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Splitter cuts the concatenated text of a page map into overlapping
// sections, snapping boundaries to sentence ends or at least word breaks,
// and keeps unfinished tables for the following section.
type Splitter struct {
	maxSectionLength    int
	sentenceSearchLimit int
	sectionOverlap      int
}

// NewSplitter validates the chunking parameters up front; an overlap that
// reaches the section length would make the cursor stop advancing.
func NewSplitter(cfg types.IngestConfig) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{
		maxSectionLength:    cfg.MaxSectionLength,
		sentenceSearchLimit: cfg.SentenceSearchLimit,
		sectionOverlap:      cfg.SectionOverlap,
	}, nil
}

// Sections returns a lazy stream of section records covering the page
// map's text. Each record carries a one-based page anchor in its file URL
// pointing at the page where the section starts.
func (s *Splitter) Sections(pm types.PageMap, fileURL, filename string) types.SectionSeq {
	return func(yield func(types.Section, error) bool) {
		text := []rune(pm.Text())
		length := len(text)
		seq := 0

		emit := func(lo, hi int) bool {
			sectionText := string(text[lo:hi])
			sec := types.Section{
				ID:        sectionID(filename, seq),
				SearchKey: sectionText,
				Content:   sectionText,
				FileURL:   fmt.Sprintf("%s#page=%d", fileURL, pm.PageOf(lo)+1),
			}
			seq++
			return yield(sec, nil)
		}

		start, end := 0, length
		for start+s.sectionOverlap < length {
			lastWord := -1
			end = start + s.maxSectionLength

			if end > length {
				end = length
			} else {
				// Look ahead for the end of the sentence, remembering the
				// last word break in case none is found within the limit.
				for end < length && end-start-s.maxSectionLength < s.sentenceSearchLimit && !isSentenceEnd(text[end]) {
					if isWordBreak(text[end]) {
						lastWord = end
					}
					end++
				}
				if end < length && !isSentenceEnd(text[end]) && lastWord > 0 {
					end = lastWord
				}
			}
			if end < length {
				end++ // include the sentence terminator
			}

			// Walk the start back to a sentence end, or at least a whole
			// word boundary.
			lastWord = -1
			for start > 0 && start > end-s.maxSectionLength-2*s.sentenceSearchLimit && !isSentenceEnd(text[start]) {
				if isWordBreak(text[start]) {
					lastWord = start
				}
				start--
			}
			if !isSentenceEnd(text[start]) && lastWord > 0 {
				start = lastWord
			}
			if start > 0 {
				start++
			}

			if !emit(start, end) {
				return
			}

			// If this section ends inside a table, start the next section
			// before the table's opening tag instead of mid-table.
			section := text[start:end]
			lastTableStart := runeLastIndex(section, "<table")
			if lastTableStart > 2*s.sentenceSearchLimit && lastTableStart > runeLastIndex(section, "</table") {
				start = min(end-s.sectionOverlap, start+lastTableStart)
			} else {
				start = end - s.sectionOverlap
			}
		}

		if start+s.sectionOverlap < end {
			emit(start, end)
		}
	}
}
