package types

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page is one entry of a page map: the text of a single document page and
// the cumulative character offset at which it starts within the whole
// document. Offsets count runes, not bytes.
type Page struct {
	Number int
	Offset int
	Text   string
}

// PageMap is the ordered page sequence produced by an extraction backend.
// Offsets are strictly non-decreasing and equal the cumulative length of
// all prior pages' text.
type PageMap []Page

// PageOf maps a character offset to the page that contains it. Offsets at
// or beyond the last recorded offset map to the last page.
func (m PageMap) PageOf(offset int) int {
	if len(m) == 0 {
		return 0
	}
	for i := 0; i < len(m)-1; i++ {
		if offset >= m[i].Offset && offset < m[i+1].Offset {
			return i
		}
	}
	return len(m) - 1
}

// Text concatenates all page texts in order.
func (m PageMap) Text() string {
	var b strings.Builder
	for _, p := range m {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Section is a single retrievable unit of document text. SearchKey is the
// text that gets embedded; Content is what is returned to the user. They
// differ in CSV mode where one column is embedded but a templated
// multi-field string is returned.
type Section struct {
	ID        string
	SearchKey string
	Content   string
	FileURL   string
}

// SectionSeq is a lazy, finite, non-restartable stream of sections.
// Builders yield a non-nil error for configuration failures discovered
// mid-stream (e.g. a template referencing a missing CSV column), at which
// point consumers must abort.
type SectionSeq = iter.Seq2[Section, error]

// RetrievalHit is a scored section returned by a similarity search. Score
// is the backend's own ranking output and is surfaced as-is.
type RetrievalHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	FileURL string  `json:"file_url"`
	Score   float64 `json:"score"`
}

// Subject is a topic a user can study, optionally backed by a datasource
// of the same name.
type Subject struct {
	ID            int64     `json:"id"`
	Name          string    `json:"subject_name"`
	Description   string    `json:"subject_description"`
	UseDatasource bool      `json:"use_datasource"`
	Tags          []string  `json:"tags,omitempty"`
	SubjectKey    uuid.UUID `json:"subject_key"`
}

// SubjectCode turns a subject name into its datasource name: spaces become
// underscores.
func SubjectCode(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// UserState is the per-user conversation state: which pipeline handles
// the next message and which subject the user is currently studying.
type UserState struct {
	UserID         string   `json:"user_id"`
	Pipeline       Pipeline `json:"pipeline"`
	CurrentSubject string   `json:"current_subject"`
}

// Message is a single turn of chat history sent to the generation backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Interaction is one logged user/bot exchange.
type Interaction struct {
	UserID      string    `json:"user_id"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Timestamp   time.Time `json:"timestamp"`
}

// IngestConfig holds the per-batch chunking configuration for ingestion.
type IngestConfig struct {
	CSVHeader           bool
	CSVKey              string
	CSVOutTemplate      string
	MaxSectionLength    int
	SectionOverlap      int
	SentenceSearchLimit int
	Slice               bool
}

// DefaultIngestConfig mirrors the operator defaults.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		CSVHeader:           true,
		CSVKey:              "issue",
		CSVOutTemplate:      "Issue:{issue}\n\nCause:{cause}\n\nSolution:{solution}",
		MaxSectionLength:    1000,
		SectionOverlap:      100,
		SentenceSearchLimit: 100,
		Slice:               true,
	}
}

// Validate rejects configurations that could make the splitter loop
// forever or emit degenerate sections.
func (c IngestConfig) Validate() error {
	if c.MaxSectionLength <= 0 {
		return fmt.Errorf("max section length must be positive, got %d", c.MaxSectionLength)
	}
	if c.SectionOverlap < 0 {
		return fmt.Errorf("section overlap must be non-negative, got %d", c.SectionOverlap)
	}
	if c.SentenceSearchLimit < 0 {
		return fmt.Errorf("sentence search limit must be non-negative, got %d", c.SentenceSearchLimit)
	}
	if c.SectionOverlap >= c.MaxSectionLength {
		return fmt.Errorf("section overlap (%d) must be smaller than max section length (%d)",
			c.SectionOverlap, c.MaxSectionLength)
	}
	return nil
}
