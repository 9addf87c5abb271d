package answer

import (
	"fmt"
	"strings"

	"schola/types"
)

// NoSourcesMarker is inserted in place of retrieved sections when the
// subject has no datasource or the search returned nothing. The model is
// instructed to say so instead of inventing citations.
const NoSourcesMarker = "No sources available."

const qaInstruction = `You are a patient tutor helping a student study the subject "%s".
%s
Answer the student's question using ONLY the sources below. Each source starts with its file name and page anchor; when you use a source, mention the file and page it came from.
If the sources say "` + NoSourcesMarker + `" or do not contain the answer, say that you could not find it in the study materials and answer from general knowledge, clearly marked as such.
Reply in the same language the student writes in.
Format the reply as simple HTML using only <b>, <i> and <a href="..."> tags. Do not use markdown, tables or code blocks.

Sources:
%s`

const imageInstruction = `You are a patient tutor. The student sent a photo; an image analysis service described it as follows:

%s

Answer the student's question about the photo. Reply in the student's language, as simple HTML using only <b>, <i> and <a href="..."> tags. Do not use markdown, tables or code blocks.`

const quizInstruction = `You are a quiz generator for the subject "%s".
%s
Write ONE multiple-choice question grounded in the sources below. If the sources say "` + NoSourcesMarker + `", base the question on the subject in general.
Respond with ONLY a JSON object, no prose, in exactly this shape:
{"question": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "correct_option": "A", "explanation": "..."}

Sources:
%s`

func qaSystemPrompt(subject *types.Subject, sources string) string {
	name, desc := subjectContext(subject)
	return fmt.Sprintf(qaInstruction, name, desc, sources)
}

func quizSystemPrompt(subject *types.Subject, sources string) string {
	name, desc := subjectContext(subject)
	return fmt.Sprintf(quizInstruction, name, desc, sources)
}

func imageSystemPrompt(description string) string {
	return fmt.Sprintf(imageInstruction, description)
}

func subjectContext(subject *types.Subject) (name, desc string) {
	if subject == nil {
		return "general studies", ""
	}
	if subject.Description != "" {
		desc = "About the subject: " + subject.Description
	}
	return subject.Name, desc
}

// formatSources renders retrieval hits verbatim, one per line, prefixed
// with the file anchor they came from and suffixed with their relevance
// score.
func formatSources(hits []types.RetrievalHit) string {
	if len(hits) == 0 {
		return NoSourcesMarker
	}
	var b strings.Builder
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s (relevance %.2f)", hit.FileURL, hit.Content, hit.Score)
	}
	return b.String()
}
