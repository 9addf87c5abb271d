package answer

import (
	"regexp"
	"strings"
)

const markupLimit = 60

var (
	boldRe   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	headerRe = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	linkRe   = regexp.MustCompile(`\[([^\]\n]+)\]\((https?://[^)\s]+)\)`)
)

// FormatReply converts the model output into the HTML the chat frontend
// can render: one surrounding code fence is removed, short markdown bold
// runs and headers become <b>, markdown links become <a>. Text that is
// already HTML passes through unchanged, so the function is safe to
// apply twice.
func FormatReply(s string) string {
	s = StripFence(s)
	s = boldRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := boldRe.FindStringSubmatch(m)[1]
		if len([]rune(inner)) > markupLimit {
			return m
		}
		return "<b>" + inner + "</b>"
	})
	s = headerRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := headerRe.FindStringSubmatch(m)[1]
		if len([]rune(inner)) > markupLimit {
			return m
		}
		return "<b>" + inner + "</b>"
	})
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	return strings.TrimSpace(s)
}

// StripFence unwraps a reply the model wrapped in a single fenced code
// block, dropping the fence lines and any language hint. The fence must
// enclose the whole reply; anything else is returned as-is, so text
// following a closing fence survives.
func StripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 6 || !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") {
		return s
	}
	inner := trimmed[3 : len(trimmed)-3]
	if i := strings.IndexByte(inner, '\n'); i >= 0 {
		inner = inner[i+1:]
	} else {
		// fence and content on one line, the "language" is the content
		inner = strings.TrimSpace(inner)
	}
	return strings.TrimSpace(inner)
}
