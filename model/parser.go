package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schola/types"
)

// ExtractJSON cuts the first top-level JSON object out of a model reply,
// tolerating prose or fences around it.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start == -1 || end == -1 || end <= start {
		return s, errors.New("no valid json found")
	}

	return s[start : end+1], nil
}

// GenerateJSON runs the generator until it produces something that at
// least looks like a JSON object, feeding the broken output back with a
// repair prompt between attempts.
func GenerateJSON(ctx context.Context, g GeneratorInterface, messages []types.Message, maxAttempts int) (string, error) {
	var lastErr error
	var raw string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		var err error
		if attempt == 1 || raw == "" {
			raw, err = g.Generate(ctx, messages)
		} else {
			repair := append(messages[:len(messages):len(messages)], types.Message{
				Role:    "user",
				Content: buildRepairPrompt(raw),
			})
			raw, err = g.Generate(ctx, repair)
		}

		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}

		jsonStr, err := ExtractJSON(raw)
		if err == nil {
			return jsonStr, nil
		}

		lastErr = err
		time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
	}

	return "", fmt.Errorf("json generation failed after %d attempts: %w", maxAttempts, lastErr)
}

func buildRepairPrompt(badOutput string) string {
	return fmt.Sprintf(`You previously returned invalid JSON.

Your task is to FIX the JSON.

RULES:
- Output ONLY valid JSON
- Do NOT add or remove information
- Do NOT add explanations
- Do NOT include markdown
- Do NOT include text outside JSON

INVALID OUTPUT:
<<<
%s
>>>

Return the corrected JSON only.
`, badOutput)
}
