package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseModelJSON decodes JSON out of free-form language model output.
// It strips markdown code fences, tries a strict parse, then falls back to
// the first `{...}` object substring and the first `[...]` array substring.
// Every model call site shares this so the fallback behavior is tested once.
func parseModelJSON(raw string, out any) error {
	cleaned := stripCodeFences(raw)
	if cleaned == "" {
		return fmt.Errorf("empty model output")
	}

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	if sub, ok := bracketSubstring(cleaned, '{', '}'); ok {
		if err := json.Unmarshal([]byte(sub), out); err == nil {
			return nil
		}
	}
	if sub, ok := bracketSubstring(cleaned, '[', ']'); ok {
		if err := json.Unmarshal([]byte(sub), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no parseable json in model output")
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Language tag on the opening fence, e.g. ```json.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func bracketSubstring(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
