package llm

import (
	"encoding/json"
	"strings"
)

// StripCodeFence removes a surrounding markdown code block from a model reply.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 1 {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// DecodeJSON decodes a model reply into v, tolerating markdown code fences.
func DecodeJSON(text string, v any) error {
	return json.Unmarshal([]byte(StripCodeFence(text)), v)
}
