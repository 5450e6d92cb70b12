package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/ahrav/shinise-scout/internal/ports"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

var errNotJSON = errors.New("model output is not valid JSON")

// CleanJSON locates the JSON payload in model output. It tries, in order:
// the body of the first fenced block, the span from the first '{' to the
// last '}', and finally the whole text with fence markers stripped.
func CleanJSON(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}
	stripped := strings.ReplaceAll(text, "```json", "")
	stripped = strings.ReplaceAll(stripped, "```", "")
	return strings.TrimSpace(stripped)
}

// ExtractJSON returns the cleaned JSON or a *ports.ParseError.
func ExtractJSON(text string) (json.RawMessage, error) {
	cleaned := CleanJSON(text)
	if cleaned == "" || !json.Valid([]byte(cleaned)) {
		return nil, ports.NewParseError(text, errNotJSON)
	}
	return json.RawMessage(cleaned), nil
}
