// internal/genai/parse.go
package genai

import (
	"encoding/json"
	"regexp"
	"strings"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	bareObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
	bareArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractJSON pulls a JSON payload out of free-form completion text using
// three progressively looser strategies, in order: JSON inside markdown
// fences, the first bare JSON object or array, then the whole response.
// Surrounding prose is tolerated; only a payload that survives json.Valid
// is returned.
func ExtractJSON(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, engerrors.NewMalformedResponseError("empty response")
	}

	// Strategy 1: fenced block.
	if m := fencedJSONRe.FindStringSubmatch(trimmed); len(m) == 2 {
		if candidate := strings.TrimSpace(m[1]); json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	// Strategy 2: first bare object or array embedded in prose.
	for _, re := range []*regexp.Regexp{bareArrayRe, bareObjectRe} {
		if m := re.FindString(trimmed); m != "" && json.Valid([]byte(m)) {
			return []byte(m), nil
		}
	}

	// Strategy 3: the entire response.
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	return nil, engerrors.NewMalformedResponseError("no parseable JSON in response")
}
