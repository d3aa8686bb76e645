// internal/engine/batchscore/parse.go
package batchscore

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/genai"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

const judgmentSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["product_index", "matching_score"],
		"properties": {
			"product_index":         {"type": "integer", "minimum": 1},
			"matching_score":        {"type": "number"},
			"recommendations":       {"type": "array", "items": {"type": "string"}},
			"key_matching_features": {"type": "array", "items": {"type": "string"}}
		}
	}
}`

var judgmentSchemaLoader = gojsonschema.NewStringLoader(judgmentSchema)

// ParseJudgments extracts and validates the judgment array from completion
// text. Schema violations are malformed-response errors, which callers
// treat as a degradation trigger rather than a hard failure.
func ParseJudgments(text string) ([]models.RelevanceJudgment, error) {
	payload, err := genai.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(judgmentSchemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, engerrors.NewMalformedResponseError(fmt.Sprintf("schema validation error: %v", err))
	}
	if !result.Valid() {
		details := "judgment payload failed schema validation"
		if errs := result.Errors(); len(errs) > 0 {
			details = fmt.Sprintf("%s: %s", details, errs[0].String())
		}
		return nil, engerrors.NewMalformedResponseError(details)
	}

	var judgments []models.RelevanceJudgment
	if err := json.Unmarshal(payload, &judgments); err != nil {
		return nil, engerrors.NewMalformedResponseError(fmt.Sprintf("judgment decode: %v", err))
	}
	return judgments, nil
}
