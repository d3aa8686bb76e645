// internal/engine/batchscore/parse_test.go
package batchscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
)

func TestParseJudgments_FencedBlock(t *testing.T) {
	text := "Sure! Here is my assessment:\n```json\n[{\"product_index\": 2, \"matching_score\": 0.85}]\n```\nLet me know if you need more."

	judgments, err := ParseJudgments(text)

	require.NoError(t, err)
	require.Len(t, judgments, 1)
	assert.Equal(t, 2, judgments[0].ProductIndex)
	assert.InDelta(t, 0.85, judgments[0].MatchingScore, 0.001)
}

func TestParseJudgments_ArrayEmbeddedInProse(t *testing.T) {
	text := `The ratings follow. [{"product_index": 1, "matching_score": 0.7, "key_matching_features": ["100ml", "edt"]}] Hope that helps.`

	judgments, err := ParseJudgments(text)

	require.NoError(t, err)
	require.Len(t, judgments, 1)
	assert.Equal(t, []string{"100ml", "edt"}, judgments[0].KeyMatchingFeatures)
}

func TestParseJudgments_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"score as string", `[{"product_index": 1, "matching_score": "high"}]`},
		{"missing index", `[{"matching_score": 0.9}]`},
		{"index below one", `[{"product_index": 0, "matching_score": 0.9}]`},
		{"object instead of array", `{"product_index": 1, "matching_score": 0.9}`},
		{"no json at all", "the best match is clearly the first one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJudgments(tt.text)
			require.Error(t, err)
			assert.Equal(t, engerrors.ErrCodeMalformedResponse, engerrors.CodeOf(err))
		})
	}
}

func TestParseJudgments_EmptyArray(t *testing.T) {
	judgments, err := ParseJudgments(`[]`)
	require.NoError(t, err)
	assert.Empty(t, judgments)
}
