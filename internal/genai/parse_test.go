// internal/genai/parse_test.go
package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
)

func TestExtractJSON_FencedBlock(t *testing.T) {
	text := "Here are the results:\n```json\n{\"category\": \"electronics\"}\n```\nHope that helps!"
	got, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category": "electronics"}`, string(got))
}

func TestExtractJSON_FenceWithoutLanguage(t *testing.T) {
	got, err := ExtractJSON("```\n[1, 2, 3]\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(got))
}

func TestExtractJSON_BareArrayInProse(t *testing.T) {
	text := `Sure. [{"product_index": 1, "matching_score": 0.9}] is my judgment.`
	got, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"product_index": 1, "matching_score": 0.9}]`, string(got))
}

func TestExtractJSON_WholeResponse(t *testing.T) {
	got, err := ExtractJSON(`{"min_price": 10}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"min_price": 10}`, string(got))
}

func TestExtractJSON_MalformedAfterAllStrategies(t *testing.T) {
	for _, text := range []string{"", "   ", "no json here at all", "{broken: json"} {
		_, err := ExtractJSON(text)
		require.Error(t, err, "input %q", text)
		assert.Equal(t, engerrors.ErrCodeMalformedResponse, engerrors.CodeOf(err))
	}
}
