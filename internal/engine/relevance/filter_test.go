// internal/engine/relevance/filter_test.go
package relevance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

func TestFilterApply_PassingCandidatesSortedByScore(t *testing.T) {
	f := NewFilter(5, 30, logger.NewNop())
	q := query("wireless", "headphones")

	products := []models.RawProduct{
		product("Headphones wired budget", 20),           // 1 of 2 terms
		product("Wireless Headphones Pro", 150),          // both terms
		product("Wireless Over-Ear Headphones Mic", 145), // both terms
	}

	selected, fallback := f.Apply(q, products)

	assert.False(t, fallback)
	require.Len(t, selected, 3)
	for i := 1; i < len(selected); i++ {
		assert.GreaterOrEqual(t, selected[i-1].RelevanceScore, selected[i].RelevanceScore)
	}
	assert.True(t, selected[0].PassedAllFilters)
}

func TestFilterApply_FallbackWhenStrictFilterEmpties(t *testing.T) {
	f := NewFilter(5, 30, logger.NewTestLogger(t))

	// Three terms force a minimum of two matches; every candidate matches
	// exactly one, so the strict set is empty but the pool is rankable.
	q := query("hugo", "boss", "perfume")
	products := []models.RawProduct{
		product("Hugo Sportswear Jacket", 40),
		product("Boss Coffee Mug", 12),
		product("Perfume Atomizer Bottle", 8),
	}

	selected, fallback := f.Apply(q, products)

	assert.True(t, fallback)
	require.NotEmpty(t, selected)
	assert.LessOrEqual(t, len(selected), 3)
	for _, sc := range selected {
		assert.False(t, sc.PassedAllFilters)
		assert.NotEmpty(t, sc.MatchedTerms)
	}
}

func TestFilterApply_FallbackNeverEmptyForViablePool(t *testing.T) {
	f := NewFilter(5, 30, logger.NewNop())
	q := query("camera", "tripod", "bag")

	// Grow the pool one partially-matching candidate at a time; output must
	// stay non-empty at every size.
	var products []models.RawProduct
	for i := 1; i <= 8; i++ {
		products = append(products, product(fmt.Sprintf("Camera Strap %d", i), float64(10*i)))
		selected, _ := f.Apply(q, products)
		assert.NotEmpty(t, selected, "pool of %d viable candidates produced empty output", i)
	}
}

func TestFilterApply_ZeroMatchCandidatesExcluded(t *testing.T) {
	f := NewFilter(5, 30, logger.NewNop())
	q := query("espresso", "machine")

	products := []models.RawProduct{
		product("Garden Hose 25ft", 18),
		product("Yoga Mat Purple", 22),
	}

	selected, fallback := f.Apply(q, products)

	assert.Empty(t, selected)
	assert.False(t, fallback)
}

func TestFilterApply_FallbackCappedAtLimit(t *testing.T) {
	f := NewFilter(5, 30, logger.NewNop())
	q := query("hugo", "boss", "perfume")

	var products []models.RawProduct
	for i := 0; i < 9; i++ {
		products = append(products, product(fmt.Sprintf("Perfume Sample Vial %d", i), float64(5+i)))
	}

	selected, fallback := f.Apply(q, products)

	assert.True(t, fallback)
	assert.Len(t, selected, 5)
}

func TestFilterApply_PrimaryPreTrimmed(t *testing.T) {
	f := NewFilter(5, 2, logger.NewNop())
	q := query("headphones")

	var products []models.RawProduct
	for i := 0; i < 10; i++ {
		products = append(products, product(fmt.Sprintf("Headphones Model %d", i), float64(30+i)))
	}

	selected, fallback := f.Apply(q, products)

	assert.False(t, fallback)
	assert.Len(t, selected, 4) // 2 * maxProducts
}

func TestFilterApply_EmptyInput(t *testing.T) {
	f := NewFilter(5, 30, logger.NewNop())

	selected, fallback := f.Apply(query("anything"), nil)

	assert.Nil(t, selected)
	assert.False(t, fallback)
}
