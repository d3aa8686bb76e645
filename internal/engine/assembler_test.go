// internal/engine/assembler_test.go
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

func rankedDeal(market, url, title string, final float64) models.RankedDeal {
	return models.RankedDeal{
		Product:    models.RawProduct{MarketID: market, URL: url, Title: title},
		FinalScore: final,
	}
}

func TestDedupe_URLThenTitle(t *testing.T) {
	in := []models.RankedDeal{
		rankedDeal("amazon", "https://a/1", "Wireless Headphones Pro", 0.9),
		rankedDeal("amazon", "https://a/1", "Wireless Headphones Pro v2", 0.8), // same market+url
		rankedDeal("ebay", "https://e/1", "Wireless  Headphones   PRO", 0.7),  // same normalized title
		rankedDeal("ebay", "https://e/2", "Budget Earbuds", 0.6),
	}

	out := dedupe(in)

	assert.Len(t, out, 2)
	assert.Equal(t, "https://a/1", out[0].Product.URL)
	assert.Equal(t, "Budget Earbuds", out[1].Product.Title)
}

func TestDedupe_SameURLDifferentMarketsKept(t *testing.T) {
	in := []models.RankedDeal{
		rankedDeal("amazon", "https://x/1", "Deal One", 0.9),
		rankedDeal("ebay", "https://x/1", "Deal Two", 0.8),
	}

	assert.Len(t, dedupe(in), 2)
}

func TestPaginate_Bounds(t *testing.T) {
	ranked := make([]models.RankedDeal, 5)

	tests := []struct {
		name      string
		page      int
		pageSize  int
		wantCount int
		wantPage  int
		wantPages int
	}{
		{"first page", 1, 2, 2, 1, 3},
		{"last partial page", 3, 2, 1, 3, 3},
		{"past the end", 9, 2, 0, 9, 3},
		{"zero page coerced", 0, 2, 2, 1, 3},
		{"page size over total", 1, 50, 5, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res models.SearchResult
			paginate(ranked, tt.page, tt.pageSize, &res)

			assert.Equal(t, tt.wantCount, res.Count)
			assert.Equal(t, tt.wantPage, res.Page)
			assert.Equal(t, tt.wantPages, res.Pages)
			assert.Equal(t, 5, res.Total)
		})
	}
}

func TestPaginate_EmptyInputIsWellFormed(t *testing.T) {
	var res models.SearchResult
	paginate(nil, 1, 20, &res)

	assert.NotNil(t, res.Deals)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, res.Pages)
}
