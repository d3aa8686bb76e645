// internal/markets/httpconnector_test.go
package markets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarzn/dealbot-be-sub000/internal/common/config"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

func TestHTTPConnector_Search(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products": [
			{"title": "Wireless Headphones", "price": 45.5, "original_price": 60, "currency": "USD", "url": "https://m/1", "rating": 4.4, "review_count": 812, "metadata": {"deal_id": "d-1"}},
			{"title": "Corrupted Item", "price": -3, "currency": "USD"},
			{"title": "Wired Earbuds", "price": 12, "currency": "USD", "url": "https://m/2"}
		]}`))
	}))
	defer srv.Close()

	conn := NewHTTPConnector("amazon", config.MarketConfig{BaseURL: srv.URL, APIKey: "secret"}, logger.NewNop())

	maxP := 50.0
	products, err := conn.Search(context.Background(), "wireless headphones", models.Filters{
		Category: "electronics",
		MaxPrice: &maxP,
	})

	require.NoError(t, err)
	assert.Equal(t, "/search", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, []string{"wireless headphones"}, gotQuery["q"])
	assert.Equal(t, []string{"electronics"}, gotQuery["category"])
	assert.Equal(t, []string{"50.00"}, gotQuery["max_price"])

	// Negative-priced item was dropped.
	require.Len(t, products, 2)
	assert.Equal(t, "Wireless Headphones", products[0].Title)
	require.NotNil(t, products[0].OriginalPrice)
	assert.InDelta(t, 60.0, *products[0].OriginalPrice, 0.001)
	require.NotNil(t, products[0].Rating)
	assert.InDelta(t, 4.4, *products[0].Rating, 0.001)
	require.NotNil(t, products[0].ReviewCount)
	assert.Equal(t, 812, *products[0].ReviewCount)
	assert.Equal(t, "d-1", products[0].RawMetadata["deal_id"])

	// Omitted optional fields stay unset instead of zero-valued.
	assert.Nil(t, products[1].Rating)
	assert.Nil(t, products[1].ReviewCount)
}

func TestHTTPConnector_UpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	conn := NewHTTPConnector("ebay", config.MarketConfig{BaseURL: srv.URL}, logger.NewNop())

	_, err := conn.Search(context.Background(), "headphones", models.Filters{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestHTTPConnector_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	conn := NewHTTPConnector("slow", config.MarketConfig{BaseURL: srv.URL}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := conn.Search(ctx, "headphones", models.Filters{})

	assert.Error(t, err)
}
