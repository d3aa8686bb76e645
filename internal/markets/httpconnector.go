// internal/markets/httpconnector.go
package markets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zarzn/dealbot-be-sub000/internal/common/config"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// HTTPConnector talks to one market's search API. All markets in the
// current deployment expose the same /search contract, so one connector
// type covers them and the config map decides which exist.
type HTTPConnector struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

func NewHTTPConnector(name string, cfg config.MarketConfig, log logger.Logger) *HTTPConnector {
	return &HTTPConnector{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		// Cancellation comes from the aggregator's per-market context.
		httpClient: &http.Client{},
		logger:     log.WithFields(map[string]interface{}{"market": name}),
	}
}

func (c *HTTPConnector) Name() string { return c.name }

// wireProduct is the market API's response item.
type wireProduct struct {
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Price         float64                `json:"price"`
	OriginalPrice *float64               `json:"original_price"`
	Currency      string                 `json:"currency"`
	URL           string                 `json:"url"`
	ImageURL      string                 `json:"image_url"`
	Rating        *float64               `json:"rating"`
	ReviewCount   *int                   `json:"review_count"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type searchResponse struct {
	Products []wireProduct `json:"products"`
}

// Search queries the market's /search endpoint. The caller's context is
// the only timeout boundary.
func (c *HTTPConnector) Search(ctx context.Context, queryText string, filters models.Filters) ([]models.RawProduct, error) {
	endpoint, err := c.buildURL(queryText, filters)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("market %s status %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode market %s response: %w", c.name, err)
	}

	products := make([]models.RawProduct, 0, len(parsed.Products))
	for _, wp := range parsed.Products {
		if wp.Price < 0 {
			c.logger.Warn("skipping product with negative price", map[string]interface{}{
				"title": wp.Title,
			})
			continue
		}
		products = append(products, models.RawProduct{
			Title:         wp.Title,
			Description:   wp.Description,
			Price:         wp.Price,
			OriginalPrice: wp.OriginalPrice,
			Currency:      wp.Currency,
			URL:           wp.URL,
			ImageURL:      wp.ImageURL,
			Rating:        wp.Rating,
			ReviewCount:   wp.ReviewCount,
			RawMetadata:   wp.Metadata,
		})
	}
	return products, nil
}

func (c *HTTPConnector) buildURL(queryText string, filters models.Filters) (string, error) {
	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("q", queryText)
	if filters.Category != "" {
		q.Set("category", filters.Category)
	}
	if filters.MinPrice != nil {
		q.Set("min_price", strconv.FormatFloat(*filters.MinPrice, 'f', 2, 64))
	}
	if filters.MaxPrice != nil {
		q.Set("max_price", strconv.FormatFloat(*filters.MaxPrice, 'f', 2, 64))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
