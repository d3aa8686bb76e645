// internal/engine/engine_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarzn/dealbot-be-sub000/internal/common/config"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/batchscore"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/dealscore"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/queryinterp"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/relevance"
	"github.com/zarzn/dealbot-be-sub000/internal/markets"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
	"github.com/zarzn/dealbot-be-sub000/internal/storage"
)

type staticConnector struct {
	name     string
	products []models.RawProduct
	err      error
}

func (c *staticConnector) Name() string { return c.name }

func (c *staticConnector) Search(ctx context.Context, queryText string, f models.Filters) ([]models.RawProduct, error) {
	return c.products, c.err
}

type fakeDeals struct {
	deals map[string]models.Deal
}

func (f *fakeDeals) GetDeal(ctx context.Context, id string) (models.Deal, error) {
	d, ok := f.deals[id]
	if !ok {
		return models.Deal{}, storage.ErrDealNotFound
	}
	return d, nil
}

type fakeHistory struct {
	points []models.PriceHistoryPoint
	err    error
}

func (f *fakeHistory) GetPriceHistory(ctx context.Context, dealID string, days int) ([]models.PriceHistoryPoint, error) {
	return f.points, f.err
}

type fakeScoreHistory struct {
	scores []float64
	err    error
}

func (f *fakeScoreHistory) GetScoreHistory(ctx context.Context, dealID string, limit int) ([]float64, error) {
	return f.scores, f.err
}

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxProducts:     30,
		BatchScoreCap:   15,
		FallbackLimit:   5,
		DefaultPageSize: 20,
		Scoring: config.ScoringConfig{
			DefaultBaseScore:   75,
			DefaultReliability: 0.8,
			TrendWindowDays:    30,
			TrendDailyThresh:   0.005,
			AnomalySigma:       2.0,
			DiscountBands: []config.DiscountBand{
				{MinDiscount: 0.20, Bonus: 5},
			},
		},
	}
}

func newEngine(t *testing.T, connectors []markets.Connector, deals DealReader, history PriceHistoryReader, scoreHist ScoreHistoryReader) *Engine {
	t.Helper()
	log := logger.NewNop()
	cfg := engineConfig()

	return New(Deps{
		Interpreter: queryinterp.New(nil, log),
		Aggregator:  markets.NewAggregator(connectors, 200*time.Millisecond, cfg.MaxProducts, log),
		Filter:      relevance.NewFilter(cfg.FallbackLimit, cfg.MaxProducts, log),
		BatchScorer: batchscore.New(nil, cfg.BatchScoreCap, time.Second, log),
		Calculator:  dealscore.NewCalculator(nil, nil, nil, cfg.Scoring, log),
		Deals:       deals,
		History:     history,
		ScoreHist:   scoreHist,
		Config:      cfg,
		Logger:      log,
	})
}

func headphoneProducts(n int) []models.RawProduct {
	out := make([]models.RawProduct, n)
	for i := range out {
		out[i] = models.RawProduct{
			Title:    fmt.Sprintf("Wireless Headphones Model %d", i+1),
			Price:    float64(30 + i),
			Currency: "USD",
			URL:      fmt.Sprintf("https://example.com/p/%d", i+1),
		}
	}
	return out
}

func TestSearch_HappyPath(t *testing.T) {
	conn := &staticConnector{name: "amazon", products: headphoneProducts(3)}
	e := newEngine(t, []markets.Connector{conn}, nil, nil, nil)

	res := e.Search(context.Background(), models.SearchRequest{QueryText: "wireless headphones"})

	assert.Empty(t, res.Error)
	assert.False(t, res.AIEnhanced)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 1, res.Pages)
	assert.GreaterOrEqual(t, res.ExecutionTimeMs, int64(0))
	for _, d := range res.Deals {
		assert.Equal(t, "amazon", d.Product.MarketID)
		assert.GreaterOrEqual(t, d.MatchingScore, 0.65) // heuristic default, no AI configured
	}
}

func TestSearch_EmptyQueryNoFilters(t *testing.T) {
	e := newEngine(t, nil, nil, nil, nil)

	res := e.Search(context.Background(), models.SearchRequest{QueryText: "   "})

	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Deals)
	assert.Equal(t, 0, res.Total)
}

func TestSearch_NegativePriceFilterRejected(t *testing.T) {
	e := newEngine(t, nil, nil, nil, nil)
	neg := -10.0

	res := e.Search(context.Background(), models.SearchRequest{
		QueryText: "headphones",
		Filters:   models.Filters{MaxPrice: &neg},
	})

	assert.Contains(t, res.Error, "INVALID_PRICE")
	assert.Empty(t, res.Deals)
}

func TestSearch_AllMarketsFailingIsEmptyNotError(t *testing.T) {
	conns := []markets.Connector{
		&staticConnector{name: "amazon", err: errors.New("upstream 500")},
		&staticConnector{name: "ebay", err: errors.New("upstream 503")},
	}
	e := newEngine(t, conns, nil, nil, nil)

	res := e.Search(context.Background(), models.SearchRequest{QueryText: "headphones"})

	assert.Empty(t, res.Error)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Deals)
}

func TestSearch_ExpiredDealsExcluded(t *testing.T) {
	products := headphoneProducts(2)
	products[0].RawMetadata = map[string]interface{}{"deal_id": "expired-deal"}
	conn := &staticConnector{name: "amazon", products: products}

	deals := &fakeDeals{deals: map[string]models.Deal{
		"expired-deal": {ID: "expired-deal", Status: models.DealStatusExpired},
	}}
	e := newEngine(t, []markets.Connector{conn}, deals, nil, nil)

	res := e.Search(context.Background(), models.SearchRequest{QueryText: "wireless headphones"})

	require.Equal(t, 1, res.Total)
	assert.Equal(t, "Wireless Headphones Model 2", res.Deals[0].Product.Title)
}

func TestSearch_DealScoreBlendedIntoRanking(t *testing.T) {
	products := headphoneProducts(2)
	products[1].RawMetadata = map[string]interface{}{"deal_id": "great-deal"}
	conn := &staticConnector{name: "amazon", products: products}

	score := 1.0
	deals := &fakeDeals{deals: map[string]models.Deal{
		"great-deal": {ID: "great-deal", Status: models.DealStatusActive, LatestScore: &score},
	}}
	e := newEngine(t, []markets.Connector{conn}, deals, nil, nil)

	res := e.Search(context.Background(), models.SearchRequest{QueryText: "wireless headphones"})

	require.Equal(t, 2, res.Total)
	// The deal-backed product outranks its otherwise-equal sibling.
	assert.Equal(t, "Wireless Headphones Model 2", res.Deals[0].Product.Title)
	require.NotNil(t, res.Deals[0].DealScore)
	assert.InDelta(t, 100.0, *res.Deals[0].DealScore, 0.001)
	assert.Greater(t, res.Deals[0].FinalScore, res.Deals[1].FinalScore)
}

func TestSearch_Pagination(t *testing.T) {
	conn := &staticConnector{name: "amazon", products: headphoneProducts(5)}
	e := newEngine(t, []markets.Connector{conn}, nil, nil, nil)

	res := e.Search(context.Background(), models.SearchRequest{
		QueryText: "wireless headphones",
		Page:      2,
		PageSize:  2,
	})

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 3, res.Pages)
}

func TestSearch_DuplicateURLsCollapsed(t *testing.T) {
	products := headphoneProducts(2)
	products[1].URL = products[0].URL
	products[1].Title = products[0].Title
	conn := &staticConnector{name: "amazon", products: products}
	e := newEngine(t, []markets.Connector{conn}, nil, nil, nil)

	res := e.Search(context.Background(), models.SearchRequest{QueryText: "wireless headphones"})

	assert.Equal(t, 1, res.Total)
}

func TestComputeScore_UnknownDeal(t *testing.T) {
	e := newEngine(t, nil, &fakeDeals{}, nil, nil)

	_, err := e.ComputeScore(context.Background(), "missing")

	assert.ErrorIs(t, err, storage.ErrDealNotFound)
}

func TestComputeScore_HistoryReadFailureDegrades(t *testing.T) {
	deals := &fakeDeals{deals: map[string]models.Deal{
		"deal-1": {ID: "deal-1", Title: "Blender", Price: 50, Status: models.DealStatusActive},
	}}
	history := &fakeHistory{err: errors.New("connection refused")}
	scoreHist := &fakeScoreHistory{err: errors.New("connection refused")}
	e := newEngine(t, nil, deals, history, scoreHist)

	res, err := e.ComputeScore(context.Background(), "deal-1")

	require.NoError(t, err)
	// Zero-history outcome: default base, no modifiers, lowered confidence.
	assert.InDelta(t, 75.0, res.FinalScore, 0.001)
	assert.InDelta(t, 0.5, res.Confidence, 0.001)
	assert.False(t, res.IsAnomaly)
}

func TestComputeScore_FullView(t *testing.T) {
	now := time.Now()
	deals := &fakeDeals{deals: map[string]models.Deal{
		"deal-1": {ID: "deal-1", Title: "Blender", Price: 80, OriginalPrice: ptrF(100), Status: models.DealStatusActive},
	}}
	history := &fakeHistory{points: []models.PriceHistoryPoint{
		{DealID: "deal-1", Price: 80, Timestamp: now.AddDate(0, 0, -5)},
		{DealID: "deal-1", Price: 80, Timestamp: now.AddDate(0, 0, -1)},
	}}
	scoreHist := &fakeScoreHistory{scores: []float64{0.78, 0.80, 0.79}}
	e := newEngine(t, nil, deals, history, scoreHist)

	res, err := e.ComputeScore(context.Background(), "deal-1")

	require.NoError(t, err)
	// Default base 75 + 20% discount band bonus 5.
	assert.InDelta(t, 80.0, res.FinalScore, 0.001)
	assert.False(t, res.IsAnomaly)
}

func ptrF(f float64) *float64 { return &f }
