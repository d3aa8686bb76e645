// internal/markets/aggregator.go

// Package markets fans a query out to the configured market connectors and
// collects the raw candidates. One failing or slow market never aborts the
// batch; zero successful markets is an empty result, not an error.
package markets

import (
	"context"
	"strings"
	"sync"
	"time"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/common/metrics"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// Connector is the external market capability. Implementations must fail by
// returning an error, never by hanging; the aggregator enforces a timeout
// envelope regardless.
type Connector interface {
	Name() string
	Search(ctx context.Context, queryText string, filters models.Filters) ([]models.RawProduct, error)
}

// Aggregator runs the configured connectors concurrently and concatenates
// their successful results.
type Aggregator struct {
	connectors []Connector
	timeout    time.Duration
	productCap int
	logger     logger.Logger
}

// NewAggregator builds an aggregator over a fixed connector list. Output
// ordering follows connector registration order, not call-arrival order, so
// the pipeline stays deterministic for fixed inputs.
func NewAggregator(connectors []Connector, timeout time.Duration, productCap int, log logger.Logger) *Aggregator {
	return &Aggregator{
		connectors: connectors,
		timeout:    timeout,
		productCap: productCap,
		logger:     log.WithFields(map[string]interface{}{"component": "aggregator"}),
	}
}

// Aggregate searches every connector and returns the combined candidate
// list, each item tagged with its originating market. A source filter
// restricts the fan-out to the matching connector; an unknown source
// yields an empty result.
func (a *Aggregator) Aggregate(ctx context.Context, queryText string, filters models.Filters) []models.RawProduct {
	connectors := a.selectConnectors(filters.Source)
	if len(connectors) == 0 {
		return nil
	}

	results := make([][]models.RawProduct, len(connectors))
	var wg sync.WaitGroup

	for i, conn := range connectors {
		wg.Add(1)
		go func(idx int, c Connector) {
			defer wg.Done()
			results[idx] = a.searchOne(ctx, c, queryText, filters)
		}(i, conn)
	}
	wg.Wait()

	var combined []models.RawProduct
	for i, items := range results {
		for _, item := range items {
			if a.productCap > 0 && len(combined) >= a.productCap {
				a.logger.Debug("product cap reached", map[string]interface{}{
					"cap":            a.productCap,
					"marketsSkipped": len(connectors) - i - 1,
				})
				return combined
			}
			combined = append(combined, item)
		}
	}
	return combined
}

func (a *Aggregator) selectConnectors(source string) []Connector {
	if source == "" {
		return a.connectors
	}
	var selected []Connector
	for _, c := range a.connectors {
		if strings.EqualFold(c.Name(), source) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		a.logger.Warn("no connector matches requested source", map[string]interface{}{
			"source": source,
		})
	}
	return selected
}

func (a *Aggregator) searchOne(ctx context.Context, c Connector, queryText string, filters models.Filters) []models.RawProduct {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	items, err := c.Search(ctx, queryText, filters)
	if err != nil {
		reason := "error"
		if ctx.Err() == context.DeadlineExceeded {
			reason = "timeout"
			err = engerrors.NewMarketTimeoutError(c.Name())
		} else {
			err = engerrors.NewMarketSearchFailedError(c.Name(), err)
		}
		metrics.MarketSearchFailures.WithLabelValues(c.Name(), reason).Inc()
		a.logger.WithError(err).Warn("market search failed", map[string]interface{}{
			"market":     c.Name(),
			"durationMs": time.Since(start).Milliseconds(),
		})
		return nil
	}

	// Tag each product with its originating market.
	for i := range items {
		items[i].MarketID = c.Name()
	}

	a.logger.Debug("market search completed", map[string]interface{}{
		"market":     c.Name(),
		"results":    len(items),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return items
}
