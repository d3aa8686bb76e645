// internal/engine/engine.go

// Package engine wires the pipeline stages into the two public operations:
// Search, which runs interpret -> aggregate -> filter -> batch score ->
// assemble, and ComputeScore, which scores one deal on demand. Search is
// total: every internal failure lands in the result envelope, never in an
// error return.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/zarzn/dealbot-be-sub000/internal/common/config"
	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/common/metrics"
	"github.com/zarzn/dealbot-be-sub000/internal/common/observability"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/batchscore"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/dealscore"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/queryinterp"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/relevance"
	"github.com/zarzn/dealbot-be-sub000/internal/markets"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// scoreHistoryLimit bounds the prior-score series loaded for anomaly
// detection.
const scoreHistoryLimit = 50

// DealReader loads persisted deals.
type DealReader interface {
	GetDeal(ctx context.Context, id string) (models.Deal, error)
}

// PriceHistoryReader loads a deal's recent price observations.
type PriceHistoryReader interface {
	GetPriceHistory(ctx context.Context, dealID string, days int) ([]models.PriceHistoryPoint, error)
}

// ScoreHistoryReader loads a deal's prior normalized scores.
type ScoreHistoryReader interface {
	GetScoreHistory(ctx context.Context, dealID string, limit int) ([]float64, error)
}

// Engine is the search and scoring facade.
type Engine struct {
	interpreter *queryinterp.Interpreter
	aggregator  *markets.Aggregator
	filter      *relevance.Filter
	batchScorer *batchscore.Scorer
	calculator  *dealscore.Calculator
	deals       DealReader
	history     PriceHistoryReader
	scoreHist   ScoreHistoryReader
	obs         *observability.Observability
	cfg         config.EngineConfig
	assembler   *assembler
	logger      logger.Logger
}

// Deps carries the engine's constructor dependencies.
type Deps struct {
	Interpreter *queryinterp.Interpreter
	Aggregator  *markets.Aggregator
	Filter      *relevance.Filter
	BatchScorer *batchscore.Scorer
	Calculator  *dealscore.Calculator
	Deals       DealReader
	History     PriceHistoryReader
	ScoreHist   ScoreHistoryReader
	Obs         *observability.Observability
	Config      config.EngineConfig
	Logger      logger.Logger
}

func New(d Deps) *Engine {
	log := d.Logger.WithFields(map[string]interface{}{"component": "engine"})
	return &Engine{
		interpreter: d.Interpreter,
		aggregator:  d.Aggregator,
		filter:      d.Filter,
		batchScorer: d.BatchScorer,
		calculator:  d.Calculator,
		deals:       d.Deals,
		history:     d.History,
		scoreHist:   d.ScoreHist,
		obs:         d.Obs,
		cfg:         d.Config,
		assembler:   &assembler{deals: d.Deals, logger: log},
		logger:      log,
	}
}

// Search runs the full pipeline. It always returns a well-formed result;
// unusable input or total internal failure comes back as an empty result
// with Error set.
func (e *Engine) Search(ctx context.Context, req models.SearchRequest) models.SearchResult {
	start := time.Now()
	res := models.SearchResult{Deals: []models.RankedDeal{}}

	defer func() {
		res.ExecutionTimeMs = time.Since(start).Milliseconds()
		status := "success"
		switch {
		case res.Error != "":
			status = "error"
		case res.Total == 0:
			status = "empty"
		}
		metrics.SearchesTotal.WithLabelValues(status).Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
		if e.obs != nil {
			e.obs.RecordSearch(ctx, status)
			e.obs.RecordSearchDuration(ctx, time.Since(start), status)
		}
	}()

	if err := validateRequest(req); err != nil {
		res.Error = err.Error()
		paginate(nil, req.Page, e.pageSize(req), &res)
		return res
	}

	q := e.interpreter.Interpret(ctx, req.QueryText, req.Filters, req.UseAIEnhancement)
	res.AIEnhanced = q.AIEnhanced

	raw := e.aggregator.Aggregate(ctx, q.RawText, models.Filters{
		Category: q.Category,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Source:   req.Filters.Source,
	})
	if len(raw) == 0 {
		paginate(nil, req.Page, e.pageSize(req), &res)
		return res
	}

	cands, fallbackUsed := e.filter.Apply(q, raw)
	if fallbackUsed {
		e.logger.Info("serving fallback selection", map[string]interface{}{
			"query":    q.RawText,
			"selected": len(cands),
		})
	}

	cands = e.batchScorer.Score(ctx, q, cands)

	ranked := e.assembler.assemble(ctx, cands)
	paginate(ranked, req.Page, e.pageSize(req), &res)

	e.logger.Info("search completed", map[string]interface{}{
		"query":      q.RawText,
		"raw":        len(raw),
		"returned":   res.Count,
		"total":      res.Total,
		"aiEnhanced": res.AIEnhanced,
		"fallback":   fallbackUsed,
	})
	return res
}

// ComputeScore loads the deal view and runs the score calculator. Only an
// unknown deal id is an error; history reads degrade to empty series.
func (e *Engine) ComputeScore(ctx context.Context, dealID string) (dealscore.Result, error) {
	deal, err := e.deals.GetDeal(ctx, dealID)
	if err != nil {
		return dealscore.Result{}, err
	}

	view := models.DealView{Deal: deal}

	if e.history != nil {
		points, err := e.history.GetPriceHistory(ctx, dealID, e.cfg.Scoring.TrendWindowDays)
		if err != nil {
			e.logger.WithError(err).Warn("price history unavailable, scoring without it", map[string]interface{}{
				"dealId": dealID,
			})
		} else {
			view.PriceHistory = points
		}
	}
	if e.scoreHist != nil {
		scores, err := e.scoreHist.GetScoreHistory(ctx, dealID, scoreHistoryLimit)
		if err != nil {
			e.logger.WithError(err).Warn("score history unavailable, skipping anomaly detection", map[string]interface{}{
				"dealId": dealID,
			})
		} else {
			view.ScoreHistory = scores
		}
	}

	return e.calculator.Calculate(ctx, view), nil
}

func (e *Engine) pageSize(req models.SearchRequest) int {
	if req.PageSize > 0 {
		return req.PageSize
	}
	if e.cfg.DefaultPageSize > 0 {
		return e.cfg.DefaultPageSize
	}
	return 20
}

// validateRequest rejects input the pipeline cannot act on: negative price
// bounds violate the price contract, and a blank query with no filters has
// nothing to search for.
func validateRequest(req models.SearchRequest) error {
	if req.Filters.MinPrice != nil && *req.Filters.MinPrice < 0 {
		return engerrors.NewInvalidPriceError(*req.Filters.MinPrice)
	}
	if req.Filters.MaxPrice != nil && *req.Filters.MaxPrice < 0 {
		return engerrors.NewInvalidPriceError(*req.Filters.MaxPrice)
	}
	if strings.TrimSpace(req.QueryText) == "" && req.Filters == (models.Filters{}) {
		return engerrors.NewInvalidInputError("empty query with no filters")
	}
	return nil
}
