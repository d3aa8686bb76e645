// internal/engine/dealscore/calculator.go

// Package dealscore computes the value score of a single deal from its
// price history, source reliability, and an optional AI base assessment.
// The computation itself is independent of the search pipeline and runs
// on demand per deal.
package dealscore

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/zarzn/dealbot-be-sub000/internal/common/config"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/common/metrics"
	"github.com/zarzn/dealbot-be-sub000/internal/genai"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// Score adjustments applied on top of the base score.
const (
	trendFallingBonus   = 5.0
	trendRisingPenalty  = -5.0
	reliabilityWeight   = 10.0
	competitiveStrong   = 10.0
	competitiveModerate = 5.0
	competitivePenalty  = -5.0

	confidenceFull        = 0.9
	confidenceDefaultBase = 0.7
	confidenceFloor       = 0.3
)

var baseScoreRe = regexp.MustCompile(`(?i)score:?\s*(\d{1,3}(?:\.\d+)?)\s*/\s*100`)

// ReliabilitySource resolves a source's reliability rating in [0,1].
type ReliabilitySource interface {
	Reliability(ctx context.Context, source string) float64
}

// Recorder persists score computations. Both writes are best-effort from
// the calculator's point of view.
type Recorder interface {
	Append(ctx context.Context, rec models.DealScoreRecord) error
	UpdateLatestScore(ctx context.Context, dealID string, score float64) error
}

// Result is one completed score computation.
type Result struct {
	FinalScore float64 // [0,100]
	Normalized float64 // [0,1], what gets persisted
	Confidence float64
	ScoreType  string // "ai" or "heuristic"
	IsAnomaly  bool
	Components map[string]float64
}

// Calculator computes and records deal scores.
type Calculator struct {
	completer   genai.Completer
	reliability ReliabilitySource
	recorder    Recorder
	cfg         config.ScoringConfig
	logger      logger.Logger
}

func NewCalculator(completer genai.Completer, rel ReliabilitySource, rec Recorder, cfg config.ScoringConfig, log logger.Logger) *Calculator {
	return &Calculator{
		completer:   completer,
		reliability: rel,
		recorder:    rec,
		cfg:         cfg,
		logger:      log.WithFields(map[string]interface{}{"component": "dealscore"}),
	}
}

// Calculate scores the deal in view and records the outcome. It never
// returns an error: every input degradation has a defined default, and
// persistence failures are logged rather than surfaced.
func (c *Calculator) Calculate(ctx context.Context, view models.DealView) Result {
	deal := view.Deal

	base, scoreType := c.baseScore(ctx, deal)
	components := map[string]float64{"base": base}

	trend := c.trendAdjustment(view.PriceHistory)
	components["trend"] = trend

	rel := c.reliabilityAdjustment(ctx, deal.Source)
	components["reliability"] = rel

	discount := c.discountBonus(deal)
	components["discount"] = discount

	competitive := c.competitivenessAdjustment(deal.Price, view.PriceHistory)
	components["competitiveness"] = competitive

	final := clamp(base+trend+rel+discount+competitive, 0, 100)
	normalized := clamp(final/100, 0, 1)

	res := Result{
		FinalScore: final,
		Normalized: normalized,
		Confidence: c.confidence(scoreType, view),
		ScoreType:  scoreType,
		IsAnomaly:  c.detectAnomaly(normalized, view.ScoreHistory),
		Components: components,
	}

	metrics.ScoreComputations.WithLabelValues(scoreType).Inc()
	if res.IsAnomaly {
		metrics.ScoreAnomalies.Inc()
		c.logger.Warn("deal score flagged as anomaly", map[string]interface{}{
			"dealId": deal.ID,
			"score":  final,
		})
	}

	c.record(ctx, deal.ID, res)
	return res
}

// baseScore asks the capability for an assessment and falls back to the
// configured default on any failure.
func (c *Calculator) baseScore(ctx context.Context, deal models.Deal) (float64, string) {
	if c.completer == nil || !c.completer.Available() {
		return c.cfg.DefaultBaseScore, "heuristic"
	}

	prompt := fmt.Sprintf(`Assess this deal's overall value.
Title: %s
Price: %.2f %s
Category: %s
Source: %s
Respond with a single line of the form "Score: N/100" where N is 0-100.`,
		deal.Title, deal.Price, deal.Currency, deal.Category, deal.Source)

	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.WithError(err).Warn("base score request failed, using default", map[string]interface{}{
			"dealId": deal.ID,
		})
		return c.cfg.DefaultBaseScore, "heuristic"
	}

	m := baseScoreRe.FindStringSubmatch(text)
	if len(m) != 2 {
		c.logger.Warn("base score response unparsable, using default", map[string]interface{}{
			"dealId": deal.ID,
		})
		return c.cfg.DefaultBaseScore, "heuristic"
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return c.cfg.DefaultBaseScore, "heuristic"
	}
	return clamp(v, 0, 100), "ai"
}

// trendAdjustment classifies the recent price trajectory. A falling price
// is a better deal; a rising one is a warning. Fewer than two points in
// the window reads as stable.
func (c *Calculator) trendAdjustment(history []models.PriceHistoryPoint) float64 {
	window := c.windowedHistory(history)
	if len(window) < 2 {
		return 0
	}
	first, last := window[0], window[len(window)-1]
	days := last.Timestamp.Sub(first.Timestamp).Hours() / 24
	if days < 1 || first.Price <= 0 {
		return 0
	}
	dailyRate := (last.Price - first.Price) / first.Price / days

	switch {
	case dailyRate <= -c.cfg.TrendDailyThresh:
		return trendFallingBonus
	case dailyRate >= c.cfg.TrendDailyThresh:
		return trendRisingPenalty
	default:
		return 0
	}
}

func (c *Calculator) windowedHistory(history []models.PriceHistoryPoint) []models.PriceHistoryPoint {
	if c.cfg.TrendWindowDays <= 0 {
		return history
	}
	cutoff := time.Now().AddDate(0, 0, -c.cfg.TrendWindowDays)
	for i, p := range history {
		if !p.Timestamp.Before(cutoff) {
			return history[i:]
		}
	}
	return nil
}

func (c *Calculator) reliabilityAdjustment(ctx context.Context, source string) float64 {
	r := c.cfg.DefaultReliability
	if c.reliability != nil {
		r = c.reliability.Reliability(ctx, source)
	}
	return (r - c.cfg.DefaultReliability) * reliabilityWeight
}

// discountBonus rewards the listed discount. Bands are checked from the
// deepest discount down; the first one the deal reaches wins.
func (c *Calculator) discountBonus(deal models.Deal) float64 {
	if deal.OriginalPrice == nil || *deal.OriginalPrice <= 0 || deal.Price >= *deal.OriginalPrice {
		return 0
	}
	frac := (*deal.OriginalPrice - deal.Price) / *deal.OriginalPrice
	for _, band := range c.cfg.DiscountBands {
		if frac >= band.MinDiscount {
			return band.Bonus
		}
	}
	return 0
}

// competitivenessAdjustment compares the current price to the historical
// average: well below average is a strong signal, above average a mild
// negative one.
func (c *Calculator) competitivenessAdjustment(price float64, history []models.PriceHistoryPoint) float64 {
	if len(history) == 0 || price <= 0 {
		return 0
	}
	sum := 0.0
	for _, p := range history {
		sum += p.Price
	}
	avg := sum / float64(len(history))
	if avg <= 0 {
		return 0
	}
	ratio := price / avg
	switch {
	case ratio < 0.8:
		return competitiveStrong
	case ratio < 0.9:
		return competitiveModerate
	case ratio > 1.1:
		return competitivePenalty
	default:
		return 0
	}
}

func (c *Calculator) confidence(scoreType string, view models.DealView) float64 {
	conf := confidenceFull
	if scoreType != "ai" {
		conf = confidenceDefaultBase
	}
	if len(view.PriceHistory) == 0 {
		conf -= 0.2
	}
	return clamp(conf, confidenceFloor, 1)
}

// detectAnomaly flags scores that jump away from the recent moving average
// by more than the configured number of standard deviations. The deviation
// floor keeps a flat history from flagging every tiny change.
func (c *Calculator) detectAnomaly(normalized float64, history []float64) bool {
	const maWindow = 5
	if len(history) < 2 {
		return false
	}

	// Moving average over the recent window, deviation over the whole
	// series: a volatile past widens the band even when recent scores
	// have settled.
	recent := history
	if len(recent) > maWindow {
		recent = recent[len(recent)-maWindow:]
	}
	ma := 0.0
	for _, s := range recent {
		ma += s
	}
	ma /= float64(len(recent))

	mean := 0.0
	for _, s := range history {
		mean += s
	}
	mean /= float64(len(history))

	variance := 0.0
	for _, s := range history {
		variance += (s - mean) * (s - mean)
	}
	sigma := math.Sqrt(variance / float64(len(history)))
	if sigma < 0.1 {
		sigma = 0.1
	}
	return math.Abs(normalized-ma) > c.cfg.AnomalySigma*sigma
}

// record appends the audit row and updates the deal's latest score. Both
// writes are best-effort.
func (c *Calculator) record(ctx context.Context, dealID string, res Result) {
	if c.recorder == nil {
		return
	}
	meta := make(map[string]interface{}, len(res.Components)+1)
	for k, v := range res.Components {
		meta[k] = v
	}
	meta["anomaly"] = res.IsAnomaly

	rec := models.DealScoreRecord{
		ID:         uuid.NewString(),
		DealID:     dealID,
		Score:      res.Normalized,
		Confidence: res.Confidence,
		ScoreType:  res.ScoreType,
		Metadata:   meta,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.recorder.Append(ctx, rec); err != nil {
		c.logger.WithError(err).Warn("score record append failed", map[string]interface{}{
			"dealId": dealID,
		})
	}
	if err := c.recorder.UpdateLatestScore(ctx, dealID, res.Normalized); err != nil {
		c.logger.WithError(err).Warn("latest score update failed", map[string]interface{}{
			"dealId": dealID,
		})
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
