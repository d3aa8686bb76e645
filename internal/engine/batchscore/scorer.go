// internal/engine/batchscore/scorer.go

// Package batchscore assigns AI matching scores to the filtered candidate
// set in a single batched completion call. Every failure mode degrades to
// the shared heuristic default, so a scored candidate set always comes
// back regardless of capability health.
package batchscore

import (
	"context"
	"fmt"
	"strings"
	"time"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/common/metrics"
	"github.com/zarzn/dealbot-be-sub000/internal/engine/relevance"
	"github.com/zarzn/dealbot-be-sub000/internal/genai"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
	"github.com/zarzn/dealbot-be-sub000/internal/textutil"
)

// Scorer batches candidates into one completion request per search.
type Scorer struct {
	completer genai.Completer
	batchCap  int
	timeout   time.Duration
	logger    logger.Logger
}

func New(completer genai.Completer, batchCap int, timeout time.Duration, log logger.Logger) *Scorer {
	return &Scorer{
		completer: completer,
		batchCap:  batchCap,
		timeout:   timeout,
		logger:    log.WithFields(map[string]interface{}{"component": "batchscore"}),
	}
}

// Score fills MatchingScore on every candidate and returns the same slice.
// Candidates beyond the batch cap, and the whole batch on any capability
// failure, receive the heuristic default instead of an AI judgment.
func (s *Scorer) Score(ctx context.Context, q models.Query, cands []models.ScoredCandidate) []models.ScoredCandidate {
	if len(cands) == 0 {
		return cands
	}

	batch := cands
	if s.batchCap > 0 && len(batch) > s.batchCap {
		batch = batch[:s.batchCap]
	}
	// Everything past the cap never reaches the AI.
	for i := len(batch); i < len(cands); i++ {
		cands[i].MatchingScore = relevance.MatchingDefault(q, cands[i].Product)
	}

	judgments, err := s.judge(ctx, q, batch)
	if err != nil {
		metrics.AIFallbacks.WithLabelValues("batch_score", fallbackReason(err)).Inc()
		s.logger.WithError(err).Warn("batch scoring degraded to heuristic defaults", map[string]interface{}{
			"batchSize": len(batch),
		})
		for i := range batch {
			batch[i].MatchingScore = relevance.MatchingDefault(q, batch[i].Product)
		}
		return cands
	}

	s.applyJudgments(q, batch, judgments)
	return cands
}

func (s *Scorer) judge(ctx context.Context, q models.Query, batch []models.ScoredCandidate) ([]models.RelevanceJudgment, error) {
	if s.completer == nil || !s.completer.Available() {
		return nil, engerrors.NewCapabilityUnavailableError("text-generation")
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.completer.Complete(callCtx, buildPrompt(q, batch))
	if err != nil {
		return nil, err
	}
	return ParseJudgments(text)
}

// applyJudgments maps 1-based judgment indexes back onto the batch. Indexes
// outside the batch are dropped with a warning; candidates the AI skipped
// keep the heuristic default.
func (s *Scorer) applyJudgments(q models.Query, batch []models.ScoredCandidate, judgments []models.RelevanceJudgment) {
	judged := make([]bool, len(batch))
	for _, j := range judgments {
		idx := j.ProductIndex - 1
		if idx < 0 || idx >= len(batch) {
			s.logger.Warn("judgment references unknown product, dropping", map[string]interface{}{
				"productIndex": j.ProductIndex,
				"batchSize":    len(batch),
			})
			continue
		}
		batch[idx].MatchingScore = clamp01(j.MatchingScore)
		judged[idx] = true
	}
	for i, ok := range judged {
		if !ok {
			batch[i].MatchingScore = relevance.MatchingDefault(q, batch[i].Product)
		}
	}
}

// buildPrompt numbers candidates from 1 so judgment indexes map back
// without ambiguity.
func buildPrompt(q models.Query, batch []models.ScoredCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rate how well each product matches the shopping query %q.\n\nProducts:\n", q.RawText)
	for i, sc := range batch {
		p := sc.Product
		fmt.Fprintf(&b, "%d. %s | price %.2f %s", i+1, p.Title, p.Price, p.Currency)
		if p.Description != "" {
			fmt.Fprintf(&b, " | %s", textutil.Truncate(p.Description, 120))
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Respond with a JSON array only. One object per product:
{"product_index": <1-based number>, "matching_score": <0.0-1.0>, "recommendations": [..], "key_matching_features": [..]}

Scoring guidance:
- 0.9-1.0: excellent match on the core intent
- 0.5-0.6: moderate match, right category but wrong specifics
- below 0.5: poor match
Unless nothing fits at all, at least 3-5 products should score 0.5 or higher.`)
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func fallbackReason(err error) string {
	switch engerrors.CodeOf(err) {
	case engerrors.ErrCodeCapabilityTimeout:
		return "timeout"
	case engerrors.ErrCodeCapabilityUnavailable:
		return "unavailable"
	default:
		return "malformed"
	}
}
