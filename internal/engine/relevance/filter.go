// internal/engine/relevance/filter.go
package relevance

import (
	"sort"

	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/common/metrics"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
)

// Filter scores aggregated candidates and selects the set handed to the
// batch scorer. Strict AND-filtering on multi-word queries is the dominant
// cause of empty results, so when the primary set empties the filter falls
// back to the best-scored survivors instead of returning nothing.
type Filter struct {
	fallbackLimit int
	maxProducts   int
	logger        logger.Logger
}

func NewFilter(fallbackLimit, maxProducts int, log logger.Logger) *Filter {
	return &Filter{
		fallbackLimit: fallbackLimit,
		maxProducts:   maxProducts,
		logger:        log.WithFields(map[string]interface{}{"component": "relevance"}),
	}
}

// Apply scores every candidate and returns the filtered, score-ordered set.
// The second return value reports whether fallback selection fired.
func (f *Filter) Apply(q models.Query, products []models.RawProduct) ([]models.ScoredCandidate, bool) {
	if len(products) == 0 {
		return nil, false
	}

	var primary, pool []models.ScoredCandidate
	for _, p := range products {
		res := Score(q, p)
		sc := models.ScoredCandidate{
			Product:          p,
			RelevanceScore:   res.Score,
			MatchedTerms:     res.MatchedTerms,
			RejectionReasons: res.RejectionReasons,
			PassedAllFilters: res.Passed,
		}
		pool = append(pool, sc)
		if res.Passed && f.contributes(q, sc) {
			primary = append(primary, sc)
		}
	}

	if len(primary) == 0 {
		fallback := f.selectFallback(q, pool)
		if len(fallback) > 0 {
			metrics.FallbackSelections.Inc()
			f.logger.Info("strict filter emptied, using fallback selection", map[string]interface{}{
				"poolSize": len(pool),
				"selected": len(fallback),
			})
		}
		return fallback, len(fallback) > 0
	}

	sortByScore(primary)

	// Bound downstream cost before the expensive batch scoring stage.
	if limit := 2 * f.maxProducts; f.maxProducts > 0 && len(primary) > limit {
		f.logger.Debug("pre-trimming primary set", map[string]interface{}{
			"from": len(primary),
			"to":   limit,
		})
		primary = primary[:limit]
	}
	return primary, false
}

// selectFallback returns the top-scored candidates from the penalized pool.
// Candidates that matched nothing at all stay excluded: with zero matched
// terms and no brand or feature signal there is nothing to rank on.
func (f *Filter) selectFallback(q models.Query, pool []models.ScoredCandidate) []models.ScoredCandidate {
	var viable []models.ScoredCandidate
	for _, sc := range pool {
		if f.contributes(q, sc) {
			viable = append(viable, sc)
		}
	}
	sortByScore(viable)
	if len(viable) > f.fallbackLimit {
		viable = viable[:f.fallbackLimit]
	}
	return viable
}

// contributes reports whether the candidate matched anything worth ranking:
// at least one query term, or a brand/feature hit recorded as positive
// score despite penalties elsewhere.
func (f *Filter) contributes(q models.Query, sc models.ScoredCandidate) bool {
	if len(sc.MatchedTerms) > 0 {
		return true
	}
	if len(q.NormalizedTerms) == 0 {
		// Filter-only searches (category/price browsing) have no terms to
		// match; any non-rejected candidate counts.
		return sc.RelevanceScore >= 0
	}
	return sc.RelevanceScore > 0
}

// sortByScore orders candidates by relevance score descending; stable so
// equal scores keep aggregation order and the pipeline stays deterministic.
func sortByScore(cands []models.ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].RelevanceScore > cands[j].RelevanceScore
	})
}
