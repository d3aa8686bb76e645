// internal/engine/queryinterp/interpreter.go

// Package queryinterp turns a raw shopping query into a normalized Query.
// AI-derived hints only fill fields the caller left empty; on any AI
// failure the rule-based extractor takes over. Interpretation never fails:
// the worst case is a Query carrying only normalized terms.
package queryinterp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/common/metrics"
	"github.com/zarzn/dealbot-be-sub000/internal/genai"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
	"github.com/zarzn/dealbot-be-sub000/internal/textutil"
)

var (
	underRe   = regexp.MustCompile(`(?:under|below|less than|at most|up to)\s*\$?\s*([\d.,]+)`)
	overRe    = regexp.MustCompile(`(?:over|above|more than|at least)\s*\$?\s*([\d.,]+)`)
	betweenRe = regexp.MustCompile(`between\s*\$?\s*([\d.,]+)\s*(?:and|-|to)\s*\$?\s*([\d.,]+)`)
	forRe     = regexp.MustCompile(`for\s*\$\s*([\d.,]+)`)
)

// categoryLexicon maps well-known query terms to canonical categories for
// the rule-based path.
var categoryLexicon = map[string]string{
	"headphones": "electronics",
	"earbuds":    "electronics",
	"laptop":     "electronics",
	"phone":      "electronics",
	"tv":         "electronics",
	"monitor":    "electronics",
	"perfume":    "beauty",
	"cologne":    "beauty",
	"makeup":     "beauty",
	"shampoo":    "beauty",
	"shoes":      "fashion",
	"sneakers":   "fashion",
	"jacket":     "fashion",
	"watch":      "fashion",
	"blender":    "home",
	"vacuum":     "home",
	"mattress":   "home",
	"cookware":   "home",
	"treadmill":  "sports",
	"dumbbells":  "sports",
	"bicycle":    "sports",
}

var qualityLexicon = map[string]struct{}{
	"premium": {}, "genuine": {}, "authentic": {}, "original": {},
	"new": {}, "sealed": {}, "certified": {}, "official": {},
	"durable": {}, "waterproof": {},
}

// Interpreter builds queries, optionally enhanced by the text-generation
// capability.
type Interpreter struct {
	completer genai.Completer
	logger    logger.Logger
}

func New(completer genai.Completer, log logger.Logger) *Interpreter {
	return &Interpreter{
		completer: completer,
		logger:    log.WithFields(map[string]interface{}{"component": "queryinterp"}),
	}
}

// aiHints is the structured extraction requested from the capability.
type aiHints struct {
	Category            string   `json:"category"`
	MinPrice            *float64 `json:"min_price"`
	MaxPrice            *float64 `json:"max_price"`
	Brands              []string `json:"brands"`
	Features            []string `json:"features"`
	QualityRequirements []string `json:"quality_requirements"`
	Keywords            []string `json:"keywords"`
}

// Interpret builds a Query from the raw text and the caller's explicit
// filters. Explicit caller values always win over AI output.
func (i *Interpreter) Interpret(ctx context.Context, raw string, explicit models.Filters, useAI bool) models.Query {
	normalized := textutil.Normalize(raw)
	q := models.Query{
		RawText:         raw,
		NormalizedTerms: textutil.ExtractKeywords(normalized),
		Category:        explicit.Category,
		MinPrice:        explicit.MinPrice,
		MaxPrice:        explicit.MaxPrice,
	}

	if useAI && i.completer != nil && i.completer.Available() {
		if hints, err := i.extractWithAI(ctx, normalized); err == nil {
			i.mergeHints(&q, explicit, hints)
			q.AIEnhanced = true
			return i.stripTermNoise(q)
		} else {
			metrics.AIFallbacks.WithLabelValues("query_interpret", fallbackReason(err)).Inc()
			i.logger.WithError(err).Warn("AI extraction failed, using rule-based extractor", map[string]interface{}{
				"query": textutil.Truncate(normalized, 80),
			})
		}
	}

	i.applyRules(&q, normalized)
	return i.stripTermNoise(q)
}

func (i *Interpreter) extractWithAI(ctx context.Context, normalized string) (*aiHints, error) {
	prompt := fmt.Sprintf(`Extract structured shopping intent from this query.
Query: %q
Respond with a single JSON object with keys: category (string), min_price (number or null), max_price (number or null), brands (array of strings), features (array of strings), quality_requirements (array of strings), keywords (array of strings).
Use null or empty arrays for anything the query does not state.`, normalized)

	text, err := i.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	payload, err := genai.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var hints aiHints
	if err := json.Unmarshal(payload, &hints); err != nil {
		return nil, err
	}
	return &hints, nil
}

// mergeHints fills only the fields the caller did not supply explicitly.
func (i *Interpreter) mergeHints(q *models.Query, explicit models.Filters, hints *aiHints) {
	if explicit.Category == "" && hints.Category != "" {
		q.Category = strings.ToLower(hints.Category)
	}
	if explicit.MinPrice == nil && hints.MinPrice != nil && *hints.MinPrice >= 0 {
		q.MinPrice = hints.MinPrice
	}
	if explicit.MaxPrice == nil && hints.MaxPrice != nil && *hints.MaxPrice > 0 {
		q.MaxPrice = hints.MaxPrice
	}
	q.Brands = lowerAll(hints.Brands)
	q.Features = lowerAll(hints.Features)
	q.QualityTerms = lowerAll(hints.QualityRequirements)
	q.AIKeywords = lowerAll(hints.Keywords)
	normalizePriceBand(q)
}

// applyRules is the deterministic fallback extractor.
func (i *Interpreter) applyRules(q *models.Query, normalized string) {
	if q.MinPrice == nil && q.MaxPrice == nil {
		minP, maxP := extractPriceRange(normalized)
		q.MinPrice, q.MaxPrice = minP, maxP
	}
	normalizePriceBand(q)

	if q.Category == "" {
		for _, term := range q.NormalizedTerms {
			if cat, ok := categoryLexicon[term]; ok {
				q.Category = cat
				break
			}
		}
	}

	for _, term := range q.NormalizedTerms {
		if _, ok := qualityLexicon[term]; ok {
			q.QualityTerms = append(q.QualityTerms, term)
		}
	}
}

// stripTermNoise removes price-phrase tokens ("under", "50") from the term
// list once a price bound was extracted, so they stop counting as product
// terms during relevance matching.
func (i *Interpreter) stripTermNoise(q models.Query) models.Query {
	if q.MinPrice == nil && q.MaxPrice == nil {
		return q
	}
	noise := map[string]struct{}{
		"under": {}, "below": {}, "over": {}, "above": {}, "between": {},
		"less": {}, "more": {}, "than": {}, "most": {}, "least": {}, "for": {},
	}
	var kept []string
	for _, term := range q.NormalizedTerms {
		if _, ok := noise[term]; ok {
			continue
		}
		if isPriceToken(term, q.MinPrice, q.MaxPrice) {
			continue
		}
		kept = append(kept, term)
	}
	q.NormalizedTerms = kept
	return q
}

func isPriceToken(term string, minP, maxP *float64) bool {
	v := textutil.ParsePrice(term)
	if v == nil {
		return false
	}
	if minP != nil && *v == *minP {
		return true
	}
	if maxP != nil && *v == *maxP {
		return true
	}
	return false
}

// extractPriceRange detects "under $X", "over $X", "between $X and $Y" and
// "for $X" (interpreted as a ±15% band around X).
func extractPriceRange(text string) (*float64, *float64) {
	if m := betweenRe.FindStringSubmatch(text); len(m) == 3 {
		lo, hi := textutil.ParsePrice(m[1]), textutil.ParsePrice(m[2])
		if lo != nil && hi != nil {
			if *lo > *hi {
				lo, hi = hi, lo
			}
			return lo, hi
		}
	}
	if m := underRe.FindStringSubmatch(text); len(m) == 2 {
		if v := textutil.ParsePrice(m[1]); v != nil {
			return nil, v
		}
	}
	if m := overRe.FindStringSubmatch(text); len(m) == 2 {
		if v := textutil.ParsePrice(m[1]); v != nil {
			return v, nil
		}
	}
	if m := forRe.FindStringSubmatch(text); len(m) == 2 {
		if v := textutil.ParsePrice(m[1]); v != nil {
			lo, hi := *v*0.85, *v*1.15
			return &lo, &hi
		}
	}
	return nil, nil
}

// normalizePriceBand repairs bands upstream parsers occasionally emit as
// artifacts: inverted bounds are swapped, and a band whose bounds are both
// near zero is discarded. Fixing it here keeps the downstream filter honest.
func normalizePriceBand(q *models.Query) {
	if q.MinPrice == nil || q.MaxPrice == nil {
		return
	}
	if *q.MinPrice > *q.MaxPrice {
		q.MinPrice, q.MaxPrice = q.MaxPrice, q.MinPrice
	}
	if *q.MinPrice < 1.0 && *q.MaxPrice < 1.0 {
		q.MinPrice, q.MaxPrice = nil, nil
	}
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
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
