// internal/engine/relevance/scorer.go

// Package relevance holds the single heuristic relevance scorer shared by
// the filter, the fallback selector, and the batch scorer's degradation
// path, plus the filter/fallback selection logic built on top of it.
package relevance

import (
	"fmt"
	"strings"

	"github.com/zarzn/dealbot-be-sub000/internal/models"
	"github.com/zarzn/dealbot-be-sub000/internal/textutil"
)

// Scoring point values. Additive; see Score for how they combine.
const (
	pointsBelowMinPrice   = -5.0
	pointsAboveMaxPrice   = -10.0
	pointsTermMatch       = 2.0
	pointsAIKeywordMatch  = 4.0
	maxSimilarityBonus    = 3.0
	pointsBrandMatch      = 5.0
	pointsBrandMiss       = -5.0
	pointsFeatureMatch    = 3.0
	pointsFeatureShortage = -3.0
	pointsQualityMatch    = 2.0
	pointsQualityMiss     = -1.0
	pointsFullPassBonus   = 10.0

	termFractionDefault   = 0.4
	termFractionAIRelaxed = 0.3
	termDeficitPenalty    = 3.0
	featureFractionFloor  = 0.3
	similarityThreshold   = 0.7
	wordOverlapThreshold  = 0.7
)

// Result is the heuristic verdict for one candidate.
type Result struct {
	Score            float64
	MatchedTerms     []string
	RejectionReasons []string
	Passed           bool
}

// Score computes the additive heuristic relevance of a candidate against
// the query. Penalized candidates stay scoreable so the fallback selector
// can still rank them; Passed is true only when every filter was satisfied.
func Score(q models.Query, p models.RawProduct) Result {
	var res Result
	text := textutil.Normalize(p.Title + " " + p.Description)

	scorePriceRange(q, p, &res)
	scoreTerms(q, text, &res)
	scoreBrands(q, text, &res)
	scoreFeatures(q, text, &res)
	scoreQuality(q, text, &res)

	if len(res.RejectionReasons) == 0 {
		res.Score += pointsFullPassBonus
		res.Passed = true
	}
	return res
}

// MatchingDefault maps a heuristic result onto the [0,1] matching-score
// scale used when the AI batch scorer is skipped or fails. It lands in a
// moderate 0.65-0.70 band so degraded results stay rankable without
// masquerading as confident judgments.
func MatchingDefault(q models.Query, p models.RawProduct) float64 {
	res := Score(q, p)
	nudge := res.Score / 20.0
	if nudge < 0 {
		nudge = 0
	}
	if nudge > 1 {
		nudge = 1
	}
	return 0.65 + 0.05*nudge
}

func scorePriceRange(q models.Query, p models.RawProduct, res *Result) {
	// A band with both bounds near zero is an upstream parse artifact, not
	// a real constraint.
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice < 1.0 && *q.MaxPrice < 1.0 {
		return
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		res.Score += pointsBelowMinPrice
		res.RejectionReasons = append(res.RejectionReasons, "price below minimum")
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		res.Score += pointsAboveMaxPrice
		res.RejectionReasons = append(res.RejectionReasons, "price above maximum")
	}
}

func scoreTerms(q models.Query, text string, res *Result) bool {
	terms := q.NormalizedTerms
	if len(terms) == 0 {
		return false
	}

	aiKeywords := make(map[string]struct{}, len(q.AIKeywords))
	for _, kw := range q.AIKeywords {
		aiKeywords[kw] = struct{}{}
	}

	matchedAI := false
	for _, term := range terms {
		matched, bonus := matchTerm(term, text)
		if !matched {
			continue
		}
		res.MatchedTerms = append(res.MatchedTerms, term)
		if _, isAI := aiKeywords[term]; isAI {
			res.Score += pointsAIKeywordMatch + bonus
			matchedAI = true
		} else {
			res.Score += pointsTermMatch + bonus
		}
	}

	required := termFractionDefault
	if matchedAI {
		required = termFractionAIRelaxed
	}
	minMatches := int(required*float64(len(terms)) + 0.9999)
	if deficit := minMatches - len(res.MatchedTerms); deficit > 0 {
		res.Score -= termDeficitPenalty * float64(deficit)
		res.RejectionReasons = append(res.RejectionReasons,
			fmt.Sprintf("matched %d of %d required terms", len(res.MatchedTerms), minMatches))
	}
	return matchedAI
}

// matchTerm applies the flexible matching ladder: exact substring, digit
// sequence containment (model numbers), word overlap, then bigram
// similarity against individual words. The similarity bonus rewards closer
// matches with up to maxSimilarityBonus extra points.
func matchTerm(term, text string) (bool, float64) {
	if strings.Contains(text, term) {
		return true, maxSimilarityBonus
	}
	if textutil.ContainsDigitSequence(term, text) {
		return true, 2.0
	}
	if textutil.WordOverlap(term, text) >= wordOverlapThreshold {
		return true, 1.0
	}
	best := 0.0
	for _, word := range textutil.Tokenize(text) {
		if sim := textutil.Similarity(term, word); sim > best {
			best = sim
		}
	}
	if best > similarityThreshold {
		return true, maxSimilarityBonus * (best - similarityThreshold) / (1 - similarityThreshold)
	}
	return false, 0
}

func scoreBrands(q models.Query, text string, res *Result) {
	if len(q.Brands) == 0 {
		return
	}
	for _, brand := range q.Brands {
		if strings.Contains(text, brand) {
			res.Score += pointsBrandMatch
			return
		}
	}
	res.Score += pointsBrandMiss
	res.RejectionReasons = append(res.RejectionReasons, "no requested brand matched")
}

func scoreFeatures(q models.Query, text string, res *Result) {
	if len(q.Features) == 0 {
		return
	}
	matched := 0
	for _, feature := range q.Features {
		if strings.Contains(text, feature) {
			res.Score += pointsFeatureMatch
			matched++
		}
	}
	if float64(matched) < featureFractionFloor*float64(len(q.Features)) {
		res.Score += pointsFeatureShortage
		res.RejectionReasons = append(res.RejectionReasons,
			fmt.Sprintf("matched %d of %d required features", matched, len(q.Features)))
	}
}

func scoreQuality(q models.Query, text string, res *Result) {
	if len(q.QualityTerms) == 0 {
		return
	}
	matched := 0
	for _, term := range q.QualityTerms {
		if strings.Contains(text, term) {
			res.Score += pointsQualityMatch
			matched++
		}
	}
	// Missing quality terms nudge the score down but never exclude.
	if matched == 0 {
		res.Score += pointsQualityMiss
	}
}
