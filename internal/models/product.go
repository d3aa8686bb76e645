// internal/models/product.go
package models

// RawProduct is a source-specific record returned by a market connector.
// Its lifetime is a single pipeline invocation.
type RawProduct struct {
	MarketID      string                 `json:"marketId"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description,omitempty"`
	Price         float64                `json:"price"`
	OriginalPrice *float64               `json:"originalPrice,omitempty"`
	Currency      string                 `json:"currency"`
	URL           string                 `json:"url"`
	ImageURL      string                 `json:"imageUrl,omitempty"`
	Rating        *float64               `json:"rating,omitempty"`
	ReviewCount   *int                   `json:"reviewCount,omitempty"`
	RawMetadata   map[string]interface{} `json:"rawMetadata,omitempty"`
}

// ScoredCandidate is a RawProduct plus the heuristic relevance verdict.
// Only the relevance filter mutates it; downstream stages read it.
type ScoredCandidate struct {
	Product          RawProduct `json:"product"`
	RelevanceScore   float64    `json:"relevanceScore"`
	MatchedTerms     []string   `json:"matchedTerms"`
	RejectionReasons []string   `json:"rejectionReasons,omitempty"`
	PassedAllFilters bool       `json:"passedAllFilters"`
	MatchingScore    float64    `json:"matchingScore"` // AI or heuristic default, [0,1]
}

// RelevanceJudgment is one AI-produced batch judgment, matched back to its
// candidate by 1-based ProductIndex. Judgments with indices that do not
// resolve to a candidate are discarded.
type RelevanceJudgment struct {
	ProductIndex        int      `json:"product_index"`
	MatchingScore       float64  `json:"matching_score"`
	Recommendations     []string `json:"recommendations,omitempty"`
	KeyMatchingFeatures []string `json:"key_matching_features,omitempty"`
}
