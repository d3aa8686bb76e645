// internal/models/deal.go
package models

import "time"

// DealStatus is the lifecycle state of a persisted deal.
type DealStatus string

const (
	DealStatusActive      DealStatus = "active"
	DealStatusExpired     DealStatus = "expired"
	DealStatusUnavailable DealStatus = "unavailable"
)

// Deal is the persisted deal entity. The engine only reads it and writes
// back LatestScore; creation happens in the ingestion path.
type Deal struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Price         float64    `json:"price"`
	OriginalPrice *float64   `json:"originalPrice,omitempty"`
	Currency      string     `json:"currency"`
	Source        string     `json:"source"`
	Category      string     `json:"category"`
	Status        DealStatus `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	LatestScore   *float64   `json:"latestScore,omitempty"` // always in [0,1] after a write
}

// PriceHistoryPoint is a single append-only price observation, ordered by
// timestamp. Never mutated or deleted by the engine.
type PriceHistoryPoint struct {
	DealID    string    `json:"dealId"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// DealScoreRecord is the append-only audit trail of every score computation.
// The historical series of these records feeds anomaly detection.
type DealScoreRecord struct {
	ID         string                 `json:"id"`
	DealID     string                 `json:"dealId"`
	Score      float64                `json:"score"`      // [0,1]
	Confidence float64                `json:"confidence"` // [0,1]
	ScoreType  string                 `json:"scoreType"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// DealView carries everything the score calculator needs as plain fields.
// Callers load history and prior scores up front; the calculator never
// probes persistence state itself.
type DealView struct {
	Deal         Deal                `json:"deal"`
	PriceHistory []PriceHistoryPoint `json:"priceHistory"`
	ScoreHistory []float64           `json:"scoreHistory"` // prior normalized scores in [0,1]
}
