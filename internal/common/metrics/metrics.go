// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_searches_total",
			Help: "Total number of deal searches processed",
		},
		[]string{"status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deal_search_duration_seconds",
			Help:    "End-to-end search pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MarketSearchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_market_failures_total",
			Help: "Total number of failed market connector calls",
		},
		[]string{"market", "reason"},
	)

	AIFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_ai_fallbacks_total",
			Help: "Times a stage degraded from AI to the heuristic path",
		},
		[]string{"stage", "reason"},
	)

	FallbackSelections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deal_fallback_selections_total",
			Help: "Times the strict filter emptied and fallback selection fired",
		},
	)

	ScoreComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_score_computations_total",
			Help: "Total deal score computations by outcome",
		},
		[]string{"outcome"},
	)

	ScoreAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deal_score_anomalies_total",
			Help: "Deal scores flagged as statistical anomalies",
		},
	)
)
