package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_started_total",
			Help: "Total number of generation pipeline runs started",
		},
		[]string{"kind"},
	)

	GenerationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_completed_total",
			Help: "Total number of generation pipeline runs completed",
		},
		[]string{"kind"},
	)

	GenerationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_failed_total",
			Help: "Total number of generation pipeline runs failed, by stage and error code",
		},
		[]string{"kind", "stage", "error_code"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "End-to-end duration of generation pipeline runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"kind"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total external AI provider calls, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "provider_call_duration_seconds",
			Help: "Duration of external AI provider calls",
		},
		[]string{"provider"},
	)

	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Usage gate decisions, by kind and outcome",
		},
		[]string{"kind", "allowed"},
	)

	QuotaCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_cache_hits_total",
			Help: "Usage gate cache lookups, by result",
		},
		[]string{"result"},
	)

	UsageConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_conflict_retries_total",
			Help: "Usage recorder retries caused by concurrent write conflicts",
		},
	)
)
