// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the guardrail pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus instrument the guardrail pipeline emits.
// Construct one with NewMetrics and pass it to the components that record
// against it. Callers that don't want metrics don't build one; the
// components that accept a *Metrics treat nil as "record nothing".
type Metrics struct {
	ValidatorDecisions *prometheus.CounterVec
	ValidatorDuration  *prometheus.HistogramVec
	InterceptDuration  prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	CacheRefreshes     *prometheus.CounterVec
	ApprovalOutcomes   *prometheus.CounterVec
	ApprovalWaitTime   prometheus.Histogram
	HistorySize        prometheus.Gauge
}

// NewMetrics creates and registers every instrument against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ValidatorDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "palisade",
				Name:      "validator_decisions_total",
				Help:      "Total validator outcomes by validator name and decision",
			},
			[]string{"validator", "decision"},
		),
		ValidatorDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "palisade",
				Name:      "validator_duration_seconds",
				Help:      "Time spent inside a single validator",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"validator"},
		),
		InterceptDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "palisade",
				Name:      "intercept_duration_seconds",
				Help:      "End-to-end duration of Interceptor.Intercept, including approval waits",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "palisade",
				Name:      "policy_cache_lookups_total",
				Help:      "Policy cache lookups by state",
			},
			[]string{"state"}, // fresh/stale/expired/miss
		),
		CacheRefreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "palisade",
				Name:      "policy_cache_refreshes_total",
				Help:      "Background policy cache refreshes by outcome",
			},
			[]string{"outcome"}, // success/error/empty
		),
		ApprovalOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "palisade",
				Name:      "approval_outcomes_total",
				Help:      "Human-approval resolutions by outcome",
			},
			[]string{"outcome"}, // approved/denied/expired/timeout/error
		),
		ApprovalWaitTime: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "palisade",
				Name:      "approval_wait_seconds",
				Help:      "Time spent polling for a require_approval resolution",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		HistorySize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "palisade",
				Name:      "history_entries",
				Help:      "Current number of entries held in the bounded call history",
			},
		),
	}
}
