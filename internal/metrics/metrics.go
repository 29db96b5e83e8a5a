// Package metrics provides Prometheus metrics for the intent pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: no session ids, user ids or messages.
var (
	// TurnsTotal counts finished turns by channel kind and outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotelbuddy_turns_total",
		Help: "Total number of processed turns, by channel and outcome.",
	}, []string{"channel", "outcome"})

	// DispatchTotal counts backend calls by intent and status class.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotelbuddy_dispatch_total",
		Help: "Total number of backend gateway calls, by intent and status class.",
	}, []string{"intent", "code"})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hotelbuddy_dispatch_duration_seconds",
		Help:    "Backend gateway call latency, by intent.",
		Buckets: prometheus.DefBuckets,
	}, []string{"intent"})

	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hotelbuddy_llm_duration_seconds",
		Help:    "Model oracle call latency, by provider.",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"provider"})

	// ActiveSessions tracks open conversational channels.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hotelbuddy_active_sessions",
		Help: "Current number of open conversational sessions.",
	})
)
