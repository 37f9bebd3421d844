package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	directivesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directives_total",
		Help: "Directives applied by kind",
	}, []string{"kind"})

	climaxTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "climax_events_total",
		Help: "Climax signals received",
	})

	edgeSignalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_signals_total",
		Help: "Edge signals accepted while edging",
	})

	llmErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "llm_errors_total",
		Help: "Language model completion failures",
	})

	llmLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_latency_ms",
		Help:    "Language model completion latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	})
)
