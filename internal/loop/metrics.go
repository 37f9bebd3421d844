package loop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loop_ticks_total",
		Help: "Total dispatch loop ticks",
	})

	loopStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loop_stale_commands_total",
		Help: "Generated commands discarded because session state moved on mid-tick",
	})

	loopSendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loop_send_failures_total",
		Help: "Device send failures by reason",
	}, []string{"reason"})

	loopSendLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loop_send_latency_ms",
		Help:    "Device send latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(5, 1.8, 10),
	})
)
