package posegraph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ticksTotal counts update ticks by result.
	// Labels: result (completed, aborted, skipped)
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fgsp",
			Subsystem: "client",
			Name:      "ticks_total",
			Help:      "Total number of update ticks by result",
		},
		[]string{"result"},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fgsp",
			Subsystem: "client",
			Name:      "tick_duration_seconds",
			Help:      "Duration of completed update ticks in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	basisComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fgsp",
			Subsystem: "wavelet",
			Name:      "basis_compute_duration_seconds",
			Help:      "Duration of wavelet basis computations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	// constraintsEmitted counts relative constraints by tier.
	// Labels: tier (LOW, MID, HIGH)
	constraintsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fgsp",
			Subsystem: "command_post",
			Name:      "relative_constraints_total",
			Help:      "Total number of relative constraints emitted by tier",
		},
		[]string{"tier"},
	)

	anchorsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fgsp",
			Subsystem: "command_post",
			Name:      "anchor_constraints_total",
			Help:      "Total number of anchor constraints emitted",
		},
	)

	degenerateIndices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fgsp",
			Subsystem: "command_post",
			Name:      "degenerate_indices",
			Help:      "Number of distinct degenerate node indices",
		},
	)

	graphRevision = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fgsp",
			Subsystem: "graph",
			Name:      "revision",
			Help:      "Revision of the optimized pose graph",
		},
	)

	// messagesPublished counts egress messages.
	// Labels: topic
	messagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fgsp",
			Subsystem: "mqtt",
			Name:      "messages_published_total",
			Help:      "Total number of MQTT messages published by topic",
		},
		[]string{"topic"},
	)

	// messagesReceived counts ingest messages.
	// Labels: stream, result (ok, error)
	messagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fgsp",
			Subsystem: "mqtt",
			Name:      "messages_received_total",
			Help:      "Total number of MQTT messages received by stream and result",
		},
		[]string{"stream", "result"},
	)
)
