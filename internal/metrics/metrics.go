// Package metrics exposes Prometheus instrumentation for the table
// engine, dispatcher, and controller, adapted from the promauto style
// of the fraud pipeline's metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HandsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poker_hands_started_total",
		Help: "Total number of hands started",
	}, []string{"table_id"})

	HandsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poker_hands_completed_total",
		Help: "Total number of hands completed",
	}, []string{"table_id"})

	HandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poker_hand_duration_seconds",
		Help:    "Wall-clock time from hand_started to hand_complete",
		Buckets: prometheus.DefBuckets,
	}, []string{"table_id"})

	TurnTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poker_turn_timeouts_total",
		Help: "Total number of turns that expired and were force-acted",
	}, []string{"table_id"})

	ActionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poker_action_latency_seconds",
		Help:    "Time from turnStart to the seat's action arriving",
		Buckets: prometheus.DefBuckets,
	}, []string{"table_id", "action_kind"})

	ActiveTables = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poker_active_tables",
		Help: "Number of tables currently registered in the controller",
	})

	ConnectedBots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poker_connected_bots",
		Help: "Number of identified, non-disconnected connections",
	})
)

// RecordHandStarted increments the per-table hands-started counter.
func RecordHandStarted(tableID string) {
	HandsStarted.WithLabelValues(tableID).Inc()
}

// RecordHandCompleted increments hands-completed and observes duration.
func RecordHandCompleted(tableID string, durationSeconds float64) {
	HandsCompleted.WithLabelValues(tableID).Inc()
	HandDuration.WithLabelValues(tableID).Observe(durationSeconds)
}

// RecordTurnTimeout increments the per-table timeout counter.
func RecordTurnTimeout(tableID string) {
	TurnTimeouts.WithLabelValues(tableID).Inc()
}

// RecordActionLatency observes the time a seat took to respond.
func RecordActionLatency(tableID, actionKind string, seconds float64) {
	ActionLatency.WithLabelValues(tableID, actionKind).Observe(seconds)
}
