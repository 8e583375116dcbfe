// Package metrics defines the Prometheus series the pipeline exposes
// at /metrics: queue depth, orchestrator iteration outcomes, and hub
// occupancy. Names are promauto vars at package scope, the idiom
// followed by every exporter in the pack (e.g. cdc-sink-redshift's
// internal/staging/stage/metrics.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = prometheus.DefBuckets

var (
	// QueueDepth is a point-in-time gauge; cmd/server's one-minute
	// maintenance job calls Set after each JobStore.Stats() read.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ocr_queue_depth",
		Help: "number of ocr_data rows, partitioned by reservation state",
	}, []string{"state"}) // "available" | "in_flight"

	// IterationsTotal counts completed orchestrator iterations by the
	// delay signal they returned.
	IterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_iterations_total",
		Help: "completed orchestrator iterations, labeled by resulting delay",
	}, []string{"delay"}) // "long" | "immediate" | "error"

	// BatchSize observes how many jobs were reserved per iteration.
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_batch_size",
		Help:    "number of jobs reserved per orchestrator iteration",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})

	// CommitDuration observes the wall time of one extract-to-commit
	// iteration.
	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_iteration_duration_seconds",
		Help:    "time spent in one orchestrator RunOnce call",
		Buckets: latencyBuckets,
	})

	// ReportsCommittedTotal counts LabReports successfully persisted.
	ReportsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lab_reports_committed_total",
		Help: "number of lab reports committed by the orchestrator",
	})

	// ReconciledAwayTotal counts drafts dropped because the client
	// hard-deleted the source job mid-extraction.
	ReconciledAwayTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_reconciled_away_total",
		Help: "drafts discarded because their source job was deleted during extraction",
	})

	// HubSessions is a live gauge of connected websocket sessions.
	HubSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_sessions",
		Help: "currently connected websocket sessions across all users",
	})

	// HubUsers is a live gauge of distinct users with at least one
	// connected session.
	HubUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_connected_users",
		Help: "currently connected distinct users",
	})
)
