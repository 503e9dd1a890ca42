// Package metrics provides Prometheus metrics for the sync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks finished ingestion runs by type and terminal status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of ingestion runs by type and status",
		},
		[]string{"run_type", "status"},
	)

	// RunDuration tracks wall time of ingestion runs
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsync",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"run_type"},
	)

	// SyncPagesTotal tracks transaction sync pages applied and committed
	SyncPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Subsystem: "transactions",
			Name:      "pages_total",
			Help:      "Total number of transaction sync pages applied",
		},
	)

	// TransactionsApplied tracks stored transaction writes by resulting sync status
	TransactionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Subsystem: "transactions",
			Name:      "applied_total",
			Help:      "Total number of transaction rows written by sync status",
		},
		[]string{"sync_status"},
	)

	// TransactionsDropped tracks provider entries that were not stored
	TransactionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Subsystem: "transactions",
			Name:      "dropped_total",
			Help:      "Total number of provider transaction entries not stored, by reason",
		},
		[]string{"reason"},
	)

	// BalanceSnapshotsTotal tracks balance snapshots written
	BalanceSnapshotsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Subsystem: "balances",
			Name:      "snapshots_total",
			Help:      "Total number of balance snapshots written",
		},
	)

	// NotificationsTotal tracks recorded delivery outcomes
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Subsystem: "notifications",
			Name:      "recorded_total",
			Help:      "Total number of notification outcomes recorded by channel and status",
		},
		[]string{"channel", "status"},
	)

	// WebhookEventsTotal tracks provider webhooks received
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsync",
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Total number of provider webhook events by type and outcome",
		},
		[]string{"webhook_type", "outcome"},
	)
)
