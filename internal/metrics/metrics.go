// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission metrics
var (
	// AdmissionsTotal tracks zone admission attempts by outcome
	// (admitted, zone_not_found, session_exists, account_unavailable,
	// insufficient_funds, payment_failed, relocation_failed).
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_admissions_total",
			Help: "Zone admission attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveSessions tracks the number of sessions currently owing a return trip.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zone_active_sessions",
			Help: "Number of in-progress zone sessions",
		},
	)
)

// Reconciliation metrics
var (
	// SweepDurationSeconds tracks reconciliation sweep latency.
	SweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zone_sweep_duration_seconds",
			Help:    "Reconciliation sweep duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// EvictionsTotal tracks sessions ended by the sweep or restore paths,
	// by reason (expired_inside, expired_outside, stale_zone, reconnect).
	EvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_evictions_total",
			Help: "Sessions removed by reason",
		},
		[]string{"reason"},
	)

	// StartupPurgedSessions records invalid sessions dropped at startup reconciliation.
	StartupPurgedSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zone_startup_purged_sessions_total",
			Help: "Persisted sessions purged as invalid during startup reconciliation",
		},
	)
)

// Persistence metrics
var (
	// PersistenceSavesTotal tracks snapshot saves by status (ok, error).
	PersistenceSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_persistence_saves_total",
			Help: "Session snapshot saves by status",
		},
		[]string{"status"},
	)
)

// External collaborator metrics
var (
	// LedgerCircuitBreakerState tracks the funds ledger breaker state
	// (0=closed, 1=half-open, 2=open).
	LedgerCircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_circuit_breaker_state",
			Help: "Funds ledger circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// LedgerCircuitBreakerStateChanges tracks breaker transitions by new state.
	LedgerCircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_circuit_breaker_state_changes_total",
			Help: "Funds ledger circuit breaker transitions by new state",
		},
		[]string{"state"},
	)
)
