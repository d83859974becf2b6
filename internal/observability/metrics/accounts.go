package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccountsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_requests_total",
			Help: "Total number of accounts service requests",
		},
		[]string{"method", "path"},
	)

	AccountsRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accounts_requests_in_flight",
			Help: "Number of accounts service requests currently being processed",
		},
	)

	AccountsRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accounts_request_duration_seconds",
			Help:    "Duration of accounts service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AccountsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_created_total",
			Help: "Total number of accounts created",
		},
		[]string{"account_type"},
	)

	AccountsLinkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accounts_link_failures_total",
			Help: "Total number of created accounts whose owner link write failed",
		},
	)

	AccountsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accounts_closed_total",
			Help: "Total number of accounts closed",
		},
	)

	AccountsCloseRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_close_rejected_total",
			Help: "Total number of close attempts that did not close an account",
		},
		[]string{"reason"},
	)

	AccountsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accounts_deleted_total",
			Help: "Total number of accounts deleted",
		},
	)

	LinkedAccountsRepaired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linked_accounts_repaired_total",
			Help: "Total number of user documents whose linked accounts were rebuilt",
		},
	)

	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linked_accounts_reconcile_runs_total",
			Help: "Total number of linked accounts reconciliation runs",
		},
		[]string{"status"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_events_published_total",
			Help: "Total number of account lifecycle events published",
		},
		[]string{"event", "status"},
	)
)
