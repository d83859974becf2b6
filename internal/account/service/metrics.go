package service

import (
	"github.com/leafybank/backend/internal/account/domain"
	"github.com/leafybank/backend/internal/observability/metrics"
)

func incrementAccountsCreated(t domain.Type) {
	metrics.AccountsCreated.WithLabelValues(string(t)).Inc()
}

func incrementLinkFailures() {
	metrics.AccountsLinkFailures.Inc()
}

func incrementAccountsClosed() {
	metrics.AccountsClosed.Inc()
}

func incrementCloseRejected(reason string) {
	metrics.AccountsCloseRejected.WithLabelValues(reason).Inc()
}

func incrementAccountsDeleted() {
	metrics.AccountsDeleted.Inc()
}

func addLinkedAccountsRepaired(n int) {
	metrics.LinkedAccountsRepaired.Add(float64(n))
}

func incrementReconcileRuns(status string) {
	metrics.ReconcileRunsTotal.WithLabelValues(status).Inc()
}

func incrementEventsPublished(event, status string) {
	metrics.EventsPublished.WithLabelValues(event, status).Inc()
}
