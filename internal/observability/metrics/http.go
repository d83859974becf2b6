package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitBlocked is labelled with the normalized route and the limiter
	// tier (mutation or general).
	RateLimitBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_rate_limited_total",
			Help: "Account API requests rejected with 429 per route and limiter tier",
		},
		[]string{"path", "tier"},
	)

	DomainErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_domain_errors_total",
			Help: "Domain errors returned by the account API",
		},
		[]string{"category", "code", "status"},
	)

	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_http_errors_total",
			Help: "Account API error responses per status, route and method",
		},
		[]string{"status", "path", "method"},
	)
)
