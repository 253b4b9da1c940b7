// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookDuration tracks tool dispatch duration on the webhook.
	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_tool_duration_seconds",
			Help:    "Webhook tool dispatch duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"tool", "outcome"},
	)

	// WebhookRequestsTotal tracks total webhook tool dispatches.
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_tool_requests_total",
			Help: "Total webhook tool dispatches",
		},
		[]string{"tool", "outcome"},
	)

	// MarketCacheRequestsTotal tracks market-data cache lookups.
	MarketCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_requests_total",
			Help: "Market-data cache lookups",
		},
		[]string{"endpoint", "result"},
	)

	// MarketUpstreamFallbacksTotal tracks demo-data substitutions after
	// upstream failures.
	MarketUpstreamFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_upstream_fallbacks_total",
			Help: "Demo-data substitutions after market provider failures",
		},
		[]string{"endpoint"},
	)

	// ConfirmationsTotal tracks pending-confirmation lifecycle events.
	ConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmations_total",
			Help: "Pending confirmation lifecycle events",
		},
		[]string{"event"},
	)
)

// RecordToolDispatch records one webhook tool dispatch.
func RecordToolDispatch(tool, outcome string, duration float64) {
	WebhookDuration.WithLabelValues(tool, outcome).Observe(duration)
	WebhookRequestsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordCacheLookup records one market-data cache lookup.
func RecordCacheLookup(endpoint, result string) {
	MarketCacheRequestsTotal.WithLabelValues(endpoint, result).Inc()
}
