// Package metrics exposes the Prometheus registry and the counters the
// server records around requests, payments and email delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gmt"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// PaymentOrdersTotal counts provider orders opened.
var PaymentOrdersTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_orders_total",
		Help:      "Total number of payment orders created at the provider",
	},
)

// PaymentReconciliationsTotal counts webhook reconciliations by outcome.
var PaymentReconciliationsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_reconciliations_total",
		Help:      "Total number of webhook reconciliations processed",
	},
	[]string{"outcome"}, // processed|rejected|error
)

// RegistrationsTotal counts registrations by kind.
var RegistrationsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of event registrations",
	},
	[]string{"kind"}, // free|paid
)

// EmailsSentTotal counts email deliveries by category and result.
var EmailsSentTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Total number of email delivery attempts",
	},
	[]string{"category", "result"},
)

// RateLimitRejectionsTotal counts requests refused by the rate limiter.
var RateLimitRejectionsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Total number of requests rejected by rate limiting",
	},
	[]string{"tier"},
)
