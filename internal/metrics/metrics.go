// Package metrics registers the Prometheus collectors served at /metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"familypos/backend/internal/domain"
)

// SalesCommitted counts committed sales by payment method and source.
var SalesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "familypos",
	Subsystem: "sales",
	Name:      "committed_total",
	Help:      "Total committed sales.",
}, []string{"method", "source"})

// SalesAmount sums committed sale totals in MMK.
var SalesAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "familypos",
	Subsystem: "sales",
	Name:      "amount_mmk_total",
	Help:      "Total value of committed sales in MMK.",
}, []string{"method"})

var CommitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "familypos",
	Subsystem: "sales",
	Name:      "commit_failures_total",
	Help:      "Sale commits rejected, by reason.",
}, []string{"reason"})

var Returns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "familypos",
	Subsystem: "sales",
	Name:      "returns_total",
	Help:      "Total processed returns.",
})

var HeldCartOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "familypos",
	Subsystem: "held_carts",
	Name:      "operations_total",
	Help:      "Held cart operations by kind.",
}, []string{"op"})

var ReportCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "familypos",
	Subsystem: "reports",
	Name:      "cache_lookups_total",
	Help:      "Report cache lookups by result.",
}, []string{"result"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "familypos",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route pattern and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// FailureReason maps an error to a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, domain.ErrNoCreditCustomer):
		return "no_credit_customer"
	case errors.Is(err, domain.ErrConcurrentStockChange):
		return "concurrent_stock_change"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
