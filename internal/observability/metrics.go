package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pass outcomes.
const (
	PassConverged = "converged"
	PassApplied   = "applied"
	PassFailed    = "failed"
	PassCancelled = "cancelled"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragent",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragent",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	reconcilePasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragent",
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Reconciliation passes by outcome.",
		},
		[]string{"router", "outcome"},
	)
	reconcileChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragent",
			Subsystem: "reconcile",
			Name:      "changes_total",
			Help:      "Entities found drifting, by kind and change.",
		},
		[]string{"router", "kind", "change"},
	)
	gatewayOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragent",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Router management operations by outcome.",
		},
		[]string{"router", "operation", "outcome"},
	)
	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragent",
			Subsystem: "gateway",
			Name:      "operation_duration_seconds",
			Help:      "Router management operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"router", "operation"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			reconcilePasses,
			reconcileChanges,
			gatewayOps,
			gatewayDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPass(router, outcome string) {
	RegisterMetrics()
	reconcilePasses.WithLabelValues(router, outcome).Inc()
}

func RecordChanges(router, kind, change string, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	reconcileChanges.WithLabelValues(router, kind, change).Add(float64(n))
}

func RecordGatewayOp(router, operation string, duration time.Duration, err error) {
	RegisterMetrics()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	gatewayOps.WithLabelValues(router, operation, outcome).Inc()
	gatewayDuration.WithLabelValues(router, operation).Observe(duration.Seconds())
}
