// Package metrics exposes the prometheus gauges/counters backing
// GET /queues/stats and the outbound circuit-breaker state.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OrdersCreated counts successful atomic order writes, labeled by source
	// (text, whatsapp, ocr, voice) so the intake channels are visible.
	OrdersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "orders_created_total",
		Help:      "Orders successfully written by the atomic order-write transaction.",
	}, []string{"source"})

	// OrdersRejectedCredit counts CREDIT_REJECTED outcomes, labeled by reason.
	OrdersRejectedCredit = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "orders_rejected_credit_total",
		Help:      "Orders rejected by the credit validator, labeled by rejection reason.",
	}, []string{"reason"})

	// VendorReassignments counts vendor reassignment events, labeled by cause;
	// timeout is the only cause recorded.
	VendorReassignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "vendor_reassignments_total",
		Help:      "Vendor reassignment events.",
	}, []string{"cause"})

	// QueueDepth reports the approximate pending-job count per queue,
	// refreshed whenever the queue stats surface is read.
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "marketplace",
		Name:      "queue_depth",
		Help:      "Approximate number of pending jobs per queue.",
	}, []string{"queue"})

	// DeadLetters reports the current dead-letter count per queue.
	DeadLetters = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "marketplace",
		Name:      "dead_letters",
		Help:      "Jobs currently parked in the dead-letter queue.",
	}, []string{"queue"})

	// CircuitBreakerState reports 0=closed, 1=half-open, 2=open per outbound
	// provider, mirrored from gobreaker's OnStateChange callback.
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "marketplace",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per outbound provider (0=closed,1=half-open,2=open).",
	}, []string{"provider"})

	// RecoveryCycleDuration times each RecoveryWorker.RunCycle pass.
	RecoveryCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Name:      "recovery_cycle_duration_seconds",
		Help:      "Duration of each recovery/self-healing sweep cycle.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Registry is the package-local registry every gauge/counter above is
// registered to, so main can mount it under /metrics without pulling in
// the global default registry's runtime/process collectors twice.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		OrdersCreated,
		OrdersRejectedCredit,
		VendorReassignments,
		QueueDepth,
		DeadLetters,
		CircuitBreakerState,
		RecoveryCycleDuration,
	)
}

// BreakerStateValue maps gobreaker's state name to the gauge's numeric
// encoding.
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
