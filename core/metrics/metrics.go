// Package metrics holds the Prometheus collectors of the bot and the ops HTTP surface.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcbot_dispatch_total",
			Help: "Dispatched events by route and outcome (ok, unchanged, unhandled, error).",
		},
		[]string{"route", "outcome"},
	)

	dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calcbot_dispatch_latency_ms",
			Help:    "Dispatch latency distribution in milliseconds, store access included.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
		[]string{"route"},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcbot_gateway_deliveries_total",
			Help: "Outbound deliveries by gateway mode, request kind and error class.",
		},
		[]string{"mode", "kind", "class"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcbot_store_operations_total",
			Help: "Conversation store operations by backend, op and success.",
		},
		[]string{"backend", "op", "success"},
	)

	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcbot_updates_total",
			Help: "Inbound updates by event kind and middleware outcome (ok, rate_limited).",
		},
		[]string{"kind", "outcome"},
	)

	workerJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcbot_worker_jobs_total",
			Help: "Worker pool jobs by outcome (ok, failed, rejected).",
		},
		[]string{"outcome"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(dispatchTotal, dispatchLatency, deliveriesTotal, storeOps, updatesTotal, workerJobs)
	})
}

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "none"
	}
	return s
}

// ObserveDispatch records one dispatch.
func ObserveDispatch(route, outcome string, took time.Duration) {
	dispatchTotal.WithLabelValues(norm(route), norm(outcome)).Inc()
	dispatchLatency.WithLabelValues(norm(route)).Observe(float64(took) / float64(time.Millisecond))
}

// IncDelivery records one gateway delivery; class is empty on success.
func IncDelivery(mode, kind, class string) {
	if class == "" {
		class = "ok"
	}
	deliveriesTotal.WithLabelValues(norm(mode), norm(kind), norm(class)).Inc()
}

// IncStoreOp records one store call.
func IncStoreOp(backend, op string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	storeOps.WithLabelValues(norm(backend), norm(op), success).Inc()
}

// IncUpdate records one inbound update.
func IncUpdate(kind, outcome string) {
	updatesTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

// IncWorkerJob records a worker job outcome.
func IncWorkerJob(outcome string) {
	workerJobs.WithLabelValues(norm(outcome)).Inc()
}
