package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics records batch iterations of background loops such as the
// outbox publisher and the restock consumer.
type WorkerMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewWorkerMetrics registers worker metrics; a nil registerer yields a no-op.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_iteration_duration_seconds",
		Help:    "Duration of worker iterations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_iteration_success_total",
		Help: "Successful worker iterations.",
	}, []string{"worker"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_iteration_failure_total",
		Help: "Failed worker iterations.",
	}, []string{"worker"})
	reg.MustRegister(duration, success, failure)
	return &WorkerMetrics{duration: duration, success: success, failure: failure}
}

// Observe records one iteration and its outcome.
func (w *WorkerMetrics) Observe(worker string, elapsed time.Duration, err error) {
	if w == nil || w.duration == nil {
		return
	}
	label := normalizeLabel(worker)
	w.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		w.failure.WithLabelValues(label).Inc()
		return
	}
	w.success.WithLabelValues(label).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
