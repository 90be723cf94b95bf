package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoop    = "noop"
)

// FulfillmentMetrics tracks coordinator runs and the documents they produce.
// The zero value and a nil pointer are both safe no-ops.
type FulfillmentMetrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	documents     *prometheus.CounterVec
	demotions     prometheus.Counter
	compensations *prometheus.CounterVec
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_runs_total",
		Help: "Fulfillment operations by outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_run_duration_seconds",
		Help:    "Duration of fulfillment operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_documents_created_total",
		Help: "Delivery orders and backorders created.",
	}, []string{"document"})
	demotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_reservation_demotions_total",
		Help: "Lines moved to a backorder after losing a stock race.",
	})
	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_compensation_failures_total",
		Help: "Headers left behind after a failed compensating delete.",
	}, []string{"document"})
	reg.MustRegister(runs, duration, documents, demotions, compensations)
	return &FulfillmentMetrics{
		runs:          runs,
		duration:      duration,
		documents:     documents,
		demotions:     demotions,
		compensations: compensations,
	}
}

// ObserveRun records the outcome and latency of one operation.
func (m *FulfillmentMetrics) ObserveRun(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	op := normalizeLabel(operation)
	m.runs.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *FulfillmentMetrics) DocumentCreated(document string) {
	if m == nil || m.documents == nil {
		return
	}
	m.documents.WithLabelValues(normalizeLabel(document)).Inc()
}

func (m *FulfillmentMetrics) ReservationDemoted() {
	if m == nil || m.demotions == nil {
		return
	}
	m.demotions.Inc()
}

// CompensationFailed satisfies the document factories' observer hook.
func (m *FulfillmentMetrics) CompensationFailed(document string) {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(normalizeLabel(document)).Inc()
}
