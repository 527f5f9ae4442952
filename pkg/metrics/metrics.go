// Package metrics holds the Prometheus instrumentation for Grove. A Set is
// created against a caller-provided registry and handed to the client,
// retrier, limiter, and pool via their options; components without a Set
// simply skip recording.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/grove/pkg/domain"
)

// Set bundles the collectors for one Grove client.
type Set struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	retriesTotal *prometheus.CounterVec
	poolSlots    *prometheus.GaugeVec
	batchItems   *prometheus.CounterVec
	registry     prometheus.Registerer
}

// New creates and registers the Grove collectors on reg.
// Pass prometheus.DefaultRegisterer for the process-global registry.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grove_calls_total",
				Help: "Remote session calls by operation and terminal outcome",
			},
			[]string{"op", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "grove_call_duration_seconds",
				Help: "Duration of remote session calls",
			},
			[]string{"op"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grove_retryable_failures_total",
				Help: "Retryable failures observed by the retry executor",
			},
			[]string{"op"},
		),
		poolSlots: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "grove_pool_slots",
				Help: "Session pool slots by lifecycle state",
			},
			[]string{"state"},
		),
		batchItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grove_batch_items_total",
				Help: "Batch work items by operation and terminal outcome",
			},
			[]string{"op", "outcome"},
		),
		registry: reg,
	}
	reg.MustRegister(s.callsTotal, s.callDuration, s.retriesTotal, s.poolSlots, s.batchItems)
	return s
}

// outcomeLabel folds an error into a bounded label set.
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := domain.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// ObserveCall records one terminal remote call.
func (s *Set) ObserveCall(op string, elapsed time.Duration, err error) {
	if s == nil {
		return
	}
	s.callsTotal.WithLabelValues(op, outcomeLabel(err)).Inc()
	s.callDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// IncRetry counts a retryable failure for op.
func (s *Set) IncRetry(op string) {
	if s == nil {
		return
	}
	s.retriesTotal.WithLabelValues(op).Inc()
}

// SetPoolSlots publishes the pool's slot-state census.
func (s *Set) SetPoolSlots(empty, initializing, available, inUse int) {
	if s == nil {
		return
	}
	s.poolSlots.WithLabelValues("empty").Set(float64(empty))
	s.poolSlots.WithLabelValues("initializing").Set(float64(initializing))
	s.poolSlots.WithLabelValues("available").Set(float64(available))
	s.poolSlots.WithLabelValues("in_use").Set(float64(inUse))
}

// ObserveBatchItem records one work item outcome.
func (s *Set) ObserveBatchItem(op domain.OpKind, err error) {
	if s == nil {
		return
	}
	s.batchItems.WithLabelValues(string(op), outcomeLabel(err)).Inc()
}

// RegisterInFlight exposes the limiter's live slot count as a gauge.
func (s *Set) RegisterInFlight(inFlight func() int) {
	if s == nil {
		return
	}
	s.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "grove_in_flight_calls",
			Help: "Remote calls currently admitted by the concurrency limiter",
		},
		func() float64 { return float64(inFlight()) },
	))
}
