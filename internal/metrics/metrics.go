// Package metrics exposes Prometheus counters for polling and mutations.
package metrics

import (
	"errors"
	"net/http"

	"automationdash/internal/engine"
	"automationdash/internal/poll"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "automationdash"

// Metrics holds the dashboard's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	FetchesStarted  *prometheus.CounterVec
	FetchesFinished *prometheus.CounterVec
	TicksSkipped    *prometheus.CounterVec
	Mutations       *prometheus.CounterVec
	MutationSeconds *prometheus.HistogramVec
	MutationBusy    prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchesStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "fetches_started_total",
				Help:      "Fetches issued by polling sessions",
			},
			[]string{"session", "trigger"},
		),
		FetchesFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "fetches_finished_total",
				Help:      "Fetches completed by polling sessions",
			},
			[]string{"session", "trigger", "result"},
		),
		TicksSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "ticks_skipped_total",
				Help:      "Ticks skipped because a fetch was still in flight",
			},
			[]string{"session"},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mutation",
				Name:      "total",
				Help:      "Mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		MutationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "mutation",
				Name:      "duration_seconds",
				Help:      "Mutation duration including the follow-up refetch",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"op"},
		),
		MutationBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mutation",
				Name:      "busy",
				Help:      "1 while a mutation is running",
			},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FetchStarted implements poll.Observer.
func (m *Metrics) FetchStarted(session string, trigger poll.Trigger) {
	m.FetchesStarted.WithLabelValues(session, string(trigger)).Inc()
}

// FetchFinished implements poll.Observer.
func (m *Metrics) FetchFinished(session string, trigger poll.Trigger, err error, applied bool) {
	m.FetchesFinished.WithLabelValues(session, string(trigger), fetchResult(err, applied)).Inc()
}

// TickSkipped implements poll.Observer.
func (m *Metrics) TickSkipped(session string) {
	m.TicksSkipped.WithLabelValues(session).Inc()
}

// ObserveOrchestrator records the orchestrator's busy flag and outcomes.
func (m *Metrics) ObserveOrchestrator(o *engine.Orchestrator) {
	o.OnBusyChange(func(busy bool) {
		if busy {
			m.MutationBusy.Set(1)
			return
		}
		m.MutationBusy.Set(0)
	})
	o.OnOutcome(func(out engine.Outcome) {
		outcome := "ok"
		if out.Err != nil {
			outcome = string(out.Err.Kind)
		}
		m.Mutations.WithLabelValues(out.Op, outcome).Inc()
		m.MutationSeconds.WithLabelValues(out.Op).Observe(out.Duration.Seconds())
	})
}

func fetchResult(err error, applied bool) string {
	switch {
	case err != nil && applied:
		return "error"
	case err != nil:
		var e *engine.Error
		if errors.As(err, &e) {
			return "swallowed_" + string(e.Kind)
		}
		return "swallowed"
	case applied:
		return "applied"
	default:
		return "stale"
	}
}
