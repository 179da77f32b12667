package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshots        *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	ticksAccepted    prometheus.Counter
	ticksDropped     prometheus.Counter
	alerts           *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	lifecycle        *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	equity           prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		snapshots: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portpulse_snapshots_total",
				Help: "Total snapshots ingested, by validation outcome",
			},
			[]string{"outcome"},
		),
		validationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portpulse_validation_errors_total",
				Help: "Total validation errors recorded, by kind",
			},
			[]string{"kind"},
		),
		ticksAccepted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "portpulse_ticks_accepted_total",
				Help: "Total market ticks accepted",
			},
		),
		ticksDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "portpulse_ticks_dropped_total",
				Help: "Total market ticks dropped as invalid",
			},
		),
		alerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portpulse_alerts_total",
				Help: "Total alerts raised, by severity",
			},
			[]string{"severity"},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portpulse_risk_decisions_total",
				Help: "Total risk decisions, by action",
			},
			[]string{"action"},
		),
		lifecycle: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portpulse_lifecycle_items_total",
				Help: "Total items moved by the storage lifecycle manager",
			},
			[]string{"category", "transition"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		equity: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "portpulse_total_equity",
				Help: "Last aggregated total equity",
			},
		),
	}
}

// RecordSnapshot records an ingested snapshot by validation outcome.
func (r *Recorder) RecordSnapshot(outcome string) {
	r.snapshots.WithLabelValues(outcome).Inc()
}

// RecordValidationError records a validation error occurrence.
func (r *Recorder) RecordValidationError(kind string) {
	r.validationErrors.WithLabelValues(kind).Inc()
}

// RecordTicks records accepted and dropped ticks of a batch.
func (r *Recorder) RecordTicks(accepted, dropped int) {
	r.ticksAccepted.Add(float64(accepted))
	r.ticksDropped.Add(float64(dropped))
}

// RecordAlert records a raised alert by severity.
func (r *Recorder) RecordAlert(severity string) {
	r.alerts.WithLabelValues(severity).Inc()
}

// RecordDecision records a risk decision by action.
func (r *Recorder) RecordDecision(action string) {
	r.decisions.WithLabelValues(action).Inc()
}

// RecordLifecycle records a lifecycle tier transition.
func (r *Recorder) RecordLifecycle(category, transition string, count int) {
	r.lifecycle.WithLabelValues(category, transition).Add(float64(count))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordEquity records the last aggregated total equity.
func (r *Recorder) RecordEquity(value float64) {
	r.equity.Set(value)
}
