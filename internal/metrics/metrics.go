// Package metrics provides Prometheus metrics for model evaluations.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EvaluationMetrics contains all Prometheus metrics related to model
// evaluation, labelled by model id.
type EvaluationMetrics struct {
	evaluations      *prometheus.CounterVec
	evaluationErrors *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	alertHospitals   *prometheus.GaugeVec
	registry         *prometheus.Registry
}

// NewEvaluationMetrics creates a new instance of EvaluationMetrics and
// registers it with the given registry.
func NewEvaluationMetrics(registry *prometheus.Registry) (*EvaluationMetrics, error) {
	m := &EvaluationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register evaluation metrics: %w", err)
	}
	return m, nil
}

func (m *EvaluationMetrics) initMetrics() {
	m.evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evaluations_total",
		Help: "Total number of model evaluations.",
	}, []string{"model"})

	m.evaluationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evaluation_errors_total",
		Help: "Total number of failed model evaluations.",
	}, []string{"model"})

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evaluation_duration_seconds",
		Help:    "Duration of model evaluations in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"model"})

	m.alertHospitals = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alert_hospitals",
		Help: "Number of hospitals in Alert status in the latest evaluation.",
	}, []string{"model"})
}

// RecordEvaluation increases the evaluation counter for a model by one.
func (m *EvaluationMetrics) RecordEvaluation(model string) {
	m.evaluations.WithLabelValues(model).Inc()
}

// RecordEvaluationError increases the error counter for a model by one.
func (m *EvaluationMetrics) RecordEvaluationError(model string) {
	m.evaluationErrors.WithLabelValues(model).Inc()
}

// ObserveEvaluationDuration records how long one evaluation took, in
// seconds.
func (m *EvaluationMetrics) ObserveEvaluationDuration(model string, seconds float64) {
	m.duration.WithLabelValues(model).Observe(seconds)
}

// SetAlertHospitals records the alert count of the latest evaluation.
func (m *EvaluationMetrics) SetAlertHospitals(model string, count int) {
	m.alertHospitals.WithLabelValues(model).Set(float64(count))
}

// Collect implements the prometheus.Collector interface.
func (m *EvaluationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.evaluations.Collect(ch)
	m.evaluationErrors.Collect(ch)
	m.duration.Collect(ch)
	m.alertHospitals.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *EvaluationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.evaluations.Describe(ch)
	m.evaluationErrors.Describe(ch)
	m.duration.Describe(ch)
	m.alertHospitals.Describe(ch)
}
