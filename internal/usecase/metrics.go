package usecase

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis outcomes recorded by Metrics.
const (
	outcomeSuccess          = "success"
	outcomeUnknownCrop      = "unknown_crop"
	outcomeModelUnavailable = "model_unavailable"
	outcomeInvalidImage     = "invalid_image"
	outcomePredictionFailed = "prediction_failed"
	outcomeCacheFailed      = "cache_failed"
)

// Metrics holds the prometheus collectors of the analysis flow. A nil *Metrics records
// nothing.
type Metrics struct {
	analyses          *prometheus.CounterVec
	predictions       *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	modelLoadFailures *prometheus.CounterVec
	reports           prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leafcheck_analyses_total",
				Help: "Leaf analyses by crop and outcome.",
			},
			[]string{"crop", "outcome"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leafcheck_predictions_total",
				Help: "Predicted classes by crop.",
			},
			[]string{"crop", "class"},
		),
		inferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leafcheck_inference_duration_seconds",
				Help:    "Time spent preprocessing and classifying one image.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"crop"},
		),
		modelLoadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leafcheck_model_load_failures_total",
				Help: "Failed classifier loads by crop.",
			},
			[]string{"crop"},
		),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leafcheck_reports_generated_total",
			Help: "PDF reports rendered.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.analyses, m.predictions, m.inferenceDuration, m.modelLoadFailures, m.reports)
	}
	return m
}

func (m *Metrics) observeAnalysis(crop, outcome string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(crop, outcome).Inc()
}

func (m *Metrics) observePrediction(crop, class string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(crop, class).Inc()
	m.inferenceDuration.WithLabelValues(crop).Observe(elapsed.Seconds())
}

func (m *Metrics) observeModelLoadFailure(crop string) {
	if m == nil {
		return
	}
	m.modelLoadFailures.WithLabelValues(crop).Inc()
}

func (m *Metrics) observeReport() {
	if m == nil {
		return
	}
	m.reports.Inc()
}
