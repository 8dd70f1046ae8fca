package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	feedbackOutcomes      *prometheus.CounterVec
	feedbackAttempts      prometheus.Histogram
	recommendations       *prometheus.CounterVec
	recommendationLatency *prometheus.HistogramVec
	indexErrors           *prometheus.CounterVec
	embeddedContents      *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		feedbackOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tastevec_feedback_outcomes_total",
				Help: "Feedback events processed, by outcome",
			},
			[]string{"outcome"},
		),
		feedbackAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tastevec_feedback_attempts",
				Help:    "Taste vector write attempts per feedback event",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tastevec_recommendations_total",
				Help: "Recommendation requests, by branch",
			},
			[]string{"branch"},
		),
		recommendationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tastevec_recommendation_duration_seconds",
				Help:    "Duration of recommendation requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"branch"},
		),
		indexErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tastevec_content_index_errors_total",
				Help: "Content index failures, by kind",
			},
			[]string{"kind"},
		),
		embeddedContents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tastevec_content_embeddings_total",
				Help: "Content embeddings computed by the runner, by status",
			},
			[]string{"status"},
		),
	}
}

// RecordFeedback records the outcome of one feedback event.
func (m *Metrics) RecordFeedback(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.feedbackOutcomes.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.feedbackAttempts.Observe(float64(attempts))
	}
}

// RecordRecommendation records a served recommendation request.
func (m *Metrics) RecordRecommendation(branch string, duration time.Duration) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(branch).Inc()
	m.recommendationLatency.WithLabelValues(branch).Observe(duration.Seconds())
}

// RecordIndexError records a content index failure.
func (m *Metrics) RecordIndexError(kind string) {
	if m == nil {
		return
	}
	m.indexErrors.WithLabelValues(kind).Inc()
}

// RecordEmbedding records content embeddings written or failed by the runner.
func (m *Metrics) RecordEmbedding(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.embeddedContents.WithLabelValues(status).Add(float64(n))
}
