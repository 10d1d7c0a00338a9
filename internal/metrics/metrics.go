// Package metrics holds the Prometheus collectors for the upload pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeAccepted         = "accepted"
	OutcomeInvalidSchema    = "invalid_schema"
	OutcomeInvalidDate      = "invalid_date"
	OutcomeInvalidData      = "invalid_data"
	OutcomeDuplicate        = "duplicate"
	OutcomeIssuanceFailed   = "issuance_failed"
	OutcomePersistenceError = "persistence_failed"
)

// Metrics provides observability for daily stats ingestion.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Uploads counts finished pipeline runs by outcome.
	Uploads *prometheus.CounterVec

	// Vouchers counts vouchers requested from the issuer.
	Vouchers prometheus.Counter

	// StageLatency observes the duration of collaborator calls.
	StageLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "diarycollector_uploads_total",
			Help: "Daily stats uploads by outcome",
		}, []string{"outcome"}),

		Vouchers: f.NewCounter(prometheus.CounterOpts{
			Name: "diarycollector_vouchers_requested_total",
			Help: "Vouchers requested from the issuer for accepted uploads",
		}),

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diarycollector_stage_duration_seconds",
			Help:    "Duration of pipeline collaborator calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}), // stage: "duplicate_check", "issue_vouchers", "persist"
	}
}

// IncrementOutcome records a finished upload.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Uploads.WithLabelValues(outcome).Inc()
	}
}

// AddVouchers records n requested vouchers.
func (m *Metrics) AddVouchers(n int) {
	if m != nil && n > 0 {
		m.Vouchers.Add(float64(n))
	}
}

// ObserveStage records the duration of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}
