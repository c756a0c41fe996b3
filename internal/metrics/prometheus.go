// Package metrics provides Prometheus metrics for backupctl.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "backupctl"

// PrometheusMetrics holds the registered submission metrics.
type PrometheusMetrics struct {
	SubmissionCounter  *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
	LastStarted        prometheus.Gauge
}

// NewPrometheusMetrics creates the metrics and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		SubmissionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of backup form submissions by outcome.",
		}, []string{"outcome"}),
		SubmissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time from submit to rendered feedback, by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		LastStarted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_started_timestamp_seconds",
			Help:      "Unix time of the last submission the server accepted.",
		}),
	}

	for _, c := range []prometheus.Collector{m.SubmissionCounter, m.SubmissionDuration, m.LastStarted} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// RecordSubmission counts one finished submission and observes its duration.
func (m *PrometheusMetrics) RecordSubmission(outcome string, duration time.Duration) {
	m.SubmissionCounter.WithLabelValues(outcome).Inc()
	m.SubmissionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "succeeded" {
		m.LastStarted.SetToCurrentTime()
	}
}
