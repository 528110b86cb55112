// Package metrics exposes Prometheus collectors for the retry and reporting
// pipeline. The executor is observed through its OnRetry hook; record
// emission is counted by wrapping the reporter's sink.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"errguard/pkg/report"
)

// Metrics bundles the pipeline collectors.
type Metrics struct {
	retries      prometheus.Counter
	backoffDelay prometheus.Histogram
	reports      *prometheus.CounterVec
}

// New registers the collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "errguard_retries_total",
			Help: "Backoff waits performed before re-invoking an operation.",
		}),
		backoffDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "errguard_backoff_delay_seconds",
			Help:    "Delay slept before each retry.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errguard_reports_total",
			Help: "Structured error records emitted, by severity and whether the error was known.",
		}, []string{"severity", "known"}),
	}
	reg.MustRegister(m.retries, m.backoffDelay, m.reports)
	return m
}

// Observer returns the hook to plug into the executor's OnRetry.
func (m *Metrics) Observer() func(attempt int, err error, delay time.Duration) {
	return func(_ int, _ error, delay time.Duration) {
		m.retries.Inc()
		m.backoffDelay.Observe(delay.Seconds())
	}
}

// Sink wraps next with report emission counting.
func (m *Metrics) Sink(next report.Sink) report.Sink {
	return countingSink{metrics: m, next: next}
}

type countingSink struct {
	metrics *Metrics
	next    report.Sink
}

func (s countingSink) Write(ctx context.Context, rec report.Record, sev report.Severity) error {
	s.metrics.reports.WithLabelValues(string(sev), strconv.FormatBool(rec.Context.KnownError)).Inc()
	return s.next.Write(ctx, rec, sev)
}
