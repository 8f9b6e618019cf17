// Package metrics exposes gate and sweep counters through Prometheus.
//
// The CLI is short-lived, so metrics live in a private registry and are pushed
// to a Pushgateway at the end of a batch job when one is configured.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/example/contentgate/internal/core/gate"
)

const namespace = "contentgate"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	decisions         *prometheus.CounterVec
	gateFailures      *prometheus.CounterVec
	urlChecks         *prometheus.CounterVec
	retryExhausted    prometheus.Counter
	conditionalPasses *prometheus.GaugeVec
	blockedCategories prometheus.Gauge
	sweepDuration     prometheus.Histogram
	notifications     *prometheus.CounterVec
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Approval decisions by target stage and outcome",
		},
		[]string{"target", "outcome"},
	)
	m.gateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_failures_total",
			Help:      "Failed gate checks by code",
		},
		[]string{"code"},
	)
	m.urlChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_checks_total",
			Help:      "Source URL checks by final status",
		},
		[]string{"status"},
	)
	m.retryExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhausted_total",
			Help:      "Operations that failed after every retry",
		},
	)
	m.conditionalPasses = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conditional_passes",
			Help:      "Conditional passes by status after the last sweep",
		},
		[]string{"status"},
	)
	m.blockedCategories = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocked_categories",
			Help:      "Categories blocked for new admissions",
		},
	)
	m.sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiration sweeps",
			Buckets:   prometheus.DefBuckets,
		},
	)
	m.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Operator notifications by severity and delivery result",
		},
		[]string{"severity", "result"},
	)

	m.Registry.MustRegister(
		m.decisions,
		m.gateFailures,
		m.urlChecks,
		m.retryExhausted,
		m.conditionalPasses,
		m.blockedCategories,
		m.sweepDuration,
		m.notifications,
	)
	return m
}

// ObserveDecision counts a decision and each of its failures.
func (m *Metrics) ObserveDecision(d gate.Decision) {
	if m == nil {
		return
	}
	outcome := "block"
	if d.Admitted {
		outcome = "admit"
	}
	m.decisions.WithLabelValues(d.Target, outcome).Inc()
	for _, f := range d.Failures() {
		m.gateFailures.WithLabelValues(string(f.Code)).Inc()
	}
}

// ObserveURLCheck counts a URL check by its final status.
func (m *Metrics) ObserveURLCheck(status string) {
	if m == nil {
		return
	}
	m.urlChecks.WithLabelValues(status).Inc()
}

// ObserveRetryExhausted counts an exhausted operation.
func (m *Metrics) ObserveRetryExhausted() {
	if m == nil {
		return
	}
	m.retryExhausted.Inc()
}

// ObserveNotification counts a notification attempt.
func (m *Metrics) ObserveNotification(severity string, delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.notifications.WithLabelValues(severity, result).Inc()
}

// ObserveSweep records a sweep's duration and the resulting pass and block counts.
func (m *Metrics) ObserveSweep(elapsed time.Duration, passesByStatus map[string]int, blocked int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(elapsed.Seconds())
	m.conditionalPasses.Reset()
	for status, n := range passesByStatus {
		m.conditionalPasses.WithLabelValues(status).Set(float64(n))
	}
	m.blockedCategories.Set(float64(blocked))
}

// Push sends the registry to a Pushgateway under the given job name. An empty
// url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
