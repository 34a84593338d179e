package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teamflow/notification-worker/internal/domain"
)

// Metrics groups all Prometheus instruments used across the worker.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobsDropped   *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	PushFailures  prometheus.Counter
	FanoutRecords prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_completed_total",
			Help: "Total number of jobs processed and acknowledged successfully.",
		}, []string{"kind"}),

		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_failed_total",
			Help: "Total number of jobs that failed and were routed to retry or parked.",
		}, []string{"kind"}),

		JobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_dropped_total",
			Help: "Total number of malformed or unroutable jobs acknowledged without processing.",
		}, []string{"kind"}),

		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_job_duration_seconds",
			Help:    "Job processing latency from dequeue to broker ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		PushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_push_failures_total",
			Help: "Total number of best-effort pushes that failed after a successful write.",
		}),

		FanoutRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_fanout_records_total",
			Help: "Total notification records persisted by broadcast fan-out.",
		}),
	}

	reg.MustRegister(
		m.JobsCompleted,
		m.JobsFailed,
		m.JobsDropped,
		m.JobDuration,
		m.PushFailures,
		m.FanoutRecords,
	)

	return m
}

// WorkerHooks returns the callbacks expected by worker.Hooks.
// Centralises the prometheus observation calls so the pool stays import-free.
func (m *Metrics) WorkerHooks() (
	onCompleted func(domain.JobKind, time.Duration),
	onFailed func(domain.JobKind),
	onDropped func(domain.JobKind),
) {
	onCompleted = func(kind domain.JobKind, latency time.Duration) {
		m.JobsCompleted.WithLabelValues(string(kind)).Inc()
		m.JobDuration.WithLabelValues(string(kind)).Observe(latency.Seconds())
	}
	onFailed = func(kind domain.JobKind) {
		m.JobsFailed.WithLabelValues(string(kind)).Inc()
	}
	onDropped = func(kind domain.JobKind) {
		m.JobsDropped.WithLabelValues(string(kind)).Inc()
	}
	return
}

// PushFailureHook returns the callback handlers use to count failed
// best-effort pushes.
func (m *Metrics) PushFailureHook() func() {
	return func() { m.PushFailures.Inc() }
}

// FanoutHook returns the callback the broadcast handler uses to report
// how many records a fan-out persisted.
func (m *Metrics) FanoutHook() func(count int) {
	return func(count int) {
		m.FanoutRecords.Add(float64(count))
	}
}
