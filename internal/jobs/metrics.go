package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	transitions  *prometheus.CounterVec
	recordErrors *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddTransitions counts flash-sale status changes into the target status.
func (m *Metrics) AddTransitions(to string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.transitions.WithLabelValues(to).Add(float64(count))
}

// AddRecordErrors counts per-record failures a job tolerated.
func (m *Metrics) AddRecordErrors(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recordErrors.WithLabelValues(job).Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kuma_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kuma_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kuma_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kuma_flashsale_transitions_total",
		Help: "Flash sale status transitions grouped by target status.",
	}, []string{"to"})
	recordErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kuma_job_record_errors_total",
		Help: "Per-record failures skipped by batch jobs.",
	}, []string{"job"})
	registerer.MustRegister(runs, failures, duration, transitions, recordErrors)
	return &Metrics{
		runs:         runs,
		failures:     failures,
		duration:     duration,
		transitions:  transitions,
		recordErrors: recordErrors,
	}
}
