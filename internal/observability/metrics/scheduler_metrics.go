package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics tracks background jobs and the age of the current gold rate.
type SchedulerMetrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	timeouts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rateAge  prometheus.Gauge
}

func NewSchedulerMetrics(registerer prometheus.Registerer, cfg Config) (*SchedulerMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "karat"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "karat_scheduler_job_runs_total",
		Help:        "Scheduler job executions.",
		ConstLabels: constLabels,
	}, []string{"job"}))
	if err != nil {
		return nil, err
	}
	jobErrors, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "karat_scheduler_job_errors_total",
		Help:        "Scheduler job failures.",
		ConstLabels: constLabels,
	}, []string{"job"}))
	if err != nil {
		return nil, err
	}
	timeouts, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "karat_scheduler_job_timeouts_total",
		Help:        "Scheduler jobs that hit their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "karat_scheduler_job_duration_seconds",
		Help:        "Scheduler job duration.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"job"}))
	if err != nil {
		return nil, err
	}
	rateAge, err := register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "karat_gold_rate_age_seconds",
		Help:        "Seconds since the current gold rate became effective.",
		ConstLabels: constLabels,
	}))
	if err != nil {
		return nil, err
	}

	return &SchedulerMetrics{
		runs:     runs,
		errors:   jobErrors,
		timeouts: timeouts,
		duration: duration,
		rateAge:  rateAge,
	}, nil
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) SetRateAge(age time.Duration) {
	if m == nil {
		return
	}
	m.rateAge.Set(age.Seconds())
}
