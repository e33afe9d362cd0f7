package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/tidegate/jobgraph/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	jobDurationSeconds *prom.HistogramVec
	jobPanicTotal      *prom.CounterVec
	graphKickTotal     *prom.CounterVec
	graphJobs          *prom.HistogramVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "jobgraph"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Job body execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"scheduler"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "job_panic_total",
		Help:      "Total number of recovered job body panics.",
	}, []string{"scheduler"})
	kickVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "graph_kick_total",
		Help:      "Total number of graphs released to the workers.",
	}, []string{"scheduler"})
	graphJobsVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "graph_jobs",
		Help:      "Number of jobs per kicked graph.",
		Buckets:   prom.ExponentialBuckets(1, 4, 8),
	}, []string{"scheduler"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if kickVec, err = registerCollector(reg, kickVec); err != nil {
		return nil, err
	}
	if graphJobsVec, err = registerCollector(reg, graphJobsVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		jobDurationSeconds: durationVec,
		jobPanicTotal:      panicVec,
		graphKickTotal:     kickVec,
		graphJobs:          graphJobsVec,
	}, nil
}

// RecordJobDuration records job body execution duration.
func (m *MetricsExporter) RecordJobDuration(schedulerID string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDurationSeconds.WithLabelValues(normalizeLabel(schedulerID, "unknown")).Observe(duration.Seconds())
}

// RecordJobPanic records recovered job body panics.
func (m *MetricsExporter) RecordJobPanic(schedulerID string) {
	if m == nil {
		return
	}
	m.jobPanicTotal.WithLabelValues(normalizeLabel(schedulerID, "unknown")).Inc()
}

// RecordGraphKick records a released graph and its job count.
func (m *MetricsExporter) RecordGraphKick(schedulerID string, jobs int) {
	if m == nil {
		return
	}
	label := normalizeLabel(schedulerID, "unknown")
	m.graphKickTotal.WithLabelValues(label).Inc()
	m.graphJobs.WithLabelValues(label).Observe(float64(jobs))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
