// Package metrics exposes Prometheus collectors for the batch jobs and the
// interactive check-in path.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clubleague"

// Metrics groups the collectors used across the service
type Metrics struct {
	JobDuration  *prometheus.HistogramVec
	JobRuns      *prometheus.CounterVec
	Entities     *prometheus.CounterVec
	Checkins     *prometheus.CounterVec
	TokensIssued prometheus.Counter
	TierChanges  *prometheus.CounterVec
	Anomalies    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of batch job runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Batch job runs by outcome.",
		}, []string{"job", "outcome"}),
		Entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_entities_total",
			Help:      "Entities processed by batch jobs, by result.",
		}, []string{"job", "result"}),
		Checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Check-in attempts by result kind.",
		}, []string{"result"}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Check-in tokens issued.",
		}),
		TierChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_changes_total",
			Help:      "Applied league tier changes by direction.",
		}, []string{"direction"}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_anomalies_total",
			Help:      "Activity days flagged as anomalous, by path.",
		}, []string{"path"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.JobDuration, m.JobRuns, m.Entities, m.Checkins,
		m.TokensIssued, m.TierChanges, m.Anomalies,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveJob records one finished job run
func (m *Metrics) ObserveJob(job string, started time.Time, processed, failed int, err error) {
	m.JobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	m.Entities.WithLabelValues(job, "ok").Add(float64(processed - failed))
	m.Entities.WithLabelValues(job, "failed").Add(float64(failed))

	outcome := "success"
	switch {
	case err != nil && processed == 0:
		outcome = "aborted"
	case failed > 0:
		outcome = "partial"
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
