// Package metrics exports Prometheus metrics for batch jobs and translation providers.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "translator"

type Metrics struct {
	registry *prometheus.Registry

	JobsStarted      *prometheus.CounterVec
	JobsSettled      *prometheus.CounterVec
	RunningJobs      prometheus.Gauge
	EntriesProcessed *prometheus.CounterVec

	ProviderCalls      *prometheus.CounterVec
	ProviderCharacters *prometheus.CounterVec
	ProviderDuration   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry so instances never collide.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		JobsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_jobs_started_total",
			Help:      "Batch translate jobs started, by mode (fresh or resume)",
		}, []string{"mode"}),
		JobsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_jobs_settled_total",
			Help:      "Batch translate jobs that stopped, by outcome",
		}, []string{"outcome"}),
		RunningJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_jobs_running",
			Help:      "Batch translate jobs registered in this process",
		}),
		EntriesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_translated_total",
			Help:      "Entries created or updated by translation, by content type and source",
		}, []string{"content_type", "source"}),
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Translation provider calls, by provider, priority and result",
		}, []string{"provider", "priority", "result"}),
		ProviderCharacters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_characters_total",
			Help:      "Characters sent to translation providers",
		}, []string{"provider"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of translation provider calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
	}
}

// Handler serves this instance's registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) JobStarted(resume bool) {
	if m == nil {
		return
	}
	mode := "fresh"
	if resume {
		mode = "resume"
	}
	m.JobsStarted.WithLabelValues(mode).Inc()
}

func (m *Metrics) JobSettled(outcome string) {
	if m == nil {
		return
	}
	m.JobsSettled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetRunningJobs(n int) {
	if m == nil {
		return
	}
	m.RunningJobs.Set(float64(n))
}

// EntryTranslated counts one entry; source is "batch", "update" or "direct".
func (m *Metrics) EntryTranslated(contentType, source string) {
	if m == nil {
		return
	}
	m.EntriesProcessed.WithLabelValues(contentType, source).Inc()
}

func (m *Metrics) ObserveProviderCall(provider, priority string, characters int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderCalls.WithLabelValues(provider, priority, result).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err == nil {
		m.ProviderCharacters.WithLabelValues(provider).Add(float64(characters))
	}
}
