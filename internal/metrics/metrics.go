// Package metrics exposes Prometheus collectors for the feed pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sermon_feed"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts  *prometheus.CounterVec
	results        *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	pollGeneration prometheus.Gauge
	staleDiscarded prometheus.Counter
	eventsPublish  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Upstream fetch attempts by transport path and outcome.",
		}, []string{"path", "outcome"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Completed retrieval cycles by source and status.",
		}, []string{"source", "status"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_entries_total",
			Help:      "Feed entries dropped at the parse boundary.",
		}, []string{"source"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one retrieval cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status code.",
		}, []string{"route", "method", "code"}),
		pollGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_generation",
			Help:      "Generation of the last applied poll result.",
		}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_stale_results_total",
			Help:      "Poll results discarded because a newer generation was already applied.",
		}),
		eventsPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Feed updated events by publish outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.fetchAttempts,
		m.results,
		m.dropped,
		m.cycleDuration,
		m.httpRequests,
		m.pollGeneration,
		m.staleDiscarded,
		m.eventsPublish,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FetchAttempt counts one transport attempt. outcome is "ok" or "error".
func (m *Metrics) FetchAttempt(path string, ok bool) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(path, outcome(ok)).Inc()
}

// Result records a finished retrieval cycle.
func (m *Metrics) Result(source, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(source, status).Inc()
	m.cycleDuration.WithLabelValues(source, status).Observe(took.Seconds())
}

// Dropped counts entries dropped for missing ids.
func (m *Metrics) Dropped(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(source).Add(float64(n))
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(route, method string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// PollApplied records the generation of an applied poll result.
func (m *Metrics) PollApplied(generation uint64) {
	if m == nil {
		return
	}
	m.pollGeneration.Set(float64(generation))
}

// PollStale counts a discarded stale poll result.
func (m *Metrics) PollStale() {
	if m == nil {
		return
	}
	m.staleDiscarded.Inc()
}

// EventPublished counts a feed updated publish attempt.
func (m *Metrics) EventPublished(ok bool) {
	if m == nil {
		return
	}
	m.eventsPublish.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
