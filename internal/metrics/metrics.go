// Package metrics exposes the pipeline's counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdholdren/newsroom/internal/llm"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

type Metrics struct {
	reg *prometheus.Registry

	runs          prometheus.Counter
	runDuration   prometheus.Histogram
	items         *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	llmCalls      *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
}

// New registers every metric on a fresh registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsroom_runs_total",
			Help: "The total number of ingestion runs",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsroom_run_duration_seconds",
			Help:    "How long ingestion runs take",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsroom_items_total",
			Help: "Items processed, by where they ended up",
		}, []string{"outcome"}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsroom_fetch_failures_total",
			Help: "Feeds that couldn't be fetched",
		}, []string{"source"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsroom_enrichment_fallbacks_total",
			Help: "Enrichment stages that fell back to defaults",
		}, []string{"stage"}),
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsroom_llm_calls_total",
			Help: "Calls to the language model, by stage and result",
		}, []string{"stage", "result"}),
		llmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsroom_llm_call_duration_seconds",
			Help:    "Latency of calls to the language model, retries included",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}, []string{"stage"}),
	}
}

// ObserveRun records a finished run's counters.
func (m *Metrics) ObserveRun(r newsroom.Report) {
	m.runs.Inc()
	if !r.FinishedAt.IsZero() {
		m.runDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	}
	for _, f := range r.Failures {
		m.fetchFailures.WithLabelValues(f.Source).Inc()
	}
}

// ObserveItem counts a single item's outcome as it happens.
func (m *Metrics) ObserveItem(o newsroom.ItemOutcome) {
	m.items.WithLabelValues(string(o.Outcome)).Inc()
	for _, stage := range o.Fallbacks {
		m.fallbacks.WithLabelValues(stage).Inc()
	}
}

// ObserveLLMCall fits [llm.WithObserver].
func (m *Metrics) ObserveLLMCall(stage llm.Stage, took time.Duration, err error) {
	result := "ok"
	switch {
	case llm.IsRateLimited(err):
		result = "rate_limited"
	case err != nil:
		result = "error"
	}
	m.llmCalls.WithLabelValues(string(stage), result).Inc()
	m.llmLatency.WithLabelValues(string(stage)).Observe(took.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
