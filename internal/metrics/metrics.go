// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess  = "success"
	OutcomeCanceled = "canceled"
	OutcomeFailure  = "failure"
)

var (
	registry *prometheus.Registry

	pipelineRunsTotal    *prometheus.CounterVec
	pipelineRunDuration  *prometheus.HistogramVec
	postsExtractedTotal  *prometheus.CounterVec
	postsDeliveredTotal  *prometheus.CounterVec
	mediaCachedTotal     *prometheus.CounterVec
	articlesFetchedTotal *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		pipelineRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "herald_pipeline_runs_total",
				Help: "Total number of pipeline runs, labeled by job and outcome.",
			},
			[]string{"job", "outcome"},
		)

		pipelineRunDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "herald_pipeline_run_duration_seconds",
				Help:    "Histogram of pipeline run durations, labeled by job.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"job"},
		)

		postsExtractedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "herald_posts_extracted_total",
				Help: "Total number of posts extracted, labeled by job.",
			},
			[]string{"job"},
		)

		postsDeliveredTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "herald_posts_delivered_total",
				Help: "Total number of unseen posts delivered to every destination, labeled by job.",
			},
			[]string{"job"},
		)

		mediaCachedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "herald_media_cached_total",
				Help: "Total number of media references processed by the content cache, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		articlesFetchedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "herald_articles_fetched_total",
				Help: "Total number of article bodies fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		registry.MustRegister(
			pipelineRunsTotal,
			pipelineRunDuration,
			postsExtractedTotal,
			postsDeliveredTotal,
			mediaCachedTotal,
			articlesFetchedTotal,
		)
	})
}

// Handler returns an http.Handler exposing the registry.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func ObserveRun(job, outcome string, duration time.Duration) {
	Init()
	pipelineRunsTotal.WithLabelValues(job, outcome).Inc()
	pipelineRunDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func ObserveExtracted(job string, count int) {
	Init()
	postsExtractedTotal.WithLabelValues(job).Add(float64(count))
}

func ObserveDelivered(job string, count int) {
	Init()
	postsDeliveredTotal.WithLabelValues(job).Add(float64(count))
}

func ObserveMedia(outcome string) {
	Init()
	mediaCachedTotal.WithLabelValues(outcome).Inc()
}

func ObserveArticle(outcome string) {
	Init()
	articlesFetchedTotal.WithLabelValues(outcome).Inc()
}
