// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ebook"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.05, .1, .5, 1, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"method", "path"},
	)

	StageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Pipeline stages by provider and outcome",
		},
		[]string{"provider", "stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Provider call duration per stage in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "stage"},
	)

	RenderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "documents_total",
			Help:      "Rendered documents by outcome",
		},
		[]string{"outcome"},
	)

	RenderPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "pages",
			Help:      "Page count of rendered documents",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// ObserveStage records one pipeline stage. outcome is "ok", "skipped", "call_error" or "empty".
func ObserveStage(provider, stage, outcome string, d time.Duration) {
	StageTotal.WithLabelValues(provider, stage, outcome).Inc()
	if outcome != "skipped" {
		StageDuration.WithLabelValues(provider, stage).Observe(d.Seconds())
	}
}

// ObserveRender records one renderer invocation.
func ObserveRender(pages int, err error) {
	if err != nil {
		RenderTotal.WithLabelValues("error").Inc()
		return
	}
	RenderTotal.WithLabelValues("ok").Inc()
	RenderPages.Observe(float64(pages))
}
