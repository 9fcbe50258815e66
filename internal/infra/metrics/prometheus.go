package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentingo_runs_processed_total",
		Help: "Total number of extraction runs processed, by status",
	}, []string{"status"})

	RunProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mentingo_run_processing_duration_seconds",
		Help:    "Duration of slide extraction pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	SlidesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentingo_slides_detected_total",
		Help: "Total number of slides detected across all runs",
	})

	FallbackRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentingo_fallback_runs_total",
		Help: "Total number of runs that completed via the heuristic placeholder fallback",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mentingo_active_workers",
		Help: "Number of currently active workers processing runs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentingo_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
