package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetrans_pipeline_runs_total",
			Help: "Total number of pipeline runs by source kind and error kind (\"none\" on success)",
		},
		[]string{"source", "error_kind"},
	)

	pipelinePagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetrans_pipeline_pages_total",
			Help: "Total number of translated units by status",
		},
		[]string{"status"},
	)

	pipelineFilesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagetrans_pipeline_files_written_total",
			Help: "Total number of translation files written to Pages directories",
		},
	)

	pipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"source"},
	)
)

func recordRun(res *Result, duration time.Duration) {
	source := string(res.Source)
	if source == "" {
		source = "unknown"
	}
	kind := "none"
	if res.Err != nil {
		kind = string(res.Err.Kind)
	}
	pipelineRunsTotal.WithLabelValues(source, kind).Inc()
	pipelineRunDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func recordPage(failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	pipelinePagesTotal.WithLabelValues(status).Inc()
}
