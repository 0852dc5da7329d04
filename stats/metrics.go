package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpipe_upstream_requests_total",
			Help: "Requests made to the Spotify Web API by endpoint and response status",
		},
		[]string{"endpoint", "status"},
	)

	upstreamItemFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackpipe_upstream_item_failures_total",
			Help: "Audio feature ids skipped after a per-item fetch failure",
		},
	)

	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpipe_pipeline_runs_total",
			Help: "Pipeline runs by pipeline and outcome",
		},
		[]string{"pipeline", "outcome"},
	)

	pipelineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackpipe_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
		[]string{"pipeline"},
	)

	rowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpipe_rows_written_total",
			Help: "Rows written to partitioned object storage",
		},
		[]string{"prefix"},
	)

	filesLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpipe_files_loaded_total",
			Help: "Staged files copied into the warehouse by target table",
		},
		[]string{"table"},
	)
)

// ObserveUpstreamRequest counts one HTTP exchange with the upstream API.
func ObserveUpstreamRequest(endpoint string, status string) {
	upstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func AddItemFailures(n int) {
	upstreamItemFailuresTotal.Add(float64(n))
}

// ObserveRun records the outcome and duration of one pipeline run.
func ObserveRun(pipeline string, outcome string, d time.Duration) {
	pipelineRunsTotal.WithLabelValues(pipeline, outcome).Inc()
	pipelineDurationSeconds.WithLabelValues(pipeline).Observe(d.Seconds())
}

func AddRowsWritten(prefix string, n int) {
	rowsWrittenTotal.WithLabelValues(prefix).Add(float64(n))
}

func AddFilesLoaded(table string, n int) {
	filesLoadedTotal.WithLabelValues(table).Add(float64(n))
}
