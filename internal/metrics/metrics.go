// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for stage tasks.
const (
	TaskSucceeded = "success"
	TaskFailed    = "failure"
)

// Result labels for record writes.
const (
	RecordWritten = "written"
	RecordSkipped = "skipped"
	RecordFailed  = "failed"
)

// Result labels for document materialization.
const (
	DocumentDownloaded = "downloaded"
	DocumentPresent    = "present"
	DocumentFailed     = "failed"
)

var (
	stageTasksTotal          *prometheus.CounterVec
	stageTaskDurationSeconds *prometheus.HistogramVec
	recordsWrittenTotal      *prometheus.CounterVec
	documentsTotal           *prometheus.CounterVec
	fetchesTotal             *prometheus.CounterVec
	fetchBytesTotal          *prometheus.CounterVec
	rateLimitWaitSeconds     *prometheus.HistogramVec
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		stageTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seimas_stage_tasks_total",
				Help: "Total number of stage tasks run, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		stageTaskDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seimas_stage_task_duration_seconds",
				Help:    "Histogram of stage task latencies, labeled by stage.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		)

		recordsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seimas_records_written_total",
				Help: "Total number of record upserts, labeled by table and result.",
			},
			[]string{"table", "result"},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seimas_documents_total",
				Help: "Total number of meeting documents handled, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seimas_fetches_total",
				Help: "Total number of HTTP fetches, labeled by host and status.",
			},
			[]string{"host", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seimas_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by host.",
			},
			[]string{"host"},
		)

		rateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seimas_rate_limit_wait_seconds",
				Help:    "Time fetches spent waiting for the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveTask records one finished stage task.
func ObserveTask(stage string, err error, duration time.Duration) {
	Init()
	outcome := TaskSucceeded
	if err != nil {
		outcome = TaskFailed
	}
	stageTasksTotal.WithLabelValues(stage, outcome).Inc()
	stageTaskDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveRecord counts one upsert against a table.
func ObserveRecord(table, result string) {
	Init()
	recordsWrittenTotal.WithLabelValues(table, result).Inc()
}

// ObserveDocument counts one document outcome.
func ObserveDocument(kind, result string) {
	Init()
	documentsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveFetch counts one HTTP fetch and the bytes it returned.
func ObserveFetch(rawURL string, status string, bytesFetched int) {
	Init()
	host := SanitizeHost(rawURL)
	fetchesTotal.WithLabelValues(host, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
}

// ObserveRateLimitWait records how long a fetch to rawURL was held back.
func ObserveRateLimitWait(rawURL string, waited time.Duration) {
	Init()
	rateLimitWaitSeconds.WithLabelValues(SanitizeHost(rawURL)).Observe(waited.Seconds())
}
