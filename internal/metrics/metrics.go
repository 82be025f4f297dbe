// Package metrics exposes fisher's prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fisher_requests_total",
			Help: "Total number of webhook requests by response status",
		},
		[]string{"status"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fisher_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fisher_jobs_total",
			Help: "Total number of executed jobs by hook and outcome",
		},
		[]string{"hook", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fisher_job_duration_seconds",
			Help:    "Hook script execution time in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"hook"},
	)

	queuedJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fisher_queued_jobs",
			Help: "Number of jobs waiting for a worker",
		},
	)

	busyThreads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fisher_busy_threads",
			Help: "Number of workers currently executing a job",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordRequest(status int) {
	requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

func RecordJob(hook, outcome string, duration time.Duration) {
	jobsTotal.WithLabelValues(hook, outcome).Inc()
	jobDuration.WithLabelValues(hook).Observe(duration.Seconds())
}

func UpdateSchedulerStats(queued, busy int) {
	queuedJobs.Set(float64(queued))
	busyThreads.Set(float64(busy))
}
