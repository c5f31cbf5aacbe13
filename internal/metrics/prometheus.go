package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailengine_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"queue", "type"},
	)

	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailengine_jobs_processed_total",
			Help: "Total number of job attempts by outcome",
		},
		[]string{"queue", "type", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailengine_job_duration_seconds",
			Help:    "Job handler duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"queue", "type"},
	)

	campaignBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailengine_campaign_batches_total",
			Help: "Campaign batches processed by result",
		},
		[]string{"result"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailengine_sends_rate_limited_total",
			Help: "Sends rejected by the tenant rate limiter",
		},
	)

	automationStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailengine_automation_steps_total",
			Help: "Automation steps executed by node type",
		},
		[]string{"node_type"},
	)
)

const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeDeferred  = "deferred"
)

func RecordJobEnqueued(queue, jobType string) {
	jobsEnqueuedTotal.WithLabelValues(queue, jobType).Inc()
}

func RecordJobProcessed(queue, jobType, outcome string, duration time.Duration) {
	jobsProcessedTotal.WithLabelValues(queue, jobType, outcome).Inc()
	jobDuration.WithLabelValues(queue, jobType).Observe(duration.Seconds())
}

func RecordCampaignBatch(result string) {
	campaignBatchesTotal.WithLabelValues(result).Inc()
}

func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

func RecordAutomationStep(nodeType string) {
	automationStepsTotal.WithLabelValues(nodeType).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
