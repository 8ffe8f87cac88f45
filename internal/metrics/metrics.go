// Package metrics provides Prometheus metrics for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newspipeline"

var (
	// HookRunsTotal counts scheduler hook invocations by outcome.
	HookRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_runs_total",
			Help:      "Total number of scheduler hook runs",
		},
		[]string{"hook", "outcome"},
	)

	// HookDuration measures how long hook runs take.
	HookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hook_duration_seconds",
			Help:      "Duration of scheduler hook runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"hook"},
	)

	// ItemsIngestedTotal counts fetched feed entries by result.
	ItemsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_ingested_total",
			Help:      "Total number of feed entries seen, by result",
		},
		[]string{"result"},
	)

	// FetchErrorsTotal counts failed source fetches.
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed source fetches",
		},
		[]string{"source"},
	)

	// DraftsCreatedTotal counts generated drafts by initial status.
	DraftsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_created_total",
			Help:      "Total number of generated drafts",
		},
		[]string{"lang", "status"},
	)

	// FactCheckScore observes fact-check scores.
	FactCheckScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fact_check_score",
			Help:      "Distribution of fact-check scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// QueueJobsTotal counts queue job outcomes.
	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_jobs_total",
			Help:      "Total number of queue job outcomes",
		},
		[]string{"job_type", "outcome"},
	)

	// PublishTotal counts channel publish attempts.
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of channel publish attempts",
		},
		[]string{"channel", "status"},
	)

	// AIRequestsTotal counts assistant tasks by result.
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of assistant tasks",
		},
		[]string{"task", "status"},
	)
)

// RecordHookRun records one scheduler hook invocation.
func RecordHookRun(hook, outcome string, duration time.Duration) {
	HookRunsTotal.WithLabelValues(hook, outcome).Inc()
	HookDuration.WithLabelValues(hook).Observe(duration.Seconds())
}

// RecordIngest records count feed entries with the given result (new or duplicate).
func RecordIngest(result string, count int) {
	if count > 0 {
		ItemsIngestedTotal.WithLabelValues(result).Add(float64(count))
	}
}

// RecordFetchError records a failed source fetch.
func RecordFetchError(source string) {
	FetchErrorsTotal.WithLabelValues(source).Inc()
}

// RecordDraft records a created draft.
func RecordDraft(lang, status string) {
	DraftsCreatedTotal.WithLabelValues(lang, status).Inc()
}

// RecordFactCheck records a fact-check score.
func RecordFactCheck(score float64) {
	FactCheckScore.Observe(score)
}

// RecordJob records a queue job outcome (completed, retried, failed).
func RecordJob(jobType, outcome string) {
	QueueJobsTotal.WithLabelValues(jobType, outcome).Inc()
}

// RecordPublish records a channel publish attempt.
func RecordPublish(channel string, success bool) {
	PublishTotal.WithLabelValues(channel, status(success)).Inc()
}

// RecordAI records an assistant task.
func RecordAI(task string, success bool) {
	AIRequestsTotal.WithLabelValues(task, status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
