package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/metrics"
	"NewsPipeline/internal/ports"
)

// Job priorities; lower runs first.
const (
	PriorityPublish     = 1
	PriorityProcessItem = 5
)

// RetryBackoff is multiplied by the attempt count to delay a failed job.
const RetryBackoff = time.Minute

// Queue is the retry-bounded work list on top of the store's atomic claim.
type Queue struct {
	jobs        ports.QueueRepository
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

func NewQueue(jobs ports.QueueRepository, maxAttempts int, logger *slog.Logger) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	return &Queue{jobs: jobs, maxAttempts: maxAttempts, logger: loggerOrDiscard(logger), now: utcNow}
}

// Enqueue inserts a pending job with the JSON-encoded payload.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, priority int) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode %s payload: %w", jobType, err)
	}

	now := q.now()
	id, err := q.jobs.EnqueueJob(ctx, domain.QueueJob{
		JobType:     jobType,
		Payload:     raw,
		Priority:    priority,
		Status:      domain.JobPending,
		MaxAttempts: q.maxAttempts,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return id, nil
}

// DequeueNext claims the next eligible job of jobType (any type when empty).
// It returns nil when nothing is eligible.
func (q *Queue) DequeueNext(ctx context.Context, jobType string) (*domain.QueueJob, error) {
	job, err := q.jobs.ClaimNext(ctx, jobType, q.now())
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete marks a claimed job as done.
func (q *Queue) Complete(ctx context.Context, job *domain.QueueJob) error {
	now := q.now()
	job.Status = domain.JobCompleted
	job.LastError = ""
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := q.jobs.UpdateJob(ctx, *job); err != nil {
		return fmt.Errorf("complete job %d: %w", job.ID, err)
	}
	metrics.RecordJob(job.JobType, "completed")
	return nil
}

// Fail records cause against the job. The job returns to pending with a
// linear backoff while attempts remain, otherwise it becomes failed for good.
// retry reports which of the two happened.
func (q *Queue) Fail(ctx context.Context, job *domain.QueueJob, cause error) (retry bool, err error) {
	now := q.now()
	job.Attempts++
	job.UpdatedAt = now
	if cause != nil {
		job.LastError = cause.Error()
	}

	if job.Attempts < job.MaxAttempts {
		job.Status = domain.JobPending
		job.ScheduledAt = now.Add(time.Duration(job.Attempts) * RetryBackoff)
		retry = true
	} else {
		job.Status = domain.JobFailed
		job.CompletedAt = &now
	}

	if err := q.jobs.UpdateJob(ctx, *job); err != nil {
		return false, fmt.Errorf("fail job %d: %w", job.ID, err)
	}

	if retry {
		metrics.RecordJob(job.JobType, "retried")
		q.logger.Warn("job failed, will retry", "job", job.ID, "type", job.JobType, "attempts", job.Attempts, "error", job.LastError)
	} else {
		metrics.RecordJob(job.JobType, "failed")
		q.logger.Error("job failed permanently", "job", job.ID, "type", job.JobType, "attempts", job.Attempts, "error", job.LastError)
	}
	return retry, nil
}

// RecoverStale returns processing jobs untouched for olderThan to pending.
func (q *Queue) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := q.jobs.RecoverStaleJobs(ctx, q.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	if n > 0 {
		q.logger.Warn("recovered stale jobs", "count", n)
	}
	return n, nil
}

// Purge deletes completed and failed jobs last touched before the cutoff.
func (q *Queue) Purge(ctx context.Context, before time.Time) (int, error) {
	n, err := q.jobs.PurgeJobs(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return n, nil
}

func decodePayload[T any](job *domain.QueueJob) (T, error) {
	var payload T
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload of job %d: %w", job.JobType, job.ID, err)
	}
	return payload, nil
}
