package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

const jobColumns = "id, job_type, payload, priority, status, attempts, max_attempts, last_error, " +
	"scheduled_at, created_at, updated_at, completed_at"

func scanJob(row rowScanner) (domain.QueueJob, error) {
	var (
		job       domain.QueueJob
		payload   string
		status    string
		completed sql.NullTime
	)
	err := row.Scan(&job.ID, &job.JobType, &payload, &job.Priority, &status, &job.Attempts, &job.MaxAttempts,
		&job.LastError, &job.ScheduledAt, &job.CreatedAt, &job.UpdatedAt, &completed)
	if err != nil {
		return domain.QueueJob{}, err
	}
	job.Payload = []byte(payload)
	job.Status = domain.JobStatus(status)
	job.ScheduledAt = job.ScheduledAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	job.CompletedAt = timePtr(completed)
	return job, nil
}

func withJobDefaults(job domain.QueueJob, now time.Time) domain.QueueJob {
	if job.Status == "" {
		job.Status = domain.JobPending
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = domain.DefaultMaxAttempts
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}
	if len(job.Payload) == 0 {
		job.Payload = []byte("{}")
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return job
}

func (s *SQLStore) EnqueueJob(ctx context.Context, job domain.QueueJob) (int64, error) {
	job = withJobDefaults(job, time.Now().UTC())
	id, err := s.insertReturningID(ctx, s.sb.Insert("queue_jobs").
		Columns("job_type", "payload", "priority", "status", "attempts", "max_attempts", "last_error",
			"scheduled_at", "created_at", "updated_at").
		Values(job.JobType, string(job.Payload), job.Priority, string(job.Status), job.Attempts, job.MaxAttempts,
			job.LastError, job.ScheduledAt.UTC(), job.CreatedAt, job.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", job.JobType, err)
	}
	return id, nil
}

// ClaimNext marks the next eligible job as processing in a single statement,
// so two consumers can never receive the same job. A nil job means the queue
// has nothing eligible.
func (s *SQLStore) ClaimNext(ctx context.Context, jobType string, now time.Time) (*domain.QueueJob, error) {
	now = now.UTC()

	// The subquery keeps '?' placeholders; the outer builder rewrites them all.
	sub := sq.Select("id").From("queue_jobs").
		Where(sq.Eq{"status": string(domain.JobPending)}).
		Where("attempts < max_attempts").
		Where(sq.LtOrEq{"scheduled_at": now}).
		OrderBy("priority", "scheduled_at", "id").
		Limit(1)
	if jobType != "" {
		sub = sub.Where(sq.Eq{"job_type": jobType})
	}
	if s.dialect == DialectPostgres {
		sub = sub.Suffix("FOR UPDATE SKIP LOCKED")
	}

	subSQL, subArgs, err := sub.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim subquery: %w", err)
	}

	row, err := s.queryRow(ctx, s.sb.Update("queue_jobs").
		Set("status", string(domain.JobProcessing)).
		Set("updated_at", now).
		Where(sq.Expr("id = ("+subSQL+")", subArgs...)).
		Suffix("RETURNING "+jobColumns))
	if err != nil {
		return nil, err
	}

	job, err := scanJob(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

func (s *SQLStore) UpdateJob(ctx context.Context, job domain.QueueJob) error {
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now().UTC()
	}
	res, err := s.exec(ctx, s.sb.Update("queue_jobs").
		Set("status", string(job.Status)).
		Set("priority", job.Priority).
		Set("attempts", job.Attempts).
		Set("max_attempts", job.MaxAttempts).
		Set("last_error", job.LastError).
		Set("scheduled_at", job.ScheduledAt.UTC()).
		Set("updated_at", job.UpdatedAt.UTC()).
		Set("completed_at", nullTime(job.CompletedAt)).
		Where(sq.Eq{"id": job.ID}))
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("job %d: %w", job.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) GetJob(ctx context.Context, id int64) (domain.QueueJob, error) {
	row, err := s.queryRow(ctx, s.sb.Select(jobColumns).From("queue_jobs").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.QueueJob{}, err
	}
	job, err := scanJob(row)
	if isNoRows(err) {
		return domain.QueueJob{}, fmt.Errorf("job %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.QueueJob{}, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}

// RecoverStaleJobs counts an abandoned processing job as one failed attempt:
// it goes back to pending, or to failed once its attempts are used up.
func (s *SQLStore) RecoverStaleJobs(ctx context.Context, updatedBefore time.Time) (int, error) {
	now := time.Now().UTC()
	res, err := s.exec(ctx, s.sb.Update("queue_jobs").
		Set("attempts", sq.Expr("attempts + 1")).
		Set("status", sq.Expr("CASE WHEN attempts + 1 >= max_attempts THEN ? ELSE ? END",
			string(domain.JobFailed), string(domain.JobPending))).
		Set("completed_at", sq.Expr("CASE WHEN attempts + 1 >= max_attempts THEN ? ELSE completed_at END", now)).
		Set("last_error", domain.ErrJobAbandoned.Error()).
		Set("updated_at", now).
		Where(sq.Eq{"status": string(domain.JobProcessing)}).
		Where(sq.Lt{"updated_at": updatedBefore.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return affected(res), nil
}

// PurgeJobs deletes finished jobs last touched before the cutoff.
func (s *SQLStore) PurgeJobs(ctx context.Context, before time.Time) (int, error) {
	res, err := s.exec(ctx, s.sb.Delete("queue_jobs").
		Where(sq.Eq{"status": []string{string(domain.JobCompleted), string(domain.JobFailed)}}).
		Where(sq.Lt{"updated_at": before.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return affected(res), nil
}

func (s *SQLStore) CountJobs(ctx context.Context, status domain.JobStatus) (int, error) {
	row, err := s.queryRow(ctx, s.sb.Select("COUNT(*)").From("queue_jobs").Where(sq.Eq{"status": string(status)}))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}
