package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates queue job states.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Known job types.
const (
	JobProcessItem  = "process_item"
	JobPublishDraft = "publish_draft"
)

// DefaultMaxAttempts bounds retries for jobs enqueued without an explicit limit.
const DefaultMaxAttempts = 3

// QueueJob is a durable unit of asynchronous work.
type QueueJob struct {
	ID          int64
	JobType     string
	Payload     json.RawMessage
	Priority    int
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	LastError   string
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Eligible reports whether the job may be claimed at the given instant.
func (j QueueJob) Eligible(now time.Time) bool {
	return j.Status == JobPending && j.Attempts < j.MaxAttempts && !j.ScheduledAt.After(now)
}

// ProcessItemPayload is the payload of a process_item job.
type ProcessItemPayload struct {
	RawItemID int64 `json:"raw_item_id"`
}

// PublishDraftPayload is the payload of a publish_draft job.
type PublishDraftPayload struct {
	DraftID  int64    `json:"draft_id"`
	Channels []string `json:"channels,omitempty"`
}
