package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
)

func TestQueueRetryThenExhaustion(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue(store, 3, nil)
	q.now = func() time.Time { return now }
	ctx := context.Background()

	id, err := q.Enqueue(ctx, domain.JobProcessItem, domain.ProcessItemPayload{RawItemID: 42}, PriorityProcessItem)
	require.NoError(t, err)

	for attempt := 1; attempt <= 3; attempt++ {
		job, err := q.DequeueNext(ctx, domain.JobProcessItem)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", attempt)
		assert.Equal(t, id, job.ID)
		assert.Equal(t, domain.JobProcessing, job.Status)

		payload, err := decodePayload[domain.ProcessItemPayload](job)
		require.NoError(t, err)
		assert.Equal(t, int64(42), payload.RawItemID)

		retry, err := q.Fail(ctx, job, errors.New("llm timeout"))
		require.NoError(t, err)
		assert.Equal(t, attempt < 3, retry)

		stored, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, attempt, stored.Attempts)
		assert.Equal(t, "llm timeout", stored.LastError)
		if attempt < 3 {
			assert.Equal(t, domain.JobPending, stored.Status)
			assert.Equal(t, now.Add(time.Duration(attempt)*RetryBackoff), stored.ScheduledAt)

			early, err := q.DequeueNext(ctx, "")
			require.NoError(t, err)
			assert.Nil(t, early, "backoff keeps the job back")
		} else {
			assert.Equal(t, domain.JobFailed, stored.Status)
			assert.NotNil(t, stored.CompletedAt)
		}
		now = now.Add(time.Duration(attempt) * RetryBackoff)
	}

	now = now.Add(24 * time.Hour)
	job, err := q.DequeueNext(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, job, "failed jobs are never handed out again")
}

func TestQueuePriorityAndComplete(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	q := NewQueue(store, 0, nil)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, domain.JobProcessItem, domain.ProcessItemPayload{RawItemID: 1}, PriorityProcessItem)
	require.NoError(t, err)
	publishID, err := q.Enqueue(ctx, domain.JobPublishDraft, domain.PublishDraftPayload{DraftID: 7, Channels: []string{"telegram"}}, PriorityPublish)
	require.NoError(t, err)

	job, err := q.DequeueNext(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, publishID, job.ID)
	assert.Equal(t, domain.DefaultMaxAttempts, job.MaxAttempts)

	require.NoError(t, q.Complete(ctx, job))
	stored, err := store.GetJob(ctx, publishID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, stored.Status)

	none, err := q.DequeueNext(ctx, domain.JobPublishDraft)
	require.NoError(t, err)
	assert.Nil(t, none)

	next, err := q.DequeueNext(ctx, domain.JobProcessItem)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, domain.JobProcessItem, next.JobType)
}

func TestQueueRecoverStale(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	q := NewQueue(store, 3, nil)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, domain.JobProcessItem, domain.ProcessItemPayload{RawItemID: 1}, PriorityProcessItem)
	require.NoError(t, err)
	job, err := q.DequeueNext(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, job)

	n, err := q.RecoverStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh claims stay with their worker")

	q.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	n, err = q.RecoverStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts, "an abandoned run costs an attempt")

	// A job that keeps killing its worker ends up failed instead of looping.
	clock := time.Now().UTC().Add(2 * time.Hour)
	q.now = func() time.Time { return clock }
	for i := 0; i < 2; i++ {
		job, err = q.DequeueNext(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, job)
		clock = clock.Add(2 * time.Hour)
		n, err = q.RecoverStale(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	stored, err = store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)

	job, err = q.DequeueNext(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, job)
}
