package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// Editorial applies editor decisions to drafts through the status machine.
type Editorial struct {
	drafts ports.DraftRepository
	queue  *Queue
	logger *slog.Logger
	now    func() time.Time
}

func NewEditorial(drafts ports.DraftRepository, queue *Queue, logger *slog.Logger) *Editorial {
	return &Editorial{drafts: drafts, queue: queue, logger: loggerOrDiscard(logger), now: utcNow}
}

// Approve accepts a draft. With a non-nil scheduleAt it is scheduled at once.
func (e *Editorial) Approve(ctx context.Context, draftID int64, editor string, scheduleAt *time.Time) (domain.Draft, error) {
	return e.apply(ctx, draftID, editor, func(d *domain.Draft, now time.Time) error {
		if err := d.Transition(domain.DraftApproved, now); err != nil {
			return err
		}
		if scheduleAt == nil {
			return nil
		}
		at := scheduleAt.UTC()
		d.ScheduledAt = &at
		return d.Transition(domain.DraftScheduled, now)
	})
}

// Reject takes a draft out of the workflow.
func (e *Editorial) Reject(ctx context.Context, draftID int64, editor string) (domain.Draft, error) {
	return e.apply(ctx, draftID, editor, func(d *domain.Draft, now time.Time) error {
		return d.Transition(domain.DraftRejected, now)
	})
}

// Schedule defers publishing of an approved draft until at.
func (e *Editorial) Schedule(ctx context.Context, draftID int64, editor string, at time.Time) (domain.Draft, error) {
	return e.apply(ctx, draftID, editor, func(d *domain.Draft, now time.Time) error {
		if err := d.Transition(domain.DraftScheduled, now); err != nil {
			return err
		}
		at = at.UTC()
		d.ScheduledAt = &at
		return nil
	})
}

// Unpublish marks a published draft as rolled back.
func (e *Editorial) Unpublish(ctx context.Context, draftID int64, editor string) (domain.Draft, error) {
	return e.apply(ctx, draftID, editor, func(d *domain.Draft, now time.Time) error {
		return d.Transition(domain.DraftUnpublished, now)
	})
}

// RequestPublish queues a publish_draft job so the next queue run publishes
// the draft.
func (e *Editorial) RequestPublish(ctx context.Context, draftID int64, channels []string) (int64, error) {
	draft, err := e.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return 0, fmt.Errorf("load draft %d: %w", draftID, err)
	}
	if !draft.Status.IsPublishable() {
		return 0, fmt.Errorf("draft %d in status %s: %w", draftID, draft.Status, domain.ErrInvalidTransition)
	}
	return e.queue.Enqueue(ctx, domain.JobPublishDraft, domain.PublishDraftPayload{DraftID: draftID, Channels: channels}, PriorityPublish)
}

func (e *Editorial) apply(ctx context.Context, draftID int64, editor string, change func(*domain.Draft, time.Time) error) (domain.Draft, error) {
	draft, err := e.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("load draft %d: %w", draftID, err)
	}

	from := draft.Status
	if err := change(&draft, e.now()); err != nil {
		return domain.Draft{}, err
	}
	if err := draft.Validate(); err != nil {
		return domain.Draft{}, err
	}
	if editor != "" {
		draft.EditedBy = editor
	}
	if err := e.drafts.UpdateDraft(ctx, draft); err != nil {
		return domain.Draft{}, fmt.Errorf("update draft %d: %w", draftID, err)
	}

	e.logger.Info("draft status changed", "draft", draftID, "from", from, "to", draft.Status, "editor", editor)
	return draft, nil
}
