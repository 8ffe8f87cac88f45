package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/metrics"
	"NewsPipeline/internal/ports"
)

const publishRetryBackoff = 5 * time.Minute

// PublishOutcome aggregates one publish call. Success follows the primary channel.
type PublishOutcome struct {
	DraftID int64
	Success bool
	Results []domain.PublishRecord
}

// Publisher sends drafts to the primary channel and then to secondaries.
type Publisher struct {
	drafts      ports.DraftRepository
	items       ports.RawItemRepository
	primary     ports.PrimaryChannel
	secondaries map[string]ports.PublishChannel
	defaults    []string
	autoPublish bool
	autoDelay   time.Duration
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// NewPublisher builds a publisher. primary may be nil, in which case every
// publish fails with domain.ErrNotConfigured.
func NewPublisher(drafts ports.DraftRepository, items ports.RawItemRepository, primary ports.PrimaryChannel,
	secondaries []ports.PublishChannel, defaults []string, cfg config.PipelineConfig, logger *slog.Logger,
) *Publisher {
	byName := make(map[string]ports.PublishChannel, len(secondaries))
	for _, ch := range secondaries {
		byName[ch.Name()] = ch
	}
	return &Publisher{
		drafts:      drafts,
		items:       items,
		primary:     primary,
		secondaries: byName,
		defaults:    defaults,
		autoPublish: cfg.AutoPublishEnabled,
		autoDelay:   cfg.AutoPublishDelay(),
		maxAttempts: cfg.MaxAttempts,
		logger:      loggerOrDiscard(logger),
		now:         utcNow,
	}
}

// Configured reports whether a primary channel is available.
func (p *Publisher) Configured() bool {
	return p.primary != nil
}

// Publish claims the draft, then sends it to the primary channel. A draft
// already claimed by another run yields domain.ErrConflict. When the primary fails the
// draft becomes publish_failed and no secondary is tried. Otherwise the draft
// is published and every secondary channel is attempted independently; their
// failures are recorded but never undo the primary publish.
func (p *Publisher) Publish(ctx context.Context, draftID int64, channels []string) (PublishOutcome, error) {
	outcome := PublishOutcome{DraftID: draftID}

	draft, err := p.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return outcome, fmt.Errorf("load draft %d: %w", draftID, err)
	}
	if draft.Status == domain.DraftPublishing {
		return outcome, fmt.Errorf("draft %d is being published: %w", draftID, domain.ErrConflict)
	}
	if !draft.Status.IsPublishable() {
		return outcome, fmt.Errorf("draft %d in status %s: %w", draftID, draft.Status, domain.ErrInvalidTransition)
	}
	if p.primary == nil {
		return outcome, fmt.Errorf("primary channel: %w", domain.ErrNotConfigured)
	}

	draft, claimed, err := p.drafts.ClaimDraftForPublish(ctx, draftID, domain.PublishableStatuses, p.now())
	if err != nil {
		return outcome, fmt.Errorf("claim draft %d: %w", draftID, err)
	}
	if !claimed {
		return outcome, fmt.Errorf("draft %d is %s: %w", draftID, draft.Status, domain.ErrConflict)
	}

	req, err := p.request(ctx, draft)
	if err != nil {
		p.releaseClaim(ctx, draft, err)
		return outcome, err
	}

	res, pubErr := p.primary.Publish(ctx, req)
	now := p.now()
	primaryRecord := domain.PublishRecord{
		DraftID:     draftID,
		Channel:     p.primary.Name(),
		Success:     pubErr == nil,
		URL:         res.URL,
		PublishedAt: now,
	}
	metrics.RecordPublish(p.primary.Name(), pubErr == nil)

	if pubErr != nil {
		primaryRecord.Error = pubErr.Error()
		if err := draft.Transition(domain.DraftPublishFailed, now); err != nil {
			return outcome, err
		}
		if err := p.drafts.UpdateDraft(ctx, draft); err != nil {
			return outcome, fmt.Errorf("update draft %d: %w", draftID, err)
		}
		if err := p.drafts.InsertPublishRecord(ctx, primaryRecord); err != nil {
			return outcome, fmt.Errorf("record publish of draft %d: %w", draftID, err)
		}
		outcome.Results = []domain.PublishRecord{primaryRecord}
		p.logger.Warn("primary publish failed", "draft", draftID, "channel", primaryRecord.Channel, "error", pubErr)
		return outcome, fmt.Errorf("publish draft %d to %s: %w", draftID, primaryRecord.Channel, pubErr)
	}

	if err := draft.Transition(domain.DraftPublished, now); err != nil {
		return outcome, err
	}
	draft.PublishedAt = &now
	draft.PrimaryURL = res.URL
	if err := p.drafts.InsertPublishRecord(ctx, primaryRecord); err != nil {
		return outcome, fmt.Errorf("record publish of draft %d: %w", draftID, err)
	}
	if err := p.drafts.UpdateDraft(ctx, draft); err != nil {
		return outcome, fmt.Errorf("update draft %d: %w", draftID, err)
	}
	outcome.Success = true
	outcome.Results = append(outcome.Results, primaryRecord)
	p.logger.Info("draft published", "draft", draftID, "url", res.URL)

	if req.ImageURL != "" {
		if err := p.primary.SetFeaturedMedia(ctx, res.RemoteID, req.ImageURL); err != nil {
			p.logger.Warn("featured media failed", "draft", draftID, "image", req.ImageURL, "error", err)
		}
	}

	req.Draft = draft
	outcome.Results = append(outcome.Results, p.publishSecondaries(ctx, req, p.channelNames(channels))...)
	return outcome, nil
}

// releaseClaim moves a claimed draft to publish_failed when nothing was sent.
func (p *Publisher) releaseClaim(ctx context.Context, draft domain.Draft, cause error) {
	if err := draft.Transition(domain.DraftPublishFailed, p.now()); err != nil {
		p.logger.Error("cannot release draft", "draft", draft.ID, "error", err)
		return
	}
	if err := p.drafts.UpdateDraft(ctx, draft); err != nil {
		p.logger.Error("cannot release draft", "draft", draft.ID, "cause", cause, "error", err)
	}
}

func (p *Publisher) publishSecondaries(ctx context.Context, req ports.PublishRequest, names []string) []domain.PublishRecord {
	records := make([]domain.PublishRecord, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			records[i] = p.publishOne(ctx, req, name)
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		if err := p.drafts.InsertPublishRecord(ctx, rec); err != nil {
			p.logger.Error("cannot record channel result", "draft", rec.DraftID, "channel", rec.Channel, "error", err)
		}
	}
	return records
}

func (p *Publisher) publishOne(ctx context.Context, req ports.PublishRequest, name string) domain.PublishRecord {
	rec := domain.PublishRecord{DraftID: req.Draft.ID, Channel: name}

	ch, ok := p.secondaries[name]
	if !ok {
		rec.Error = fmt.Sprintf("unknown channel %q", name)
		rec.PublishedAt = p.now()
		return rec
	}

	res, err := ch.Publish(ctx, req)
	rec.PublishedAt = p.now()
	metrics.RecordPublish(name, err == nil)
	if err != nil {
		rec.Error = err.Error()
		p.logger.Warn("secondary publish failed", "draft", req.Draft.ID, "channel", name, "error", err)
		return rec
	}
	rec.Success = true
	rec.URL = res.URL
	return rec
}

// PublishChannel retries one secondary channel for an already published draft.
func (p *Publisher) PublishChannel(ctx context.Context, draftID int64, channel string) (domain.PublishRecord, error) {
	draft, err := p.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return domain.PublishRecord{}, fmt.Errorf("load draft %d: %w", draftID, err)
	}
	if draft.Status != domain.DraftPublished {
		return domain.PublishRecord{}, fmt.Errorf("draft %d is %s, not published: %w", draftID, draft.Status, domain.ErrInvalidTransition)
	}
	if _, ok := p.secondaries[channel]; !ok {
		return domain.PublishRecord{}, fmt.Errorf("channel %q: %w", channel, domain.ErrNotConfigured)
	}

	req, err := p.request(ctx, draft)
	if err != nil {
		return domain.PublishRecord{}, err
	}
	rec := p.publishOne(ctx, req, channel)
	if err := p.drafts.InsertPublishRecord(ctx, rec); err != nil {
		return rec, fmt.Errorf("record publish of draft %d: %w", draftID, err)
	}
	if !rec.Success {
		return rec, fmt.Errorf("publish draft %d to %s: %s", draftID, channel, rec.Error)
	}
	return rec, nil
}

// ProcessScheduled publishes scheduled drafts that are due, then retries
// publish_failed drafts whose backoff has elapsed.
func (p *Publisher) ProcessScheduled(ctx context.Context, b *Batch, limit int) error {
	if p.primary == nil {
		p.logger.Warn("primary channel not configured, skipping scheduled drafts")
		return nil
	}
	due, err := p.drafts.ListDueScheduled(ctx, p.now(), limit)
	if err != nil {
		return fmt.Errorf("list scheduled drafts: %w", err)
	}
	p.publishAll(ctx, b, due)
	return p.RetryFailed(ctx, b, limit)
}

// RetryFailed republishes publish_failed drafts. A draft is retried after
// attempts*publishRetryBackoff since its last failed primary attempt and is
// left for an editor once maxAttempts primary attempts have failed.
func (p *Publisher) RetryFailed(ctx context.Context, b *Batch, limit int) error {
	if p.maxAttempts <= 0 || p.primary == nil {
		return nil
	}
	failed, err := p.drafts.ListDrafts(ctx, domain.DraftPublishFailed, time.Time{}, limit)
	if err != nil {
		return fmt.Errorf("list publish_failed drafts: %w", err)
	}

	now := p.now()
	retry := make([]domain.Draft, 0, len(failed))
	for _, d := range failed {
		records, err := p.drafts.ListPublishRecords(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("list publish records of draft %d: %w", d.ID, err)
		}
		attempts, last := p.primaryFailures(records)
		if attempts >= p.maxAttempts {
			b.Count("retry_exhausted", 1)
			continue
		}
		if attempts > 0 && now.Before(last.Add(time.Duration(attempts)*publishRetryBackoff)) {
			continue
		}
		retry = append(retry, d)
	}
	p.publishAll(ctx, b, retry)
	return nil
}

// primaryFailures counts failed primary attempts since the last success.
func (p *Publisher) primaryFailures(records []domain.PublishRecord) (int, time.Time) {
	var (
		n    int
		last time.Time
	)
	for _, r := range records {
		if r.Channel != p.primary.Name() {
			continue
		}
		if r.Success {
			n, last = 0, time.Time{}
			continue
		}
		n++
		if r.PublishedAt.After(last) {
			last = r.PublishedAt
		}
	}
	return n, last
}

// AutoPublish publishes auto_ready drafts older than the configured delay
// when auto-publishing is switched on.
func (p *Publisher) AutoPublish(ctx context.Context, b *Batch, limit int) error {
	if !p.autoPublish {
		return nil
	}
	if p.primary == nil {
		p.logger.Warn("primary channel not configured, skipping auto-publish")
		return nil
	}
	ready, err := p.drafts.ListDrafts(ctx, domain.DraftAutoReady, p.now().Add(-p.autoDelay), limit)
	if err != nil {
		return fmt.Errorf("list auto_ready drafts: %w", err)
	}
	p.publishAll(ctx, b, ready)
	return nil
}

func (p *Publisher) publishAll(ctx context.Context, b *Batch, drafts []domain.Draft) {
	for _, d := range drafts {
		if !b.Next() {
			return
		}
		if _, err := p.Publish(ctx, d.ID, nil); err != nil {
			// Listed drafts that changed since the query belong to another run.
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition) {
				b.Count("skipped", 1)
				continue
			}
			b.Fail(err)
			continue
		}
		b.Count("published", 1)
	}
}

func (p *Publisher) request(ctx context.Context, draft domain.Draft) (ports.PublishRequest, error) {
	req := ports.PublishRequest{Draft: draft}
	if draft.RawItemID == nil {
		return req, nil
	}
	item, err := p.items.GetRawItem(ctx, *draft.RawItemID)
	if errors.Is(err, domain.ErrNotFound) {
		return req, nil
	}
	if err != nil {
		return req, fmt.Errorf("load raw item of draft %d: %w", draft.ID, err)
	}
	req.CanonicalURL = item.CanonicalURL
	if req.CanonicalURL == "" {
		req.CanonicalURL = item.URL
	}
	req.ImageURL = item.ImageURL
	return req, nil
}

func (p *Publisher) channelNames(requested []string) []string {
	if requested == nil {
		requested = p.defaults
	}
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		if name == "" || (p.primary != nil && name == p.primary.Name()) {
			continue
		}
		out = appendUnique(out, name)
	}
	return out
}
