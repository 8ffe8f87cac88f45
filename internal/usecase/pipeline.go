package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/metrics"
	"NewsPipeline/internal/ports"
)

// staleJobAfter is how long a processing job may go untouched before cleanup
// hands it back to the queue.
const staleJobAfter = 30 * time.Minute

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Store     ports.Store
	Feeds     ports.FeedSource
	Assistant ports.Assistant
	Primary   ports.PrimaryChannel
	Channels  []ports.PublishChannel
	// DefaultChannels are the secondaries used when a publish names none.
	DefaultChannels []string
	Config          config.PipelineConfig
	Logger          *slog.Logger
}

// Pipeline implements the news workflow from fetch to publish.
type Pipeline struct {
	store  ports.Store
	feeds  ports.FeedSource
	ai     ports.Assistant
	cfg    config.PipelineConfig
	logger *slog.Logger
	now    func() time.Time

	registry  *Registry
	dedup     *Deduplicator
	checker   *FactChecker
	queue     *Queue
	generator *Generator
	publisher *Publisher
	editorial *Editorial
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := loggerOrDiscard(deps.Logger)
	store := deps.Store

	dedup := NewDeduplicator(store)
	checker := NewFactChecker(store, store, store, logger.With("component", "factcheck"))
	queue := NewQueue(store, deps.Config.MaxAttempts, logger.With("component", "queue"))

	return &Pipeline{
		store:     store,
		feeds:     deps.Feeds,
		ai:        deps.Assistant,
		cfg:       deps.Config,
		logger:    logger,
		now:       utcNow,
		registry:  NewRegistry(store, logger.With("component", "registry")),
		dedup:     dedup,
		checker:   checker,
		queue:     queue,
		generator: NewGenerator(store, dedup, checker, deps.Assistant, deps.Config, logger.With("component", "generator")),
		publisher: NewPublisher(store, store, deps.Primary, deps.Channels, deps.DefaultChannels, deps.Config,
			logger.With("component", "publisher")),
		editorial: NewEditorial(store, queue, logger.With("component", "editorial")),
	}
}

func (p *Pipeline) Registry() *Registry { return p.registry }
func (p *Pipeline) Queue() *Queue { return p.queue }
func (p *Pipeline) Generator() *Generator { return p.generator }
func (p *Pipeline) Publisher() *Publisher { return p.publisher }
func (p *Pipeline) Editorial() *Editorial { return p.editorial }
func (p *Pipeline) FactChecker() *FactChecker { return p.checker }

// FetchResult counts the entries of one fetch.
type FetchResult struct {
	NewItems   int
	TotalItems int
}

// FetchSource reads the source, stores unseen entries as raw items and
// enqueues one process_item job for each of them.
func (p *Pipeline) FetchSource(ctx context.Context, source domain.Source) (FetchResult, error) {
	if p.feeds == nil {
		return FetchResult{}, fmt.Errorf("feed source: %w", domain.ErrNotConfigured)
	}

	candidates, err := p.feeds.Fetch(ctx, source)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", source.Name, err)
	}

	res := FetchResult{TotalItems: len(candidates)}
	for _, c := range candidates {
		id, duplicate, err := p.dedup.Ingest(ctx, source, c)
		if err != nil {
			p.logger.Warn("skipping feed entry", "source", source.Name, "url", c.URL, "error", err)
			continue
		}
		if duplicate {
			continue
		}
		if _, err := p.queue.Enqueue(ctx, domain.JobProcessItem, domain.ProcessItemPayload{RawItemID: id}, PriorityProcessItem); err != nil {
			// Without a job the item would stay new forever; drop it so the next fetch ingests it again.
			if delErr := p.store.DeleteRawItem(ctx, id); delErr != nil {
				p.logger.Error("cannot drop unqueued raw item", "source", source.Name, "item", id, "error", delErr)
			}
			return res, err
		}
		res.NewItems++
	}

	metrics.RecordIngest("new", res.NewItems)
	metrics.RecordIngest("duplicate", res.TotalItems-res.NewItems)
	p.logger.Info("source fetched", "source", source.Name, "new", res.NewItems, "total", res.TotalItems)
	return res, nil
}

// Hooks returns the scheduler hook bodies.
func (p *Pipeline) Hooks() map[string]HookFunc {
	return map[string]HookFunc{
		domain.HookFetchSources:     p.FetchSources,
		domain.HookProcessQueue:     p.ProcessQueue,
		domain.HookAutoPublish:      p.AutoPublish,
		domain.HookProcessScheduled: p.ProcessScheduled,
		domain.HookCleanup:          p.Cleanup,
	}
}

// Preflight returns the configuration checks of on-demand triggers.
func (p *Pipeline) Preflight() map[string]func() error {
	requireAI := func() error {
		if p.ai == nil {
			return fmt.Errorf("text generator is not configured, set llm.provider: %w", domain.ErrNotConfigured)
		}
		return nil
	}
	requirePrimary := func() error {
		if !p.publisher.Configured() {
			return fmt.Errorf("cms channel is not configured, set channels.cms.baseUrl: %w", domain.ErrNotConfigured)
		}
		return nil
	}
	requireFeeds := func() error {
		if p.feeds == nil {
			return fmt.Errorf("feed source: %w", domain.ErrNotConfigured)
		}
		return nil
	}
	return map[string]func() error{
		domain.HookFetchSources:     requireFeeds,
		domain.HookProcessQueue:     requireAI,
		domain.HookAutoPublish:      requirePrimary,
		domain.HookProcessScheduled: requirePrimary,
	}
}

// FetchSources fetches every due source. A failing source is recorded on the
// registry and never stops the others.
func (p *Pipeline) FetchSources(ctx context.Context, b *Batch) error {
	due, err := p.registry.GetDue(ctx, p.cfg.FetchBatchSize)
	if err != nil {
		return err
	}

	for _, src := range due {
		if !b.Next() {
			break
		}
		res, fetchErr := p.FetchSource(ctx, src)
		if err := p.registry.RecordFetchOutcome(ctx, src.ID, fetchErr); err != nil {
			b.Fail(err)
		}
		if fetchErr != nil {
			metrics.RecordFetchError(src.Name)
			p.logger.Warn("source fetch failed", "source", src.Name, "error", fetchErr)
			b.Fail(fetchErr)
			continue
		}
		b.Count("sources_fetched", 1)
		b.Count("items_new", res.NewItems)
		b.Count("items_total", res.TotalItems)
	}
	return nil
}

// ProcessQueue works through at most batch_size jobs.
func (p *Pipeline) ProcessQueue(ctx context.Context, b *Batch) error {
	for i := 0; i < p.cfg.BatchSize; i++ {
		if !b.Next() {
			break
		}
		job, err := p.queue.DequeueNext(ctx, "")
		if err != nil {
			return err
		}
		if job == nil {
			break
		}

		if runErr := p.runJob(ctx, job); runErr != nil {
			retry, err := p.queue.Fail(ctx, job, runErr)
			if err != nil {
				return err
			}
			if retry {
				b.Count("jobs_retried", 1)
			} else {
				b.Count("jobs_failed", 1)
			}
			b.Fail(fmt.Errorf("job %d (%s): %w", job.ID, job.JobType, runErr))
			continue
		}
		if err := p.queue.Complete(ctx, job); err != nil {
			return err
		}
		b.Count("jobs_completed", 1)
	}
	return nil
}

func (p *Pipeline) runJob(ctx context.Context, job *domain.QueueJob) error {
	switch job.JobType {
	case domain.JobProcessItem:
		payload, err := decodePayload[domain.ProcessItemPayload](job)
		if err != nil {
			return err
		}
		_, err = p.generator.ProcessItem(ctx, payload.RawItemID)
		return err
	case domain.JobPublishDraft:
		payload, err := decodePayload[domain.PublishDraftPayload](job)
		if err != nil {
			return err
		}
		_, err = p.publisher.Publish(ctx, payload.DraftID, payload.Channels)
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.JobType)
	}
}

// AutoPublish publishes auto_ready drafts.
func (p *Pipeline) AutoPublish(ctx context.Context, b *Batch) error {
	return p.publisher.AutoPublish(ctx, b, p.cfg.BatchSize)
}

// ProcessScheduled publishes due scheduled drafts.
func (p *Pipeline) ProcessScheduled(ctx context.Context, b *Batch) error {
	return p.publisher.ProcessScheduled(ctx, b, p.cfg.BatchSize)
}

// Cleanup enforces retention, recovers abandoned jobs and feeds recent
// fact-check scores back into source trust.
func (p *Pipeline) Cleanup(ctx context.Context, b *Batch) error {
	now := p.now()
	type step struct {
		counter string
		run     func() (int, error)
	}
	steps := []step{
		{"jobs_recovered", func() (int, error) { return p.queue.RecoverStale(ctx, staleJobAfter) }},
		{"publishing_released", func() (int, error) { return p.store.ReleaseStalePublishing(ctx, now.Add(-staleJobAfter), now) }},
	}
	// A retention of zero days keeps everything.
	if days := p.cfg.RawItemRetentionDays; days > 0 {
		steps = append(steps, step{"raw_items_purged", func() (int, error) { return p.store.PurgeRawItems(ctx, now.AddDate(0, 0, -days)) }})
	}
	if days := p.cfg.JobRetentionDays; days > 0 {
		steps = append(steps, step{"jobs_purged", func() (int, error) { return p.queue.Purge(ctx, now.AddDate(0, 0, -days)) }})
	}
	if days := p.cfg.LogRetentionDays; days > 0 {
		steps = append(steps, step{"logs_purged", func() (int, error) { return p.store.PurgeLogs(ctx, now.AddDate(0, 0, -days)) }})
	}
	for _, step := range steps {
		if !b.Next() {
			return nil
		}
		n, err := step.run()
		if err != nil {
			b.Fail(err)
			continue
		}
		b.Count(step.counter, n)
	}

	sources, err := p.registry.List(ctx)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if !b.Next() {
			return nil
		}
		changed, err := p.checker.RecomputeTrust(ctx, src.ID)
		if err != nil {
			b.Fail(err)
			continue
		}
		if changed {
			b.Count("trust_updated", 1)
		}
	}
	return nil
}
