package ports

import (
	"context"
	"time"

	"NewsPipeline/internal/domain"
)

// SourceRepository persists feed definitions and their fetch state.
type SourceRepository interface {
	ListSources(ctx context.Context) ([]domain.Source, error)
	GetSource(ctx context.Context, id int64) (domain.Source, error)
	CreateSource(ctx context.Context, source domain.Source) (int64, error)
	// RecordSourceFetch applies a fetch outcome to the fetch-state columns only
	// and returns the updated source.
	RecordSourceFetch(ctx context.Context, id int64, outcome domain.FetchOutcome) (domain.Source, error)
	UpdateSourceTrust(ctx context.Context, id int64, score float64) error
	SetSourceEnabled(ctx context.Context, id int64, enabled bool) error
	InsertTrustChange(ctx context.Context, change domain.TrustChange) error
}

// RawItemRepository persists fetched items; InsertRawItem reports duplicates by hash.
type RawItemRepository interface {
	InsertRawItem(ctx context.Context, item domain.RawItem) (id int64, inserted bool, err error)
	GetRawItem(ctx context.Context, id int64) (domain.RawItem, error)
	UpdateRawItemStatus(ctx context.Context, id int64, status domain.RawItemStatus) error
	SetFactCheckScore(ctx context.Context, id int64, score float64) error
	// FindRecentMatches returns items other than excludeID fetched since the
	// given instant whose canonical URL or normalized title equals the arguments.
	FindRecentMatches(ctx context.Context, canonicalURL, title string, since time.Time, excludeID int64) ([]domain.RawItem, error)
	// ListRecentRawItems returns items published in [from, to] from any source but excludeSourceID.
	ListRecentRawItems(ctx context.Context, from, to time.Time, excludeSourceID int64) ([]domain.RawItem, error)
	// DeleteRawItem removes one item so a later fetch can ingest it again.
	DeleteRawItem(ctx context.Context, id int64) error
	PurgeRawItems(ctx context.Context, before time.Time) (int, error)
}

// FactCheckRepository stores immutable fact-check results.
type FactCheckRepository interface {
	InsertFactCheck(ctx context.Context, result domain.FactCheckResult) (int64, error)
	// RecentScoresForSource returns up to limit scores for the source's items computed since the given instant.
	RecentScoresForSource(ctx context.Context, sourceID int64, since time.Time, limit int) ([]float64, error)
}

// DraftRepository stores drafts and their publish records.
type DraftRepository interface {
	CreateDraft(ctx context.Context, draft domain.Draft) (int64, error)
	GetDraft(ctx context.Context, id int64) (domain.Draft, error)
	UpdateDraft(ctx context.Context, draft domain.Draft) error
	// ClaimDraftForPublish moves the draft to publishing when its status is one
	// of from. claimed is false when another run changed the status first.
	ClaimDraftForPublish(ctx context.Context, id int64, from []domain.DraftStatus, now time.Time) (draft domain.Draft, claimed bool, err error)
	// ReleaseStalePublishing marks drafts left in publishing since before the
	// cutoff as publish_failed so they can be retried.
	ReleaseStalePublishing(ctx context.Context, updatedBefore, now time.Time) (int, error)
	FindDraft(ctx context.Context, rawItemID int64, lang string) (domain.Draft, error)
	// ListDrafts returns drafts in the status, oldest first. A zero before disables the created_at filter.
	ListDrafts(ctx context.Context, status domain.DraftStatus, before time.Time, limit int) ([]domain.Draft, error)
	// ListDueScheduled returns scheduled drafts whose scheduled_at is not after now.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Draft, error)
	InsertPublishRecord(ctx context.Context, record domain.PublishRecord) error
	ListPublishRecords(ctx context.Context, draftID int64) ([]domain.PublishRecord, error)
}

// QueueRepository is the durable job list. ClaimNext must be atomic across consumers.
type QueueRepository interface {
	EnqueueJob(ctx context.Context, job domain.QueueJob) (int64, error)
	ClaimNext(ctx context.Context, jobType string, now time.Time) (*domain.QueueJob, error)
	UpdateJob(ctx context.Context, job domain.QueueJob) error
	GetJob(ctx context.Context, id int64) (domain.QueueJob, error)
	// RecoverStaleJobs charges one attempt to each processing job untouched
	// since the cutoff and requeues it, or fails it when no attempts are left.
	RecoverStaleJobs(ctx context.Context, updatedBefore time.Time) (int, error)
	PurgeJobs(ctx context.Context, before time.Time) (int, error)
	CountJobs(ctx context.Context, status domain.JobStatus) (int, error)
}

// LogSink persists log records for audit.
type LogSink interface {
	InsertLog(ctx context.Context, entry domain.LogEntry) error
	PurgeLogs(ctx context.Context, before time.Time) (int, error)
}

// Store aggregates every repository backed by the persistent store.
type Store interface {
	SourceRepository
	RawItemRepository
	FactCheckRepository
	DraftRepository
	QueueRepository
	LogSink
	Migrate(ctx context.Context) error
	Close() error
}

// FeedCandidate is a normalized entry read from a feed, before fingerprinting.
type FeedCandidate struct {
	URL         string
	Title       string
	Summary     string
	Body        string
	Author      string
	ImageURL    string
	PublishedAt time.Time
}

// FeedSource reads the current entries of a source.
type FeedSource interface {
	Fetch(ctx context.Context, source domain.Source) ([]FeedCandidate, error)
}

// CompletionRequest carries one prompt for a text generation backend.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	JSON         bool
}

// Completion is the raw text answer of a text generation backend.
type Completion struct {
	Content    string
	Model      string
	TokensUsed int
}

// TextGenerator is the pluggable large-language-model capability.
type TextGenerator interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// AIResult is the uniform outcome of one assistant task. Success is false
// whenever Err is set, including when no generator is configured.
type AIResult struct {
	Content  string
	Provider string
	Success  bool
	Err      error
}

// Assistant runs the editorial text tasks on top of a TextGenerator.
type Assistant interface {
	Rewrite(ctx context.Context, text, lang string) AIResult
	Translate(ctx context.Context, text, from, to string) AIResult
	GenerateSEO(ctx context.Context, title, body, lang string) AIResult
	ExtractEntities(ctx context.Context, text string) AIResult
	Classify(ctx context.Context, text string, categories []string) AIResult
	Summarize(ctx context.Context, text, lang string, maxWords int) AIResult
}

// PublishRequest is what a channel receives for one draft.
type PublishRequest struct {
	Draft        domain.Draft
	CanonicalURL string
	ImageURL     string
}

// PublishResult is the channel-side identity of a published draft.
type PublishResult struct {
	URL      string
	RemoteID string
}

// PublishChannel distributes a draft to one outlet.
type PublishChannel interface {
	Name() string
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}

// PrimaryChannel is the load-bearing outlet (the CMS).
type PrimaryChannel interface {
	PublishChannel
	SetFeaturedMedia(ctx context.Context, remoteID, mediaURL string) error
}

// Locker hands out named, TTL-bounded mutexes. TryAcquire never blocks.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}

// ScheduleEntry is one periodic trigger handled by a scheduler driver.
type ScheduleEntry struct {
	Name     string
	Interval time.Duration
	Offset   time.Duration
	Run      func(ctx context.Context, trigger time.Time)
}

// Scheduler controls when hooks execute.
type Scheduler interface {
	Start(ctx context.Context, entries []ScheduleEntry) error
	Stop(ctx context.Context) error
}
