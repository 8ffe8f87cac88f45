package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// MemoryStore is a process-local Store used by tests and single-process runs.
type MemoryStore struct {
	mu sync.Mutex

	nextID     int64
	sources    map[int64]domain.Source
	trust      []domain.TrustChange
	items      map[int64]domain.RawItem
	hashes     map[string]int64
	factChecks []domain.FactCheckResult
	drafts     map[int64]domain.Draft
	records    []domain.PublishRecord
	jobs       map[int64]domain.QueueJob
	logs       []domain.LogEntry
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources: map[int64]domain.Source{},
		items:   map[int64]domain.RawItem{},
		hashes:  map[string]int64{},
		drafts:  map[int64]domain.Draft{},
		jobs:    map[int64]domain.QueueJob{},
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// Migrate is a no-op for the memory store.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }

// ListSources returns every source ordered by id.
func (m *MemoryStore) ListSources(context.Context) ([]domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetSource(_ context.Context, id int64) (domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sources[id]
	if !ok {
		return domain.Source{}, fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *MemoryStore) CreateSource(_ context.Context, source domain.Source) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sources {
		if existing.URL == source.URL {
			return 0, fmt.Errorf("source %s: %w", source.URL, domain.ErrDuplicate)
		}
	}
	source.ID = m.id()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}
	m.sources[source.ID] = source
	return source.ID, nil
}

func (m *MemoryStore) RecordSourceFetch(_ context.Context, id int64, outcome domain.FetchOutcome) (domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[id]
	if !ok {
		return domain.Source{}, fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	src = outcome.Apply(src)
	m.sources[id] = src
	return src, nil
}

func (m *MemoryStore) UpdateSourceTrust(_ context.Context, id int64, score float64) error {
	return m.updateSource(id, func(s *domain.Source) { s.TrustScore = score })
}

func (m *MemoryStore) SetSourceEnabled(_ context.Context, id int64, enabled bool) error {
	return m.updateSource(id, func(s *domain.Source) { s.Enabled = enabled })
}

func (m *MemoryStore) updateSource(id int64, change func(*domain.Source)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[id]
	if !ok {
		return fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	change(&src)
	m.sources[id] = src
	return nil
}

func (m *MemoryStore) InsertTrustChange(_ context.Context, change domain.TrustChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trust = append(m.trust, change)
	return nil
}

// TrustChanges exposes the trust audit trail for inspection.
func (m *MemoryStore) TrustChanges() []domain.TrustChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TrustChange(nil), m.trust...)
}

func (m *MemoryStore) InsertRawItem(_ context.Context, item domain.RawItem) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.hashes[item.URLHash]; ok {
		return id, false, nil
	}
	item.ID = m.id()
	if item.Status == "" {
		item.Status = domain.RawItemNew
	}
	m.items[item.ID] = item
	m.hashes[item.URLHash] = item.ID
	return item.ID, true, nil
}

func (m *MemoryStore) GetRawItem(_ context.Context, id int64) (domain.RawItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.RawItem{}, fmt.Errorf("raw item %d: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

func (m *MemoryStore) UpdateRawItemStatus(_ context.Context, id int64, status domain.RawItemStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return fmt.Errorf("raw item %d: %w", id, domain.ErrNotFound)
	}
	item.Status = status
	m.items[id] = item
	return nil
}

func (m *MemoryStore) SetFactCheckScore(_ context.Context, id int64, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return fmt.Errorf("raw item %d: %w", id, domain.ErrNotFound)
	}
	item.FactCheckScore = &score
	m.items[id] = item
	return nil
}

func (m *MemoryStore) FindRecentMatches(_ context.Context, canonicalURL, title string, since time.Time, excludeID int64) ([]domain.RawItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.RawItem
	for _, item := range m.items {
		if item.ID == excludeID || item.FetchedAt.Before(since) {
			continue
		}
		if (canonicalURL != "" && item.CanonicalURL == canonicalURL) || (title != "" && domain.NormalizeTitle(item.Title) == title) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListRecentRawItems(_ context.Context, from, to time.Time, excludeSourceID int64) ([]domain.RawItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.RawItem
	for _, item := range m.items {
		if item.SourceID == excludeSourceID {
			continue
		}
		if item.PublishedAt.Before(from) || item.PublishedAt.After(to) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) DeleteRawItem(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.items[id]; ok {
		delete(m.items, id)
		delete(m.hashes, item.URLHash)
	}
	return nil
}

func (m *MemoryStore) PurgeRawItems(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, item := range m.items {
		if item.FetchedAt.Before(before) {
			delete(m.items, id)
			delete(m.hashes, item.URLHash)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) InsertFactCheck(_ context.Context, result domain.FactCheckResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result.ID = m.id()
	m.factChecks = append(m.factChecks, result)
	return result.ID, nil
}

func (m *MemoryStore) RecentScoresForSource(_ context.Context, sourceID int64, since time.Time, limit int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var scores []float64
	for i := len(m.factChecks) - 1; i >= 0; i-- {
		fc := m.factChecks[i]
		if fc.ComputedAt.Before(since) {
			continue
		}
		item, ok := m.items[fc.RawItemID]
		if !ok || item.SourceID != sourceID {
			continue
		}
		scores = append(scores, fc.Score)
		if limit > 0 && len(scores) >= limit {
			break
		}
	}
	return scores, nil
}

func (m *MemoryStore) CreateDraft(_ context.Context, draft domain.Draft) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if draft.RawItemID != nil {
		for _, existing := range m.drafts {
			if existing.RawItemID != nil && *existing.RawItemID == *draft.RawItemID && existing.Lang == draft.Lang {
				return 0, fmt.Errorf("draft for item %d/%s: %w", *draft.RawItemID, draft.Lang, domain.ErrDuplicate)
			}
		}
	}
	draft.ID = m.id()
	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	m.drafts[draft.ID] = cloneDraft(draft)
	return draft.ID, nil
}

func (m *MemoryStore) GetDraft(_ context.Context, id int64) (domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return domain.Draft{}, fmt.Errorf("draft %d: %w", id, domain.ErrNotFound)
	}
	return cloneDraft(d), nil
}

func (m *MemoryStore) UpdateDraft(_ context.Context, draft domain.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.drafts[draft.ID]; !ok {
		return fmt.Errorf("draft %d: %w", draft.ID, domain.ErrNotFound)
	}
	m.drafts[draft.ID] = cloneDraft(draft)
	return nil
}

func (m *MemoryStore) ClaimDraftForPublish(_ context.Context, id int64, from []domain.DraftStatus, now time.Time) (domain.Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return domain.Draft{}, false, fmt.Errorf("draft %d: %w", id, domain.ErrNotFound)
	}
	if !containsStatus(from, d.Status) {
		return cloneDraft(d), false, nil
	}
	d.Status = domain.DraftPublishing
	d.UpdatedAt = now
	m.drafts[id] = d
	return cloneDraft(d), true, nil
}

func (m *MemoryStore) ReleaseStalePublishing(_ context.Context, updatedBefore, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, d := range m.drafts {
		if d.Status == domain.DraftPublishing && d.UpdatedAt.Before(updatedBefore) {
			d.Status = domain.DraftPublishFailed
			d.UpdatedAt = now
			m.drafts[id] = d
			n++
		}
	}
	return n, nil
}

func containsStatus(list []domain.DraftStatus, s domain.DraftStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *MemoryStore) FindDraft(_ context.Context, rawItemID int64, lang string) (domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.drafts {
		if d.RawItemID != nil && *d.RawItemID == rawItemID && d.Lang == lang {
			return cloneDraft(d), nil
		}
	}
	return domain.Draft{}, fmt.Errorf("draft for item %d/%s: %w", rawItemID, lang, domain.ErrNotFound)
}

func (m *MemoryStore) ListDrafts(_ context.Context, status domain.DraftStatus, before time.Time, limit int) ([]domain.Draft, error) {
	return m.filterDrafts(limit, func(d domain.Draft) bool {
		return d.Status == status && (before.IsZero() || !d.CreatedAt.After(before))
	}), nil
}

func (m *MemoryStore) ListDueScheduled(_ context.Context, now time.Time, limit int) ([]domain.Draft, error) {
	return m.filterDrafts(limit, func(d domain.Draft) bool {
		return d.Status == domain.DraftScheduled && d.ScheduledAt != nil && !d.ScheduledAt.After(now)
	}), nil
}

func (m *MemoryStore) filterDrafts(limit int, keep func(domain.Draft) bool) []domain.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Draft
	for _, d := range m.drafts {
		if keep(d) {
			out = append(out, cloneDraft(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MemoryStore) InsertPublishRecord(_ context.Context, record domain.PublishRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.id()
	m.records = append(m.records, record)
	return nil
}

func (m *MemoryStore) ListPublishRecords(_ context.Context, draftID int64) ([]domain.PublishRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.PublishRecord
	for _, r := range m.records {
		if r.DraftID == draftID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) EnqueueJob(_ context.Context, job domain.QueueJob) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job = withJobDefaults(job, time.Now().UTC())
	job.ID = m.id()
	m.jobs[job.ID] = job
	return job.ID, nil
}

// ClaimNext picks and marks the next eligible job while holding the store mutex.
func (m *MemoryStore) ClaimNext(_ context.Context, jobType string, now time.Time) (*domain.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *domain.QueueJob
	for _, job := range m.jobs {
		if jobType != "" && job.JobType != jobType {
			continue
		}
		if !job.Eligible(now) {
			continue
		}
		if best == nil || jobLess(job, *best) {
			candidate := job
			best = &candidate
		}
	}
	if best == nil {
		return nil, nil
	}

	best.Status = domain.JobProcessing
	best.UpdatedAt = now
	m.jobs[best.ID] = *best
	return best, nil
}

func jobLess(a, b domain.QueueJob) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.ScheduledAt.Equal(b.ScheduledAt) {
		return a.ScheduledAt.Before(b.ScheduledAt)
	}
	return a.ID < b.ID
}

func (m *MemoryStore) UpdateJob(_ context.Context, job domain.QueueJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("job %d: %w", job.ID, domain.ErrNotFound)
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id int64) (domain.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.QueueJob{}, fmt.Errorf("job %d: %w", id, domain.ErrNotFound)
	}
	return job, nil
}

func (m *MemoryStore) RecoverStaleJobs(_ context.Context, updatedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recovered := 0
	for id, job := range m.jobs {
		if job.Status == domain.JobProcessing && job.UpdatedAt.Before(updatedBefore) {
			now := time.Now().UTC()
			job.Attempts++
			job.LastError = domain.ErrJobAbandoned.Error()
			job.UpdatedAt = now
			job.Status = domain.JobPending
			if job.Attempts >= job.MaxAttempts {
				job.Status = domain.JobFailed
				job.CompletedAt = &now
			}
			m.jobs[id] = job
			recovered++
		}
	}
	return recovered, nil
}

func (m *MemoryStore) PurgeJobs(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, job := range m.jobs {
		if (job.Status == domain.JobCompleted || job.Status == domain.JobFailed) && job.UpdatedAt.Before(before) {
			delete(m.jobs, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) CountJobs(_ context.Context, status domain.JobStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, job := range m.jobs {
		if job.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) InsertLog(_ context.Context, entry domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.id()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *MemoryStore) PurgeLogs(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.logs[:0]
	purged := 0
	for _, entry := range m.logs {
		if entry.CreatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, entry)
	}
	m.logs = kept
	return purged, nil
}

func cloneDraft(d domain.Draft) domain.Draft {
	d.Tags = append([]string(nil), d.Tags...)
	d.RiskFlags = append([]string(nil), d.RiskFlags...)
	d.SEOKeywords = append([]string(nil), d.SEOKeywords...)
	return d
}
