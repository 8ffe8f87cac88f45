package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// forEachStore runs the test body against every Store implementation.
func forEachStore(t *testing.T, body func(t *testing.T, store ports.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		body(t, NewMemoryStore())
	})

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		store, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "pipeline.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		require.NoError(t, store.Migrate(ctx))
		body(t, store)
	})
}

func seedSource(t *testing.T, store ports.Store, url string) int64 {
	t.Helper()
	id, err := store.CreateSource(context.Background(), domain.Source{
		Name:                 "Source " + url,
		URL:                  url,
		Lang:                 "de",
		Kind:                 domain.SourceKindRSS,
		TrustScore:           0.8,
		FetchIntervalMinutes: 15,
		Enabled:              true,
	})
	require.NoError(t, err)
	return id
}

func TestSourcesRoundTrip(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		id := seedSource(t, store, "https://example.org/feed")

		_, err := store.CreateSource(ctx, domain.Source{Name: "dup", URL: "https://example.org/feed"})
		assert.True(t, errors.Is(err, domain.ErrDuplicate), "got %v", err)

		src, err := store.GetSource(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0.8, src.TrustScore)
		assert.Nil(t, src.LastFetchedAt)

		fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		for i := 0; i < 2; i++ {
			_, err := store.RecordSourceFetch(ctx, id, domain.FetchOutcome{At: fetched, Error: "timeout", QuarantineUntil: fetched.Add(time.Hour)})
			require.NoError(t, err)
		}
		require.NoError(t, store.UpdateSourceTrust(ctx, id, 0.66))
		require.NoError(t, store.SetSourceEnabled(ctx, id, false))

		got, err := store.GetSource(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.LastFetchedAt)
		assert.True(t, got.LastFetchedAt.Equal(fetched))
		assert.Equal(t, 2, got.ErrorCount, "column updates keep the fetch state")
		assert.Equal(t, "timeout", got.LastError)
		assert.Nil(t, got.QuarantineUntil)
		assert.InDelta(t, 0.66, got.TrustScore, 1e-9)
		assert.False(t, got.Enabled)

		_, err = store.RecordSourceFetch(ctx, id+100, domain.FetchOutcome{At: fetched})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.True(t, errors.Is(store.UpdateSourceTrust(ctx, id+100, 0.5), domain.ErrNotFound))

		_, err = store.GetSource(ctx, id+100)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestRecordSourceFetchQuarantines(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		id := seedSource(t, store, "https://example.org/flaky")
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		until := at.Add(domain.QuarantinePeriod)

		var src domain.Source
		for i := 1; i <= domain.QuarantineThreshold; i++ {
			var err error
			src, err = store.RecordSourceFetch(ctx, id, domain.FetchOutcome{At: at, Error: "boom", QuarantineUntil: until})
			require.NoError(t, err)
			assert.Equal(t, i, src.ErrorCount)
			if i < domain.QuarantineThreshold {
				assert.Nil(t, src.QuarantineUntil, "attempt %d", i)
			}
		}
		require.NotNil(t, src.QuarantineUntil)
		assert.True(t, src.QuarantineUntil.Equal(until))
		assert.InDelta(t, 0.8, src.TrustScore, 1e-9)

		src, err := store.RecordSourceFetch(ctx, id, domain.FetchOutcome{At: at.Add(time.Hour)})
		require.NoError(t, err)
		assert.Zero(t, src.ErrorCount)
		assert.Empty(t, src.LastError)
		assert.Nil(t, src.QuarantineUntil)
	})
}

func TestInsertRawItemIsIdempotent(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		sourceID := seedSource(t, store, "https://example.org/a")
		now := time.Now().UTC()
		item := domain.RawItem{
			SourceID:     sourceID,
			URL:          "https://example.org/story?utm_source=x",
			CanonicalURL: "https://example.org/story",
			URLHash:      "hash-1",
			Title:        "Stadtrat beschließt Haushalt",
			PublishedAt:  now,
			FetchedAt:    now,
		}

		first, inserted, err := store.InsertRawItem(ctx, item)
		require.NoError(t, err)
		assert.True(t, inserted)

		second, inserted, err := store.InsertRawItem(ctx, item)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, first, second)

		got, err := store.GetRawItem(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, domain.RawItemNew, got.Status)
		assert.Nil(t, got.FactCheckScore)

		require.NoError(t, store.SetFactCheckScore(ctx, first, 0.72))
		require.NoError(t, store.UpdateRawItemStatus(ctx, first, domain.RawItemProcessed))
		got, err = store.GetRawItem(ctx, first)
		require.NoError(t, err)
		require.NotNil(t, got.FactCheckScore)
		assert.InDelta(t, 0.72, *got.FactCheckScore, 1e-9)
		assert.Equal(t, domain.RawItemProcessed, got.Status)
	})
}

func TestFindRecentMatches(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		sourceID := seedSource(t, store, "https://example.org/b")
		now := time.Now().UTC()

		insert := func(hash, canonical, title string, fetched time.Time) int64 {
			id, _, err := store.InsertRawItem(ctx, domain.RawItem{
				SourceID: sourceID, URL: canonical, CanonicalURL: canonical, URLHash: hash,
				Title: title, PublishedAt: fetched, FetchedAt: fetched,
			})
			require.NoError(t, err)
			return id
		}

		old := insert("h-old", "https://example.org/x", "Flood warning issued", now.Add(-72*time.Hour))
		byTitle := insert("h-title", "https://other.org/y", "Flood Warning issued!", now.Add(-time.Hour))
		self := insert("h-self", "https://example.org/x", "Flood warning issued", now)

		matches, err := store.FindRecentMatches(ctx, "https://example.org/x", domain.NormalizeTitle("Flood warning issued"),
			now.Add(-48*time.Hour), self)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, byTitle, matches[0].ID)
		assert.NotEqual(t, old, matches[0].ID)
	})
}

func TestRecentScoresForSource(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		a := seedSource(t, store, "https://a.example/feed")
		b := seedSource(t, store, "https://b.example/feed")
		now := time.Now().UTC()

		for i, src := range []int64{a, a, b} {
			id, _, err := store.InsertRawItem(ctx, domain.RawItem{
				SourceID: src, URL: "u", CanonicalURL: "u", URLHash: string(rune('a' + i)),
				Title: "t", PublishedAt: now, FetchedAt: now,
			})
			require.NoError(t, err)
			_, err = store.InsertFactCheck(ctx, domain.FactCheckResult{
				RawItemID: id, Score: 0.5 + float64(i)/10, ComputedAt: now.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}

		scores, err := store.RecentScoresForSource(ctx, a, now.Add(-time.Hour), 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []float64{0.5, 0.6}, scores)

		limited, err := store.RecentScoresForSource(ctx, a, now.Add(-time.Hour), 1)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.6}, limited)
	})
}

func TestDraftUniquePerItemAndLanguage(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		rawID := int64(42)
		draft := domain.Draft{
			RawItemID:   &rawID,
			Lang:        "de",
			Title:       "Titel",
			Tags:        []string{"politik", "stadt"},
			RiskFlags:   []string{"low_source_trust"},
			SEOKeywords: []string{"haushalt"},
			Status:      domain.DraftPendingOK,
			GateReason:  "low_source_trust",
		}

		id, err := store.CreateDraft(ctx, draft)
		require.NoError(t, err)

		_, err = store.CreateDraft(ctx, draft)
		assert.True(t, errors.Is(err, domain.ErrDuplicate), "got %v", err)

		draft.Lang = "en"
		_, err = store.CreateDraft(ctx, draft)
		require.NoError(t, err)

		got, err := store.FindDraft(ctx, rawID, "de")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, []string{"politik", "stadt"}, got.Tags)
		assert.Equal(t, []string{"low_source_trust"}, got.RiskFlags)
		assert.Equal(t, "low_source_trust", got.GateReason)

		_, err = store.FindDraft(ctx, rawID, "uk")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestListDueScheduled(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()
		past := now.Add(-time.Minute)
		future := now.Add(time.Hour)

		due, err := store.CreateDraft(ctx, domain.Draft{Lang: "de", Title: "due", Status: domain.DraftScheduled, ScheduledAt: &past})
		require.NoError(t, err)
		_, err = store.CreateDraft(ctx, domain.Draft{Lang: "de", Title: "later", Status: domain.DraftScheduled, ScheduledAt: &future})
		require.NoError(t, err)
		_, err = store.CreateDraft(ctx, domain.Draft{Lang: "de", Title: "ready", Status: domain.DraftAutoReady})
		require.NoError(t, err)

		drafts, err := store.ListDueScheduled(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, due, drafts[0].ID)

		ready, err := store.ListDrafts(ctx, domain.DraftAutoReady, time.Time{}, 10)
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.Equal(t, "ready", ready[0].Title)

		require.NoError(t, store.InsertPublishRecord(ctx, domain.PublishRecord{
			DraftID: due, Channel: "cms", Success: true, URL: "https://cms/1", PublishedAt: now,
		}))
		records, err := store.ListPublishRecords(ctx, due)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "cms", records[0].Channel)
		assert.True(t, records[0].Success)
	})
}

func enqueue(t *testing.T, store ports.Store, priority int, scheduled time.Time) int64 {
	t.Helper()
	payload, err := json.Marshal(domain.ProcessItemPayload{RawItemID: 1})
	require.NoError(t, err)
	id, err := store.EnqueueJob(context.Background(), domain.QueueJob{
		JobType:     domain.JobProcessItem,
		Payload:     payload,
		Priority:    priority,
		ScheduledAt: scheduled,
	})
	require.NoError(t, err)
	return id
}

func TestClaimNextOrdering(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		normal := enqueue(t, store, 10, now.Add(-2*time.Minute))
		urgent := enqueue(t, store, 1, now.Add(-time.Minute))
		enqueue(t, store, 0, now.Add(time.Hour))

		job, err := store.ClaimNext(ctx, domain.JobProcessItem, now)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, urgent, job.ID)
		assert.Equal(t, domain.JobProcessing, job.Status)

		job, err = store.ClaimNext(ctx, "", now)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, normal, job.ID)

		job, err = store.ClaimNext(ctx, "", now)
		require.NoError(t, err)
		assert.Nil(t, job, "future job must not be claimed")

		job, err = store.ClaimNext(ctx, domain.JobPublishDraft, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, job, "type filter must apply")
	})
}

func TestClaimNextSkipsExhaustedJobs(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()
		id := enqueue(t, store, 10, now.Add(-time.Minute))

		job, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultMaxAttempts, job.MaxAttempts)

		job.Attempts = job.MaxAttempts
		require.NoError(t, store.UpdateJob(ctx, job))

		claimed, err := store.ClaimNext(ctx, "", now)
		require.NoError(t, err)
		assert.Nil(t, claimed)
	})
}

func TestClaimNextIsExclusive(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()
		const jobs = 20
		for i := 0; i < jobs; i++ {
			enqueue(t, store, 10, now.Add(-time.Minute))
		}

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			claimed = map[int64]int{}
		)
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					job, err := store.ClaimNext(ctx, "", now)
					if err != nil || job == nil {
						return
					}
					mu.Lock()
					claimed[job.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, jobs)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "job %d claimed %d times", id, n)
		}
	})
}

func TestRecoverAndPurgeJobs(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		stale := enqueue(t, store, 10, now.Add(-time.Hour))
		done := enqueue(t, store, 10, now.Add(-time.Hour))

		_, err := store.ClaimNext(ctx, "", now)
		require.NoError(t, err)
		recovered, err := store.RecoverStaleJobs(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, recovered)

		job, err := store.GetJob(ctx, stale)
		require.NoError(t, err)
		assert.Equal(t, domain.JobPending, job.Status)
		assert.Equal(t, 1, job.Attempts)
		assert.Equal(t, domain.ErrJobAbandoned.Error(), job.LastError)

		finished, err := store.GetJob(ctx, done)
		require.NoError(t, err)
		completedAt := now.Add(-10 * 24 * time.Hour)
		finished.Status = domain.JobCompleted
		finished.CompletedAt = &completedAt
		finished.UpdatedAt = completedAt
		require.NoError(t, store.UpdateJob(ctx, finished))

		purged, err := store.PurgeJobs(ctx, now.Add(-7*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, purged)

		pending, err := store.CountJobs(ctx, domain.JobPending)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)
	})
}

func TestRecoverStaleJobsFailsExhaustedJobs(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()
		id := enqueue(t, store, 10, now.Add(-time.Hour))

		job, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		job.Status = domain.JobProcessing
		job.Attempts = job.MaxAttempts - 1
		job.UpdatedAt = now.Add(-time.Hour)
		require.NoError(t, store.UpdateJob(ctx, job))

		recovered, err := store.RecoverStaleJobs(ctx, now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, recovered)

		job, err = store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobFailed, job.Status)
		assert.Equal(t, job.MaxAttempts, job.Attempts)
		assert.NotNil(t, job.CompletedAt)

		recovered, err = store.RecoverStaleJobs(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, recovered, "failed jobs stay failed")
	})
}

func TestClaimDraftForPublishIsExclusive(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()
		id, err := store.CreateDraft(ctx, domain.Draft{Lang: "de", Title: "ready", Status: domain.DraftAutoReady})
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			wins int
			mu   sync.Mutex
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, claimed, err := store.ClaimDraftForPublish(ctx, id, domain.PublishableStatuses, now)
				if err == nil && claimed {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)

		got, err := store.GetDraft(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.DraftPublishing, got.Status)

		_, claimed, err := store.ClaimDraftForPublish(ctx, id, domain.PublishableStatuses, now)
		require.NoError(t, err)
		assert.False(t, claimed)

		_, _, err = store.ClaimDraftForPublish(ctx, 9999, domain.PublishableStatuses, now)
		assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
	})
}

func TestReleaseStalePublishing(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()
		stuck, err := store.CreateDraft(ctx, domain.Draft{Lang: "de", Title: "stuck", Status: domain.DraftApproved})
		require.NoError(t, err)
		fresh, err := store.CreateDraft(ctx, domain.Draft{Lang: "de", Title: "fresh", Status: domain.DraftApproved})
		require.NoError(t, err)

		_, claimed, err := store.ClaimDraftForPublish(ctx, stuck, domain.PublishableStatuses, now.Add(-time.Hour))
		require.NoError(t, err)
		require.True(t, claimed)
		_, claimed, err = store.ClaimDraftForPublish(ctx, fresh, domain.PublishableStatuses, now)
		require.NoError(t, err)
		require.True(t, claimed)

		released, err := store.ReleaseStalePublishing(ctx, now.Add(-30*time.Minute), now)
		require.NoError(t, err)
		assert.Equal(t, 1, released)

		got, err := store.GetDraft(ctx, stuck)
		require.NoError(t, err)
		assert.Equal(t, domain.DraftPublishFailed, got.Status)
		got, err = store.GetDraft(ctx, fresh)
		require.NoError(t, err)
		assert.Equal(t, domain.DraftPublishing, got.Status)
	})
}

func TestDeleteRawItemAllowsReingest(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		src := seedSource(t, store, "https://example.org/delete")
		item := domain.RawItem{
			SourceID:    src,
			URL:         "https://example.org/a",
			URLHash:     "hash-a",
			Title:       "A",
			PublishedAt: time.Now().UTC(),
			FetchedAt:   time.Now().UTC(),
			Status:      domain.RawItemNew,
		}
		id, inserted, err := store.InsertRawItem(ctx, item)
		require.NoError(t, err)
		require.True(t, inserted)

		require.NoError(t, store.DeleteRawItem(ctx, id))
		_, err = store.GetRawItem(ctx, id)
		assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

		_, inserted, err = store.InsertRawItem(ctx, item)
		require.NoError(t, err)
		assert.True(t, inserted)
	})
}

func TestPlaceholderFormatFollowsDialect(t *testing.T) {
	t.Parallel()
	cases := map[Dialect]string{
		DialectPostgres: "SELECT id FROM sources WHERE id = $1",
		DialectSQLite:   "SELECT id FROM sources WHERE id = ?",
	}
	for dialect, want := range cases {
		query, args, err := NewSQLStore(nil, dialect).sb.Select("id").From("sources").Where(sq.Eq{"id": 1}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, want, query)
		assert.Equal(t, []any{1}, args)
	}
}

func TestLogsPurge(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, store ports.Store) {
		ctx := context.Background()
		now := time.Now().UTC()
		require.NoError(t, store.InsertLog(ctx, domain.LogEntry{Message: "old", CreatedAt: now.Add(-40 * 24 * time.Hour)}))
		require.NoError(t, store.InsertLog(ctx, domain.LogEntry{Message: "new", CreatedAt: now, Attrs: map[string]string{"k": "v"}}))

		purged, err := store.PurgeLogs(ctx, now.Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, purged)
	})
}
