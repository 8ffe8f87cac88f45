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

func TestRegistryGetDue(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time { v := now.Add(-d); return &v }
	until := now.Add(time.Minute)

	mustSource(t, store, domain.Source{Name: "recent", URL: "https://r.example", Enabled: true, FetchIntervalMinutes: 30, LastFetchedAt: ago(10 * time.Minute)})
	idle := mustSource(t, store, domain.Source{Name: "idle", URL: "https://i.example", Enabled: true, FetchIntervalMinutes: 30, LastFetchedAt: ago(2 * time.Hour)})
	never := mustSource(t, store, domain.Source{Name: "never", URL: "https://n.example", Enabled: true, FetchIntervalMinutes: 30})
	due := mustSource(t, store, domain.Source{Name: "due", URL: "https://d.example", Enabled: true, FetchIntervalMinutes: 30, LastFetchedAt: ago(31 * time.Minute)})
	mustSource(t, store, domain.Source{Name: "off", URL: "https://o.example", Enabled: false, FetchIntervalMinutes: 30})
	mustSource(t, store, domain.Source{Name: "quarantined", URL: "https://q.example", Enabled: true, ErrorCount: 5, QuarantineUntil: &until})

	r := NewRegistry(store, nil)
	r.now = func() time.Time { return now }

	got, err := r.GetDue(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{never.ID, idle.ID, due.ID}, []int64{got[0].ID, got[1].ID, got[2].ID})

	limited, err := r.GetDue(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, never.ID, limited[0].ID)
}

func TestRecordFetchOutcomeQuarantines(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	src := mustSource(t, store, domain.Source{Name: "broken", URL: "https://b.example", Enabled: true, FetchIntervalMinutes: 1})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(store, nil)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i < domain.QuarantineThreshold; i++ {
		require.NoError(t, r.RecordFetchOutcome(ctx, src.ID, errors.New("timeout")))
	}
	got, err := store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ErrorCount)
	assert.Nil(t, got.QuarantineUntil)
	assert.Equal(t, "timeout", got.LastError)

	require.NoError(t, r.RecordFetchOutcome(ctx, src.ID, errors.New("timeout")))
	got, err = store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, got.QuarantineUntil)
	assert.Equal(t, now.Add(domain.QuarantinePeriod), *got.QuarantineUntil)

	r.now = func() time.Time { return now.Add(2 * time.Minute) }
	due, err := r.GetDue(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, due, "quarantined sources are never due")

	require.NoError(t, r.RecordFetchOutcome(ctx, src.ID, nil))
	got, err = store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ErrorCount)
	assert.Empty(t, got.LastError)
	assert.Nil(t, got.QuarantineUntil)
}

func TestRegistrySeedAndAdmin(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	r := NewRegistry(store, nil)
	ctx := context.Background()
	seeds := []domain.Source{
		{Name: "Lokal", URL: "https://lokal.example/rss", Lang: "DE", Category: "Lokales", TrustScore: 1.4},
		{Name: "Welt", URL: "https://welt.example/rss", Lang: "de"},
	}

	added, err := r.Seed(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = r.Seed(ctx, seeds)
	require.NoError(t, err)
	assert.Zero(t, added)

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "de", all[0].Lang)
	assert.Equal(t, "lokales", all[0].Category)
	assert.Equal(t, 1.0, all[0].TrustScore)
	assert.True(t, all[0].Enabled)
	assert.Equal(t, domain.SourceKindRSS, all[1].Kind)

	require.NoError(t, r.SetEnabled(ctx, all[1].ID, false))
	got, err := store.GetSource(ctx, all[1].ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	_, err = r.Add(ctx, domain.Source{URL: "https://lokal.example/rss"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	_, err = r.Add(ctx, domain.Source{})
	assert.Error(t, err)
}
