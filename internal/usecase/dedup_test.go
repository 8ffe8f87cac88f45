package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://News.Example.com/a/b/?utm_source=x&b=2&a=1#top", "https://news.example.com/a/b?a=1&b=2"},
		{"HTTPS://example.com/", "https://example.com/"},
		{"https://example.com/story?fbclid=abc&gclid=def&UTM_Campaign=z", "https://example.com/story"},
		{"https://example.com/story?id=7&mc_eid=1&msclkid=2", "https://example.com/story?id=7"},
	}
	for _, tt := range tests {
		got, err := CanonicalURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := CanonicalURL("/relative/only")
	assert.Error(t, err)
}

func TestFingerprintCollapsesTrackingVariants(t *testing.T) {
	t.Parallel()

	_, a, err := Fingerprint("https://example.com/story?utm_medium=social")
	require.NoError(t, err)
	_, b, err := Fingerprint("https://EXAMPLE.com/story/#comments")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	src := mustSource(t, store, domain.Source{Name: "lokal", URL: "https://lokal.example/rss", Lang: "de", Enabled: true})
	d := NewDeduplicator(store)
	ctx := context.Background()

	c := ports.FeedCandidate{URL: "https://lokal.example/a?utm_source=rss", Title: "Neue Regeln 2024"}
	id, dup, err := d.Ingest(ctx, src, c)
	require.NoError(t, err)
	assert.False(t, dup)

	c.URL = "https://lokal.example/a"
	again, dup, err := d.Ingest(ctx, src, c)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, id, again)

	item, err := store.GetRawItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "de", item.Lang)
	assert.Equal(t, domain.RawItemNew, item.Status)
	assert.False(t, item.PublishedAt.IsZero())
}

func TestIsRecentDuplicate(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	a := mustSource(t, store, domain.Source{Name: "a", URL: "https://a.example/rss"})
	b := mustSource(t, store, domain.Source{Name: "b", URL: "https://b.example/rss"})
	now := time.Now().UTC()

	first := mustItem(t, store, a, "https://a.example/1", "Neue Regeln 2024", "", now)
	second := mustItem(t, store, b, "https://b.example/xyz", "Neue Regeln: 2024!", "", now)
	other := mustItem(t, store, b, "https://b.example/2", "Ganz anderes Thema", "", now)

	d := NewDeduplicator(store)
	ctx := context.Background()

	dup, err := d.IsRecentDuplicate(ctx, first)
	require.NoError(t, err)
	assert.False(t, dup, "the earliest copy stays live")

	dup, err = d.IsRecentDuplicate(ctx, second)
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = d.IsRecentDuplicate(ctx, other)
	require.NoError(t, err)
	assert.False(t, dup)

	d.now = func() time.Time { return now.Add(RecencyWindow + time.Hour) }
	dup, err = d.IsRecentDuplicate(ctx, second)
	require.NoError(t, err)
	assert.False(t, dup, "matches outside the window are ignored")
}
