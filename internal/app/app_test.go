package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: "memory"}
	cfg.Sources = []config.SourceConfig{
		{Name: "Lokal", URL: "https://lokal.example/rss", Lang: "de", Kind: "rss", TrustScore: 0.9},
		{Name: "Portal", URL: "https://portal.example/", Lang: "de", Kind: "html", Options: map[string]string{"item": "article"}},
	}
	return cfg
}

func TestNewWiresPipeline(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	added, err := a.SeedSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	sources, err := a.Store().ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, domain.SourceKindHTML, sources[1].Kind)
	assert.Equal(t, "article", sources[1].Options["item"])

	assert.Equal(t, domain.Hooks, a.Scheduler().Hooks())

	// No provider and no cms: on-demand triggers report what is missing.
	_, err = a.Scheduler().Trigger(context.Background(), domain.HookProcessQueue)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	_, err = a.Scheduler().Trigger(context.Background(), domain.HookAutoPublish)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	res, err := a.Scheduler().Trigger(context.Background(), domain.HookCleanup)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestNewWithRedisLocks(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Lock.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()

	a, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	res, err := a.Scheduler().Run(context.Background(), domain.HookCleanup)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	cfg.Redis.Addr = "127.0.0.1:1"
	_, err = New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LLM.Provider = "mystery"
	_, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
