package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

const defaultFetchIntervalMinutes = 30

// Registry answers which sources are due and keeps their fetch health.
type Registry struct {
	sources ports.SourceRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewRegistry(sources ports.SourceRepository, logger *slog.Logger) *Registry {
	return &Registry{sources: sources, logger: loggerOrDiscard(logger), now: utcNow}
}

// GetDue returns enabled, non-quarantined sources whose fetch interval elapsed,
// longest idle first. A limit <= 0 returns all of them.
func (r *Registry) GetDue(ctx context.Context, limit int) ([]domain.Source, error) {
	all, err := r.sources.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	now := r.now()
	due := make([]domain.Source, 0, len(all))
	for _, src := range all {
		if src.IsDue(now) {
			due = append(due, src)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].IdleFor(now), due[j].IdleFor(now)
		if a != b {
			return a > b
		}
		return due[i].ID < due[j].ID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// RecordFetchOutcome stores the result of one fetch attempt. A nil fetchErr
// resets the error state; the fifth consecutive failure quarantines the source.
func (r *Registry) RecordFetchOutcome(ctx context.Context, sourceID int64, fetchErr error) error {
	now := r.now()
	outcome := domain.FetchOutcome{At: now}
	if fetchErr != nil {
		outcome.Error = fetchErr.Error()
		outcome.QuarantineUntil = now.Add(domain.QuarantinePeriod)
	}

	src, err := r.sources.RecordSourceFetch(ctx, sourceID, outcome)
	if err != nil {
		return fmt.Errorf("record fetch of source %d: %w", sourceID, err)
	}
	if fetchErr != nil && src.ErrorCount == domain.QuarantineThreshold {
		r.logger.Warn("source quarantined", "source", src.Name, "errors", src.ErrorCount, "until", outcome.QuarantineUntil)
	}
	return nil
}

// Add validates and stores a new source.
func (r *Registry) Add(ctx context.Context, src domain.Source) (int64, error) {
	src.URL = strings.TrimSpace(src.URL)
	if src.URL == "" {
		return 0, fmt.Errorf("source url is required")
	}
	if src.Name == "" {
		src.Name = src.URL
	}
	if src.Kind == "" {
		src.Kind = domain.SourceKindRSS
	}
	if src.FetchIntervalMinutes <= 0 {
		src.FetchIntervalMinutes = defaultFetchIntervalMinutes
	}
	src.Lang = strings.ToLower(src.Lang)
	src.Category = strings.ToLower(src.Category)
	src.TrustScore = domain.Clamp01(src.TrustScore)

	id, err := r.sources.CreateSource(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("create source %s: %w", src.URL, err)
	}
	return id, nil
}

// Seed adds every source whose URL is not registered yet and returns how many were added.
func (r *Registry) Seed(ctx context.Context, seeds []domain.Source) (int, error) {
	existing, err := r.sources.ListSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, src := range existing {
		known[src.URL] = true
	}

	added := 0
	for _, seed := range seeds {
		if known[strings.TrimSpace(seed.URL)] {
			continue
		}
		seed.Enabled = true
		if _, err := r.Add(ctx, seed); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				continue
			}
			return added, err
		}
		known[seed.URL] = true
		added++
	}
	if added > 0 {
		r.logger.Info("seeded sources", "added", added)
	}
	return added, nil
}

// List returns every registered source.
func (r *Registry) List(ctx context.Context) ([]domain.Source, error) {
	return r.sources.ListSources(ctx)
}

// SetEnabled switches fetching of a source on or off.
func (r *Registry) SetEnabled(ctx context.Context, sourceID int64, enabled bool) error {
	if err := r.sources.SetSourceEnabled(ctx, sourceID, enabled); err != nil {
		return fmt.Errorf("set enabled of source %d: %w", sourceID, err)
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
