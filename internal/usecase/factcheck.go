package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/metrics"
	"NewsPipeline/internal/ports"
)

const (
	weightSource   = 0.3
	weightCrossRef = 0.4
	weightContent  = 0.3

	crossRefWindow     = 48 * time.Hour
	confirmSimilarity  = 0.35
	crossRefBase       = 0.3
	crossRefPerTrust   = 0.35
	trustHistoryWindow = 30 * 24 * time.Hour
	trustHistoryLimit  = 50
	trustKeep          = 0.7
)

var sensationalMarkers = []string{
	"shocking", "unbelievable", "you won't believe", "sensation", "bombshell", "outrage",
	"schock", "unglaublich", "sensationell", "skandalös", "wahnsinn", "hammer",
	"шок", "сенсація", "неймовірно", "сенсация", "невероятно",
	"!!!",
}

var concreteFact = regexp.MustCompile(`\d`)

// FactChecker scores how well an item is backed by its source, by other
// sources and by its own content.
type FactChecker struct {
	sources ports.SourceRepository
	items   ports.RawItemRepository
	checks  ports.FactCheckRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewFactChecker(sources ports.SourceRepository, items ports.RawItemRepository, checks ports.FactCheckRepository, logger *slog.Logger) *FactChecker {
	return &FactChecker{sources: sources, items: items, checks: checks, logger: loggerOrDiscard(logger), now: utcNow}
}

// Check computes, stores and returns a new fact-check result for the item and
// writes the score onto the item.
func (f *FactChecker) Check(ctx context.Context, item domain.RawItem, source domain.Source) (domain.FactCheckResult, error) {
	crossRef, confirmed, err := f.crossReference(ctx, item)
	if err != nil {
		return domain.FactCheckResult{}, err
	}

	sourceScore := domain.Clamp01(source.TrustScore)
	content := ContentScore(item.Text())
	result := domain.FactCheckResult{
		RawItemID:         item.ID,
		Score:             BlendScore(sourceScore, crossRef, content),
		SourcesConfirmed:  confirmed,
		SourceComponent:   sourceScore,
		CrossRefComponent: crossRef,
		ContentComponent:  content,
		ComputedAt:        f.now(),
	}

	id, err := f.checks.InsertFactCheck(ctx, result)
	if err != nil {
		return domain.FactCheckResult{}, fmt.Errorf("store fact check: %w", err)
	}
	result.ID = id

	if err := f.items.SetFactCheckScore(ctx, item.ID, result.Score); err != nil {
		return domain.FactCheckResult{}, fmt.Errorf("store item score: %w", err)
	}

	metrics.RecordFactCheck(result.Score)
	f.logger.Debug("fact check", "item", item.ID, "score", result.Score, "confirmed", confirmed)
	return result, nil
}

// BlendScore combines the three components into the clamped item score.
func BlendScore(source, crossRef, content float64) float64 {
	return domain.Clamp01(weightSource*domain.Clamp01(source) +
		weightCrossRef*domain.Clamp01(crossRef) +
		weightContent*domain.Clamp01(content))
}

// crossReference looks for similar titles from other sources around the
// item's publication time. Each confirming source counts once.
func (f *FactChecker) crossReference(ctx context.Context, item domain.RawItem) (float64, int, error) {
	at := item.PublishedAt
	if at.IsZero() {
		at = item.FetchedAt
	}

	others, err := f.items.ListRecentRawItems(ctx, at.Add(-crossRefWindow), at.Add(crossRefWindow), item.SourceID)
	if err != nil {
		return 0, 0, fmt.Errorf("list related items: %w", err)
	}

	confirming := map[int64]bool{}
	for _, other := range others {
		if other.ID == item.ID || confirming[other.SourceID] {
			continue
		}
		if Jaccard(item.Title, other.Title) >= confirmSimilarity {
			confirming[other.SourceID] = true
		}
	}

	var trust float64
	for sourceID := range confirming {
		src, err := f.sources.GetSource(ctx, sourceID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return 0, 0, fmt.Errorf("load confirming source %d: %w", sourceID, err)
		}
		trust += domain.Clamp01(src.TrustScore)
	}

	return domain.Clamp01(crossRefBase + crossRefPerTrust*trust), len(confirming), nil
}

// ContentScore rates the text itself: sensational wording lowers the score,
// concrete numbers and dates raise it, very short text lowers it.
func ContentScore(text string) float64 {
	score := 0.5
	lower := strings.ToLower(text)

	markers := 0
	for _, m := range sensationalMarkers {
		if strings.Contains(lower, m) {
			markers++
		}
	}
	score -= math.Min(0.45, 0.15*float64(markers))

	if concreteFact.MatchString(text) {
		score += 0.2
	}

	switch n := utf8.RuneCountInString(strings.TrimSpace(text)); {
	case n < 200:
		score -= 0.2
	case n > 1000:
		score += 0.1
	}

	return domain.Clamp01(score)
}

// RecomputeTrust moves the source trust towards the average of its recent
// fact-check scores and records the change. It reports whether the score moved.
func (f *FactChecker) RecomputeTrust(ctx context.Context, sourceID int64) (bool, error) {
	src, err := f.sources.GetSource(ctx, sourceID)
	if err != nil {
		return false, fmt.Errorf("load source %d: %w", sourceID, err)
	}

	scores, err := f.checks.RecentScoresForSource(ctx, sourceID, f.now().Add(-trustHistoryWindow), trustHistoryLimit)
	if err != nil {
		return false, fmt.Errorf("load scores of source %d: %w", sourceID, err)
	}
	if len(scores) == 0 {
		return false, nil
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))

	old := domain.Clamp01(src.TrustScore)
	next := math.Round(domain.Clamp01(trustKeep*old+(1-trustKeep)*avg)*10000) / 10000
	if next == src.TrustScore {
		return false, nil
	}

	if err := f.sources.UpdateSourceTrust(ctx, sourceID, next); err != nil {
		return false, fmt.Errorf("update source %d: %w", sourceID, err)
	}
	if err := f.sources.InsertTrustChange(ctx, domain.TrustChange{
		SourceID:  sourceID,
		OldScore:  old,
		NewScore:  next,
		Reason:    fmt.Sprintf("fact_check_feedback avg=%.3f n=%d", avg, len(scores)),
		ChangedAt: f.now(),
	}); err != nil {
		return true, fmt.Errorf("record trust change of source %d: %w", sourceID, err)
	}

	f.logger.Info("source trust updated", "source", src.Name, "old", old, "new", next, "samples", len(scores))
	return true, nil
}
