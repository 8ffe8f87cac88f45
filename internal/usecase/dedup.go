package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// RecencyWindow bounds the title/URL duplicate check.
const RecencyWindow = 72 * time.Hour

var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"mc_eid":  true,
	"mc_cid":  true,
	"msclkid": true,
	"yclid":   true,
}

// CanonicalURL normalizes a URL for fingerprinting: fragment and tracking
// parameters dropped, query sorted, scheme and host lower-cased, trailing
// slash trimmed except for the root path.
func CanonicalURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	query := parsed.Query()
	for param := range query {
		lower := strings.ToLower(param)
		if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
			query.Del(param)
		}
	}
	// Encode sorts by key.
	parsed.RawQuery = query.Encode()

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		parsed.RawPath = ""
	}

	return parsed.String(), nil
}

// Fingerprint returns the canonical URL and its sha256 hex digest.
func Fingerprint(rawURL string) (canonical, hash string, err error) {
	canonical, err = CanonicalURL(rawURL)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return canonical, hex.EncodeToString(sum[:]), nil
}

// Deduplicator turns feed candidates into raw items exactly once.
type Deduplicator struct {
	items  ports.RawItemRepository
	window time.Duration
	now    func() time.Time
}

func NewDeduplicator(items ports.RawItemRepository) *Deduplicator {
	return &Deduplicator{items: items, window: RecencyWindow, now: utcNow}
}

// Ingest stores the candidate as a new raw item of the source. An existing
// fingerprint returns the stored id with duplicate set.
func (d *Deduplicator) Ingest(ctx context.Context, source domain.Source, c ports.FeedCandidate) (id int64, duplicate bool, err error) {
	canonical, hash, err := Fingerprint(c.URL)
	if err != nil {
		return 0, false, err
	}

	now := d.now()
	published := c.PublishedAt.UTC()
	if published.IsZero() {
		published = now
	}

	id, inserted, err := d.items.InsertRawItem(ctx, domain.RawItem{
		SourceID:     source.ID,
		URL:          c.URL,
		CanonicalURL: canonical,
		URLHash:      hash,
		Title:        c.Title,
		Summary:      c.Summary,
		Body:         c.Body,
		Author:       c.Author,
		ImageURL:     c.ImageURL,
		PublishedAt:  published,
		FetchedAt:    now,
		Lang:         source.Lang,
		Status:       domain.RawItemNew,
	})
	if err != nil {
		return 0, false, fmt.Errorf("insert raw item: %w", err)
	}
	return id, !inserted, nil
}

// IsRecentDuplicate reports whether another item with the same canonical URL
// or normalized title was fetched within the recency window.
func (d *Deduplicator) IsRecentDuplicate(ctx context.Context, item domain.RawItem) (bool, error) {
	since := d.now().Add(-d.window)
	matches, err := d.items.FindRecentMatches(ctx, item.CanonicalURL, domain.NormalizeTitle(item.Title), since, item.ID)
	if err != nil {
		return false, fmt.Errorf("find recent matches: %w", err)
	}
	for _, m := range matches {
		// The earliest copy stays live.
		if m.ID < item.ID {
			return true, nil
		}
	}
	return false, nil
}
