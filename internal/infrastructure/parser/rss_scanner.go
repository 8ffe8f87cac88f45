package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/scanner"
)

// RSSScanner reads RSS, Atom and JSON feeds.
type RSSScanner struct {
	now func() time.Time
}

var _ scanner.Scanner = (*RSSScanner)(nil)

func NewRSSScanner() *RSSScanner {
	return &RSSScanner{now: time.Now}
}

// Kind identifies the strategy inside the registry.
func (s *RSSScanner) Kind() domain.SourceKind {
	return domain.SourceKindRSS
}

// Scan parses the feed document. Entries without a link are skipped.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]ports.FeedCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(req.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.SourceName, err)
	}

	out := make([]ports.FeedCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" {
			continue
		}

		out = append(out, ports.FeedCandidate{
			URL:         resolveURL(req.BaseURL, link),
			Title:       item.Title,
			Summary:     item.Description,
			Body:        item.Content,
			Author:      itemAuthor(item),
			ImageURL:    itemImage(item),
			PublishedAt: s.itemTime(item),
		})
	}
	return out, nil
}

func (s *RSSScanner) itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return s.now().UTC()
	}
}

func itemAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	return ""
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
