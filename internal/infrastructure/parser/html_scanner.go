package parser

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/scanner"
)

// Option keys understood by HTMLScanner. Values are CSS selectors.
const (
	OptionItem    = "item"
	OptionTitle   = "title"
	OptionLink    = "link"
	OptionSummary = "summary"
	OptionDate    = "date"
	OptionImage   = "image"
)

var htmlDefaults = map[string]string{
	OptionItem:    "article",
	OptionTitle:   "h1, h2, h3",
	OptionLink:    "a[href]",
	OptionSummary: "p",
	OptionDate:    "time",
	OptionImage:   "img[src]",
}

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// HTMLScanner scrapes listing pages that have no feed, driven by per-source selectors.
type HTMLScanner struct {
	now func() time.Time
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

func NewHTMLScanner() *HTMLScanner {
	return &HTMLScanner{now: time.Now}
}

// Kind identifies the strategy inside the registry.
func (h *HTMLScanner) Kind() domain.SourceKind {
	return domain.SourceKindHTML
}

// Scan walks every item block of the listing and returns one candidate per distinct link.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]ports.FeedCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(req.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	sel := selectors(req.Options)
	seen := map[string]struct{}{}
	var results []ports.FeedCandidate

	doc.Find(sel[OptionItem]).Each(func(_ int, block *goquery.Selection) {
		candidate, ok := h.parseBlock(block, sel, req.BaseURL)
		if !ok {
			return
		}
		if _, dup := seen[candidate.URL]; dup {
			return
		}
		seen[candidate.URL] = struct{}{}
		results = append(results, candidate)
	})

	return results, nil
}

func (h *HTMLScanner) parseBlock(block *goquery.Selection, sel map[string]string, base string) (ports.FeedCandidate, bool) {
	title := strings.TrimSpace(block.Find(sel[OptionTitle]).First().Text())

	link := block.Find(sel[OptionLink]).First()
	href, exists := link.Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return ports.FeedCandidate{}, false
	}
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	if title == "" {
		return ports.FeedCandidate{}, false
	}

	summary := strings.TrimSpace(block.Find(sel[OptionSummary]).First().Text())

	image, _ := block.Find(sel[OptionImage]).First().Attr("src")
	if image != "" {
		image = resolveURL(base, image)
	}

	return ports.FeedCandidate{
		URL:         resolveURL(base, strings.TrimSpace(href)),
		Title:       title,
		Summary:     summary,
		ImageURL:    image,
		PublishedAt: h.parseDate(block.Find(sel[OptionDate]).First()),
	}, true
}

func (h *HTMLScanner) parseDate(node *goquery.Selection) time.Time {
	if value, ok := node.Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
			return parsed.UTC()
		}
	}

	if match := dateExpr.FindString(node.Text()); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			return parsed.UTC()
		}
	}

	return h.now().UTC()
}

func selectors(options map[string]string) map[string]string {
	out := make(map[string]string, len(htmlDefaults))
	for key, value := range htmlDefaults {
		out[key] = value
		if custom := strings.TrimSpace(options[key]); custom != "" {
			out[key] = custom
		}
	}
	return out
}

// resolveURL makes ref absolute against base; ref is returned as is when either fails to parse.
func resolveURL(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() || base == "" {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
