package domain

import (
	"strings"
	"time"
	"unicode"
)

// RawItemStatus tracks a fetched item through processing.
type RawItemStatus string

const (
	RawItemNew        RawItemStatus = "new"
	RawItemProcessing RawItemStatus = "processing"
	RawItemProcessed  RawItemStatus = "processed"
	RawItemDuplicate  RawItemStatus = "duplicate"
	RawItemRejected   RawItemStatus = "rejected"
)

// IsFinal reports whether processing must not touch the item again.
func (s RawItemStatus) IsFinal() bool {
	switch s {
	case RawItemProcessed, RawItemDuplicate, RawItemRejected:
		return true
	}
	return false
}

// RawItem is a single fetched, not-yet-rewritten news item.
type RawItem struct {
	ID             int64
	SourceID       int64
	URL            string
	CanonicalURL   string
	URLHash        string
	Title          string
	Summary        string
	Body           string
	Author         string
	ImageURL       string
	PublishedAt    time.Time
	FetchedAt      time.Time
	Lang           string
	Status         RawItemStatus
	FactCheckScore *float64
}

// Text returns everything known about the item content, title first.
func (r RawItem) Text() string {
	text := r.Title
	if r.Summary != "" {
		text += "\n\n" + r.Summary
	}
	if r.Body != "" && r.Body != r.Summary {
		text += "\n\n" + r.Body
	}
	return text
}

// FactCheckResult is the immutable outcome of one trust check.
type FactCheckResult struct {
	ID                int64
	RawItemID         int64
	Score             float64
	SourcesConfirmed  int
	SourceComponent   float64
	CrossRefComponent float64
	ContentComponent  float64
	ComputedAt        time.Time
}

// NormalizeTitle folds a headline into the key used for recency duplicate checks:
// lower case, punctuation dropped, whitespace collapsed.
func NormalizeTitle(title string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
