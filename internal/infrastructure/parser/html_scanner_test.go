package parser

import (
	"context"
	"strings"
	"testing"
	"time"

	"NewsPipeline/internal/scanner"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/news/1":                 "https://example.org/news/1",
		"story.html":              "https://example.org/section/story.html",
		"https://other.org/a?b=c": "https://other.org/a?b=c",
	}
	for ref, want := range cases {
		if got := resolveURL("https://example.org/section/", ref); got != want {
			t.Fatalf("resolveURL(%q) = %q, want %q", ref, got, want)
		}
	}
}

func TestHTMLScannerScan(t *testing.T) {
	t.Parallel()

	page := `
	<main>
	  <article>
	    <h2>Stadtrat beschließt neuen Haushalt</h2>
	    <a href="/lokal/haushalt">weiter</a>
	    <time datetime="2025-11-08T09:30:00Z">8 Nov 2025</time>
	    <p>Der Stadtrat hat am Freitag den Haushalt verabschiedet.</p>
	    <img src="/img/rathaus.jpg">
	  </article>
	  <article>
	    <h2>Old Article</h2>
	    <a href="/lokal/alt">weiter</a>
	    <time>7 Nov 2025</time>
	  </article>
	  <article>
	    <h2>Comments</h2>
	    <a href="/lokal/haushalt#comments">comments</a>
	  </article>
	  <article><p>no link here</p></article>
	</main>`

	sc := NewHTMLScanner()
	fixed := time.Date(2025, time.November, 10, 0, 0, 0, 0, time.UTC)
	sc.now = func() time.Time { return fixed }

	candidates, err := sc.Scan(context.Background(), scanner.Request{
		SourceName: "stadtblatt",
		BaseURL:    "https://stadtblatt.example/lokal/",
		Body:       strings.NewReader(page),
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.URL != "https://stadtblatt.example/lokal/haushalt" {
		t.Fatalf("unexpected url: %s", first.URL)
	}
	if first.Title != "Stadtrat beschließt neuen Haushalt" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if first.ImageURL != "https://stadtblatt.example/img/rathaus.jpg" {
		t.Fatalf("unexpected image: %s", first.ImageURL)
	}
	if !first.PublishedAt.Equal(time.Date(2025, time.November, 8, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published date: %v", first.PublishedAt)
	}

	if got := candidates[1].PublishedAt.Format("2006-01-02"); got != "2025-11-07" {
		t.Fatalf("unexpected text date: %s", got)
	}
	if !candidates[2].PublishedAt.Equal(fixed) {
		t.Fatalf("expected fallback to now, got %v", candidates[2].PublishedAt)
	}
}

func TestHTMLScannerCustomSelectors(t *testing.T) {
	t.Parallel()

	page := `<ul><li class="teaser"><a class="headline" href="https://x.example/a">Headline A</a></li></ul>`

	candidates, err := NewHTMLScanner().Scan(context.Background(), scanner.Request{
		Body:    strings.NewReader(page),
		Options: map[string]string{OptionItem: "li.teaser", OptionLink: "a.headline", OptionTitle: ".missing"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Title != "Headline A" {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
}
