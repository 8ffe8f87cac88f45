package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/storage"
	"NewsPipeline/internal/ports"
)

var errBackend = errors.New("backend unavailable")

// fakeAssistant answers every task like a well-behaved model unless a task is
// listed in failing.
type fakeAssistant struct {
	mu      sync.Mutex
	calls   map[string]int
	failing map[string]bool
	raw     map[string]string
}

func newFakeAssistant(failing ...string) *fakeAssistant {
	f := &fakeAssistant{calls: map[string]int{}, failing: map[string]bool{}, raw: map[string]string{}}
	for _, task := range failing {
		f.failing[task] = true
	}
	return f
}

func (f *fakeAssistant) answer(task, content string) ports.AIResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[task]++
	if f.failing[task] {
		return ports.AIResult{Provider: "fake", Err: fmt.Errorf("%s: %w", task, errBackend)}
	}
	if raw, ok := f.raw[task]; ok {
		content = raw
	}
	return ports.AIResult{Content: content, Provider: "fake", Success: true}
}

func (f *fakeAssistant) count(task string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[task]
}

func (f *fakeAssistant) Rewrite(_ context.Context, text, lang string) ports.AIResult {
	title, _, _ := strings.Cut(text, "\n")
	return f.answer("rewrite", fmt.Sprintf("<title>%s</title>\n<lead>Lead %s</lead>\n<body>Body %s\n\nZweiter Absatz</body>", title, lang, lang))
}

func (f *fakeAssistant) Translate(_ context.Context, text, _, to string) ports.AIResult {
	title := firstGroup(tagTitle, text)
	return f.answer("translate", fmt.Sprintf("<title>[%s] %s</title>\n<lead>Lead %s</lead>\n<body>Body %s</body>", to, title, to, to))
}

func (f *fakeAssistant) GenerateSEO(_ context.Context, title, _, _ string) ports.AIResult {
	return f.answer("seo", fmt.Sprintf(`{"title": %q, "description": "Beschreibung", "keywords": ["regeln"], "slug": %q}`, title, title))
}

func (f *fakeAssistant) ExtractEntities(context.Context, string) ports.AIResult {
	return f.answer("entities", `{"keywords": ["regeln", "stadtrat"], "entities": ["Stadtrat"], "category": "lokales"}`)
}

func (f *fakeAssistant) Classify(_ context.Context, _ string, categories []string) ports.AIResult {
	return f.answer("classify", categories[0])
}

func (f *fakeAssistant) Summarize(context.Context, string, string, int) ports.AIResult {
	return f.answer("summarize", "Kurz gesagt.")
}

// stubScorer returns a fixed fact-check score.
type stubScorer struct {
	score float64
	err   error
}

func (s stubScorer) Check(_ context.Context, item domain.RawItem, _ domain.Source) (domain.FactCheckResult, error) {
	if s.err != nil {
		return domain.FactCheckResult{}, s.err
	}
	return domain.FactCheckResult{RawItemID: item.ID, Score: s.score}, nil
}

// fakeChannel records every publish and fails when err is set.
type fakeChannel struct {
	name string
	err  error

	mu        sync.Mutex
	published []ports.PublishRequest
	media     []string
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Publish(_ context.Context, req ports.PublishRequest) (ports.PublishResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, req)
	if c.err != nil {
		return ports.PublishResult{}, c.err
	}
	return ports.PublishResult{URL: fmt.Sprintf("https://%s.example/%d", c.name, req.Draft.ID), RemoteID: fmt.Sprint(req.Draft.ID)}, nil
}

func (c *fakeChannel) SetFeaturedMedia(_ context.Context, remoteID, mediaURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.media = append(c.media, remoteID+"="+mediaURL)
	return nil
}

func (c *fakeChannel) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

// staticFeed serves fixed candidates per source URL.
type staticFeed struct {
	entries map[string][]ports.FeedCandidate
	errs    map[string]error
}

func (s staticFeed) Fetch(_ context.Context, src domain.Source) ([]ports.FeedCandidate, error) {
	if err := s.errs[src.URL]; err != nil {
		return nil, err
	}
	return s.entries[src.URL], nil
}

func testPipelineConfig() config.PipelineConfig {
	cfg := config.Default().Pipeline
	cfg.AutoPublishEnabled = true
	cfg.TargetLanguages = []string{"de", "en"}
	return cfg
}

func mustSource(t testing.TB, store ports.Store, src domain.Source) domain.Source {
	t.Helper()
	if src.Kind == "" {
		src.Kind = domain.SourceKindRSS
	}
	id, err := store.CreateSource(context.Background(), src)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	src.ID = id
	return src
}

func mustItem(t testing.TB, store ports.Store, src domain.Source, url, title, body string, published time.Time) domain.RawItem {
	t.Helper()
	canonical, hash, err := Fingerprint(url)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	item := domain.RawItem{
		SourceID:     src.ID,
		URL:          url,
		CanonicalURL: canonical,
		URLHash:      hash,
		Title:        title,
		Body:         body,
		PublishedAt:  published,
		FetchedAt:    time.Now().UTC(),
		Lang:         src.Lang,
		Status:       domain.RawItemNew,
	}
	id, _, err := store.InsertRawItem(context.Background(), item)
	if err != nil {
		t.Fatalf("insert item: %v", err)
	}
	item.ID = id
	return item
}

func newTestStore() *storage.MemoryStore {
	return storage.NewMemoryStore()
}
