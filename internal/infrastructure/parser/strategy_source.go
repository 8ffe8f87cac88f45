package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/scanner"
)

const maxDocumentBytes = 10 << 20

// FetchOptions tunes the HTTP side of StrategySource.
type FetchOptions struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
}

// StrategySource implements FeedSource by downloading a source and handing
// the document to the scanner registered for the source kind.
type StrategySource struct {
	registry *scanner.Registry
	client   *http.Client
	limiter  *HostLimiter
	robots   *RobotsChecker
	opts     FetchOptions
	logger   *slog.Logger
}

var _ ports.FeedSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with transport policies. limiter may be nil.
func NewStrategySource(reg *scanner.Registry, client *http.Client, limiter *HostLimiter, opts FetchOptions, log *slog.Logger) *StrategySource {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "NewsPipeline/1.0"
	}
	s := &StrategySource{
		registry: reg,
		client:   client,
		limiter:  limiter,
		opts:     opts,
		logger:   log,
	}
	if opts.RespectRobots {
		s.robots = NewRobotsChecker(client, opts.UserAgent)
	}
	return s
}

// Fetch downloads the source document and returns its sanitized candidates.
func (s *StrategySource) Fetch(ctx context.Context, source domain.Source) ([]ports.FeedCandidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(source.Kind)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if s.robots != nil {
		allowed, err := s.robots.Allowed(ctx, source.URL)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", source.Name, err)
		}
		if !allowed {
			return nil, fmt.Errorf("source %s: disallowed by robots.txt", source.Name)
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, source.URL); err != nil {
			return nil, fmt.Errorf("source %s: rate limit wait: %w", source.Name, err)
		}
	}

	body, err := s.download(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}
	defer body.Close()

	s.debug("scan source", "source", source.Name, "kind", strategy.Kind())
	results, err := strategy.Scan(ctx, scanner.Request{
		SourceName: source.Name,
		BaseURL:    source.URL,
		Body:       io.LimitReader(body, maxDocumentBytes),
		Options:    source.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", source.Name, err)
	}

	out := make([]ports.FeedCandidate, 0, len(results))
	for _, c := range results {
		c.Title = StripHTML(c.Title)
		c.Summary = StripHTML(c.Summary)
		c.Body = StripHTML(c.Body)
		c.Author = strings.TrimSpace(c.Author)
		if c.URL == "" || c.Title == "" {
			continue
		}
		out = append(out, c)
	}

	s.debug("source produced candidates", "source", source.Name, "count", len(out))
	return out, nil
}

func (s *StrategySource) download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
