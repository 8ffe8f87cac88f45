package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsChecker answers robots.txt questions, caching one parsed file per host.
type RobotsChecker struct {
	client    *http.Client
	userAgent string

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		cache:     map[string]*robotstxt.RobotsData{},
	}
}

// Allowed reports whether rawURL may be fetched. An unreachable robots.txt allows everything.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse URL: %w", err)
	}

	data, err := r.robots(ctx, parsed)
	if err != nil {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, productToken(r.userAgent)), nil
}

func (r *RobotsChecker) robots(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)

	r.mu.RLock()
	data, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, target.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[host] = data
	r.mu.Unlock()
	return data, nil
}

// productToken strips the version from a user agent ("NewsPipeline/1.0" -> "NewsPipeline").
func productToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ua
	}
	return strings.Split(fields[0], "/")[0]
}
