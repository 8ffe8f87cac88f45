package scanner

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// Request carries one downloaded feed document to a strategy.
type Request struct {
	SourceName string
	// BaseURL is the address the document was read from; relative links resolve against it.
	BaseURL string
	Body    io.Reader
	Options map[string]string
}

// Scanner turns a feed document of one source kind into candidates.
type Scanner interface {
	Kind() domain.SourceKind
	Scan(ctx context.Context, req Request) ([]ports.FeedCandidate, error)
}

// Registry maps source kinds to their scanners.
type Registry struct {
	byKind map[domain.SourceKind]Scanner
}

func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{byKind: make(map[domain.SourceKind]Scanner, len(scanners))}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the scanner for its kind.
func (r *Registry) Register(s Scanner) {
	if r.byKind == nil {
		r.byKind = map[domain.SourceKind]Scanner{}
	}
	r.byKind[s.Kind()] = s
}

// Resolve returns the scanner for kind. An empty kind means RSS.
func (r *Registry) Resolve(kind domain.SourceKind) (Scanner, error) {
	if kind == "" {
		kind = domain.SourceKindRSS
	}
	if s, ok := r.byKind[kind]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no scanner for kind %q (known: %s): %w",
		kind, strings.Join(r.Kinds(), ", "), domain.ErrNotConfigured)
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}
