package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"NewsPipeline/internal/ports"
)

// CachedGenerator memoizes completions so queue retries of the same item do
// not pay for identical prompts twice.
type CachedGenerator struct {
	next  ports.TextGenerator
	cache *gocache.Cache
}

var _ ports.TextGenerator = (*CachedGenerator)(nil)

// NewCachedGenerator wraps next. A nil next or a non-positive ttl returns next unchanged.
func NewCachedGenerator(next ports.TextGenerator, ttl time.Duration) ports.TextGenerator {
	if next == nil || ttl <= 0 {
		return next
	}
	return &CachedGenerator{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedGenerator) Name() string {
	return c.next.Name()
}

func (c *CachedGenerator) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	key := cacheKey(c.next.Name(), req)
	if hit, ok := c.cache.Get(key); ok {
		return hit.(ports.Completion), nil
	}

	out, err := c.next.Complete(ctx, req)
	if err != nil {
		return ports.Completion{}, err
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

func cacheKey(provider string, req ports.CompletionRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%g\x00%t", provider, req.SystemPrompt, req.Prompt, req.MaxTokens, req.Temperature, req.JSON)
	return hex.EncodeToString(h.Sum(nil))
}
