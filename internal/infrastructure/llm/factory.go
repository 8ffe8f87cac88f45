package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

// NewGenerator builds the configured backend. An empty provider disables the
// capability and returns a nil generator so callers use their fallbacks.
func NewGenerator(cfg config.LLMConfig) (ports.TextGenerator, error) {
	var (
		gen ports.TextGenerator
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "openai":
		gen, err = NewOpenAIGenerator(cfg)
	case "ollama":
		gen, err = NewOllamaGenerator(cfg)
	case "inference":
		gen, err = NewInferenceGenerator(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm provider %s: %w", cfg.Provider, err)
	}
	return gen, nil
}

func newHTTPClient(cfg config.LLMConfig) *http.Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
