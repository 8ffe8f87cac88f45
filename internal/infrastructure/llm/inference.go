package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

// InferenceGenerator talks to a self-hosted inference service exposing
// POST {base}/complete with a flat JSON contract.
type InferenceGenerator struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
}

var _ ports.TextGenerator = (*InferenceGenerator)(nil)

type inferenceRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature"`
	JSON        bool    `json:"json,omitempty"`
}

type inferenceResponse struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

func NewInferenceGenerator(cfg config.LLMConfig) (*InferenceGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("inference base url is required")
	}
	return &InferenceGenerator{
		endpoint:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		http:      newHTTPClient(cfg),
	}, nil
}

func (c *InferenceGenerator) Name() string {
	return "inference"
}

func (c *InferenceGenerator) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	var resp inferenceResponse
	err := c.post(ctx, "/complete", inferenceRequest{
		Model:       c.model,
		Prompt:      req.Prompt,
		System:      req.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		JSON:        req.JSON,
	}, &resp)
	if err != nil {
		return ports.Completion{}, err
	}

	return ports.Completion{
		Content:    strings.TrimSpace(resp.Content),
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
	}, nil
}

func (c *InferenceGenerator) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
