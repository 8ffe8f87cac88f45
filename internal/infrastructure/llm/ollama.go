package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaGenerator talks to a local Ollama server through /api/generate.
type OllamaGenerator struct {
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
}

var _ ports.TextGenerator = (*OllamaGenerator)(nil)

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func NewOllamaGenerator(cfg config.LLMConfig) (*OllamaGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaGenerator{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		http:      newHTTPClient(cfg),
	}, nil
}

func (g *OllamaGenerator) Name() string {
	return "ollama"
}

func (g *OllamaGenerator) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	apiReq := ollamaRequest{
		Model:  g.model,
		Prompt: req.Prompt,
		System: req.SystemPrompt,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  maxTokens,
		},
	}
	if req.JSON {
		apiReq.Format = "json"
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ports.Completion{}, fmt.Errorf("ollama error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.Completion{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return ports.Completion{}, fmt.Errorf("ollama error: %s", out.Error)
	}

	return ports.Completion{
		Content:    strings.TrimSpace(out.Response),
		Model:      out.Model,
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}
