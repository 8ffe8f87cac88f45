package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

// OpenAIGenerator implements ports.TextGenerator with the Chat Completions API
// of OpenAI or any compatible server.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

var _ ports.TextGenerator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator builds a client from configuration.
func NewOpenAIGenerator(cfg config.LLMConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient(cfg)

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIGenerator{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (g *OpenAIGenerator) Name() string {
	return "openai"
}

// Complete sends one system+user exchange and returns the first choice.
func (g *OpenAIGenerator) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ports.Completion{}, fmt.Errorf("openai completion: no choices returned")
	}

	return ports.Completion{
		Content:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
