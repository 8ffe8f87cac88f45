package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/metrics"
	"NewsPipeline/internal/ports"
)

// Assistant turns editorial tasks into prompts for a TextGenerator. A nil
// generator yields unsuccessful results carrying domain.ErrNotConfigured.
type Assistant struct {
	gen    ports.TextGenerator
	logger *slog.Logger
}

var _ ports.Assistant = (*Assistant)(nil)

func NewAssistant(gen ports.TextGenerator, logger *slog.Logger) *Assistant {
	return &Assistant{gen: gen, logger: logger}
}

// Rewrite produces a tagged article in lang from the source text.
func (a *Assistant) Rewrite(ctx context.Context, text, lang string) ports.AIResult {
	return a.run(ctx, "rewrite", ports.CompletionRequest{
		SystemPrompt: editorSystemPrompt,
		Prompt:       rewritePrompt(text, lang),
		Temperature:  0.4,
	})
}

// Translate converts a tagged article between languages.
func (a *Assistant) Translate(ctx context.Context, text, from, to string) ports.AIResult {
	return a.run(ctx, "translate", ports.CompletionRequest{
		SystemPrompt: editorSystemPrompt,
		Prompt:       translatePrompt(text, from, to),
		Temperature:  0.2,
	})
}

// GenerateSEO asks for a JSON metadata object.
func (a *Assistant) GenerateSEO(ctx context.Context, title, body, lang string) ports.AIResult {
	return a.run(ctx, "seo", ports.CompletionRequest{
		SystemPrompt: analystSystemPrompt,
		Prompt:       seoPrompt(title, body, lang),
		Temperature:  0.2,
		JSON:         true,
	})
}

// ExtractEntities asks for keywords, entities and a category as JSON.
func (a *Assistant) ExtractEntities(ctx context.Context, text string) ports.AIResult {
	return a.run(ctx, "entities", ports.CompletionRequest{
		SystemPrompt: analystSystemPrompt,
		Prompt:       entitiesPrompt(text),
		JSON:         true,
	})
}

// Classify picks one of the categories. Answers outside the list are failures.
func (a *Assistant) Classify(ctx context.Context, text string, categories []string) ports.AIResult {
	res := a.run(ctx, "classify", ports.CompletionRequest{
		SystemPrompt: analystSystemPrompt,
		Prompt:       classifyPrompt(text, categories),
		MaxTokens:    16,
	})
	if !res.Success {
		return res
	}
	answer := strings.ToLower(strings.Trim(strings.TrimSpace(res.Content), ".\"'"))
	for _, c := range categories {
		if strings.EqualFold(c, answer) {
			res.Content = strings.ToLower(c)
			return res
		}
	}
	return ports.AIResult{Provider: res.Provider, Err: fmt.Errorf("classify: unexpected answer %q", res.Content)}
}

// Summarize returns a plain-text summary of at most maxWords words.
func (a *Assistant) Summarize(ctx context.Context, text, lang string, maxWords int) ports.AIResult {
	if maxWords <= 0 {
		maxWords = 60
	}
	return a.run(ctx, "summarize", ports.CompletionRequest{
		SystemPrompt: editorSystemPrompt,
		Prompt:       summarizePrompt(text, lang, maxWords),
		Temperature:  0.3,
	})
}

func (a *Assistant) run(ctx context.Context, task string, req ports.CompletionRequest) ports.AIResult {
	if a == nil || a.gen == nil {
		return ports.AIResult{Err: fmt.Errorf("%s: text generator: %w", task, domain.ErrNotConfigured)}
	}

	out, err := a.gen.Complete(ctx, req)
	if err == nil && strings.TrimSpace(out.Content) == "" {
		err = fmt.Errorf("empty completion")
	}
	metrics.RecordAI(task, err == nil)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("assistant task failed", "task", task, "provider", a.gen.Name(), "error", err)
		}
		return ports.AIResult{Provider: a.gen.Name(), Err: fmt.Errorf("%s: %w", task, err)}
	}

	if a.logger != nil {
		a.logger.Debug("assistant task done", "task", task, "provider", a.gen.Name(), "tokens", out.TokensUsed)
	}
	return ports.AIResult{Content: out.Content, Provider: a.gen.Name(), Success: true}
}
