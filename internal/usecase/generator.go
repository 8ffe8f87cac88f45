package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/metrics"
	"NewsPipeline/internal/ports"
)

// Risk flags attached to drafts.
const (
	FlagSensitiveTopic  = "sensitive_topic"
	FlagLowFactCheck    = "low_fact_check"
	FlagLowSourceTrust  = "low_source_trust"
	FlagAIUnavailable   = "ai_unavailable"
	FlagAIFallbackParse = "ai_fallback_parse"
	FlagShortContent    = "short_content"
)

const (
	shortContentRunes = 200
	maxTags           = 10
	leadSummaryWords  = 40
)

type itemScorer interface {
	Check(ctx context.Context, item domain.RawItem, source domain.Source) (domain.FactCheckResult, error)
}

// Generator turns a raw item into one gated draft per target language.
type Generator struct {
	items   ports.RawItemRepository
	sources ports.SourceRepository
	drafts  ports.DraftRepository
	dedup   *Deduplicator
	scorer  itemScorer
	ai      ports.Assistant
	policy  GatePolicy
	cfg     config.PipelineConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewGenerator(store ports.Store, dedup *Deduplicator, scorer itemScorer, ai ports.Assistant, cfg config.PipelineConfig, logger *slog.Logger) *Generator {
	return &Generator{
		items:   store,
		sources: store,
		drafts:  store,
		dedup:   dedup,
		scorer:  scorer,
		ai:      ai,
		policy:  GatePolicyFromConfig(cfg),
		cfg:     cfg,
		logger:  loggerOrDiscard(logger),
		now:     utcNow,
	}
}

// ProcessItem analyses, fact-checks and writes drafts for the item. Items in
// a final state are left alone, and drafts that already exist for a language
// are returned instead of generated again, so retries are safe. On error the
// item goes back to new for the next attempt.
func (g *Generator) ProcessItem(ctx context.Context, rawItemID int64) ([]domain.Draft, error) {
	item, err := g.items.GetRawItem(ctx, rawItemID)
	if err != nil {
		return nil, fmt.Errorf("load raw item %d: %w", rawItemID, err)
	}
	if item.Status.IsFinal() {
		return nil, nil
	}

	source, err := g.sources.GetSource(ctx, item.SourceID)
	if err != nil {
		return nil, fmt.Errorf("load source of item %d: %w", item.ID, err)
	}

	if err := g.items.UpdateRawItemStatus(ctx, item.ID, domain.RawItemProcessing); err != nil {
		return nil, fmt.Errorf("mark item %d processing: %w", item.ID, err)
	}
	final := domain.RawItemNew
	defer func() {
		if err := g.items.UpdateRawItemStatus(context.WithoutCancel(ctx), item.ID, final); err != nil {
			g.logger.Error("cannot store item status", "item", item.ID, "status", final, "error", err)
		}
	}()

	duplicate, err := g.dedup.IsRecentDuplicate(ctx, item)
	if err != nil {
		return nil, err
	}
	if duplicate {
		g.logger.Info("recent duplicate", "item", item.ID, "title", item.Title)
		final = domain.RawItemDuplicate
		return nil, nil
	}

	text := item.Text()
	analysis := analyze(ctx, g.ai, text, source.Category)
	category := strings.ToLower(source.Category)
	if category == "" {
		category = analysis.Category
	}

	check, err := g.scorer.Check(ctx, item, source)
	if err != nil {
		return nil, fmt.Errorf("fact check item %d: %w", item.ID, err)
	}

	_, sensitive := ContainsAny(item.Title+"\n"+item.Summary, g.cfg.SensitiveKeywords)
	status, reason := DetermineStatus(g.policy, GateInput{
		Category:           category,
		FactCheckScore:     check.Score,
		SourceTrust:        source.TrustScore,
		Sensitive:          sensitive,
		AutoPublishEnabled: g.cfg.AutoPublishEnabled,
	})

	srcLang := strings.ToLower(item.Lang)
	if srcLang == "" {
		srcLang = strings.ToLower(source.Lang)
	}

	var (
		drafts []domain.Draft
		base   *sourceArticle
	)
	for _, lang := range g.cfg.TargetLanguages {
		existing, err := g.drafts.FindDraft(ctx, item.ID, lang)
		if err == nil {
			drafts = append(drafts, existing)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return drafts, fmt.Errorf("find draft %d/%s: %w", item.ID, lang, err)
		}

		if base == nil {
			base = g.rewrite(ctx, item, srcLang)
		}

		article, flags, err := g.localize(ctx, *base, srcLang, lang)
		if err != nil {
			return drafts, fmt.Errorf("generate %s draft of item %d: %w", lang, item.ID, err)
		}

		draft := domain.Draft{
			RawItemID: &item.ID,
			Lang:      lang,
			Title:     article.Title,
			Lead:      article.Lead,
			Body:      article.Body,
			Category:  category,
			Tags:      tags(analysis),
			Status:    domain.DraftAIDraft,
			CreatedBy: createdBy(base.provider),
		}
		seo := g.seo(ctx, article, lang, analysis.Keywords)
		draft.SEOTitle = seo.Title
		draft.SEODescription = seo.Description
		draft.SEOKeywords = seo.Keywords
		draft.Slug = seo.Slug
		draft.RiskFlags = g.riskFlags(flags, sensitive, check.Score, source.TrustScore, article)

		if err := draft.Transition(status, g.now()); err != nil {
			return drafts, err
		}
		draft.GateReason = reason
		if err := draft.Validate(); err != nil {
			return drafts, err
		}

		id, err := g.drafts.CreateDraft(ctx, draft)
		if errors.Is(err, domain.ErrDuplicate) {
			if existing, ferr := g.drafts.FindDraft(ctx, item.ID, lang); ferr == nil {
				drafts = append(drafts, existing)
				continue
			}
		}
		if err != nil {
			return drafts, fmt.Errorf("store %s draft of item %d: %w", lang, item.ID, err)
		}
		draft.ID = id
		drafts = append(drafts, draft)

		metrics.RecordDraft(lang, string(draft.Status))
		g.logger.Info("draft created", "draft", id, "item", item.ID, "lang", lang, "status", draft.Status, "reason", reason)
	}

	final = domain.RawItemProcessed
	return drafts, nil
}

// sourceArticle is the item rewritten once in its own language.
type sourceArticle struct {
	article  Article
	flags    []string
	provider string
}

func (g *Generator) rewrite(ctx context.Context, item domain.RawItem, lang string) *sourceArticle {
	if g.ai != nil {
		res := g.ai.Rewrite(ctx, item.Text(), lang)
		if res.Success {
			a := ParseArticle(res.Content)
			out := &sourceArticle{article: a, provider: res.Provider}
			if a.WasFallback {
				out.flags = append(out.flags, FlagAIFallbackParse)
			}
			if a.Title == "" {
				out.article.Title = item.Title
			}
			return out
		}
		g.logger.Warn("rewrite failed, keeping original text", "item", item.ID, "error", res.Err)
	}

	body := strings.TrimSpace(item.Body)
	if body == "" {
		body = strings.TrimSpace(item.Summary)
	}
	return &sourceArticle{
		article: Article{Title: item.Title, Lead: g.fallbackLead(ctx, item, lang), Body: body},
		flags:   []string{FlagAIUnavailable},
	}
}

func (g *Generator) fallbackLead(ctx context.Context, item domain.RawItem, lang string) string {
	if lead := firstParagraph(item.Summary); lead != "" {
		return lead
	}
	if g.ai != nil && item.Body != "" {
		if res := g.ai.Summarize(ctx, item.Body, lang, leadSummaryWords); res.Success {
			return strings.TrimSpace(res.Content)
		}
	}
	return Truncate(firstParagraph(item.Body), seoDescriptionMax*2)
}

// localize returns the article in lang, translating the rewritten source
// article when the languages differ. A failed translation is an error so the
// queue retries the item.
func (g *Generator) localize(ctx context.Context, base sourceArticle, from, to string) (Article, []string, error) {
	flags := append([]string(nil), base.flags...)
	if to == from || from == "" {
		return base.article, flags, nil
	}
	if g.ai == nil {
		return Article{}, nil, fmt.Errorf("translate %s->%s: text generator: %w", from, to, domain.ErrNotConfigured)
	}

	res := g.ai.Translate(ctx, taggedArticle(base.article), from, to)
	if !res.Success {
		return Article{}, nil, fmt.Errorf("translate %s->%s: %w", from, to, res.Err)
	}
	a := ParseArticle(res.Content)
	if a.WasFallback {
		flags = appendUnique(flags, FlagAIFallbackParse)
	}
	return a, flags, nil
}

func (g *Generator) seo(ctx context.Context, a Article, lang string, keywords []string) SEO {
	if g.ai != nil {
		if res := g.ai.GenerateSEO(ctx, a.Title, a.Body, lang); res.Success {
			if seo, ok := ParseSEO(res.Content); ok {
				if len(seo.Keywords) == 0 {
					seo.Keywords = cleanList(keywords)
				}
				return seo
			}
		}
	}
	return FallbackSEO(a.Title, a.Lead, keywords)
}

func (g *Generator) riskFlags(flags []string, sensitive bool, score, trust float64, a Article) []string {
	out := make([]string, 0, len(flags)+4)
	if sensitive {
		out = append(out, FlagSensitiveTopic)
	}
	if score < g.policy.FactCheckThreshold {
		out = append(out, FlagLowFactCheck)
	}
	if trust < g.policy.SourceTrustThreshold {
		out = append(out, FlagLowSourceTrust)
	}
	for _, f := range flags {
		out = appendUnique(out, f)
	}
	if utf8.RuneCountInString(a.Lead+a.Body) < shortContentRunes {
		out = append(out, FlagShortContent)
	}
	return out
}

func taggedArticle(a Article) string {
	return "<title>" + a.Title + "</title>\n<lead>" + a.Lead + "</lead>\n<body>" + a.Body + "</body>"
}

func tags(a Analysis) []string {
	all := cleanList(append(append([]string(nil), a.Entities...), a.Keywords...))
	if len(all) > maxTags {
		all = all[:maxTags]
	}
	return all
}

func createdBy(provider string) string {
	if provider == "" {
		return "pipeline"
	}
	return "ai:" + provider
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
