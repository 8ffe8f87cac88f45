package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/cms"
	"NewsPipeline/internal/infrastructure/llm"
	"NewsPipeline/internal/infrastructure/lock"
	"NewsPipeline/internal/infrastructure/parser"
	"NewsPipeline/internal/infrastructure/scheduler"
	"NewsPipeline/internal/infrastructure/storage"
	"NewsPipeline/internal/infrastructure/telegram"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/scanner"
	"NewsPipeline/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.Store
	closers   []func() error
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
}

// New opens the store, builds every adapter the configuration enables and
// wires them into the pipeline and the scheduler.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	logger := logging.WithSink(baseLogger, store, slog.LevelWarn)
	a.logger = logger

	locker, err := a.newLocker(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	assistant, err := newAssistant(cfg.LLM, logger.With("component", "llm"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var primary ports.PrimaryChannel
	if cfg.Channels.CMS.BaseURL != "" {
		primary = cms.NewWordPress(cfg.Channels.CMS, nil)
	}
	var channels []ports.PublishChannel
	if tg := cfg.Channels.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		channels = append(channels, telegram.NewChannel(tg.BotToken, tg.ChatID))
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Store:           store,
		Feeds:           newFeedSource(cfg.Fetcher, logger.With("component", "source")),
		Assistant:       assistant,
		Primary:         primary,
		Channels:        channels,
		DefaultChannels: cfg.Channels.Default,
		Config:          cfg.Pipeline,
		Logger:          logger.With("component", "pipeline"),
	})
	a.scheduler = usecase.NewScheduler(scheduler.NewTickerScheduler(), locker, a.pipeline,
		usecase.SchedulerOptionsFromConfig(cfg), logger.With("component", "scheduler"))

	return a, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (ports.Store, error) {
	var store ports.Store
	if cfg.Driver == "memory" {
		store = storage.NewMemoryStore()
	} else {
		sqlStore, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		store = sqlStore
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (a *Application) newLocker(ctx context.Context) (ports.Locker, error) {
	if a.cfg.Lock.Backend != "redis" {
		return lock.NewMemoryLocker(), nil
	}
	r := a.cfg.Redis
	locker := lock.NewRedisLocker(r.Addr, r.Password, r.DB)
	if err := locker.Ping(ctx); err != nil {
		_ = locker.Close()
		return nil, fmt.Errorf("redis %s: %w", r.Addr, err)
	}
	a.closers = append(a.closers, locker.Close)
	return locker, nil
}

// newAssistant returns nil when no provider is configured, so callers see
// the capability as missing instead of failing at every call.
func newAssistant(cfg config.LLMConfig, logger *slog.Logger) (ports.Assistant, error) {
	gen, err := llm.NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, nil
	}
	gen = llm.NewCachedGenerator(gen, time.Duration(cfg.CacheTTLMinutes)*time.Minute)
	return llm.NewAssistant(gen, logger), nil
}

func newFeedSource(cfg config.FetcherConfig, logger *slog.Logger) ports.FeedSource {
	registry := scanner.NewRegistry(parser.NewRSSScanner(), parser.NewHTMLScanner())
	return parser.NewStrategySource(registry, &http.Client{Timeout: cfg.Timeout()},
		parser.NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst),
		parser.FetchOptions{UserAgent: cfg.UserAgent, Timeout: cfg.Timeout(), RespectRobots: cfg.RespectRobots},
		logger)
}

func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }
func (a *Application) Scheduler() *usecase.Scheduler { return a.scheduler }
func (a *Application) Store() ports.Store { return a.store }
func (a *Application) Logger() *slog.Logger { return a.logger }

// SeedSources registers the configured sources that are not stored yet.
func (a *Application) SeedSources(ctx context.Context) (int, error) {
	return a.pipeline.Registry().Seed(ctx, SourcesFromConfig(a.cfg.Sources))
}

// SourcesFromConfig converts the seed list of the configuration.
func SourcesFromConfig(list []config.SourceConfig) []domain.Source {
	out := make([]domain.Source, 0, len(list))
	for _, s := range list {
		out = append(out, domain.Source{
			Name:                 s.Name,
			URL:                  s.URL,
			Lang:                 s.Lang,
			Category:             s.Category,
			Kind:                 domain.SourceKind(s.Kind),
			Options:              s.Options,
			TrustScore:           s.TrustScore,
			FetchIntervalMinutes: s.FetchIntervalMinutes,
			Enabled:              true,
		})
	}
	return out
}

// Run seeds sources, starts the timers and serves metrics until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if _, err := a.SeedSources(ctx); err != nil {
		return fmt.Errorf("seed sources: %w", err)
	}

	var server *http.Server
	if addr := a.cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
		a.logger.Info("serving metrics", "addr", addr)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("pipeline running", "hooks", a.scheduler.Hooks())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	a.logger.Info("pipeline stopped")
	return nil
}

// Close releases the store and lock connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
