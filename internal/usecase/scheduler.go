package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/metrics"
	"NewsPipeline/internal/ports"
)

const lockPrefix = "hook:"

// HookFunc is the body of one scheduler hook.
type HookFunc func(ctx context.Context, b *Batch) error

// SchedulerOptions carries lock, budget and cadence settings.
type SchedulerOptions struct {
	LockTTL   time.Duration
	Budget    Budget
	Stagger   time.Duration
	Intervals map[string]time.Duration
	// Preflight checks run before on-demand triggers of the named hook.
	Preflight map[string]func() error
}

// SchedulerOptionsFromConfig derives the scheduler settings from the configuration.
func SchedulerOptionsFromConfig(cfg config.Config) SchedulerOptions {
	p := cfg.Pipeline
	return SchedulerOptions{
		LockTTL: cfg.Lock.TTL(),
		Budget: Budget{
			Time:        p.TimeBudget(),
			MaxMemory:   uint64(p.MaxMemoryMB) << 20,
			MinHeadroom: p.MemoryHeadroomBytes(),
		},
		Stagger: time.Duration(cfg.Scheduler.StaggerSeconds) * time.Second,
		Intervals: map[string]time.Duration{
			domain.HookFetchSources:     time.Duration(p.FetchIntervalMinutes) * time.Minute,
			domain.HookProcessQueue:     time.Duration(p.ProcessIntervalMinutes) * time.Minute,
			domain.HookAutoPublish:      time.Duration(cfg.Scheduler.AutoPublishEveryMinutes) * time.Minute,
			domain.HookProcessScheduled: time.Duration(cfg.Scheduler.ScheduledEveryMinutes) * time.Minute,
			domain.HookCleanup:          time.Duration(cfg.Scheduler.CleanupEveryHours) * time.Hour,
		},
	}
}

// Scheduler runs named hooks under a lock and a budget, either on the
// driver's timers or on demand.
type Scheduler struct {
	driver    ports.Scheduler
	locker    ports.Locker
	hooks     map[string]HookFunc
	opts      SchedulerOptions
	logger    *slog.Logger
	now       func() time.Time
	heapInUse func() uint64
}

// NewScheduler registers the pipeline hooks when pipeline is not nil.
func NewScheduler(driver ports.Scheduler, locker ports.Locker, pipeline *Pipeline, opts SchedulerOptions, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		driver:    driver,
		locker:    locker,
		hooks:     map[string]HookFunc{},
		opts:      opts,
		logger:    loggerOrDiscard(logger),
		now:       utcNow,
		heapInUse: heapInUse,
	}
	if pipeline != nil {
		for name, fn := range pipeline.Hooks() {
			s.Register(name, fn)
		}
		if s.opts.Preflight == nil {
			s.opts.Preflight = pipeline.Preflight()
		}
	}
	return s
}

// Register adds or replaces a hook.
func (s *Scheduler) Register(name string, fn HookFunc) {
	s.hooks[name] = fn
}

// Hooks lists the registered hook names in a stable order.
func (s *Scheduler) Hooks() []string {
	names := make([]string, 0, len(s.hooks))
	for _, name := range domain.Hooks {
		if _, ok := s.hooks[name]; ok {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range s.hooks {
		if !slices.Contains(domain.Hooks, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Trigger runs a hook on demand. Unlike timer runs, missing configuration for
// the hook is reported as an error instead of being skipped.
func (s *Scheduler) Trigger(ctx context.Context, hook string) (*domain.RunResult, error) {
	if check, ok := s.opts.Preflight[hook]; ok && check != nil {
		if err := check(); err != nil {
			return nil, fmt.Errorf("hook %s: %w", hook, err)
		}
	}
	return s.Run(ctx, hook)
}

// Run executes a hook once. A held lock yields a skipped result and no
// work. Panics in the hook are turned into an error result, and the lock is
// released on every path.
func (s *Scheduler) Run(ctx context.Context, hook string) (result *domain.RunResult, err error) {
	fn, ok := s.hooks[hook]
	if !ok {
		return nil, fmt.Errorf("unknown hook %q", hook)
	}

	started := s.now()
	result = domain.NewRunResult(hook, started)
	defer func() {
		result.Duration = s.now().Sub(started)
		if err != nil {
			result.Success = false
			result.AddError(err)
		}
		metrics.RecordHookRun(hook, outcome(result), result.Duration)
	}()

	token, acquired, err := s.locker.TryAcquire(ctx, lockPrefix+hook, s.opts.LockTTL)
	if err != nil {
		return result, fmt.Errorf("acquire lock for %s: %w", hook, err)
	}
	if !acquired {
		result.Skipped = true
		s.logger.Info("hook already running, skipped", "hook", hook)
		return result, nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := s.locker.Release(releaseCtx, lockPrefix+hook, token); rerr != nil {
			s.logger.Error("cannot release hook lock", "hook", hook, "error", rerr)
		}
	}()

	batch := newBatch(ctx, result, s.opts.Budget, s.now, s.heapInUse)
	err = invoke(ctx, fn, batch)

	attrs := []any{"hook", hook, "counters", result.Counters, "errors", len(result.Errors)}
	if result.StoppedEarly {
		attrs = append(attrs, "stopped_early", result.StopReason)
	}
	if err != nil {
		s.logger.Error("hook failed", append(attrs, "error", err)...)
	} else {
		s.logger.Info("hook finished", attrs...)
	}
	return result, err
}

func invoke(ctx context.Context, fn HookFunc, b *Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return fn(ctx, b)
}

func outcome(r *domain.RunResult) string {
	switch {
	case r.Skipped:
		return "skipped"
	case !r.Success:
		return "error"
	case r.StoppedEarly:
		return "stopped_early"
	default:
		return "success"
	}
}

// Start hands one timer entry per hook with a positive interval to the
// driver. Entries start staggered so hooks do not fire together.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return fmt.Errorf("scheduler driver: %w", domain.ErrNotConfigured)
	}

	var entries []ports.ScheduleEntry
	for _, name := range s.Hooks() {
		interval := s.opts.Intervals[name]
		if interval <= 0 {
			continue
		}
		hook := name
		entries = append(entries, ports.ScheduleEntry{
			Name:     hook,
			Interval: interval,
			Offset:   time.Duration(len(entries)) * s.opts.Stagger,
			Run: func(ctx context.Context, trigger time.Time) {
				if _, err := s.Run(ctx, hook); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Warn("scheduled run failed", "hook", hook, "trigger", trigger, "error", err)
				}
			},
		})
	}
	return s.driver.Start(ctx, entries)
}

// Stop tears down the driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
