package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/lock"
	"NewsPipeline/internal/ports"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDriver struct {
	entries []ports.ScheduleEntry
	stopped bool
}

func (d *recordingDriver) Start(_ context.Context, entries []ports.ScheduleEntry) error {
	d.entries = entries
	return nil
}

func (d *recordingDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func newTestScheduler(opts SchedulerOptions) (*Scheduler, *lock.MemoryLocker) {
	locker := lock.NewMemoryLocker()
	if opts.LockTTL == 0 {
		opts.LockTTL = time.Minute
	}
	return NewScheduler(nil, locker, nil, opts, nil), locker
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	s, locker := newTestScheduler(SchedulerOptions{})
	calls := 0
	s.Register(domain.HookFetchSources, func(context.Context, *Batch) error {
		calls++
		return nil
	})

	_, ok, err := locker.TryAcquire(context.Background(), "hook:"+domain.HookFetchSources, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := s.Run(context.Background(), domain.HookFetchSources)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.True(t, res.Success)
	assert.Zero(t, calls)
}

func TestRunStopsAtTimeBudget(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s, _ := newTestScheduler(SchedulerOptions{Budget: Budget{Time: time.Minute}})
	s.now = clock.Now

	s.Register(domain.HookProcessQueue, func(_ context.Context, b *Batch) error {
		for b.Next() {
			b.Count("jobs_completed", 1)
			clock.Advance(30 * time.Second)
		}
		return nil
	})

	res, err := s.Run(context.Background(), domain.HookProcessQueue)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, StopTimeBudget, res.StopReason)
	assert.Equal(t, 2, res.Counters["jobs_completed"])
	assert.Equal(t, time.Minute, res.Duration)
}

func TestRunStopsAtMemoryBudget(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(SchedulerOptions{Budget: Budget{MaxMemory: 120, MinHeadroom: 32}})
	s.heapInUse = func() uint64 { return 100 }

	started := false
	s.Register(domain.HookFetchSources, func(_ context.Context, b *Batch) error {
		started = b.Next()
		return nil
	})

	res, err := s.Run(context.Background(), domain.HookFetchSources)
	require.NoError(t, err)
	assert.False(t, started)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, StopMemoryBudget, res.StopReason)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(SchedulerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	s.Register(domain.HookCleanup, func(_ context.Context, b *Batch) error {
		cancel()
		b.Next()
		return nil
	})

	res, err := s.Run(ctx, domain.HookCleanup)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, res.StopReason)
}

func TestRunRecoversPanicAndReleasesLock(t *testing.T) {
	t.Parallel()

	s, locker := newTestScheduler(SchedulerOptions{})
	s.Register(domain.HookAutoPublish, func(context.Context, *Batch) error {
		panic("boom")
	})

	res, err := s.Run(context.Background(), domain.HookAutoPublish)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)

	_, ok, err := locker.TryAcquire(context.Background(), "hook:"+domain.HookAutoPublish, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock is released after a panic")
}

func TestRunReportsHookError(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(SchedulerOptions{})
	s.Register(domain.HookCleanup, func(_ context.Context, b *Batch) error {
		b.Fail(errors.New("one source broke"))
		return errBackend
	})

	res, err := s.Run(context.Background(), domain.HookCleanup)
	require.ErrorIs(t, err, errBackend)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Counters["errors"])
	assert.Len(t, res.Errors, 2)

	_, err = s.Run(context.Background(), "nope")
	assert.Error(t, err)
}

func TestTriggerPreflight(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(SchedulerOptions{
		Preflight: map[string]func() error{
			domain.HookProcessQueue: func() error { return fmt.Errorf("text generator: %w", domain.ErrNotConfigured) },
		},
	})
	calls := 0
	count := func(context.Context, *Batch) error { calls++; return nil }
	s.Register(domain.HookProcessQueue, count)
	s.Register(domain.HookCleanup, count)

	res, err := s.Trigger(context.Background(), domain.HookProcessQueue)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Nil(t, res)
	assert.Zero(t, calls)

	// Timer runs do not consult preflight.
	_, err = s.Run(context.Background(), domain.HookProcessQueue)
	require.NoError(t, err)

	_, err = s.Trigger(context.Background(), domain.HookCleanup)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSchedulerStartStaggersEntries(t *testing.T) {
	t.Parallel()

	driver := &recordingDriver{}
	s := NewScheduler(driver, lock.NewMemoryLocker(), nil, SchedulerOptions{
		LockTTL: time.Minute,
		Stagger: 30 * time.Second,
		Intervals: map[string]time.Duration{
			domain.HookFetchSources: 15 * time.Minute,
			domain.HookAutoPublish:  5 * time.Minute,
			domain.HookCleanup:      0,
		},
	}, nil)

	ran := make(chan string, 4)
	for _, name := range []string{domain.HookFetchSources, domain.HookAutoPublish, domain.HookCleanup, "reindex"} {
		s.Register(name, func(context.Context, *Batch) error {
			ran <- name
			return nil
		})
	}
	assert.Equal(t, []string{domain.HookFetchSources, domain.HookAutoPublish, domain.HookCleanup, "reindex"}, s.Hooks())

	require.NoError(t, s.Start(context.Background()))
	require.Len(t, driver.entries, 2, "hooks without an interval are on-demand only")
	assert.Equal(t, domain.HookFetchSources, driver.entries[0].Name)
	assert.Zero(t, driver.entries[0].Offset)
	assert.Equal(t, domain.HookAutoPublish, driver.entries[1].Name)
	assert.Equal(t, 30*time.Second, driver.entries[1].Offset)
	assert.Equal(t, 5*time.Minute, driver.entries[1].Interval)

	driver.entries[1].Run(context.Background(), time.Now())
	assert.Equal(t, domain.HookAutoPublish, <-ran)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)

	noDriver, _ := newTestScheduler(SchedulerOptions{})
	assert.ErrorIs(t, noDriver.Start(context.Background()), domain.ErrNotConfigured)
}
