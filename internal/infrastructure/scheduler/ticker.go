package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"NewsPipeline/internal/ports"
)

// TickerScheduler fires every entry on its own time.Ticker after the entry's
// offset has passed.
type TickerScheduler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ ports.Scheduler = (*TickerScheduler)(nil)

func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

// Start launches one goroutine per entry. Runs of the same entry never
// overlap: a tick that arrives while the entry is still running is dropped.
func (s *TickerScheduler) Start(ctx context.Context, entries []ports.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, entry := range entries {
		if entry.Interval <= 0 || entry.Run == nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			loop(runCtx, entry)
		}()
	}
	return nil
}

func loop(ctx context.Context, entry ports.ScheduleEntry) {
	if entry.Offset > 0 {
		timer := time.NewTimer(entry.Offset)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(entry.Interval)
	defer ticker.Stop()

	entry.Run(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			entry.Run(ctx, t)
		}
	}
}

// Stop cancels every entry and waits for running hooks to return or for ctx
// to expire.
func (s *TickerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
