package usecase

import (
	"context"
	"runtime"
	"time"

	"NewsPipeline/internal/domain"
)

// Stop reasons reported when a batch ends before its work is done.
const (
	StopTimeBudget   = "time_budget"
	StopMemoryBudget = "memory_budget"
	StopCancelled    = "cancelled"
)

// Budget bounds one hook run. Zero values disable the respective check.
type Budget struct {
	Time        time.Duration
	MaxMemory   uint64
	MinHeadroom uint64
}

// Batch tracks one hook run: budget checks between units of work and the
// counters and errors that end up in the run result.
type Batch struct {
	ctx       context.Context
	result    *domain.RunResult
	budget    Budget
	deadline  time.Time
	now       func() time.Time
	heapInUse func() uint64
}

func newBatch(ctx context.Context, result *domain.RunResult, budget Budget, now func() time.Time, heapInUse func() uint64) *Batch {
	b := &Batch{ctx: ctx, result: result, budget: budget, now: now, heapInUse: heapInUse}
	if budget.Time > 0 {
		b.deadline = result.StartedAt.Add(budget.Time)
	}
	return b
}

// UnboundedBatch is a batch without budget, for direct calls outside the scheduler.
func UnboundedBatch(ctx context.Context, hook string) *Batch {
	return newBatch(ctx, domain.NewRunResult(hook, utcNow()), Budget{}, utcNow, heapInUse)
}

// Next reports whether another unit of work may start. Once a budget is
// exhausted the run is marked as stopped early and Next keeps returning false.
func (b *Batch) Next() bool {
	if b.result.StoppedEarly {
		return false
	}
	switch {
	case b.ctx.Err() != nil:
		b.stop(StopCancelled)
	case !b.deadline.IsZero() && !b.now().Before(b.deadline):
		b.stop(StopTimeBudget)
	case b.budget.MaxMemory > 0 && b.memoryExhausted():
		b.stop(StopMemoryBudget)
	}
	return !b.result.StoppedEarly
}

func (b *Batch) memoryExhausted() bool {
	used := b.heapInUse()
	if used >= b.budget.MaxMemory {
		return true
	}
	return b.budget.MaxMemory-used <= b.budget.MinHeadroom
}

func (b *Batch) stop(reason string) {
	b.result.StoppedEarly = true
	b.result.StopReason = reason
}

// Count adds n to a named counter of the run.
func (b *Batch) Count(name string, n int) {
	b.result.Inc(name, n)
}

// Fail records a per-unit error; the run continues.
func (b *Batch) Fail(err error) {
	if err == nil {
		return
	}
	b.result.AddError(err)
	b.result.Inc("errors", 1)
}

// Result returns the run result being filled.
func (b *Batch) Result() *domain.RunResult {
	return b.result
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}
