package domain

import (
	"log/slog"
	"time"
)

// Scheduler hook names.
const (
	HookFetchSources     = "fetch_sources"
	HookProcessQueue     = "process_queue"
	HookAutoPublish      = "auto_publish"
	HookProcessScheduled = "process_scheduled"
	HookCleanup          = "cleanup"
)

// Hooks lists every scheduler hook in registration order.
var Hooks = []string{HookFetchSources, HookProcessQueue, HookAutoPublish, HookProcessScheduled, HookCleanup}

// RunResult is the structured outcome of one scheduler hook invocation.
type RunResult struct {
	Hook         string         `json:"hook"`
	Success      bool           `json:"success"`
	Skipped      bool           `json:"skipped,omitempty"`
	StoppedEarly bool           `json:"stopped_early,omitempty"`
	StopReason   string         `json:"stop_reason,omitempty"`
	Counters     map[string]int `json:"counters"`
	Errors       []string       `json:"errors,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
}

// NewRunResult prepares an empty result for the hook.
func NewRunResult(hook string, startedAt time.Time) *RunResult {
	return &RunResult{Hook: hook, Success: true, Counters: map[string]int{}, StartedAt: startedAt}
}

// Inc bumps a named counter.
func (r *RunResult) Inc(name string, delta int) {
	r.Counters[name] += delta
}

// AddError records a per-unit failure without failing the whole run.
func (r *RunResult) AddError(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, err.Error())
}

// LogEntry is a persisted log record.
type LogEntry struct {
	ID        int64
	Level     slog.Level
	Message   string
	Attrs     map[string]string
	CreatedAt time.Time
}
