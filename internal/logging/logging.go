package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	return slog.New(handler)
}

// WithSink returns a logger that also persists records at or above minLevel into sink.
func WithSink(base *slog.Logger, sink ports.LogSink, minLevel slog.Level) *slog.Logger {
	if base == nil || sink == nil {
		return base
	}
	return slog.New(&sinkHandler{next: base.Handler(), sink: sink, min: minLevel})
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// sinkHandler tees records into a LogSink. Sink failures never affect the console output.
type sinkHandler struct {
	next   slog.Handler
	sink   ports.LogSink
	min    slog.Level
	attrs  []slog.Attr
	prefix string
}

func (h *sinkHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.min
}

func (h *sinkHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.next.Enabled(ctx, record.Level) {
		err = h.next.Handle(ctx, record)
	}

	if record.Level < h.min {
		return err
	}

	attrs := make(map[string]string, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[h.prefix+a.Key] = a.Value.String()
		return true
	})

	created := record.Time
	if created.IsZero() {
		created = time.Now()
	}

	// ctx may already be cancelled when a run is shutting down; the audit row should still land.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_ = h.sink.InsertLog(sinkCtx, domain.LogEntry{
		Level:     record.Level,
		Message:   record.Message,
		Attrs:     attrs,
		CreatedAt: created.UTC(),
	})

	return err
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), prefixed(h.prefix, attrs)...)
	return &clone
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.prefix = h.prefix + name + "."
	return &clone
}

func prefixed(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}
