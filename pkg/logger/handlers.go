package logger

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"sync"
)

// AsyncHandler buffers records and hands them to the next handler from a
// single background goroutine, so callers never block on I/O.
type AsyncHandler struct {
	next    slog.Handler
	records chan slog.Record
	drop    bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncHandler starts a background goroutine draining into next.
// When drop is true, records are discarded if the buffer is full instead of
// blocking the caller; when false, the caller blocks until there is room.
func NewAsyncHandler(next slog.Handler, bufSize int, drop bool) *AsyncHandler {
	h := &AsyncHandler{
		next:    next,
		records: make(chan slog.Record, bufSize),
		drop:    drop,
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *AsyncHandler) run() {
	defer close(h.done)
	for r := range h.records {
		_ = h.next.Handle(context.Background(), r)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	if h.drop {
		select {
		case h.records <- r:
		default:
		}
		return nil
	}
	h.records <- r
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), records: h.records, drop: h.drop, done: h.done}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), records: h.records, drop: h.drop, done: h.done}
}

// Close stops accepting new records and waits for the buffer to drain.
func (h *AsyncHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.records)
	})
	<-h.done
}

// SamplingHandler forwards only a fraction of records, always passing
// warnings and errors through unsampled.
type SamplingHandler struct {
	next slog.Handler
	rate float64
}

func NewSamplingHandler(next slog.Handler, rate float64) *SamplingHandler {
	return &SamplingHandler{next: next, rate: rate}
}

func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SamplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn || rand.Float64() < h.rate {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SamplingHandler{next: h.next.WithAttrs(attrs), rate: h.rate}
}

func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &SamplingHandler{next: h.next.WithGroup(name), rate: h.rate}
}

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern     = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	redactedAttrKey = map[string]bool{"email": true, "cc": true, "card_number": true, "ssn": true, "password": true}
)

// RedactHandler masks attribute values that look like PII before they reach
// the next handler, by key name and by pattern matching on string values.
type RedactHandler struct {
	next slog.Handler
}

func NewRedactHandler(next slog.Handler) *RedactHandler {
	return &RedactHandler{next: next}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, nr)
}

func redactAttr(a slog.Attr) slog.Attr {
	if redactedAttrKey[a.Key] {
		return slog.String(a.Key, "[REDACTED]")
	}
	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if emailPattern.MatchString(s) || cardPattern.MatchString(s) {
			s = emailPattern.ReplaceAllString(s, "[REDACTED]")
			s = cardPattern.ReplaceAllString(s, "[REDACTED]")
			return slog.String(a.Key, s)
		}
	}
	return a
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &RedactHandler{next: h.next.WithAttrs(out)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{next: h.next.WithGroup(name)}
}
