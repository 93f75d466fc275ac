// Package tracing times the phases of a request as a tree of spans carried
// in the context. A finished tree is logged as a single slog record so one
// search produces one trace line.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span is one timed phase. Children are added by StartChildSpan.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []slog.Attr
}

// StartSpan opens a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, spanKey{}, span), span
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached and simply never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{Name: name, Start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, child), child
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Children returns a snapshot of the direct child spans.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span tree as one debug record. Each child becomes a
// group keyed by its name holding duration_ms, its attributes and its own
// children.
func (s *Span) Log(logger *slog.Logger) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{
		slog.String("trace_id", s.TraceID),
		slog.String("span", s.Name),
	}
	for _, a := range s.fields() {
		attrs = append(attrs, a)
	}
	logger.Debug("trace", attrs...)
}

func (s *Span) fields() []slog.Attr {
	s.mu.Lock()
	out := make([]slog.Attr, 0, 1+len(s.attrs)+len(s.children))
	out = append(out, slog.Int64("duration_ms", s.Duration.Milliseconds()))
	out = append(out, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	for _, c := range children {
		sub := c.fields()
		group := make([]any, len(sub))
		for i, a := range sub {
			group[i] = a
		}
		out = append(out, slog.Group(c.Name, group...))
	}
	return out
}
