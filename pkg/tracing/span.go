// Package tracing records lightweight span trees through a context. A search
// request opens a root span keyed by its request id; the engine adds parse
// and evaluate children, and the tree is logged at debug level when the
// request finishes.
package tracing

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed step of a request. Children are appended as nested
// steps start, so they appear in start order.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any

	mu sync.Mutex
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// StartSpan opens a root span and returns a context carrying it.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := newSpan(name, traceID)
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached and has no trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		span := newSpan(name, "")
		return context.WithValue(ctx, contextKey{}, span), span
	}
	child := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// Log writes one debug record per span, parents before children. Nothing is
// formatted unless logger has debug enabled.
func (s *Span) Log(logger *slog.Logger) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.walk(0, func(span *Span, depth int) {
		attrs := []any{
			"trace_id", span.TraceID,
			"span", span.Name,
			"duration", span.Duration,
			"depth", depth,
		}
		for _, k := range slices.Sorted(maps.Keys(span.Attrs)) {
			attrs = append(attrs, k, span.Attrs[k])
		}
		logger.Debug("span", attrs...)
	})
}

// walk visits s and its descendants depth first. fn runs with the span's
// lock held.
func (s *Span) walk(depth int, fn func(span *Span, depth int)) {
	s.mu.Lock()
	fn(s, depth)
	children := slices.Clone(s.Children)
	s.mu.Unlock()
	for _, child := range children {
		child.walk(depth+1, fn)
	}
}
