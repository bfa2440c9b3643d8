// Package tracing times the stages of a harness run (parse, build, query,
// evaluate) as a tree of spans carried through contexts. A finished tree is
// written to slog, one record per span.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span represents a timed stage within a run.
type Span struct {
	Name      string
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// StartSpan creates a new root span for runID and stores it in the returned
// context.
func StartSpan(ctx context.Context, name string, runID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		RunID:     runID,
		StartTime: time.Now(),
		Children:  make([]*Span, 0),
		Attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan creates a child of the span in ctx. Without a parent the
// child is a detached root that is never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := &Span{
		Name:      name,
		StartTime: time.Now(),
		Children:  make([]*Span, 0),
		Attrs:     make(map[string]any),
	}

	if parent != nil {
		child.RunID = parent.RunID
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}

	return context.WithValue(ctx, spanKey, child), child
}

func (s *Span) End() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Count returns the number of spans in the tree rooted at s.
func (s *Span) Count() int {
	s.mu.Lock()
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	n := 1
	for _, c := range children {
		n += c.Count()
	}
	return n
}

// Log writes the span tree to logger, parents before children.
func (s *Span) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logRecursive(logger, 0)
}

func (s *Span) logRecursive(logger *slog.Logger, depth int) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := []any{
		"run_id", s.RunID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for _, k := range keys {
		attrs = append(attrs, k, s.Attrs[k])
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	logger.Info("span", attrs...)
	for _, child := range children {
		child.logRecursive(logger, depth+1)
	}
}
