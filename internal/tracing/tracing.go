// Package tracing carries a request's trace through the agent loop, tool
// calls, and delegated subagent runs, recording each as a store.SpanData
// and mirroring it as a real OpenTelemetry span for export.
package tracing

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nanobridge/orchestrator/internal/store"
)

type ctxKey int

const (
	ctxKeyTraceID ctxKey = iota
	ctxKeyCollector
	ctxKeyParentSpanID
	ctxKeyDelegateParentTraceID
	ctxKeyAnnounceParentSpanID
)

func WithTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyTraceID, id)
}

func TraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyTraceID).(uuid.UUID)
	return id
}

func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxKeyCollector, c)
}

func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(ctxKeyCollector).(*Collector)
	return c
}

func WithParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyParentSpanID, id)
}

func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyParentSpanID).(uuid.UUID)
	return id
}

// WithDelegateParentTraceID marks ctx as belonging to a delegated run,
// carrying the trace ID of the agent that spawned it. Used once the run's
// own goroutine (and thus its own fresh ctx) creates its own trace, so the
// two traces can be linked via TraceData.ParentTraceID.
func WithDelegateParentTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyDelegateParentTraceID, id)
}

func DelegateParentTraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyDelegateParentTraceID).(uuid.UUID)
	return id
}

// WithAnnounceParentSpanID marks ctx as an announce run nested under an
// existing root span rather than starting a new one.
func WithAnnounceParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyAnnounceParentSpanID, id)
}

func AnnounceParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyAnnounceParentSpanID).(uuid.UUID)
	return id
}

// Collector records spans both to durable storage (store.TracingStore) and
// as live OpenTelemetry spans for export to a collector, if one is
// configured. A nil *Collector is valid and a no-op (standalone mode with
// tracing disabled).
type Collector struct {
	store   store.TracingStore
	tracer  trace.Tracer
	verbose bool
}

// NewCollector wraps s for span/trace persistence. Verbosity is read from
// the NANOBRIDGE_TRACE_VERBOSE environment variable and reported by
// Verbose; the agent loop does not consult it.
func NewCollector(s store.TracingStore) *Collector {
	return &Collector{
		store:   s,
		tracer:  otel.Tracer("orchestrator/agent"),
		verbose: os.Getenv("NANOBRIDGE_TRACE_VERBOSE") != "",
	}
}

// Verbose reports whether full (unredacted, untruncated up to a much
// larger cap) input/output previews should be recorded.
func (c *Collector) Verbose() bool {
	return c != nil && c.verbose
}

// CreateTrace opens the root record for an agent run.
func (c *Collector) CreateTrace(ctx context.Context, t store.TraceData) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.CreateTrace(ctx, t)
}

// FinishTrace closes out a trace with its final status.
func (c *Collector) FinishTrace(ctx context.Context, id uuid.UUID, status store.TraceStatus, errMsg, outputPreview string) {
	if c == nil || c.store == nil {
		return
	}
	_ = c.store.FinishTrace(ctx, id, status, errMsg, outputPreview)
}

// EmitSpan persists span and mirrors it as a completed OTEL span so it
// shows up in whatever exporter the process is configured with.
func (c *Collector) EmitSpan(span store.SpanData) {
	if c == nil {
		return
	}
	if span.ID == uuid.Nil {
		span.ID = store.GenNewID()
	}

	if c.store != nil {
		_ = c.store.RecordSpan(context.Background(), span)
	}

	_, otelSpan := c.tracer.Start(context.Background(), span.Name,
		trace.WithTimestamp(span.StartTime),
		trace.WithAttributes(spanAttributes(span)...),
	)
	if span.Status == store.SpanStatusError {
		otelSpan.SetStatus(codes.Error, span.Error)
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	if span.EndTime != nil {
		otelSpan.End(trace.WithTimestamp(*span.EndTime))
	} else {
		otelSpan.End()
	}
}

func spanAttributes(span store.SpanData) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("trace_id", span.TraceID.String()),
		attribute.String("span_type", string(span.SpanType)),
		attribute.Int("duration_ms", span.DurationMS),
	}
	if span.Model != "" {
		attrs = append(attrs, attribute.String("model", span.Model))
	}
	if span.Provider != "" {
		attrs = append(attrs, attribute.String("provider", span.Provider))
	}
	if span.ToolName != "" {
		attrs = append(attrs, attribute.String("tool_name", span.ToolName))
	}
	if span.InputTokens > 0 {
		attrs = append(attrs, attribute.Int("input_tokens", span.InputTokens))
	}
	if span.OutputTokens > 0 {
		attrs = append(attrs, attribute.Int("output_tokens", span.OutputTokens))
	}
	return attrs
}
