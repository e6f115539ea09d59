package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GenNewID returns a fresh random identifier, used for trace and span IDs.
func GenNewID() uuid.UUID { return uuid.New() }

type SpanType string

const (
	SpanTypeAgent    SpanType = "agent"
	SpanTypeLLMCall  SpanType = "llm_call"
	SpanTypeToolCall SpanType = "tool_call"
)

type SpanStatus string

const (
	SpanStatusRunning   SpanStatus = "running"
	SpanStatusCompleted SpanStatus = "completed"
	SpanStatusError     SpanStatus = "error"
)

type SpanLevel string

const (
	SpanLevelDefault SpanLevel = "DEFAULT"
	SpanLevelDebug   SpanLevel = "DEBUG"
)

// SpanData is one recorded unit of work within a trace: an agent run, an
// LLM call, or a tool invocation. Spans nest via ParentSpanID.
type SpanData struct {
	ID           uuid.UUID
	TraceID      uuid.UUID
	ParentSpanID *uuid.UUID
	AgentID      *uuid.UUID

	SpanType SpanType
	Name     string
	Status   SpanStatus
	Level    SpanLevel

	StartTime  time.Time
	EndTime    *time.Time
	DurationMS int

	Model    string
	Provider string

	ToolName   string
	ToolCallID string

	InputPreview  string
	OutputPreview string
	InputTokens   int
	OutputTokens  int
	FinishReason  string

	Error    string
	Metadata []byte

	CreatedAt time.Time
}

type TraceStatus string

const (
	TraceStatusRunning   TraceStatus = "running"
	TraceStatusCompleted TraceStatus = "completed"
	TraceStatusError     TraceStatus = "error"
)

// TraceData is the root record for one agent-loop run: the request that
// kicked it off and, once finished, its outcome.
type TraceData struct {
	ID            uuid.UUID
	ParentTraceID *uuid.UUID
	AgentID       *uuid.UUID
	Status        TraceStatus
	Error         string
	OutputPreview string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// TracingStore persists traces and their spans. Nil in standalone mode
// with tracing disabled, in which case Collector becomes a no-op.
type TracingStore interface {
	CreateTrace(ctx context.Context, t TraceData) error
	FinishTrace(ctx context.Context, id uuid.UUID, status TraceStatus, errMsg, outputPreview string) error
	RecordSpan(ctx context.Context, span SpanData) error
}
