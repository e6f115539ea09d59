package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nanobridge/orchestrator/internal/providers"
	"github.com/nanobridge/orchestrator/internal/store"
	"github.com/nanobridge/orchestrator/internal/tools"
	"github.com/nanobridge/orchestrator/internal/tracing"
)

func (l *Loop) emit(event AgentEvent) {
	if l.onEvent != nil {
		l.onEvent(event)
	}
}

func (l *Loop) ID() string { return l.id }

// emitLLMSpan records one Provider.Chat/ChatStream round trip.
func (l *Loop) emitLLMSpan(ctx context.Context, start time.Time, iteration int, messages []providers.Message, resp *providers.ChatResponse, callErr error) {
	collector := tracing.CollectorFromContext(ctx)
	if collector == nil {
		return
	}
	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == uuid.Nil {
		return
	}
	end := time.Now().UTC()
	span := store.SpanData{
		ID:           store.GenNewID(),
		TraceID:      traceID,
		SpanType:     store.SpanTypeLLMCall,
		Name:         "llm_call",
		StartTime:    start,
		EndTime:      &end,
		DurationMS:   int(end.Sub(start).Milliseconds()),
		Model:        l.botCfg.DefaultModel,
		Provider:     l.providerName(),
		InputPreview: truncateStr(lastMessagePreview(messages), 500),
	}
	if parent := tracing.ParentSpanIDFromContext(ctx); parent != uuid.Nil {
		span.ParentSpanID = &parent
	}

	switch {
	case callErr != nil:
		span.Status = store.SpanStatusError
		span.Error = callErr.Error()
	case resp != nil:
		span.Status = store.SpanStatusCompleted
		span.OutputPreview = truncateStr(resp.Content, 500)
		if resp.Usage != nil {
			span.InputTokens = resp.Usage.PromptTokens
			span.OutputTokens = resp.Usage.CompletionTokens
		}
	}
	collector.EmitSpan(span)
}

// emitToolSpan records one tool execution.
func (l *Loop) emitToolSpan(ctx context.Context, start time.Time, toolName, toolCallID, input string, result *tools.Result) {
	collector := tracing.CollectorFromContext(ctx)
	if collector == nil {
		return
	}
	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == uuid.Nil {
		return
	}
	end := time.Now().UTC()
	span := store.SpanData{
		ID:           store.GenNewID(),
		TraceID:      traceID,
		SpanType:     store.SpanTypeToolCall,
		Name:         toolName,
		ToolName:     toolName,
		ToolCallID:   toolCallID,
		StartTime:    start,
		EndTime:      &end,
		DurationMS:   int(end.Sub(start).Milliseconds()),
		InputPreview: truncateStr(input, 500),
	}
	if parent := tracing.ParentSpanIDFromContext(ctx); parent != uuid.Nil {
		span.ParentSpanID = &parent
	}
	if result != nil {
		span.OutputPreview = truncateStr(result.ForLLM, 500)
		if result.Usage != nil {
			span.InputTokens = result.Usage.PromptTokens
			span.OutputTokens = result.Usage.CompletionTokens
		}
		if result.Provider != "" {
			span.Provider = result.Provider
		}
		if result.Model != "" {
			span.Model = result.Model
		}
		if result.IsError {
			span.Status = store.SpanStatusError
			span.Error = result.ForLLM
		} else {
			span.Status = store.SpanStatusCompleted
		}
	}
	collector.EmitSpan(span)
}

// emitAgentSpan records the root span for one full Run call.
func (l *Loop) emitAgentSpan(ctx context.Context, start time.Time, result *RunResult, runErr error) {
	collector := tracing.CollectorFromContext(ctx)
	if collector == nil {
		return
	}
	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == uuid.Nil {
		return
	}
	end := time.Now().UTC()
	span := store.SpanData{
		ID:         tracing.ParentSpanIDFromContext(ctx),
		TraceID:    traceID,
		SpanType:   store.SpanTypeAgent,
		Name:       "agent " + l.id,
		StartTime:  start,
		EndTime:    &end,
		DurationMS: int(end.Sub(start).Milliseconds()),
	}
	if span.ID == uuid.Nil {
		span.ID = store.GenNewID()
	}
	if parent := tracing.AnnounceParentSpanIDFromContext(ctx); parent != uuid.Nil {
		span.ParentSpanID = &parent
	}
	switch {
	case runErr != nil:
		span.Status = store.SpanStatusError
		span.Error = runErr.Error()
	case result != nil:
		span.Status = store.SpanStatusCompleted
		span.OutputPreview = truncateStr(result.Content, 500)
		if result.Usage != nil {
			span.InputTokens = result.Usage.PromptTokens
			span.OutputTokens = result.Usage.CompletionTokens
		}
	}
	collector.EmitSpan(span)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}

func lastMessagePreview(messages []providers.Message) string {
	if len(messages) == 0 {
		return ""
	}
	b, err := json.Marshal(messages[len(messages)-1])
	if err != nil {
		return ""
	}
	return string(b)
}

// EstimateTokens gives a cheap chars/4 estimate used for context-window
// bookkeeping where a real tokenizer isn't available. The session
// compactor does not use it; it has its own chars/3 estimate.
func EstimateTokens(messages []providers.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}
