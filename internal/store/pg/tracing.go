package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nanobridge/orchestrator/internal/store"
)

// PGTracingStore implements store.TracingStore against Postgres tables
// created by migrations/0001_init.up.sql, for managed deployments that
// want trace history queryable with plain SQL instead of the standalone
// NDJSON file store.
type PGTracingStore struct {
	db *sql.DB
}

func NewPGTracingStore(db *sql.DB) *PGTracingStore {
	return &PGTracingStore{db: db}
}

func (s *PGTracingStore) CreateTrace(ctx context.Context, t store.TraceData) error {
	var parent any
	if t.ParentTraceID != nil {
		parent = *t.ParentTraceID
	}
	var agent any
	if t.AgentID != nil {
		agent = *t.AgentID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO traces (id, parent_trace_id, agent_id, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, parent, agent, string(t.Status), t.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("pg tracing: create trace: %w", err)
	}
	return nil
}

func (s *PGTracingStore) FinishTrace(ctx context.Context, id uuid.UUID, status store.TraceStatus, errMsg, outputPreview string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE traces SET status = $2, error = $3, output_preview = $4, finished_at = now()
		 WHERE id = $1`,
		id, string(status), errMsg, outputPreview,
	)
	if err != nil {
		return fmt.Errorf("pg tracing: finish trace: %w", err)
	}
	return nil
}

func (s *PGTracingStore) RecordSpan(ctx context.Context, span store.SpanData) error {
	var parentSpan any
	if span.ParentSpanID != nil {
		parentSpan = *span.ParentSpanID
	}
	var agent any
	if span.AgentID != nil {
		agent = *span.AgentID
	}
	var endTime any
	if span.EndTime != nil {
		endTime = *span.EndTime
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spans (
			id, trace_id, parent_span_id, agent_id, span_type, name, status, level,
			start_time, end_time, duration_ms, model, provider, tool_name, tool_call_id,
			input_preview, output_preview, input_tokens, output_tokens, finish_reason,
			error, metadata, created_at
		 ) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, now()
		 )
		 ON CONFLICT (id) DO NOTHING`,
		span.ID, span.TraceID, parentSpan, agent, string(span.SpanType), span.Name,
		string(span.Status), string(span.Level), span.StartTime, endTime, span.DurationMS,
		span.Model, span.Provider, span.ToolName, span.ToolCallID,
		span.InputPreview, span.OutputPreview, span.InputTokens, span.OutputTokens,
		span.FinishReason, span.Error, span.Metadata,
	)
	if err != nil {
		return fmt.Errorf("pg tracing: record span: %w", err)
	}
	return nil
}
