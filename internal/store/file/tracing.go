package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nanobridge/orchestrator/internal/store"
)

// FileTracingStore persists traces and spans as an append-only NDJSON log,
// one file per day, for standalone deployments with no Postgres backend.
// It trades queryability for zero external dependencies; an operator who
// needs trace search points the OTLP exporter (cmd/gateway/telemetry.go)
// at a real collector instead.
type FileTracingStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileTracingStore(dir string) (*FileTracingStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tracing store: %w", err)
	}
	return &FileTracingStore{dir: dir}, nil
}

type traceRecord struct {
	Type  string          `json:"_type"`
	Trace *store.TraceData `json:"trace,omitempty"`
	Span  *store.SpanData  `json:"span,omitempty"`
}

func (f *FileTracingStore) CreateTrace(_ context.Context, t store.TraceData) error {
	return f.append(traceRecord{Type: "trace_start", Trace: &t})
}

func (f *FileTracingStore) FinishTrace(_ context.Context, id uuid.UUID, status store.TraceStatus, errMsg, outputPreview string) error {
	now := time.Now().UTC()
	t := store.TraceData{
		ID:            id,
		Status:        status,
		Error:         errMsg,
		OutputPreview: outputPreview,
		FinishedAt:    &now,
	}
	return f.append(traceRecord{Type: "trace_finish", Trace: &t})
}

func (f *FileTracingStore) RecordSpan(_ context.Context, span store.SpanData) error {
	return f.append(traceRecord{Type: "span", Span: &span})
}

func (f *FileTracingStore) append(rec traceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := filepath.Join(f.dir, fmt.Sprintf("traces-%s.jsonl", time.Now().UTC().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("tracing store: open: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		return fmt.Errorf("tracing store: encode: %w", err)
	}
	return w.Flush()
}
