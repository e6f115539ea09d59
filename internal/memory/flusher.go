package memory

import (
	"fmt"

	"github.com/nanobridge/orchestrator/internal/session"
)

// SessionFlusher implements session.MemoryFlusher, feeding the entries a
// compaction is about to discard through the same feedback detector the
// agent loop runs on every turn, so a preference or correction buried in
// an old exchange survives compaction as a learning instead of vanishing
// with the elided history.
type SessionFlusher struct {
	store *Store
	cfg   LearningConfig
}

func NewSessionFlusher(store *Store, cfg LearningConfig) *SessionFlusher {
	return &SessionFlusher{store: store, cfg: cfg}
}

func (f *SessionFlusher) FlushRecent(entries []session.Entry) error {
	if f.store == nil {
		return nil
	}
	var firstErr error
	for _, e := range entries {
		if e.Role != "user" || e.Content == "" {
			continue
		}
		learning, ok := DetectFeedback(e.Content)
		if !ok {
			continue
		}
		if _, err := f.store.RecordLearning(f.cfg, learning); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush learning: %w", err)
		}
	}
	return firstErr
}
