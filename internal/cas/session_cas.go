package cas

import (
	"fmt"
	"sort"
)

// SessionCAS specializes Store with a merge strategy that deduplicates
// session records by id (or a stable fallback hash) and sorts the
// result by timestamp.
type SessionCAS struct {
	*Store
}

// NewSessionCAS wraps an existing Store with the session merge policy.
func NewSessionCAS(store *Store) *SessionCAS {
	return &SessionCAS{Store: store}
}

// SaveSession writes messages for sessionKey, merging against any
// concurrent write using MergeSessions.
func (s *SessionCAS) SaveSession(sessionKey string, messages []Record) Result {
	return s.WriteWithRetry(sessionKey, messages, s.MergeSessions)
}

// MergeSessions merges two message slices, keeping the first occurrence
// of each message id, then sorting by timestamp ascending.
func (s *SessionCAS) MergeSessions(current, attempted []Record) []Record {
	seen := make(map[string]bool)
	merged := make([]Record, 0, len(current)+len(attempted))

	add := func(items []Record) {
		for _, item := range items {
			id := recordID(item)
			if seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, item)
		}
	}
	add(current)
	add(attempted)

	sort.SliceStable(merged, func(i, j int) bool {
		return timestampOf(merged[i]) < timestampOf(merged[j])
	})
	return merged
}

func recordID(r Record) string {
	if id, ok := r["id"].(string); ok && id != "" {
		return id
	}
	if id, ok := r["_id"].(string); ok && id != "" {
		return id
	}
	return fmt.Sprintf("%v", r)
}

func timestampOf(r Record) float64 {
	switch v := r["timestamp"].(type) {
	case float64:
		return v
	case string:
		return 0
	default:
		return 0
	}
}
