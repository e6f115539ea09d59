package session

import (
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// MemoryFlusher is the pre-compaction hook: given the last N messages
// about to be elided, it extracts and persists any learnings/feedback
// it finds. A concrete implementation lives in the feedback-detection
// package and wraps a memory store; this interface exists so the
// compactor never depends on memory storage directly. Flush errors are
// logged and swallowed — compaction must never fail because of it.
type MemoryFlusher interface {
	FlushRecent(entries []Entry) error
}

// CompactionResult records what a compaction pass did, for the next
// response's UX surface.
type CompactionResult struct {
	Compacted      bool
	OriginalCount  int
	CompactedCount int
	TokensBefore   int
	TokensAfter    int
	Mode           string
}

// Compactor shrinks a session's history once it crosses a token
// threshold, replacing elided messages with a single synthetic summary
// while preserving the tool-chain invariant.
type Compactor struct {
	flusher        MemoryFlusher
	flushLastN     int
	targetKeep     int
	log            *slog.Logger
}

// NewCompactor builds a Compactor. flusher may be nil to skip the
// memory-flush hook (e.g. in tests). flushLastN is how many trailing
// messages are offered to the hook before compaction; targetKeep is how
// many messages GetSafeCompactionPoint tries to retain.
func NewCompactor(flusher MemoryFlusher, flushLastN, targetKeep int, log *slog.Logger) *Compactor {
	if log == nil {
		log = slog.Default()
	}
	if flushLastN <= 0 {
		flushLastN = 10
	}
	if targetKeep <= 0 {
		targetKeep = 30
	}
	return &Compactor{flusher: flusher, flushLastN: flushLastN, targetKeep: targetKeep, log: log}
}

// ShouldCompact reports whether s's history exceeds fraction of
// maxContextTokens.
func (c *Compactor) ShouldCompact(s *Session, maxContextTokens int, fraction float64) bool {
	if maxContextTokens <= 0 {
		return false
	}
	return estimateTokens(s.Messages) > int(float64(maxContextTokens)*fraction)
}

// Compact runs the four-step algorithm from the session design: flush
// hook, safe compaction index, synthetic summary, metadata recording.
// It mutates s in place and returns a record of what happened.
func (c *Compactor) Compact(s *Session) CompactionResult {
	originalCount := len(s.Messages)
	tokensBefore := estimateTokens(s.Messages)

	c.runFlushHook(s)

	idx := s.GetSafeCompactionPoint(c.targetKeep)
	if idx <= 0 {
		return CompactionResult{
			Compacted:      false,
			OriginalCount:  originalCount,
			CompactedCount: originalCount,
			TokensBefore:   tokensBefore,
			TokensAfter:    tokensBefore,
			Mode:           "none",
		}
	}

	elided := s.Messages[:idx]
	kept := s.Messages[idx:]

	summary := Entry{
		Role:      "assistant",
		Content:   fmt.Sprintf("[%d earlier messages summarized during compaction]", len(elided)),
		Timestamp: elided[len(elided)-1].Timestamp,
	}

	s.Messages = append([]Entry{summary}, kept...)
	if v, ok := s.Metadata["_summary_log"].([]string); ok {
		s.Metadata["_summary_log"] = append(v, summary.Content)
	} else {
		s.Metadata["_summary_log"] = []string{summary.Content}
	}

	tokensAfter := estimateTokens(s.Messages)
	result := CompactionResult{
		Compacted:      true,
		OriginalCount:  originalCount,
		CompactedCount: len(s.Messages),
		TokensBefore:   tokensBefore,
		TokensAfter:    tokensAfter,
		Mode:           "summary",
	}

	s.Metadata["original_count"] = result.OriginalCount
	s.Metadata["compacted_count"] = result.CompactedCount
	s.Metadata["tokens_before"] = result.TokensBefore
	s.Metadata["tokens_after"] = result.TokensAfter
	s.Metadata["mode"] = result.Mode
	return result
}

func (c *Compactor) runFlushHook(s *Session) {
	if c.flusher == nil {
		return
	}
	recent := lastN(s.Messages, c.flushLastN)
	if err := c.flusher.FlushRecent(recent); err != nil {
		c.log.Warn("pre-compaction memory flush failed", slog.Any("err", err))
	}
}

// estimateTokens uses a rough chars/3 heuristic; the agent loop's own
// context-window bookkeeping (agent.EstimateTokens) uses chars/4.
func estimateTokens(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += utf8.RuneCountInString(e.Content) / 3
	}
	return total
}
