package session

import (
	"errors"
	"testing"
)

type stubFlusher struct {
	calls int
	err   error
}

func (f *stubFlusher) FlushRecent(entries []Entry) error {
	f.calls++
	return f.err
}

func TestShouldCompactThreshold(t *testing.T) {
	s := newSession("room:x")
	for i := 0; i < 50; i++ {
		s.AddMessage("user", "this is a moderately long message to push up the token estimate", nil, "")
	}
	c := NewCompactor(nil, 10, 5, nil)

	if c.ShouldCompact(s, 1_000_000, 0.9) {
		t.Fatal("expected small history under a huge context window not to need compaction")
	}
	if !c.ShouldCompact(s, 10, 0.1) {
		t.Fatal("expected history to exceed a tiny context window")
	}
}

func TestCompactReplacesElidedMessagesWithSummary(t *testing.T) {
	s := newSession("room:x")
	for i := 0; i < 20; i++ {
		s.AddMessage("user", "hello", nil, "")
		s.AddMessage("assistant", "hi there", nil, "")
	}
	flusher := &stubFlusher{}
	c := NewCompactor(flusher, 10, 5, nil)

	result := c.Compact(s)

	if !result.Compacted {
		t.Fatal("expected compaction to occur with 40 messages and targetKeep=5")
	}
	if flusher.calls != 1 {
		t.Fatalf("expected the memory flush hook to run exactly once, got %d", flusher.calls)
	}
	if s.Messages[0].Role != "assistant" || s.Messages[0].ToolCallID != "" {
		t.Fatalf("expected a synthetic assistant summary message first, got %+v", s.Messages[0])
	}
	if s.Metadata["mode"] != "summary" {
		t.Fatalf("expected mode=summary recorded in metadata, got %+v", s.Metadata["mode"])
	}
	if s.Metadata["original_count"] != result.OriginalCount {
		t.Fatalf("expected original_count to match the result, got %+v", s.Metadata["original_count"])
	}
}

func TestCompactSkipsFlushFailureWithoutFailingCompaction(t *testing.T) {
	s := newSession("room:x")
	for i := 0; i < 20; i++ {
		s.AddMessage("user", "hello", nil, "")
	}
	flusher := &stubFlusher{err: errors.New("boom")}
	c := NewCompactor(flusher, 10, 5, nil)

	result := c.Compact(s)
	if flusher.calls != 1 {
		t.Fatalf("expected flush hook to still be called once despite failing, got %d", flusher.calls)
	}
	_ = result
}

func TestCompactNoopWhenNoSafeBoundary(t *testing.T) {
	s := newSession("room:x")
	s.AddMessage("user", "hi", nil, "")
	s.AddMessage("assistant", "hello", nil, "")
	c := NewCompactor(nil, 10, 30, nil)

	result := c.Compact(s)
	if result.Compacted {
		t.Fatal("expected no compaction when message count is under targetKeep")
	}
	if result.CompactedCount != result.OriginalCount {
		t.Fatalf("expected counts to match on a no-op compaction, got %+v", result)
	}
}
