package session

import (
	"testing"

	"github.com/nanobridge/orchestrator/internal/providers"
)

func TestGetHistoryRepairsBrokenToolChain(t *testing.T) {
	s := newSession("room:x")
	s.AddMessage("user", "run the tests", nil, "")
	s.AddMessage("assistant", "", []providers.ToolCall{{ID: "call_1", Name: "run_tests"}}, "")
	s.AddMessage("tool", "all green", nil, "call_1")
	s.AddMessage("assistant", "tests pass", nil, "")
	s.AddMessage("user", "thanks", nil, "")

	// max=3 starts the window right at the tool result, leaving its
	// tool_use (one message earlier) orphaned.
	hist := s.GetHistory(3, true)

	if len(hist) != 4 {
		t.Fatalf("expected the missing tool_use message to be prepended, got %d messages: %+v", len(hist), hist)
	}
	if hist[0].Role != "assistant" {
		t.Fatalf("expected prepended message to be the assistant tool_use, got role %q", hist[0].Role)
	}
}

func TestGetHistoryNoRepairNeeded(t *testing.T) {
	s := newSession("room:x")
	s.AddMessage("user", "hi", nil, "")
	s.AddMessage("assistant", "hello", nil, "")
	s.AddMessage("user", "bye", nil, "")

	hist := s.GetHistory(2, true)
	if len(hist) != 2 {
		t.Fatalf("expected no repair, got %d messages", len(hist))
	}
	if hist[0].Content != "hello" {
		t.Fatalf("unexpected window start: %+v", hist)
	}
}

func TestGetSafeCompactionPointTriviallySafe(t *testing.T) {
	s := newSession("room:x")
	for i := 0; i < 5; i++ {
		s.AddMessage("user", "q", nil, "")
		s.AddMessage("assistant", "a", nil, "")
	}
	// targetKeep covers everything; nothing to compact.
	if idx := s.GetSafeCompactionPoint(100); idx != 0 {
		t.Fatalf("expected 0 when target exceeds message count, got %d", idx)
	}
}

func TestGetSafeCompactionPointSkipsUnsafeBoundary(t *testing.T) {
	s := newSession("room:x")
	s.AddMessage("user", "setup", nil, "")
	s.AddMessage("assistant", "", []providers.ToolCall{{ID: "call_1"}}, "")
	s.AddMessage("tool", "result", nil, "call_1")
	s.AddMessage("assistant", "done", nil, "")
	s.AddMessage("user", "more", nil, "")
	s.AddMessage("assistant", "ok", nil, "")

	// targetKeep=4 starts scanning at the tool result itself (not an
	// assistant message), so the walk continues backward until it finds
	// an assistant boundary whose tool results are all in the kept window.
	idx := s.GetSafeCompactionPoint(4)
	if idx < 0 || idx >= len(s.Messages) {
		t.Fatalf("index out of range: %d", idx)
	}
	msg := s.Messages[idx]
	if msg.Role != "assistant" {
		t.Fatalf("expected a safe boundary to land on an assistant message, got %q at %d", msg.Role, idx)
	}
}

func TestClearEmptiesBuffer(t *testing.T) {
	s := newSession("room:x")
	s.AddMessage("user", "hi", nil, "")
	s.Clear()
	if len(s.Messages) != 0 {
		t.Fatalf("expected empty buffer after Clear, got %d", len(s.Messages))
	}
}
