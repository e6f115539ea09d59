package agent

import (
	"testing"

	"github.com/nanobridge/orchestrator/internal/providers"
)

func TestSanitizeHistoryDropsLeadingOrphanToolMessage(t *testing.T) {
	msgs := []providers.Message{
		{Role: "tool", Content: "orphaned", ToolCallID: "missing-call"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}

	got := sanitizeHistory(msgs)

	if len(got) != 2 {
		t.Fatalf("expected 2 messages after dropping leading orphan, got %d: %+v", len(got), got)
	}
	if got[0].Role != "user" || got[0].Content != "hello" {
		t.Fatalf("expected first kept message to be the user turn, got %+v", got[0])
	}
}

func TestSanitizeHistoryAllOrphanReturnsNil(t *testing.T) {
	msgs := []providers.Message{
		{Role: "tool", Content: "orphaned-1", ToolCallID: "a"},
		{Role: "tool", Content: "orphaned-2", ToolCallID: "b"},
	}

	got := sanitizeHistory(msgs)
	if got != nil {
		t.Fatalf("expected nil when every message is an orphaned tool message, got %+v", got)
	}
}

func TestSanitizeHistoryPreservesMatchedToolCallPair(t *testing.T) {
	msgs := []providers.Message{
		{Role: "user", Content: "run the thing"},
		{
			Role:      "assistant",
			ToolCalls: []providers.ToolCall{{ID: "call-1", Name: "exec"}},
		},
		{Role: "tool", Content: "ok", ToolCallID: "call-1"},
		{Role: "assistant", Content: "done"},
	}

	got := sanitizeHistory(msgs)

	if len(got) != 4 {
		t.Fatalf("expected all 4 messages preserved, got %d: %+v", len(got), got)
	}
	if got[2].Role != "tool" || got[2].ToolCallID != "call-1" {
		t.Fatalf("expected the matching tool result to stay immediately after its tool_use, got %+v", got[2])
	}
}

// TestSanitizeHistorySynthesizesMissingToolResult covers the case a
// compaction window cut across: the assistant's tool_use survived the
// window but its tool_result fell outside it. A synthetic tool message
// must be injected so no tool_use is ever sent to a provider without a
// matching tool_result immediately after it.
func TestSanitizeHistorySynthesizesMissingToolResult(t *testing.T) {
	msgs := []providers.Message{
		{Role: "user", Content: "run the thing"},
		{
			Role:      "assistant",
			ToolCalls: []providers.ToolCall{{ID: "call-1", Name: "exec"}},
		},
		{Role: "assistant", Content: "done"}, // tool_result for call-1 was compacted away
	}

	got := sanitizeHistory(msgs)

	if len(got) != 4 {
		t.Fatalf("expected a synthesized tool result to be injected, got %d messages: %+v", len(got), got)
	}
	synthesized := got[2]
	if synthesized.Role != "tool" || synthesized.ToolCallID != "call-1" {
		t.Fatalf("expected a synthesized tool message for call-1 right after the tool_use, got %+v", synthesized)
	}
	if got[3].Role != "assistant" || got[3].Content != "done" {
		t.Fatalf("expected the trailing assistant message untouched, got %+v", got[3])
	}
}

func TestSanitizeHistoryDropsOrphanedMidHistoryToolMessage(t *testing.T) {
	msgs := []providers.Message{
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "stray", ToolCallID: "no-such-call"},
		{Role: "assistant", Content: "hello back"},
	}

	got := sanitizeHistory(msgs)

	for _, m := range got {
		if m.Role == "tool" {
			t.Fatalf("expected the orphaned mid-history tool message to be dropped, got %+v", got)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving messages, got %d: %+v", len(got), got)
	}
}

func TestSanitizeHistoryEmptyInput(t *testing.T) {
	if got := sanitizeHistory(nil); got != nil {
		t.Fatalf("expected nil for nil input, got %+v", got)
	}
	if got := sanitizeHistory([]providers.Message{}); len(got) != 0 {
		t.Fatalf("expected empty for empty input, got %+v", got)
	}
}
