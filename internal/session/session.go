// Package session implements the per-room conversation log: an
// in-memory Session backed by a newline-delimited file per room, with
// tool-chain-aware history trimming and compaction-point selection.
package session

import (
	"encoding/json"
	"time"

	"github.com/nanobridge/orchestrator/internal/providers"
)

// Entry is one logged message: a provider message plus the timestamp
// it was recorded at. Entries are what gets persisted to the JSONL log;
// GetHistory replays them back as provider messages for the LLM.
type Entry struct {
	Role                string               `json:"role"`
	Content             string               `json:"content"`
	ToolCalls           []providers.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID          string               `json:"tool_call_id,omitempty"`
	RawAssistantContent json.RawMessage      `json:"raw_assistant_content,omitempty"`
	Timestamp           time.Time            `json:"timestamp"`
}

// Session is a single room's conversation history.
type Session struct {
	Key       string
	Messages  []Entry
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any
}

func newSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Messages:  []Entry{},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

// AddMessage appends a message, stamping it with the current time.
func (s *Session) AddMessage(role, content string, toolCalls []providers.ToolCall, toolCallID string) {
	s.AddMessageRaw(role, content, toolCalls, toolCallID, nil)
}

// AddMessageRaw is AddMessage plus the provider's raw assistant content
// block, preserved so it can be replayed verbatim on the next turn.
func (s *Session) AddMessageRaw(role, content string, toolCalls []providers.ToolCall, toolCallID string, raw json.RawMessage) {
	s.Messages = append(s.Messages, Entry{
		Role:                role,
		Content:             content,
		ToolCalls:           toolCalls,
		ToolCallID:          toolCallID,
		RawAssistantContent: raw,
		Timestamp:           time.Now(),
	})
	s.UpdatedAt = time.Now()
}

// GetHistory returns the last max messages as {role, content} pairs,
// repairing the tool-chain invariant: if the earliest message in the
// window is a tool result whose matching tool_use fell outside the
// window, the assistant message that issued it is located by scanning
// the full log backward and prepended.
func (s *Session) GetHistory(max int, preserveToolChains bool) []providers.Message {
	recent := lastN(s.Messages, max)

	if preserveToolChains {
		recent = s.preserveToolChains(recent)
	}

	out := make([]providers.Message, len(recent))
	for i, m := range recent {
		out[i] = providers.Message{
			Role:                m.Role,
			Content:             m.Content,
			ToolCalls:           m.ToolCalls,
			ToolCallID:          m.ToolCallID,
			RawAssistantContent: m.RawAssistantContent,
		}
	}
	return out
}

func lastN(entries []Entry, n int) []Entry {
	if n <= 0 || len(entries) <= n {
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		return cp
	}
	cp := make([]Entry, n)
	copy(cp, entries[len(entries)-n:])
	return cp
}

// preserveToolChains implements the single-repair pass the Python
// source performs: only the window's first message is checked, because
// that is the only position a broken chain can appear at once entries
// are taken as a contiguous suffix of the full log.
func (s *Session) preserveToolChains(window []Entry) []Entry {
	if len(window) == 0 {
		return window
	}

	issued := make(map[string]bool)
	for _, m := range window {
		if m.Role == "assistant" {
			for _, tc := range m.ToolCalls {
				issued[tc.ID] = true
			}
		}
	}

	first := window[0]
	if first.Role == "tool" && first.ToolCallID != "" && !issued[first.ToolCallID] {
		if missing := s.findToolUseMessage(first.ToolCallID); missing != nil {
			repaired := make([]Entry, 0, len(window)+1)
			repaired = append(repaired, *missing)
			repaired = append(repaired, window...)
			return repaired
		}
	}
	return window
}

// findToolUseMessage scans the full log backward for the assistant
// message that issued the given tool call id.
func (s *Session) findToolUseMessage(toolCallID string) *Entry {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role != "assistant" {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.ID == toolCallID {
				return &s.Messages[i]
			}
		}
	}
	return nil
}

// GetSafeCompactionPoint walks backward from len-targetKeep looking for
// an assistant message that is either toolless or has every one of its
// tool calls answered later in the kept window. Returns 0 (nothing is
// compacted) if no safe boundary is found.
func (s *Session) GetSafeCompactionPoint(targetKeep int) int {
	n := len(s.Messages)
	if n <= targetKeep {
		return 0
	}

	checkIndex := n - targetKeep
	for checkIndex > 0 {
		msg := s.Messages[checkIndex]
		if msg.Role == "assistant" {
			if len(msg.ToolCalls) == 0 {
				return checkIndex
			}
			if s.allToolResultsPresentAfter(msg.ToolCalls, checkIndex) {
				return checkIndex
			}
		}
		checkIndex--
	}
	return 0
}

func (s *Session) allToolResultsPresentAfter(calls []providers.ToolCall, after int) bool {
	for _, tc := range calls {
		found := false
		for i := after + 1; i < len(s.Messages); i++ {
			if s.Messages[i].Role == "tool" && s.Messages[i].ToolCallID == tc.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clear empties the in-memory message buffer; the next Save overwrites
// the on-disk log with just the metadata header.
func (s *Session) Clear() {
	s.Messages = []Entry{}
	s.UpdatedAt = time.Now()
}
