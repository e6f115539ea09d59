package agent

import (
	"fmt"
	"strings"

	"github.com/nanobridge/orchestrator/internal/providers"
)

// buildMessages assembles the full message list for one LLM request: a
// system prompt built from the bot's identity and permissions, sanitized
// prior history, and the current user turn.
func (l *Loop) buildMessages(history []providers.Message, memoryContext, userMessage string) []providers.Message {
	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: "system", Content: l.systemPrompt(memoryContext)})
	messages = append(messages, sanitizeHistory(history)...)
	messages = append(messages, providers.Message{Role: "user", Content: userMessage})
	return messages
}

// systemPrompt composes identity, bot personality, memory context, skills,
// and a summary of what this bot is permitted to do.
func (l *Loop) systemPrompt(memoryContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", l.id)
	if l.botCfg.Persona != "" {
		b.WriteString(l.botCfg.Persona)
		b.WriteString("\n")
	}
	if len(l.botCfg.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(l.botCfg.Skills, ", "))
	}
	if names := l.allowedToolNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Tools you may use: %s\n", strings.Join(names, ", "))
	}
	if l.botCfg.Workspace != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", l.botCfg.Workspace)
	}
	if memoryContext != "" {
		b.WriteString("\n")
		b.WriteString(memoryContext)
	}
	return b.String()
}

func (l *Loop) allowedToolNames() []string {
	defs := l.filteredTools()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Function.Name)
	}
	return names
}

// sanitizeHistory repairs tool_use/tool_result pairing in session history
// that session.GetHistory's window may have cut across: leading orphaned
// tool messages are dropped, assistant messages missing a later tool
// result get one synthesized so the provider never sees a dangling call.
func sanitizeHistory(msgs []providers.Message) []providers.Message {
	if len(msgs) == 0 {
		return msgs
	}

	start := 0
	for start < len(msgs) && msgs[start].Role == "tool" {
		start++
	}
	if start >= len(msgs) {
		return nil
	}

	var result []providers.Message
	for i := start; i < len(msgs); i++ {
		msg := msgs[i]

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			expected := make(map[string]bool, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				expected[tc.ID] = true
			}
			result = append(result, msg)

			for i+1 < len(msgs) && msgs[i+1].Role == "tool" {
				i++
				if expected[msgs[i].ToolCallID] {
					result = append(result, msgs[i])
					delete(expected, msgs[i].ToolCallID)
				}
			}
			for id := range expected {
				result = append(result, providers.Message{
					Role: "tool", Content: "[tool result missing — session was compacted]", ToolCallID: id,
				})
			}
		} else if msg.Role == "tool" {
			continue // orphaned mid-history tool message, drop it
		} else {
			result = append(result, msg)
		}
	}
	return result
}
