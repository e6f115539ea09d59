package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

// invokeTimeout bounds how long invoke waits for the delegate bot's run to
// finish, per the tool's synchronous-delegation contract.
const invokeTimeout = 5 * time.Minute

// InvokeRunFunc runs one turn against a specialist bot's own agent loop and
// returns its final response text. Bound by cmd/gateway to the bot's
// already-constructed agent.Loop, one closure per configured bot — this
// avoids an import cycle between tools and agent.
type InvokeRunFunc func(ctx context.Context, sessionKey, content string) (string, error)

// InvokeTool lets a bot synchronously hand a task to another specialist bot
// and wait for its answer. It bypasses the room broker's queue: invoke is a
// direct request/response call, not a routed conversational turn.
type InvokeTool struct {
	mu      sync.RWMutex
	targets map[string]InvokeRunFunc
}

// NewInvokeTool builds an InvokeTool with no registered targets. Callers
// register one bot at a time as they're constructed.
func NewInvokeTool() *InvokeTool {
	return &InvokeTool{targets: make(map[string]InvokeRunFunc)}
}

// Register makes botID a valid invoke target, backed by run.
func (t *InvokeTool) Register(botID string, run InvokeRunFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[botID] = run
}

// Unregister removes botID, e.g. when a bot is torn down.
func (t *InvokeTool) Unregister(botID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.targets, botID)
}

func (t *InvokeTool) Name() string { return "invoke" }

func (t *InvokeTool) Description() string {
	return "Synchronously delegate a task to another specialist bot and wait for its answer. " +
		"Waits up to 5 minutes; use for a single well-scoped question or task, not an open-ended conversation."
}

func (t *InvokeTool) Parameters() map[string]interface{} {
	t.mu.RLock()
	names := make([]string, 0, len(t.targets))
	for name := range t.targets {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"bot": map[string]interface{}{
				"type":        "string",
				"description": "Name of the specialist bot to invoke.",
				"enum":        names,
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "The task or question to hand to that bot.",
			},
		},
		"required": []string{"bot", "message"},
	}
}

// Execute resolves the target bot and runs it against a session scoped to
// this delegation: channel "subagent" (an internal, transport-less channel,
// per bus.InternalChannels) keyed by the caller's own channel/chat so the
// same origin conversation always reuses the same delegate session.
func (t *InvokeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	botID, _ := args["bot"].(string)
	message, _ := args["message"].(string)
	if botID == "" || message == "" {
		return ErrorResult("invoke requires \"bot\" and \"message\"")
	}

	t.mu.RLock()
	run, ok := t.targets[botID]
	t.mu.RUnlock()
	if !ok {
		return ErrorResult(fmt.Sprintf("invoke: unknown bot %q", botID))
	}

	originChannel := ToolChannelFromCtx(ctx)
	originChatID := ToolChatIDFromCtx(ctx)
	delegateChatID := fmt.Sprintf("%s:%s->%s", originChannel, originChatID, botID)
	sessionKey := envelope.New("subagent", delegateChatID, message, envelope.SenderBot).SessionKey()

	runCtx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	reply, err := run(runCtx, sessionKey, message)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ErrorResult(fmt.Sprintf("invoke: %s did not respond within %s", botID, invokeTimeout))
		}
		return ErrorResult(fmt.Sprintf("invoke: %s failed: %v", botID, err))
	}
	return NewResult(reply)
}
