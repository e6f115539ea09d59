package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nanobridge/orchestrator/internal/memory"
	"github.com/nanobridge/orchestrator/internal/providers"
	"github.com/nanobridge/orchestrator/internal/router"
	"github.com/nanobridge/orchestrator/internal/session"
	"github.com/nanobridge/orchestrator/internal/store"
	"github.com/nanobridge/orchestrator/internal/tools"
	"github.com/nanobridge/orchestrator/internal/tracing"
)

// Run lifecycle event types, forwarded to OnEvent so a transport adapter or
// CLI can render progress without depending on the agent package internals.
const (
	AgentEventRunStarted   = "run.started"
	AgentEventRunCompleted = "run.completed"
	AgentEventRunFailed    = "run.failed"
	AgentEventToolCall     = "tool.call"
	AgentEventToolResult   = "tool.result"
)

// AgentEvent is one lifecycle notification the loop emits as it runs.
type AgentEvent struct {
	Type    string
	AgentID string
	RunID   string
	Payload map[string]any
}

// RunRequest is one inbound turn handed to a bot's loop.
type RunRequest struct {
	SessionKey string
	Content    string
	Media      []string // local file paths, vision input
	Channel    string
	ChatID     string
	RunID      string // caller-supplied; generated if empty
}

// MediaResult is one outbound media attachment produced during the run,
// recognized from a tool's "MEDIA:<path>" output convention.
type MediaResult struct {
	Path        string
	ContentType string
	AsVoice     bool
}

// ContextUsage reports how full the session's context window is after
// the run, and whether this run triggered a compaction pass.
type ContextUsage struct {
	EstimatedTokens int
	ContextWindow   int
	Compacted       bool
}

// RunResult is what a Run call returns to its caller (bot dispatch).
type RunResult struct {
	Content      string
	RunID        string
	Iterations   int
	Usage        *providers.Usage
	Media        []MediaResult
	ContextUsage ContextUsage
}

const (
	defaultMaxIterations   = 20
	defaultHistoryLimit    = 40
	defaultCompactFraction = 0.75
	defaultContextWindow   = 128000
	recentTiersKept        = 5

	reflectionPrompt = "Before responding, briefly reconsider: does the tool result above fully answer the request, or is another step needed?"
)

// LoopConfig bundles everything NewLoop needs beyond the bot's own
// identity config (BotConfig).
type LoopConfig struct {
	Sessions        *session.Manager
	Memory          *memory.Store
	Compactor       *session.Compactor
	LearningConfig  memory.LearningConfig
	HistoryLimit    int
	CompactFraction float64
	OnEvent         func(AgentEvent)
	TraceCollector  *tracing.Collector
}

// Loop runs one bot's think-act-observe cycle for a single turn:
// onboarding gate → slash commands → secret sanitize → memory record →
// feedback detection → memory context assembly → compaction check →
// route → bounded tool loop → sanitize output → memory record → save.
type Loop struct {
	id     string
	botCfg BotConfig

	sessions  *session.Manager
	memStore  *memory.Store
	compactor *session.Compactor

	learningCfg  memory.LearningConfig
	historyLimit int
	compactFrac  float64

	onEvent        func(AgentEvent)
	traceCollector *tracing.Collector

	activeRuns sync.Map // runID -> struct{}, introspection only
}

// NewLoop builds a Loop for one bot.
func NewLoop(id string, botCfg BotConfig, cfg LoopConfig) *Loop {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.CompactFraction <= 0 {
		cfg.CompactFraction = defaultCompactFraction
	}
	if cfg.LearningConfig == (memory.LearningConfig{}) {
		cfg.LearningConfig = memory.DefaultLearningConfig()
	}
	if botCfg.MaxIterations <= 0 {
		botCfg.MaxIterations = defaultMaxIterations
	}
	if botCfg.ContextWindow <= 0 {
		botCfg.ContextWindow = defaultContextWindow
	}
	return &Loop{
		id:             id,
		botCfg:         botCfg,
		sessions:       cfg.Sessions,
		memStore:       cfg.Memory,
		compactor:      cfg.Compactor,
		learningCfg:    cfg.LearningConfig,
		historyLimit:   cfg.HistoryLimit,
		compactFrac:    cfg.CompactFraction,
		onEvent:        cfg.OnEvent,
		traceCollector: cfg.TraceCollector,
	}
}

func (l *Loop) providerName() string {
	if l.botCfg.Provider == nil {
		return ""
	}
	return l.botCfg.Provider.Name()
}

// Run executes one full turn, wrapping runLoop with trace creation and
// lifecycle events.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	l.activeRuns.Store(req.RunID, struct{}{})
	defer l.activeRuns.Delete(req.RunID)

	traceID := store.GenNewID()
	ctx = tracing.WithTraceID(ctx, traceID)
	if l.traceCollector != nil {
		ctx = tracing.WithCollector(ctx, l.traceCollector)
	}
	ctx = tracing.WithParentSpanID(ctx, store.GenNewID())

	start := time.Now().UTC()
	if l.traceCollector != nil {
		_ = l.traceCollector.CreateTrace(ctx, store.TraceData{
			ID: traceID, Status: store.TraceStatusRunning, StartedAt: start,
		})
	}

	l.emit(AgentEvent{Type: AgentEventRunStarted, AgentID: l.id, RunID: req.RunID})

	result, err := l.runLoop(ctx, req)

	if l.traceCollector != nil {
		status, errMsg, preview := store.TraceStatusCompleted, "", ""
		if err != nil {
			status, errMsg = store.TraceStatusError, err.Error()
		} else if result != nil {
			preview = truncateStr(result.Content, 500)
		}
		l.traceCollector.FinishTrace(ctx, traceID, status, errMsg, preview)
	}
	l.emitAgentSpan(ctx, start, result, err)

	if err != nil {
		l.emit(AgentEvent{Type: AgentEventRunFailed, AgentID: l.id, RunID: req.RunID,
			Payload: map[string]any{"error": err.Error()}})
		return nil, err
	}
	l.emit(AgentEvent{Type: AgentEventRunCompleted, AgentID: l.id, RunID: req.RunID,
		Payload: map[string]any{"iterations": result.Iterations}})
	return result, nil
}

func (l *Loop) runLoop(ctx context.Context, req RunRequest) (*RunResult, error) {
	// 1. Onboarding gate: no provider configured yet, no LLM call.
	if l.botCfg.Provider == nil {
		return &RunResult{Content: onboardingResponse, RunID: req.RunID}, nil
	}

	// 2. Slash commands: handled without touching the LLM or memory store.
	if resp, handled := l.handleSlashCommand(req); handled {
		return resp, nil
	}

	sess, err := l.sessions.GetOrCreate(req.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("agent: get session: %w", err)
	}

	// 3. Secret sanitize on inbound content.
	inbound, kinds := sanitizeSecrets(req.Content)
	if len(kinds) > 0 {
		slog.Warn("redacted secrets from inbound message",
			"bot", l.id, "session", req.SessionKey, "kinds", kinds)
	}

	// 4. Record inbound event in the Memory Store.
	l.recordEvent(req, "inbound", inbound)

	// 5. Feedback detection, fed into the contradiction/supersede path.
	if learning, ok := memory.DetectFeedback(inbound); ok && l.memStore != nil {
		if _, err := l.memStore.RecordLearning(l.learningCfg, learning); err != nil {
			slog.Warn("record learning failed", "bot", l.id, "error", err)
		}
	}

	// 6. Memory context assembly: bounded entity + learning digest.
	memoryContext := l.assembleMemoryContext()

	// 7. Session compaction check.
	compacted := false
	if l.compactor != nil && l.compactor.ShouldCompact(sess, l.botCfg.ContextWindow, l.compactFrac) {
		l.compactor.Compact(sess)
		compacted = true
	}

	history := sess.GetHistory(l.historyLimit, true)
	images := loadImages(req.Media)

	// 8. Router call: resolve tier → model (+ secondary fallback).
	decision := l.route(ctx, inbound, sess)
	model := l.botCfg.DefaultModel
	if decision != nil {
		model = decision.Model
	}

	messages := l.buildMessages(history, memoryContext, inbound)
	if len(images) > 0 {
		messages[len(messages)-1].Images = images
	}
	sess.AddMessage("user", inbound, nil, "")

	// 9 & 10. Bounded tool-iteration loop with CoT reflection and
	// secondary-model retry on provider error.
	content, rawAssistant, usage, iterations, err := l.toolLoop(ctx, messages, model, decision)
	if err != nil {
		return nil, err
	}

	content = SanitizeAssistantContent(content)
	if content == "" || IsSilentReply(content) {
		content = "..."
	}

	// 11. Outbound event recording.
	l.recordEvent(req, "outbound", content)

	sess.AddMessageRaw("assistant", content, nil, "", rawAssistant)
	if err := l.sessions.Save(req.SessionKey); err != nil {
		slog.Warn("session save failed", "bot", l.id, "session", req.SessionKey, "error", err)
	}

	// 12. Outbound envelope composition: usage + context metadata.
	return &RunResult{
		Content:    content,
		RunID:      req.RunID,
		Iterations: iterations,
		Usage:      usage,
		Media:      extractMediaResults(content),
		ContextUsage: ContextUsage{
			EstimatedTokens: EstimateTokens(messages),
			ContextWindow:   l.botCfg.ContextWindow,
			Compacted:       compacted,
		},
	}, nil
}

func (l *Loop) handleSlashCommand(req RunRequest) (*RunResult, bool) {
	switch strings.TrimSpace(req.Content) {
	case "/new":
		if sess, err := l.sessions.GetOrCreate(req.SessionKey); err == nil {
			sess.Clear()
			_ = l.sessions.Save(req.SessionKey)
		}
		return &RunResult{Content: "Started a fresh conversation.", RunID: req.RunID}, true
	case "/help":
		return &RunResult{Content: helpResponse, RunID: req.RunID}, true
	default:
		return nil, false
	}
}

func (l *Loop) recordEvent(req RunRequest, direction, content string) {
	if l.memStore == nil {
		return
	}
	e := memory.Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Channel:    req.Channel,
		Direction:  direction,
		EventType:  "message",
		Content:    content,
		SessionKey: req.SessionKey,
	}
	if _, err := l.memStore.SaveEvent(e); err != nil {
		slog.Warn("save event failed", "bot", l.id, "direction", direction, "error", err)
	}
}

// assembleMemoryContext surfaces up to maxEntities() known entities and
// any durable feedback worth repeating or applying going forward, bounded
// by memoryBudget() characters total.
func (l *Loop) assembleMemoryContext() string {
	if l.memStore == nil {
		return ""
	}
	budget := l.botCfg.memoryBudget()
	var b strings.Builder

	if entities, err := l.memStore.GetAllEntities(l.botCfg.maxEntities()); err != nil {
		slog.Warn("load entities for memory context failed", "bot", l.id, "error", err)
	} else if len(entities) > 0 {
		b.WriteString("Known entities:\n")
		for _, e := range entities {
			line := fmt.Sprintf("- %s (%s): %s\n", e.Name, e.EntityType, e.Description)
			if b.Len()+len(line) > budget {
				break
			}
			b.WriteString(line)
		}
	}

	if learnings, err := l.memStore.GetActiveLearnings(50); err != nil {
		slog.Warn("load learnings for memory context failed", "bot", l.id, "error", err)
	} else if len(learnings) > 0 {
		sort.SliceStable(learnings, func(i, j int) bool {
			return learnings[i].RelevanceScore > learnings[j].RelevanceScore
		})
		var relevant []memory.Learning
		for _, ln := range learnings {
			if ln.Recommendation == "apply_going_forward" || ln.Recommendation == "repeat" {
				relevant = append(relevant, ln)
			}
		}
		if len(relevant) > 0 {
			b.WriteString("Remembered feedback:\n")
			for _, ln := range relevant {
				line := fmt.Sprintf("- %s\n", ln.Content)
				if b.Len()+len(line) > budget {
					break
				}
				b.WriteString(line)
			}
		}
	}

	out := b.String()
	if len(out) > budget {
		out = out[:budget]
	}
	return out
}

// route runs the bot's Router (if configured) with the session's recent
// tier history, and persists the new tier back onto the session.
func (l *Loop) route(ctx context.Context, content string, sess *session.Session) *router.Decision {
	if l.botCfg.Router == nil {
		return nil
	}
	recent := recentTiersFromSession(sess)
	decision := l.botCfg.Router.Route(ctx, content, recent)

	tiers := make([]string, 0, len(recent)+1)
	for _, t := range recent {
		tiers = append(tiers, string(t))
	}
	tiers = append(tiers, string(decision.Tier))
	if len(tiers) > recentTiersKept {
		tiers = tiers[len(tiers)-recentTiersKept:]
	}
	sess.Metadata["recent_tiers"] = tiers

	return &decision
}

// recentTiersFromSession reads back the tier history, tolerating both the
// []string this package writes and the []interface{} a JSON round trip
// through disk turns it into.
func recentTiersFromSession(sess *session.Session) []router.Tier {
	var out []router.Tier
	switch v := sess.Metadata["recent_tiers"].(type) {
	case []string:
		for _, s := range v {
			out = append(out, router.Tier(s))
		}
	case []interface{}:
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, router.Tier(s))
			}
		}
	}
	return out
}

// filteredTools resolves the tool set this bot may call on this turn,
// running the registry through the policy engine when one is configured.
func (l *Loop) filteredTools() []providers.ToolDefinition {
	if l.botCfg.Tools == nil {
		return nil
	}
	if l.botCfg.ToolPolicy == nil {
		return l.botCfg.Tools.ProviderDefs()
	}
	return l.botCfg.ToolPolicy.FilterTools(l.botCfg.Tools, l.id, l.providerName(),
		l.botCfg.ToolPolicySpec, nil, false, true)
}

func tierOf(decision *router.Decision) router.Tier {
	if decision == nil {
		return ""
	}
	return decision.Tier
}

// toolLoop drives the bounded think-act-observe cycle: send messages,
// execute any requested tools, optionally inject a reflection prompt, and
// repeat until the model stops calling tools or the iteration cap is hit.
// A provider error is retried once against the router's secondary model.
func (l *Loop) toolLoop(ctx context.Context, messages []providers.Message, model string, decision *router.Decision) (string, json.RawMessage, *providers.Usage, int, error) {
	toolDefs := l.filteredTools()
	totalUsage := &providers.Usage{}
	triedSecondary := false

	for iteration := 0; iteration < l.botCfg.MaxIterations; iteration++ {
		req := providers.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
			Model:    model,
			Options: map[string]interface{}{
				providers.OptMaxTokens:   8192,
				providers.OptTemperature: 0.7,
			},
		}
		if l.botCfg.ThinkingLevel != "" {
			req.Options[providers.OptThinkingLevel] = l.botCfg.ThinkingLevel
		}

		start := time.Now().UTC()
		resp, err := l.botCfg.Provider.Chat(ctx, req)
		l.emitLLMSpan(ctx, start, iteration, messages, resp, err)

		if err != nil {
			if !triedSecondary && decision != nil {
				if secondary, _ := decision.Metadata["secondary_model"].(string); secondary != "" {
					triedSecondary = true
					model = secondary
					iteration--
					continue
				}
			}
			return "", nil, totalUsage, iteration, fmt.Errorf("agent: llm call failed: %w", err)
		}

		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, resp.RawAssistantContent, totalUsage, iteration + 1, nil
		}

		messages = append(messages, providers.Message{
			Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls,
			RawAssistantContent: resp.RawAssistantContent,
		})
		messages = l.executeToolCalls(ctx, messages, resp.ToolCalls)

		if l.botCfg.Reasoning.shouldReflect(tierOf(decision)) {
			messages = append(messages, providers.Message{Role: "user", Content: reflectionPrompt})
		}
	}

	return "", nil, totalUsage, l.botCfg.MaxIterations,
		fmt.Errorf("agent: exceeded max tool iterations (%d)", l.botCfg.MaxIterations)
}

// executeToolCalls runs every call in resp.ToolCalls concurrently, then
// appends their results as tool messages in the original request order.
func (l *Loop) executeToolCalls(ctx context.Context, messages []providers.Message, calls []providers.ToolCall) []providers.Message {
	if l.botCfg.Tools == nil {
		for _, tc := range calls {
			messages = append(messages, providers.Message{
				Role: "tool", Content: "no tools configured", ToolCallID: tc.ID,
			})
		}
		return messages
	}

	type outcome struct {
		call   providers.ToolCall
		result *tools.Result
	}
	results := make([]outcome, len(calls))
	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc providers.ToolCall) {
			defer wg.Done()
			start := time.Now().UTC()
			argsJSON, _ := json.Marshal(tc.Arguments)
			res := l.botCfg.Tools.Execute(ctx, tc.Name, tc.Arguments)
			l.emitToolSpan(ctx, start, tc.Name, tc.ID, string(argsJSON), res)
			results[i] = outcome{call: tc, result: res}
		}(i, tc)
	}
	wg.Wait()

	for _, o := range results {
		content := ""
		if o.result != nil {
			content = o.result.ForLLM
		}
		messages = append(messages, providers.Message{Role: "tool", Content: content, ToolCallID: o.call.ID})
	}
	return messages
}

// extractMediaResults pulls out every "MEDIA:<path>" line a tool result
// left in the final assistant content, matching create_image's convention.
func extractMediaResults(content string) []MediaResult {
	const voiceMarker = "[[audio_as_voice]]"
	var out []MediaResult
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "MEDIA:") {
			continue
		}
		path := strings.TrimPrefix(line, "MEDIA:")
		asVoice := strings.Contains(path, voiceMarker)
		if asVoice {
			path = strings.ReplaceAll(path, voiceMarker, "")
		}
		path = strings.TrimSpace(path)
		out = append(out, MediaResult{Path: path, ContentType: mimeFromExt(path), AsVoice: asVoice})
	}
	return out
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
