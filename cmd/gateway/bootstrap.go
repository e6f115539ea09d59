package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nanobridge/orchestrator/internal/agent"
	"github.com/nanobridge/orchestrator/internal/broker"
	"github.com/nanobridge/orchestrator/internal/bus"
	busdiscord "github.com/nanobridge/orchestrator/internal/bus/discord"
	bustelegram "github.com/nanobridge/orchestrator/internal/bus/telegram"
	"github.com/nanobridge/orchestrator/internal/config"
	"github.com/nanobridge/orchestrator/internal/dispatch"
	"github.com/nanobridge/orchestrator/internal/documents"
	"github.com/nanobridge/orchestrator/internal/envelope"
	"github.com/nanobridge/orchestrator/internal/memory"
	"github.com/nanobridge/orchestrator/internal/providers"
	"github.com/nanobridge/orchestrator/internal/router"
	"github.com/nanobridge/orchestrator/internal/session"
	"github.com/nanobridge/orchestrator/internal/store"
	"github.com/nanobridge/orchestrator/internal/store/file"
	"github.com/nanobridge/orchestrator/internal/store/pg"
	"github.com/nanobridge/orchestrator/internal/tools"
	"github.com/nanobridge/orchestrator/internal/tracing"
)

// gateway bundles every long-lived component the run command starts and
// stops as a unit.
type gateway struct {
	cfg *config.Config

	providerRegistry *providers.Registry
	toolsRegistry    *tools.Registry
	policy           *tools.PolicyEngine

	memStore  *memory.Store
	sessions  *session.Manager
	compactor *session.Compactor
	bg        *memory.BackgroundProcessor
	docs      *documents.Processor

	dispatchMgr *dispatch.Manager
	dispatcher  *dispatch.Dispatcher
	brokerMgr   *broker.Manager

	msgBus *bus.Bus
	loops  map[string]*agent.Loop

	tracingStore store.TracingStore
	pgDB         interface{ Close() error }
}

// newGateway wires every component described by the spec's bootstrap
// sequence: config → providers → tracing → tools/policy → memory →
// sessions → dispatch → per-bot agent loops → broker → bus.
func newGateway(cfg *config.Config, cfgPath string) (*gateway, error) {
	g := &gateway{cfg: cfg, loops: make(map[string]*agent.Loop)}

	workspace := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	if !filepath.IsAbs(workspace) {
		abs, err := filepath.Abs(workspace)
		if err == nil {
			workspace = abs
		}
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	g.providerRegistry = providers.NewRegistry()
	registerProviders(g.providerRegistry, cfg)

	if err := g.setupTracing(cfg, workspace); err != nil {
		return nil, err
	}

	if err := g.setupTools(cfg, workspace, cfgPath); err != nil {
		return nil, err
	}

	if err := g.setupMemory(cfg, workspace); err != nil {
		return nil, err
	}

	if err := g.setupSessions(cfg, workspace); err != nil {
		return nil, err
	}

	if err := g.setupDispatch(cfg, workspace); err != nil {
		return nil, err
	}

	g.buildLoops(cfg, workspace)

	g.setupBroker(cfg, workspace)

	if err := g.setupBus(cfg); err != nil {
		return nil, err
	}

	return g, nil
}

// loopIDs returns every configured bot id, for status/debug surfaces.
func (g *gateway) loopIDs() []string {
	ids := make([]string, 0, len(g.loops))
	for id := range g.loops {
		ids = append(ids, id)
	}
	return ids
}

func (g *gateway) setupTracing(cfg *config.Config, workspace string) error {
	if cfg.IsManagedMode() {
		db, err := pg.OpenDB(cfg.Database.PostgresDSN)
		if err != nil {
			return fmt.Errorf("managed mode tracing: %w", err)
		}
		g.pgDB = db
		g.tracingStore = pg.NewPGTracingStore(db)
		slog.Info("tracing store: postgres (managed mode)")
		return nil
	}
	traceDir := filepath.Join(workspace, "traces")
	fileStore, err := file.NewFileTracingStore(traceDir)
	if err != nil {
		return fmt.Errorf("create file tracing store: %w", err)
	}
	g.tracingStore = fileStore
	slog.Info("tracing store: file", "dir", traceDir)
	return nil
}

func (g *gateway) setupTools(cfg *config.Config, workspace, cfgPath string) error {
	agentCfg := cfg.ResolveAgent(cfg.ResolveDefaultAgentID())

	reg := tools.NewRegistry(30 * time.Second)
	reg.Register(tools.NewReadFileTool(workspace, agentCfg.RestrictToWorkspace))
	reg.Register(tools.NewWriteFileTool(workspace, agentCfg.RestrictToWorkspace))
	reg.Register(tools.NewEditFileTool(workspace, agentCfg.RestrictToWorkspace))
	reg.Register(tools.NewListDirTool(workspace, agentCfg.RestrictToWorkspace))
	reg.Register(tools.NewExecTool(workspace, agentCfg.RestrictToWorkspace))

	if cfg.Tools.Browser.Enabled {
		reg.Register(tools.NewBrowserTool(tools.BrowserConfig{
			Headless: cfg.Tools.Browser.Headless,
		}))
	}

	if webSearch := tools.NewWebSearchTool(tools.WebSearchConfig{
		BraveEnabled:    cfg.Tools.Web.Brave.Enabled,
		BraveAPIKey:     cfg.Tools.Web.Brave.APIKey,
		BraveMaxResults: cfg.Tools.Web.Brave.MaxResults,
		DDGEnabled:      cfg.Tools.Web.DuckDuckGo.Enabled,
		DDGMaxResults:   cfg.Tools.Web.DuckDuckGo.MaxResults,
	}); webSearch != nil {
		reg.Register(webSearch)
	}
	reg.Register(tools.NewWebFetchTool(tools.WebFetchConfig{}))
	reg.Register(tools.NewReadImageTool(g.providerRegistry))
	reg.Register(tools.NewCreateImageTool(g.providerRegistry))
	reg.Register(tools.NewInvokeTool())
	reg.Register(tools.NewUpdateConfigTool(cfg, cfgPath))
	reg.Register(tools.NewScanSkillTool())
	reg.Register(tools.NewValidateSkillSafetyTool())

	g.docs = documents.NewProcessor(workspace, cfg.Tools.Documents, slog.Default())
	reg.Register(tools.NewProcessDocumentTool(g.docs))

	g.toolsRegistry = reg
	g.policy = tools.NewPolicyEngine(&cfg.Tools)
	return nil
}

func (g *gateway) setupMemory(cfg *config.Config, workspace string) error {
	if cfg.Agents.Defaults.Memory != nil && cfg.Agents.Defaults.Memory.Enabled != nil && !*cfg.Agents.Defaults.Memory.Enabled {
		slog.Info("memory system disabled by config")
		return nil
	}
	dbPath := filepath.Join(workspace, "memory.db")
	store, err := memory.Open(dbPath, slog.Default())
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	g.memStore = store

	embedder := memory.NewHashEmbedder()
	extractor := memory.NewRegexExtractor()
	activity := memory.NewActivityTracker(10 * time.Second)
	bgCfg := memory.DefaultBackgroundConfig()

	g.bg = memory.NewBackgroundProcessor(store, extractor, embedder, activity, bgCfg, slog.Default())

	reg := g.toolsRegistry
	reg.Register(tools.NewSearchMemoryTool(store, embedder))
	reg.Register(tools.NewGetEntityTool(store))
	reg.Register(tools.NewGetRelationshipsTool(store))
	reg.Register(tools.NewRecallTool(store))
	slog.Info("memory system enabled", "path", dbPath)
	return nil
}

func (g *gateway) setupSessions(cfg *config.Config, workspace string) error {
	sessDir := cfg.Sessions.Storage
	if sessDir == "" {
		sessDir = filepath.Join(workspace, "sessions")
	} else {
		sessDir = config.ExpandHome(sessDir)
	}
	mgr, err := session.NewManager(sessDir)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	g.sessions = mgr

	targetKeep := 30
	if cc := cfg.Agents.Defaults.Compaction; cc != nil && cc.KeepLastMessages > 0 {
		targetKeep = cc.KeepLastMessages
	}

	var flusher session.MemoryFlusher
	if g.memStore != nil {
		flusher = memory.NewSessionFlusher(g.memStore, memory.DefaultLearningConfig())
	}
	g.compactor = session.NewCompactor(flusher, 10, targetKeep, slog.Default())
	return nil
}

func (g *gateway) setupDispatch(cfg *config.Config, workspace string) error {
	leaderID := cfg.ResolveDefaultAgentID()
	roomsDir := filepath.Join(workspace, "rooms")
	mgr, err := dispatch.NewManager(roomsDir, leaderID)
	if err != nil {
		return fmt.Errorf("create dispatch manager: %w", err)
	}
	g.dispatchMgr = mgr
	g.dispatcher = dispatch.NewDispatcher(leaderID)
	return nil
}

// buildLoops constructs one agent.Loop per configured bot. With no
// explicit Agents.List, a single loop is built under the default agent ID.
func (g *gateway) buildLoops(cfg *config.Config, workspace string) {
	traceCollector := tracing.NewCollector(g.tracingStore)

	ids := make([]string, 0, len(cfg.Agents.List)+1)
	if len(cfg.Agents.List) == 0 {
		ids = append(ids, cfg.ResolveDefaultAgentID())
	} else {
		for id := range cfg.Agents.List {
			ids = append(ids, id)
		}
	}

	var llmClassifier *router.LLMClassifier
	if prov, err := g.providerRegistry.Get(cfg.Agents.Defaults.Provider); err == nil {
		llmClassifier = router.NewLLMClassifier(prov, cfg.Agents.Defaults.Model, cfg.Agents.Defaults.Model, 500*time.Millisecond)
	}
	patternsFile := filepath.Join(workspace, "router_patterns.json")
	smartRouter := router.NewRouter(routerConfigFromSettings(cfg.Routing, patternsFile), llmClassifier)

	for _, id := range ids {
		resolved := cfg.ResolveAgent(id)
		prov, _ := g.providerRegistry.Get(resolved.Provider)

		var toolPolicySpec *config.ToolPolicySpec
		if spec, ok := cfg.Agents.List[id]; ok {
			toolPolicySpec = spec.Tools
		}

		botCfg := agent.BotConfig{
			ID:             id,
			Provider:       prov,
			DefaultModel:   resolved.Model,
			Router:         smartRouter,
			ContextWindow:  resolved.ContextWindow,
			MaxIterations:  resolved.MaxToolIterations,
			Tools:          g.toolsRegistry,
			ToolPolicy:     g.policy,
			ToolPolicySpec: toolPolicySpec,
			Workspace:      workspace,
			Reasoning:      agent.DefaultReasoningConfig(),
		}

		loop := agent.NewLoop(id, botCfg, agent.LoopConfig{
			Sessions:       g.sessions,
			Memory:         g.memStore,
			Compactor:      g.compactor,
			TraceCollector: traceCollector,
		})
		g.loops[id] = loop
		g.registerInvokeTarget(id, loop)
	}
}

// registerInvokeTarget wires one bot's agent.Loop into the shared invoke
// tool so other bots can delegate to it, adapting Loop.Run's RunRequest
// signature to InvokeRunFunc's (ctx, sessionKey, content) shape.
func (g *gateway) registerInvokeTarget(id string, loop *agent.Loop) {
	t, ok := g.toolsRegistry.Get("invoke")
	if !ok {
		return
	}
	invokeTool, ok := t.(*tools.InvokeTool)
	if !ok {
		return
	}
	invokeTool.Register(id, func(ctx context.Context, sessionKey, content string) (string, error) {
		result, err := loop.Run(ctx, agent.RunRequest{SessionKey: sessionKey, Content: content, Channel: "subagent"})
		if err != nil {
			return "", err
		}
		return result.Content, nil
	})
}

func (g *gateway) setupBroker(cfg *config.Config, workspace string) {
	queueDir := filepath.Join(workspace, "broker")
	brokerCfg := broker.DefaultConfig(queueDir)

	g.brokerMgr = broker.NewManager(func(roomID string) broker.Handler {
		return g.handleRoomMessage
	}, brokerCfg)

	sweep := cfg.Cron.Sweep
	if sweep == "" {
		sweep = "*/5 * * * *"
	}
	if err := g.brokerMgr.StartMaintenance(context.Background(), sweep, func(stats map[string]broker.Stats) {
		slog.Debug("broker maintenance sweep", "rooms", len(stats))
	}); err != nil {
		slog.Warn("broker maintenance not started", "error", err)
	}
}

func (g *gateway) setupBus(cfg *config.Config) error {
	g.msgBus = bus.New(func(ctx context.Context, env envelope.MessageEnvelope) bool {
		if env.RoomID == "" {
			env.RoomID = dispatch.DefaultRoomID
		}
		return g.brokerMgr.RouteMessage(ctx, env)
	})
	g.msgBus.SetRateLimit(cfg.Gateway.RateLimitRPM)

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		adapter, err := bustelegram.New(cfg.Channels.Telegram.Token, cfg.Channels.Telegram.AllowFrom)
		if err != nil {
			return fmt.Errorf("telegram adapter: %w", err)
		}
		g.msgBus.Register(adapter)
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		adapter, err := busdiscord.New(cfg.Channels.Discord.Token, cfg.Channels.Discord.AllowFrom)
		if err != nil {
			return fmt.Errorf("discord adapter: %w", err)
		}
		g.msgBus.Register(adapter)
	}
	return nil
}

// handleRoomMessage is the broker.Handler bound to every room: it
// resolves which bot(s) should respond via dispatch, then invokes the
// matching agent loop and sends the reply back out over the bus.
func (g *gateway) handleRoomMessage(ctx context.Context, env envelope.MessageEnvelope) error {
	room, ok := g.dispatchMgr.GetRoom(env.RoomID)
	if !ok {
		room = g.dispatchMgr.DefaultRoom()
	}

	isDM := room.Type == dispatch.RoomTypeDirect
	result := g.dispatcher.Dispatch(env.Content, room, isDM, "")

	targets := []string{result.PrimaryBot}
	targets = append(targets, result.SecondaryBots...)

	for _, botID := range targets {
		loop, ok := g.loops[botID]
		if !ok {
			continue
		}
		runResult, err := loop.Run(ctx, agent.RunRequest{
			SessionKey: env.SessionKey(),
			Content:    env.Content,
			Channel:    env.Channel,
			ChatID:     env.ChatID,
			RunID:      env.TraceID,
		})
		if err != nil {
			slog.Error("agent run failed", "bot", botID, "error", err)
			continue
		}
		if runResult.Content == "" {
			continue
		}
		reply := env.Amend(runResult.Content)
		reply.Direction = envelope.DirectionOutbound
		reply.SenderRole = envelope.SenderBot
		reply.BotName = botID
		if err := g.msgBus.SendOutbound(ctx, reply); err != nil {
			slog.Warn("send outbound failed", "bot", botID, "error", err)
		}
	}
	return nil
}

// Start launches the memory processor; broker rooms are created lazily
// as messages arrive. The channel adapters registered on the bus in
// setupBus are not started here, so no transport publishes inbound
// messages to the bus.
func (g *gateway) Start(ctx context.Context) {
	if g.bg != nil {
		go g.bg.Run(ctx)
	}
}

// Stop winds everything down in reverse dependency order.
func (g *gateway) Stop(ctx context.Context) {
	if g.bg != nil {
		g.bg.Stop(ctx)
	}
	g.brokerMgr.StopMaintenance()
	g.brokerMgr.StopAll()
	if g.memStore != nil {
		g.memStore.Close()
	}
	if g.pgDB != nil {
		g.pgDB.Close()
	}
}
