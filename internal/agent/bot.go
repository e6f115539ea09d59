package agent

import (
	"github.com/nanobridge/orchestrator/internal/config"
	"github.com/nanobridge/orchestrator/internal/providers"
	"github.com/nanobridge/orchestrator/internal/router"
	"github.com/nanobridge/orchestrator/internal/tools"
)

// ReasoningConfig gates the Chain-of-Thought reflection prompt the loop
// inserts between tool results. It only fires when both Enabled is true
// and the turn's routed tier is in MinTiers.
type ReasoningConfig struct {
	Enabled  bool
	MinTiers map[router.Tier]bool
}

// DefaultReasoningConfig reflects only on the two tiers where an extra
// round of "what did that tool result actually tell me" pays for itself.
func DefaultReasoningConfig() ReasoningConfig {
	return ReasoningConfig{
		Enabled: true,
		MinTiers: map[router.Tier]bool{
			router.TierComplex:   true,
			router.TierReasoning: true,
		},
	}
}

// shouldReflect reports whether tier warrants a CoT reflection prompt.
func (c ReasoningConfig) shouldReflect(tier router.Tier) bool {
	return c.Enabled && c.MinTiers[tier]
}

// BotConfig is everything about one bot's identity and wiring that the
// loop needs but that doesn't change between runs: who it is, what it's
// allowed to do, and which model(s) it talks to.
type BotConfig struct {
	ID       string // bot name, used as dispatch target and session scoping
	Persona  string // short first-person description injected into the system prompt
	Skills   []string

	Provider      providers.Provider // nil means "not onboarded yet"
	DefaultModel  string             // used when Router is nil
	Router        *router.Router     // nil disables smart routing (fixed model)
	ContextWindow int
	MaxIterations int
	ThinkingLevel string

	Tools           *tools.Registry
	ToolPolicy      *tools.PolicyEngine
	ToolPolicySpec  *config.ToolPolicySpec
	Workspace       string

	Reasoning            ReasoningConfig
	MemoryContextBudget  int // max chars of assembled memory context (0 = DefaultMemoryContextBudget)
	MaxRelevantEntities  int // cap on entities surfaced per turn (0 = DefaultMaxRelevantEntities)
}

const (
	// DefaultMemoryContextBudget bounds the memory context string injected
	// into the system prompt, in characters.
	DefaultMemoryContextBudget = 2000
	// DefaultMaxRelevantEntities caps how many entities spec.md's "up to 5"
	// rule surfaces per turn.
	DefaultMaxRelevantEntities = 5
)

func (b BotConfig) memoryBudget() int {
	if b.MemoryContextBudget > 0 {
		return b.MemoryContextBudget
	}
	return DefaultMemoryContextBudget
}

func (b BotConfig) maxEntities() int {
	if b.MaxRelevantEntities > 0 {
		return b.MaxRelevantEntities
	}
	return DefaultMaxRelevantEntities
}

// onboardingResponse is returned verbatim, with no LLM call, whenever a
// bot has no configured provider.
const onboardingResponse = "I'm not connected to a model provider yet. Ask an admin to set one up with `update_config`, then message me again."

// helpResponse is returned verbatim for the /help slash command.
const helpResponse = `Commands:
  /new   - start a fresh conversation (clears this session's history)
  /help  - show this message

Otherwise just talk to me normally, or mention another bot with @name.`
