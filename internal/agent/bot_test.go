package agent

import (
	"testing"

	"github.com/nanobridge/orchestrator/internal/router"
)

func TestReasoningConfigShouldReflect(t *testing.T) {
	cfg := DefaultReasoningConfig()

	cases := []struct {
		tier router.Tier
		want bool
	}{
		{router.TierSimple, false},
		{router.TierMedium, false},
		{router.TierComplex, true},
		{router.TierReasoning, true},
		{router.TierCoding, false},
	}
	for _, c := range cases {
		if got := cfg.shouldReflect(c.tier); got != c.want {
			t.Errorf("shouldReflect(%s) = %v, want %v", c.tier, got, c.want)
		}
	}
}

func TestReasoningConfigDisabledNeverReflects(t *testing.T) {
	cfg := DefaultReasoningConfig()
	cfg.Enabled = false

	if cfg.shouldReflect(router.TierComplex) {
		t.Fatal("expected a disabled reasoning config to never reflect, even on a qualifying tier")
	}
}

func TestBotConfigMemoryBudgetDefault(t *testing.T) {
	var b BotConfig
	if got := b.memoryBudget(); got != DefaultMemoryContextBudget {
		t.Fatalf("memoryBudget() = %d, want default %d", got, DefaultMemoryContextBudget)
	}

	b.MemoryContextBudget = 500
	if got := b.memoryBudget(); got != 500 {
		t.Fatalf("memoryBudget() = %d, want overridden 500", got)
	}
}

func TestBotConfigMaxEntitiesDefault(t *testing.T) {
	var b BotConfig
	if got := b.maxEntities(); got != DefaultMaxRelevantEntities {
		t.Fatalf("maxEntities() = %d, want default %d", got, DefaultMaxRelevantEntities)
	}

	b.MaxRelevantEntities = 2
	if got := b.maxEntities(); got != 2 {
		t.Fatalf("maxEntities() = %d, want overridden 2", got)
	}
}
