package router

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestRouter(t *testing.T, llm *LLMClassifier) *Router {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "patterns.json"))
	return NewRouter(cfg, llm)
}

func TestRouteSimpleMessageNoLLMNeeded(t *testing.T) {
	r := newTestRouter(t, nil)
	decision := r.Route(context.Background(), "Good morning!", nil)
	if decision.Tier != TierSimple {
		t.Fatalf("expected simple tier, got %s", decision.Tier)
	}
	if decision.Model == "" {
		t.Fatal("expected a resolved model")
	}
}

func TestRouteStickyHoldsElevatedTierAcrossTurns(t *testing.T) {
	r := newTestRouter(t, nil)
	decision := r.Route(context.Background(), "ok thanks", []Tier{TierComplex, TierComplex})
	if decision.Tier != TierComplex {
		t.Fatalf("expected sticky hold at complex, got %s", decision.Tier)
	}
}

func TestRouteFallsBackToLLMOnLowConfidence(t *testing.T) {
	prov := &stubProvider{name: "stub", content: `{"tier":"REASONING","confidence":0.95,"reasoning":"deep","estimated_tokens":2000,"needs_tools":false}`}
	llm := NewLLMClassifier(prov, "cheap", "", 0)
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "patterns.json"))
	cfg.MinConfidence = 1.1 // force every client decision to be "low confidence"
	r := NewRouter(cfg, llm)

	decision := r.Route(context.Background(), "something ambiguous", nil)
	if decision.Tier != TierReasoning {
		t.Fatalf("expected LLM-classified reasoning tier, got %s", decision.Tier)
	}
	if decision.Layer != "llm" {
		t.Fatalf("expected layer=llm, got %s", decision.Layer)
	}
}

func TestRouteResolvesModelMapping(t *testing.T) {
	r := newTestRouter(t, nil)
	decision := r.Route(context.Background(), "prove this theorem with a formal proof", nil)
	if decision.Tier != TierReasoning {
		t.Fatalf("expected reasoning tier, got %s", decision.Tier)
	}
	mapping := DefaultModelMap()[TierReasoning]
	if decision.Model != mapping.Model {
		t.Fatalf("expected model %q, got %q", mapping.Model, decision.Model)
	}
}

func TestRouteRecordsClassificationForCalibration(t *testing.T) {
	r := newTestRouter(t, nil)
	before := len(r.calibration.classifications)
	r.Route(context.Background(), "hello there", nil)
	if len(r.calibration.classifications) != before+1 {
		t.Fatalf("expected one classification recorded, had %d now have %d", before, len(r.calibration.classifications))
	}
}
