package router

import "testing"

func TestStickyRouterNoElevatedHistoryPassesThrough(t *testing.T) {
	s := NewStickyRouter(3, 0.90)
	decision := Decision{Tier: TierSimple, Confidence: 0.95}
	got := s.Decide("thanks!", decision, Scores{}, []Tier{TierSimple, TierMedium})
	if got != TierSimple {
		t.Fatalf("expected simple to pass through with no elevated history, got %s", got)
	}
}

func TestStickyRouterHoldsElevatedTierOnLowConfidenceSimple(t *testing.T) {
	s := NewStickyRouter(3, 0.90)
	decision := Decision{Tier: TierSimple, Confidence: 0.5}
	got := s.Decide("ok", decision, Scores{}, []Tier{TierComplex, TierComplex, TierSimple})
	if got != TierComplex {
		t.Fatalf("expected sticky hold at complex, got %s", got)
	}
}

func TestStickyRouterDowngradesOnShortSimpleHighConfidence(t *testing.T) {
	s := NewStickyRouter(3, 0.90)
	decision := Decision{Tier: TierSimple, Confidence: 0.95}
	scores := Scores{TechnicalTerms: 0.0, SimpleIndicators: 0.8}
	got := s.Decide("thanks, got it", decision, scores, []Tier{TierReasoning})
	if got != TierSimple {
		t.Fatalf("expected downgrade to simple, got %s", got)
	}
}

func TestStickyRouterDoesNotDowngradeLongMessage(t *testing.T) {
	s := NewStickyRouter(3, 0.90)
	decision := Decision{Tier: TierSimple, Confidence: 0.95}
	scores := Scores{TechnicalTerms: 0.0, SimpleIndicators: 0.8}
	long := "thanks so much for all of that help, I really appreciate how thorough and detailed your explanation was today"
	got := s.Decide(long, decision, scores, []Tier{TierReasoning})
	if got != TierReasoning {
		t.Fatalf("expected sticky hold since message exceeds the downgrade word limit, got %s", got)
	}
}

func TestStickyRouterNonSimpleDecisionPassesThroughEvenWhenElevated(t *testing.T) {
	s := NewStickyRouter(3, 0.90)
	decision := Decision{Tier: TierMedium, Confidence: 0.7}
	got := s.Decide("what about this part", decision, Scores{}, []Tier{TierComplex})
	if got != TierMedium {
		t.Fatalf("non-simple decisions should not be forced to the sticky tier, got %s", got)
	}
}

func TestStickyRouterOnlyLooksAtLastK(t *testing.T) {
	s := NewStickyRouter(2, 0.90)
	decision := Decision{Tier: TierSimple, Confidence: 0.5}
	got := s.Decide("ok", decision, Scores{}, []Tier{TierReasoning, TierSimple, TierSimple})
	if got == TierReasoning {
		t.Fatalf("expected window to exclude the reasoning entry beyond lastK, got %s", got)
	}
}
