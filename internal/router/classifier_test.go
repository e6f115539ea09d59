package router

import "testing"

func TestClassifySimpleGreeting(t *testing.T) {
	c := NewClientClassifier(nil, nil, nil)
	decision, _ := c.Classify("Good morning! How are you?")
	if decision.Tier != TierSimple {
		t.Fatalf("expected simple tier, got %s (confidence=%.2f)", decision.Tier, decision.Confidence)
	}
}

func TestClassifyReasoningProof(t *testing.T) {
	c := NewClientClassifier(nil, nil, nil)
	decision, _ := c.Classify("Please prove this theorem step by step with a formal proof.")
	if decision.Tier != TierReasoning {
		t.Fatalf("expected reasoning tier, got %s (confidence=%.2f)", decision.Tier, decision.Confidence)
	}
}

func TestClassifyCodingWriteFunction(t *testing.T) {
	c := NewClientClassifier(nil, nil, nil)
	decision, _ := c.Classify("Write a function to fix this bug in the API endpoint.")
	if decision.Tier != TierCoding {
		t.Fatalf("expected coding tier, got %s (confidence=%.2f)", decision.Tier, decision.Confidence)
	}
}

func TestClassifyCodingPatternDowngradedWhenExplaining(t *testing.T) {
	c := NewClientClassifier(nil, nil, nil)
	decision, _ := c.Classify("Can you explain how this algorithm implements the sorting?")
	if decision.Tier == TierCoding {
		t.Fatalf("coding pattern should downgrade to medium when action is explain, got %s", decision.Tier)
	}
}

func TestClassifyNegatedWriteDowngradesFromCoding(t *testing.T) {
	c := NewClientClassifier(nil, nil, nil)
	decision, _ := c.Classify("Don't write any code for this, just tell me what an API endpoint is.")
	if decision.Tier == TierCoding {
		t.Fatalf("negated write action should not route to coding tier, got %s", decision.Tier)
	}
}

func TestScorePatternsDomainIndicatorKeepsWeightWhenNegated(t *testing.T) {
	ctxNeg := classificationContext{negations: []negation{{word: "don't", kind: "direct", pos: 0, scopeEnd: 40}}}
	scoreDomain := scorePatterns("don't use an api here", []string{"api"}, ctxNeg)
	scoreAction := scorePatterns("don't write any code here", []string{"write"}, ctxNeg)
	if scoreDomain <= scoreAction {
		t.Fatalf("domain indicator (api) should retain more weight under negation than an action verb (write): domain=%.2f action=%.2f", scoreDomain, scoreAction)
	}
}

func TestExtractNegationsScopeEndsAtClauseBreak(t *testing.T) {
	negs := extractNegations("don't write code. instead just explain it")
	if len(negs) == 0 {
		t.Fatal("expected at least one negation")
	}
	scopeText := "don't write code. instead just explain it"[negs[0].pos:negs[0].scopeEnd]
	if contains(scopeText, "explain") {
		t.Fatalf("negation scope should not extend past the clause break, got scope %q", scopeText)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("expected weights to sum to 1.0, got %.4f", sum)
	}
}

func TestDetermineTierThresholdCascade(t *testing.T) {
	c := NewClientClassifier([]Pattern{}, DefaultWeights(), DefaultThresholds())
	ctx := classificationContext{actionType: "general"}
	var scores Scores
	if tier := c.determineTier(0.10, "hi", ctx, scores); tier != TierSimple {
		t.Fatalf("low confidence should fall to simple, got %s", tier)
	}
	if tier := c.determineTier(0.60, "hi", ctx, scores); tier != TierMedium {
		t.Fatalf("0.60 confidence should land medium, got %s", tier)
	}
	if tier := c.determineTier(0.99, "hi", ctx, scores); tier != TierReasoning {
		t.Fatalf("0.99 confidence should land reasoning, got %s", tier)
	}
}
