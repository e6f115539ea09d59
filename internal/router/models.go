// Package router implements the three-layer Smart Router: a
// synchronous client classifier, a sticky-tier decision, and an
// optional LLM classifier for low-confidence cases, plus the
// auto-calibration loop that learns new patterns from their mismatches.
package router

import (
	"time"
)

// Tier is a model-capability bucket, cheapest to most expensive.
type Tier string

const (
	TierSimple    Tier = "simple"
	TierMedium    Tier = "medium"
	TierComplex   Tier = "complex"
	TierReasoning Tier = "reasoning"
	TierCoding    Tier = "coding"
)

// Decision is the result of a routing classification, from whichever
// layer produced it.
type Decision struct {
	Tier             Tier
	Model            string
	Confidence       float64
	Layer            string // "client" or "llm"
	Reasoning        string
	EstimatedTokens  int
	NeedsTools       bool
	Metadata         map[string]any
}

// Scores holds the 15 normalized [0,1] dimension scores the client
// classifier computes before combining them into a confidence value.
type Scores struct {
	ReasoningMarkers     float64
	CodePresence         float64
	SimpleIndicators     float64
	MultiStepPatterns    float64
	TechnicalTerms       float64
	TokenCount           float64
	CreativeMarkers      float64
	QuestionComplexity   float64
	ConstraintCount      float64
	ImperativeVerbs      float64
	OutputFormat         float64
	DomainSpecificity    float64
	ReferenceComplexity  float64
	NegationComplexity   float64
	SocialInteraction    float64
}

// Weights maps each Scores field (by its lowercase snake-ish key, see
// DefaultWeights) to its contribution to the weighted sum.
type Weights map[string]float64

// DefaultWeights sums to 1.0 across the 15 dimensions.
func DefaultWeights() Weights {
	return Weights{
		"reasoning_markers":    0.18,
		"code_presence":        0.15,
		"simple_indicators":    0.11,
		"multi_step_patterns":  0.12,
		"technical_terms":      0.10,
		"token_count":          0.08,
		"creative_markers":     0.05,
		"question_complexity":  0.05,
		"constraint_count":     0.04,
		"imperative_verbs":     0.03,
		"output_format":        0.03,
		"domain_specificity":   0.02,
		"reference_complexity": 0.02,
		"negation_complexity":  0.01,
		"social_interaction":   0.01,
	}
}

// WeightedSum multiplies each dimension by its configured weight.
func (s Scores) WeightedSum(w Weights) float64 {
	total := 0.0
	total += s.ReasoningMarkers * w["reasoning_markers"]
	total += s.CodePresence * w["code_presence"]
	total += s.SimpleIndicators * w["simple_indicators"]
	total += s.MultiStepPatterns * w["multi_step_patterns"]
	total += s.TechnicalTerms * w["technical_terms"]
	total += s.TokenCount * w["token_count"]
	total += s.CreativeMarkers * w["creative_markers"]
	total += s.QuestionComplexity * w["question_complexity"]
	total += s.ConstraintCount * w["constraint_count"]
	total += s.ImperativeVerbs * w["imperative_verbs"]
	total += s.OutputFormat * w["output_format"]
	total += s.DomainSpecificity * w["domain_specificity"]
	total += s.ReferenceComplexity * w["reference_complexity"]
	total += s.NegationComplexity * w["negation_complexity"]
	total += s.SocialInteraction * w["social_interaction"]
	return total
}

// Pattern is a regex-driven classification rule, either hand-authored
// or generated by calibration from historical mismatches.
type Pattern struct {
	Regex        string
	Tier         Tier
	Confidence   float64
	Examples     []string
	AddedAt      time.Time
	TimesUsed    int
	TimesMatched int
	TimesCorrect int
	LastUsed     *time.Time
	Source       string // "manual" or "auto_calibration"
}

// SuccessRate is TimesCorrect/TimesMatched, or 0 with no matches yet.
func (p Pattern) SuccessRate() float64 {
	if p.TimesMatched == 0 {
		return 0
	}
	return float64(p.TimesCorrect) / float64(p.TimesMatched)
}

// IsEffective grants new patterns a 7-day grace period, then requires
// a 30% success rate (spec §4.7.5's eviction floor) once at least 5
// matches have been observed — too few matches to trust yet, so such
// patterns are kept until they've had a fair chance to prove out.
func (p Pattern) IsEffective(now time.Time) bool {
	if now.Sub(p.AddedAt) < 7*24*time.Hour {
		return true
	}
	if p.TimesMatched >= 5 {
		return p.SuccessRate() >= 0.3
	}
	return true
}

// EffectivenessScore blends success rate (50%), usage frequency (30%),
// and recency (20%) into a 0-100 ranking used when pruning patterns.
func (p Pattern) EffectivenessScore(now time.Time) float64 {
	score := p.SuccessRate() * 50

	switch {
	case p.TimesUsed > 100:
		score += 30
	case p.TimesUsed > 50:
		score += 20
	case p.TimesUsed > 10:
		score += 10
	}

	if p.LastUsed != nil {
		days := now.Sub(*p.LastUsed).Hours() / 24
		switch {
		case days < 7:
			score += 20
		case days < 30:
			score += 10
		case days < 90:
			score += 5
		}
	}
	return score
}

// RecordUsage updates counters after a pattern is matched against
// live content and (eventually) checked against an LLM verdict.
func (p *Pattern) RecordUsage(now time.Time, matched, correct bool) {
	p.TimesUsed++
	p.LastUsed = &now
	if matched {
		p.TimesMatched++
		if correct {
			p.TimesCorrect++
		}
	}
}
