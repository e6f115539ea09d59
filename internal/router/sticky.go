package router

import "strings"

// elevatedTiers are the tiers sticky routing holds onto once seen
// recently, to avoid bouncing a multi-turn complex conversation back
// down to a cheap model on an incidental short follow-up.
var elevatedTiers = map[Tier]bool{
	TierComplex:   true,
	TierReasoning: true,
}

// StickyRouter is the second routing layer: given the client
// classifier's decision for the current message and the last K tiers
// observed in the session, it decides whether to hold the
// conversation at an elevated tier or let the new decision stand.
//
// There is no reference implementation for this layer in the source
// material; its downgrade heuristic is derived directly from the
// routing design's worked examples rather than ported from existing
// code.
type StickyRouter struct {
	lastK               int
	downgradeConfidence float64
}

func NewStickyRouter(lastK int, downgradeConfidence float64) *StickyRouter {
	if lastK <= 0 {
		lastK = 3
	}
	if downgradeConfidence <= 0 {
		downgradeConfidence = 0.90
	}
	return &StickyRouter{lastK: lastK, downgradeConfidence: downgradeConfidence}
}

// LastK is the window size used to decide stickiness.
func (r *StickyRouter) LastK() int { return r.lastK }

// Decide returns the tier to actually route to, given the client
// classifier's decision/scores for content and the recent tier
// history (oldest first; only the trailing lastK entries matter).
func (r *StickyRouter) Decide(content string, decision Decision, scores Scores, recentTiers []Tier) Tier {
	window := recentTiers
	if len(window) > r.lastK {
		window = window[len(window)-r.lastK:]
	}

	elevated := false
	for _, t := range window {
		if elevatedTiers[t] {
			elevated = true
			break
		}
	}
	if !elevated {
		return decision.Tier
	}

	if decision.Tier != TierSimple {
		return decision.Tier
	}
	if decision.Confidence < r.downgradeConfidence {
		return stickiestOf(window)
	}
	if !shouldDowngrade(content, scores) {
		return stickiestOf(window)
	}
	return decision.Tier
}

// stickiestOf returns reasoning if present in window, else complex.
func stickiestOf(window []Tier) Tier {
	for _, t := range window {
		if t == TierReasoning {
			return TierReasoning
		}
	}
	return TierComplex
}

// shouldDowngrade is the heuristic gate for leaving an elevated tier:
// the message must be short, free of technical terms, and score highly
// on the simple-indicator dimension.
func shouldDowngrade(content string, scores Scores) bool {
	wordCount := len(strings.Fields(content))
	return wordCount <= 12 && scores.TechnicalTerms < 0.2 && scores.SimpleIndicators >= 0.5
}
