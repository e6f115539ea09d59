package router

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Thresholds maps tier names to the confidence they require. See
// DefaultThresholds.
type Thresholds map[string]float64

func DefaultThresholds() Thresholds {
	return Thresholds{
		"simple":    0.0,
		"medium":    0.50,
		"complex":   0.85,
		"coding":    0.90,
		"reasoning": 0.97,
	}
}

// negation is one detected negation span: the negating word, its
// start position, and the end of its scope (clause break or ~10 words).
type negation struct {
	word     string
	kind     string
	pos      int
	scopeEnd int
}

// classificationContext is the contextual information the classifier
// extracts from content before scoring.
type classificationContext struct {
	negations     []negation
	actionType    string
	hasCodeBlocks bool
}

var (
	directNegationRe   = regexp.MustCompile(`\b(don'?t|do not|doesn'?t|does not|didn'?t|did not|won'?t|will not|wouldn'?t|would not|shouldn'?t|should not|can'?t|cannot|couldn'?t|could not|mustn'?t|must not|hasn'?t|has not|haven'?t|have not|hadn'?t|had not|isn'?t|aren'?t|wasn'?t|weren'?t)\b`)
	adverbNegationRe   = regexp.MustCompile(`\b(never|no|not|none|nothing|nobody|nowhere|neither|nor)\b`)
	avoidanceNegationRe = regexp.MustCompile(`\b(avoid|stop|refrain from|without|unless|except|skip|ignore)\b`)

	writeActionRe   = regexp.MustCompile(`\b(write|create|generate|build|implement|make|develop|code|script)\b`)
	explainActionRe = regexp.MustCompile(`\b(explain|describe|tell me about|what is|how does|why|clarify|elaborate)\b`)
	analyzeActionRe = regexp.MustCompile(`\b(analyze|review|debug|troubleshoot|check|inspect|investigate|assess|evaluate)\b`)
	fixActionRe     = regexp.MustCompile(`\b(fix|repair|correct|improve|optimize|refactor|enhance|upgrade|update)\b`)
	compareActionRe = regexp.MustCompile(`\b(compare|contrast|difference|versus|vs|which is better)\b`)
	searchActionRe  = regexp.MustCompile(`\b(search|find|look for|locate|fetch|retrieve)\b`)
)

// ClientClassifier is the synchronous, no-I/O routing layer.
type ClientClassifier struct {
	weights    Weights
	thresholds Thresholds
	patterns   []Pattern
}

func NewClientClassifier(patterns []Pattern, weights Weights, thresholds Thresholds) *ClientClassifier {
	if weights == nil {
		weights = DefaultWeights()
	}
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &ClientClassifier{weights: weights, thresholds: thresholds, patterns: patterns}
}

// Classify runs the full pipeline: context extraction, 15-dimension
// scoring, sigmoid confidence, and tier selection.
func (c *ClientClassifier) Classify(content string) (Decision, Scores) {
	ctx := c.extractContext(content)
	scores := c.calculateScores(content, ctx)

	weightedSum := scores.WeightedSum(c.weights)
	confidence := sigmoid(weightedSum)

	tier := c.determineTier(confidence, content, ctx, scores)

	decision := Decision{
		Tier:            tier,
		Confidence:      confidence,
		Layer:           "client",
		Reasoning:       fmt.Sprintf("client classification: %s (confidence=%.2f, action=%s)", tier, confidence, ctx.actionType),
		EstimatedTokens: estimateTokens(content, tier),
		NeedsTools:      needsTools(content, tier),
		Metadata: map[string]any{
			"action_type":   ctx.actionType,
			"has_negations": len(ctx.negations) > 0,
		},
	}
	return decision, scores
}

func (c *ClientClassifier) extractContext(content string) classificationContext {
	lower := strings.ToLower(content)
	return classificationContext{
		negations:     extractNegations(lower),
		actionType:    detectActionType(lower),
		hasCodeBlocks: strings.Count(content, "```") >= 2,
	}
}

func detectActionType(lower string) string {
	switch {
	case writeActionRe.MatchString(lower):
		return "write"
	case explainActionRe.MatchString(lower):
		return "explain"
	case analyzeActionRe.MatchString(lower):
		return "analyze"
	case fixActionRe.MatchString(lower):
		return "fix"
	case compareActionRe.MatchString(lower):
		return "compare"
	case searchActionRe.MatchString(lower):
		return "search"
	default:
		return "general"
	}
}

// extractNegations finds negation spans and their scope: up to the
// next clause break ("." or ";" or one of but/however/instead/rather)
// or 10 words, whichever is first.
func extractNegations(lower string) []negation {
	var out []negation
	for _, re := range []struct {
		re   *regexp.Regexp
		kind string
	}{
		{directNegationRe, "direct"},
		{adverbNegationRe, "adverb"},
		{avoidanceNegationRe, "avoidance"},
	} {
		for _, loc := range re.re.FindAllStringIndex(lower, -1) {
			pos := loc[0]
			scopeEnd := len(lower)
			for _, ending := range []string{".", ";", "but", "however", "instead", "rather"} {
				if idx := strings.Index(lower[loc[1]:], ending); idx >= 0 {
					end := loc[1] + idx
					if end < scopeEnd {
						scopeEnd = end
					}
				}
			}
			scopeEnd = clampToWordLimit(lower, pos, scopeEnd, 10)
			out = append(out, negation{word: lower[loc[0]:loc[1]], kind: re.kind, pos: pos, scopeEnd: scopeEnd})
		}
	}
	return out
}

func clampToWordLimit(s string, start, end, maxWords int) int {
	if end > len(s) {
		end = len(s)
	}
	words := 0
	for i := start; i < end; i++ {
		if s[i] == ' ' {
			words++
			if words >= maxWords {
				return i
			}
		}
	}
	return end
}

func (c *ClientClassifier) calculateScores(content string, ctx classificationContext) Scores {
	lower := strings.ToLower(content)
	tokenCount := len(strings.Fields(content))

	var s Scores
	s.ReasoningMarkers = scorePatterns(lower, []string{"prove", "theorem", "lemma", "step by step", "walk me through", "explain why", "derivation", "formal proof", "demonstrate", "analysis", "reasoning"}, ctx)

	codeScore := scorePatterns(lower, []string{"function", "class", "def", "async", "await", "import", "const", "let", "var", "git", "docker", "npm", "pip", "api", "database", "sql"}, ctx)
	if ctx.hasCodeBlocks {
		codeScore = math.Min(1.0, codeScore+0.3)
	}
	s.CodePresence = codeScore

	s.SimpleIndicators = scorePatterns(lower, []string{"what is", "define", "translate", "how to", "meaning of", "difference between", "hello", "hi", "thanks"}, ctx)
	s.MultiStepPatterns = scorePatterns(lower, []string{"first", "then", "next", "after that", "step 1", "step 2", "phase", "stage", "iteration"}, ctx)
	s.TechnicalTerms = scorePatterns(lower, []string{"algorithm", "kubernetes", "distributed", "microservice", "database", "api", "framework", "protocol", "architecture", "infrastructure"}, ctx)

	switch {
	case tokenCount < 20:
		s.TokenCount = 0.1
	case tokenCount < 100:
		s.TokenCount = 0.4
	case tokenCount < 300:
		s.TokenCount = 0.7
	default:
		s.TokenCount = 1.0
	}

	s.CreativeMarkers = scorePatterns(lower, []string{"story", "poem", "creative", "imagine", "brainstorm", "write a", "generate ideas", "compose"}, ctx)

	questionMarks := strings.Count(content, "?")
	switch {
	case questionMarks == 0:
		s.QuestionComplexity = 0
	case questionMarks == 1:
		s.QuestionComplexity = 0.3
	default:
		s.QuestionComplexity = math.Min(1.0, 0.3+float64(questionMarks-1)*0.2)
	}

	s.ConstraintCount = scorePatterns(lower, []string{"at most", "at least", "minimum", "maximum", "limit", "efficient", "optimize"}, ctx)

	imperative := scorePatterns(lower, []string{"build", "create", "implement", "design", "develop", "write", "make", "setup", "configure", "deploy"}, ctx)
	if ctx.actionType == "explain" && len(ctx.negations) > 0 {
		imperative *= 0.5
	}
	s.ImperativeVerbs = imperative

	s.OutputFormat = scorePatterns(lower, []string{"json", "yaml", "xml", "csv", "markdown", "html", "schema", "table", "diagram"}, ctx)
	s.DomainSpecificity = scorePatterns(lower, []string{"quantum", "blockchain", "machine learning", "genomics", "bioinformatics", "cybersecurity", "cryptography"}, ctx)
	s.ReferenceComplexity = scorePatterns(lower, []string{"the docs", "the api", "the documentation", "above", "previous", "earlier", "mentioned"}, ctx)
	s.NegationComplexity = scorePatterns(lower, []string{"don't", "not", "never", "avoid", "without", "unless"}, ctx)
	s.SocialInteraction = scorePatterns(lower, []string{"hello", "hi", "hey", "good morning", "good night", "thanks", "great job", "how are you"}, ctx)

	return s
}

// domainIndicatorWords are the substrings that mark a matched keyword
// as domain knowledge (coding/math/technical) rather than an action
// verb — domain indicators keep most of their score even when negated.
var domainIndicatorWords = []string{"code", "function", "git", "docker", "sql", "api", "database", "math", "algorithm", "prove", "theorem"}

// scorePatterns is the negation-aware keyword scorer: matches accrue
// full weight normally, reduced weight inside a negation scope (more
// reduction for action words, less for domain words), then the raw
// match count is normalized with diminishing returns.
func scorePatterns(lower string, patterns []string, ctx classificationContext) float64 {
	if len(patterns) == 0 {
		return 0
	}

	matches := 0.0
	for _, p := range patterns {
		pLower := strings.ToLower(p)
		idx := strings.Index(lower, pLower)
		if idx < 0 {
			continue
		}

		isNegated := false
		negDistance := math.Inf(1)
		for _, neg := range ctx.negations {
			if neg.pos < idx && idx < neg.scopeEnd {
				isNegated = true
				distance := float64(len(strings.Fields(lower[neg.pos:idx])))
				if distance < negDistance {
					negDistance = distance
				}
				break
			}
		}

		if !isNegated {
			matches += 1.0
			continue
		}

		isDomain := false
		for _, dw := range domainIndicatorWords {
			if strings.Contains(pLower, dw) {
				isDomain = true
				break
			}
		}
		switch {
		case isDomain:
			matches += 0.8
		case negDistance <= 2:
			matches += 0.2
		case negDistance <= 5:
			matches += 0.5
		default:
			matches += 0.7
		}
	}

	return math.Min(1.0, matches/float64(len(patterns))*2+matches*0.05)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x*2))
}

func (c *ClientClassifier) determineTier(confidence float64, content string, ctx classificationContext, scores Scores) Tier {
	lower := strings.ToLower(content)

	for _, p := range c.patterns {
		re, err := regexp.Compile("(?i)" + p.Regex)
		if err != nil || !re.MatchString(lower) {
			continue
		}
		if p.Confidence >= 0.90 {
			if p.Tier == TierCoding {
				if ctx.actionType == "explain" {
					return TierMedium
				}
				for _, neg := range ctx.negations {
					scopeEnd := neg.scopeEnd
					if scopeEnd > len(lower) {
						scopeEnd = len(lower)
					}
					scope := lower[neg.pos:scopeEnd]
					if strings.Contains(scope, "write") || strings.Contains(scope, "create") || strings.Contains(scope, "build") || strings.Contains(scope, "make") {
						return TierMedium
					}
				}
			}
			return p.Tier
		}
		if p.Confidence >= 0.85 {
			return p.Tier
		}
	}

	reasoningCount := 0
	for _, w := range []string{"prove", "theorem", "step by step", "formal proof"} {
		if strings.Contains(lower, w) {
			reasoningCount++
		}
	}
	if reasoningCount >= 2 && confidence >= 0.90 {
		return TierReasoning
	}

	if ctx.actionType == "explain" && scores.CodePresence > 0.5 && confidence >= c.thresholds["medium"] {
		return TierMedium
	}

	switch {
	case confidence >= c.thresholds["reasoning"]:
		return TierReasoning
	case confidence >= c.thresholds["complex"]:
		return TierComplex
	case confidence >= c.thresholds["coding"]:
		if scores.CodePresence > 0.6 && (ctx.actionType == "write" || ctx.actionType == "fix") {
			return TierCoding
		}
		return TierMedium
	case confidence >= c.thresholds["medium"]:
		return TierMedium
	default:
		return TierSimple
	}
}

func estimateTokens(content string, tier Tier) int {
	base := float64(len(strings.Fields(content))) * 1.5
	multipliers := map[Tier]int{
		TierSimple:    50,
		TierMedium:    200,
		TierComplex:   1000,
		TierCoding:    800,
		TierReasoning: 2000,
	}
	return int(base) + multipliers[tier]
}

func needsTools(content string, tier Tier) bool {
	lower := strings.ToLower(content)
	indicators := []string{"search", "find", "look up", "web", "internet", "file", "read", "write", "execute", "run", "command", "shell", "code", "program", "script", "function", "class"}
	score := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			score++
		}
	}
	boosts := map[Tier]int{
		TierSimple:    0,
		TierMedium:    1,
		TierComplex:   2,
		TierCoding:    2,
		TierReasoning: 1,
	}
	return score+boosts[tier] >= 2
}
