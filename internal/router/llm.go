package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nanobridge/orchestrator/internal/providers"
)

const classificationPrompt = `You are a routing classifier for a multi-agent chat assistant.

Classify the user's message into ONE tier:

SIMPLE: quick facts, definitions, translations, casual conversation.
MEDIUM: general coding tasks, explanations with examples, planning.
COMPLEX: multi-step reasoning, debugging, architecture decisions.
REASONING: formal proofs, mathematical derivations, deep step-by-step analysis.

Respond ONLY with a JSON object:
{"tier": "SIMPLE|MEDIUM|COMPLEX|REASONING", "confidence": 0.0-1.0, "reasoning": "...", "estimated_tokens": 50|200|1000|2000, "needs_tools": true|false}

User message to classify:
`

// LLMClassifier is the third routing layer, used only when the client
// classifier's confidence falls below MinConfidence. It calls a cheap
// model with a strict JSON-only prompt and a short timeout, falling
// back to a secondary model once and finally to a MEDIUM-tier default.
type LLMClassifier struct {
	provider       providers.Provider
	model          string
	secondaryModel string
	timeout        time.Duration
	MinConfidence  float64
}

func NewLLMClassifier(provider providers.Provider, model, secondaryModel string, timeout time.Duration) *LLMClassifier {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &LLMClassifier{
		provider:       provider,
		model:          model,
		secondaryModel: secondaryModel,
		timeout:        timeout,
		MinConfidence:  0.85,
	}
}

// Classify calls the LLM classifier, retrying once with the secondary
// model on timeout or parse failure, and otherwise returning a MEDIUM
// fallback decision rather than propagating an error — the router must
// always produce a tier.
func (c *LLMClassifier) Classify(ctx context.Context, content string) Decision {
	decision, err := c.classifyWith(ctx, content, c.model)
	if err == nil {
		return decision
	}

	if c.secondaryModel != "" {
		if decision, err2 := c.classifyWith(ctx, content, c.secondaryModel); err2 == nil {
			decision.Metadata["llm_primary"] = c.model
			decision.Metadata["llm_secondary"] = c.secondaryModel
			return decision
		}
	}

	return Decision{
		Tier:            TierMedium,
		Confidence:      0.5,
		Layer:           "llm",
		Reasoning:       fmt.Sprintf("LLM classification failed (%v); defaulting to medium tier", err),
		EstimatedTokens: 200,
		NeedsTools:      true,
		Metadata:        map[string]any{"error": err.Error()},
	}
}

func (c *LLMClassifier) classifyWith(ctx context.Context, content, model string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := providers.ChatRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: "system", Content: "You are a routing classifier. Respond ONLY with valid JSON."},
			{Role: "user", Content: classificationPrompt + content},
		},
		Options: map[string]interface{}{"max_tokens": 200, "temperature": 0.1},
	}

	resp, err := c.provider.Chat(ctx, req)
	if err != nil {
		return Decision{}, fmt.Errorf("llm classify: %w", err)
	}

	parsed, err := parseClassification(resp.Content)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Tier:            parsed.tier,
		Confidence:      parsed.confidence,
		Layer:           "llm",
		Reasoning:       parsed.reasoning,
		EstimatedTokens: parsed.estimatedTokens,
		NeedsTools:      parsed.needsTools,
		Metadata:        map[string]any{"llm_model": model, "raw_response": resp.Content},
	}, nil
}

type llmClassification struct {
	tier            Tier
	confidence      float64
	reasoning       string
	estimatedTokens int
	needsTools      bool
}

type rawLLMResponse struct {
	Tier            string      `json:"tier"`
	Confidence      float64     `json:"confidence"`
	Reasoning       string      `json:"reasoning"`
	EstimatedTokens int         `json:"estimated_tokens"`
	NeedsTools      interface{} `json:"needs_tools"`
}

func parseClassification(content string) (llmClassification, error) {
	content = strings.TrimSpace(content)
	if strings.Contains(content, "```json") {
		parts := strings.SplitN(content, "```json", 2)
		content = strings.SplitN(parts[1], "```", 2)[0]
	} else if strings.Contains(content, "```") {
		parts := strings.SplitN(content, "```", 2)
		content = strings.SplitN(parts[1], "```", 2)[0]
	}
	content = strings.TrimSpace(content)

	var raw rawLLMResponse
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return llmClassification{}, fmt.Errorf("parse llm classification: %w", err)
	}

	tier, err := normalizeTier(raw.Tier)
	if err != nil {
		return llmClassification{}, err
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	tokens := raw.EstimatedTokens
	switch {
	case tokens <= 100:
		tokens = 50
	case tokens <= 500:
		tokens = 200
	case tokens <= 1500:
		tokens = 1000
	default:
		tokens = 2000
	}

	needsTools := false
	switch v := raw.NeedsTools.(type) {
	case bool:
		needsTools = v
	case string:
		needsTools = strings.EqualFold(v, "true")
	}

	return llmClassification{
		tier:            tier,
		confidence:      confidence,
		reasoning:       raw.Reasoning,
		estimatedTokens: tokens,
		needsTools:      needsTools,
	}, nil
}

func normalizeTier(raw string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SIMPLE":
		return TierSimple, nil
	case "MEDIUM":
		return TierMedium, nil
	case "COMPLEX":
		return TierComplex, nil
	case "REASONING":
		return TierReasoning, nil
	default:
		return "", fmt.Errorf("invalid tier: %q", raw)
	}
}
