package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nanobridge/orchestrator/internal/providers"
)

type stubProvider struct {
	name    string
	content string
	err     error
}

func (p *stubProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &providers.ChatResponse{Content: p.content}, nil
}

func (p *stubProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *stubProvider) DefaultModel() string { return "stub-model" }
func (p *stubProvider) Name() string         { return p.name }

func TestLLMClassifyParsesWellFormedJSON(t *testing.T) {
	prov := &stubProvider{name: "stub", content: `{"tier":"COMPLEX","confidence":0.82,"reasoning":"multi-step","estimated_tokens":900,"needs_tools":true}`}
	c := NewLLMClassifier(prov, "cheap", "", time.Second)
	decision := c.Classify(context.Background(), "debug this race condition")
	if decision.Tier != TierComplex {
		t.Fatalf("expected complex tier, got %s", decision.Tier)
	}
	if decision.EstimatedTokens != 1000 {
		t.Fatalf("expected token bucket 1000, got %d", decision.EstimatedTokens)
	}
	if !decision.NeedsTools {
		t.Fatal("expected needs_tools true")
	}
}

func TestLLMClassifyStripsMarkdownFence(t *testing.T) {
	prov := &stubProvider{name: "stub", content: "```json\n{\"tier\":\"SIMPLE\",\"confidence\":0.9,\"reasoning\":\"\",\"estimated_tokens\":40,\"needs_tools\":false}\n```"}
	c := NewLLMClassifier(prov, "cheap", "", time.Second)
	decision := c.Classify(context.Background(), "hi")
	if decision.Tier != TierSimple {
		t.Fatalf("expected simple tier after fence stripping, got %s", decision.Tier)
	}
}

func TestLLMClassifyFallsBackToSecondaryModel(t *testing.T) {
	prov := &stubProvider{name: "stub", err: errors.New("primary unavailable")}
	c := NewLLMClassifier(prov, "primary", "secondary", time.Second)
	// Same provider errors regardless of model, so both primary and
	// secondary attempts fail; classify must degrade to the medium default
	// rather than propagate the error.
	decision := c.Classify(context.Background(), "anything")
	if decision.Tier != TierMedium {
		t.Fatalf("expected medium fallback tier, got %s", decision.Tier)
	}
	if decision.Confidence != 0.5 {
		t.Fatalf("expected fallback confidence 0.5, got %.2f", decision.Confidence)
	}
}

func TestLLMClassifyInvalidTierIsRejected(t *testing.T) {
	prov := &stubProvider{name: "stub", content: `{"tier":"UNKNOWN","confidence":0.5}`}
	c := NewLLMClassifier(prov, "cheap", "", time.Second)
	decision := c.Classify(context.Background(), "x")
	if decision.Tier != TierMedium || decision.Layer != "llm" {
		t.Fatalf("expected medium/llm fallback for an invalid tier, got tier=%s layer=%s", decision.Tier, decision.Layer)
	}
}
