package store

import (
	"context"
	"testing"
)

func TestWithUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-42")
	if got := UserIDFromContext(ctx); got != "user-42" {
		t.Fatalf("UserIDFromContext() = %q, want %q", got, "user-42")
	}
}

func TestWithUserIDEmptyIsNoop(t *testing.T) {
	ctx := WithUserID(context.Background(), "")
	if got := UserIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty user ID to attach nothing, got %q", got)
	}
}

func TestWithAgentTypeRoundTrip(t *testing.T) {
	ctx := WithAgentType(context.Background(), "delegate")
	if got := AgentTypeFromContext(ctx); got != "delegate" {
		t.Fatalf("AgentTypeFromContext() = %q, want %q", got, "delegate")
	}
}

func TestAgentTypeFromContextMissing(t *testing.T) {
	if got := AgentTypeFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty agent type on a bare context, got %q", got)
	}
}
