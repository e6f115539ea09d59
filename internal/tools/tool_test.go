package tools

import (
	"context"
	"testing"
	"time"
)

type stubTool struct {
	name  string
	fn    func(ctx context.Context, args map[string]interface{}) *Result
}

func (s *stubTool) Name() string                             { return s.name }
func (s *stubTool) Description() string                      { return "stub tool for tests" }
func (s *stubTool) Parameters() map[string]interface{}       { return map[string]interface{}{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return s.fn(ctx, args)
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(0)
	res := r.Execute(context.Background(), "nope", nil)
	if !res.IsError {
		t.Fatalf("expected an error result for an unregistered tool, got %+v", res)
	}
}

func TestRegistryExecuteReturnsToolResult(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&stubTool{name: "echo", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		return NewResult("ok")
	}})

	res := r.Execute(context.Background(), "echo", nil)
	if res.IsError || res.ForLLM != "ok" {
		t.Fatalf("expected a successful result with content %q, got %+v", "ok", res)
	}
}

func TestRegistryExecuteTimesOut(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register(&stubTool{name: "slow", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		// Ignores ctx entirely, like a provider call that doesn't honor
		// cancellation: the registry's own deadline must still win.
		time.Sleep(time.Second)
		return NewResult("too slow")
	}})

	start := time.Now()
	res := r.Execute(context.Background(), "slow", nil)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Execute did not return promptly on timeout, took %s", elapsed)
	}
	if !res.IsError {
		t.Fatalf("expected a timeout error result, got %+v", res)
	}
}

func TestRegistryExecuteRecoversFromPanic(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&stubTool{name: "boom", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		panic("kaboom")
	}})

	res := r.Execute(context.Background(), "boom", nil)
	if !res.IsError {
		t.Fatalf("expected a panic to surface as an error result, got %+v", res)
	}
}

func TestRegistryExecuteNilResultBecomesError(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&stubTool{name: "nilret", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		return nil
	}})

	res := r.Execute(context.Background(), "nilret", nil)
	if !res.IsError {
		t.Fatalf("expected a nil tool result to become an error result, got %+v", res)
	}
}

func TestRegistryListIsSorted(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&stubTool{name: "zeta", fn: func(ctx context.Context, args map[string]interface{}) *Result { return NewResult("") }})
	r.Register(&stubTool{name: "alpha", fn: func(ctx context.Context, args map[string]interface{}) *Result { return NewResult("") }})

	got := r.List()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Fatalf("expected sorted tool names [alpha zeta], got %v", got)
	}
}

func TestRegistryProviderDefsMatchesRegisteredTools(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&stubTool{name: "echo", fn: func(ctx context.Context, args map[string]interface{}) *Result { return NewResult("") }})

	defs := r.ProviderDefs()
	if len(defs) != 1 || defs[0].Function.Name != "echo" || defs[0].Type != "function" {
		t.Fatalf("expected one provider def named echo, got %+v", defs)
	}
}
