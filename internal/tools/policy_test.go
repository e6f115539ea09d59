package tools

import (
	"context"
	"testing"

	"github.com/nanobridge/orchestrator/internal/config"
)

func newFullRegistry() *Registry {
	r := NewRegistry(0)
	for _, name := range []string{"exec", "read_file", "write_file", "web_search", "search_memory", "invoke"} {
		r.Register(&stubTool{name: name, fn: func(ctx context.Context, args map[string]interface{}) *Result {
			return NewResult("")
		}})
	}
	return r
}

func containsTool(defs []string, name string) bool {
	for _, d := range defs {
		if d == name {
			return true
		}
	}
	return false
}

func defNames(t *testing.T, pe *PolicyEngine, r *Registry, agentPolicy *config.ToolPolicySpec) []string {
	t.Helper()
	defs := pe.FilterTools(r, "bot", "anthropic", agentPolicy, nil, false, false)
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Function.Name
	}
	return names
}

func TestPolicyEngineFullProfileAllowsEverything(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{})
	names := defNames(t, pe, newFullRegistry(), nil)
	if len(names) != 6 {
		t.Fatalf("expected all 6 registered tools allowed under the default full profile, got %v", names)
	}
}

func TestPolicyEngineMinimalProfileDeniesEverythingNotListed(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{Profile: "minimal"})
	names := defNames(t, pe, newFullRegistry(), nil)
	if len(names) != 0 {
		t.Fatalf("expected the minimal profile to allow none of the registered tools, got %v", names)
	}
}

func TestPolicyEngineGlobalDenyWinsOverAllow(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{
		Allow: []string{"exec", "read_file"},
		Deny:  []string{"exec"},
	})
	names := defNames(t, pe, newFullRegistry(), nil)
	if containsTool(names, "exec") {
		t.Fatalf("expected exec to be denied despite being in the allow list, got %v", names)
	}
	if !containsTool(names, "read_file") {
		t.Fatalf("expected read_file to remain allowed, got %v", names)
	}
}

func TestPolicyEngineGroupExpansion(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{Allow: []string{"group:fs"}})
	names := defNames(t, pe, newFullRegistry(), nil)
	if !containsTool(names, "read_file") || !containsTool(names, "write_file") {
		t.Fatalf("expected group:fs to expand to read_file/write_file, got %v", names)
	}
	if containsTool(names, "exec") {
		t.Fatalf("expected exec (not part of group:fs) to be excluded, got %v", names)
	}
}

func TestPolicyEnginePerAgentAllowIntersectsGlobal(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{Allow: []string{"exec", "read_file", "write_file"}})
	agentPolicy := &config.ToolPolicySpec{Allow: []string{"read_file"}}
	names := defNames(t, pe, newFullRegistry(), agentPolicy)
	if len(names) != 1 || names[0] != "read_file" {
		t.Fatalf("expected per-agent allow to intersect with the global allow, got %v", names)
	}
}

func TestPolicyEngineAlsoAllowAddsBack(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{
		Profile:   "minimal",
		AlsoAllow: []string{"web_search"},
	})
	names := defNames(t, pe, newFullRegistry(), nil)
	if !containsTool(names, "web_search") {
		t.Fatalf("expected alsoAllow to add web_search back on top of the minimal profile, got %v", names)
	}
	if containsTool(names, "exec") {
		t.Fatalf("expected alsoAllow not to reintroduce tools outside its own list, got %v", names)
	}
}

func TestPolicyEngineSubagentDenyList(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{})
	r := newFullRegistry()
	defs := pe.FilterTools(r, "sub", "anthropic", nil, nil, true, false)
	for _, d := range defs {
		if d.Function.Name == "exec" {
			t.Fatalf("expected exec to be denied for subagents, got %+v", defs)
		}
	}
}

func TestPolicyEngineProviderOverride(t *testing.T) {
	pe := NewPolicyEngine(&config.ToolsConfig{
		Profile: "full",
		ByProvider: map[string]*config.ToolPolicySpec{
			"openai": {Profile: "minimal"},
		},
	})
	r := newFullRegistry()

	anthropicNames := make([]string, 0)
	for _, d := range pe.FilterTools(r, "bot", "anthropic", nil, nil, false, false) {
		anthropicNames = append(anthropicNames, d.Function.Name)
	}
	if len(anthropicNames) != 6 {
		t.Fatalf("expected anthropic to keep the full profile, got %v", anthropicNames)
	}

	openaiNames := make([]string, 0)
	for _, d := range pe.FilterTools(r, "bot", "openai", nil, nil, false, false) {
		openaiNames = append(openaiNames, d.Function.Name)
	}
	if len(openaiNames) != 0 {
		t.Fatalf("expected the openai provider override to restrict to the minimal profile, got %v", openaiNames)
	}
}

func TestResolveAliasMapsKnownAliases(t *testing.T) {
	if got := resolveAlias("bash"); got != "exec" {
		t.Fatalf("resolveAlias(bash) = %q, want exec", got)
	}
	if got := resolveAlias("exec"); got != "exec" {
		t.Fatalf("resolveAlias(exec) = %q, want exec unchanged", got)
	}
}
