package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nanobridge/orchestrator/internal/memory"
)

// memoryStore is the subset of *memory.Store the memory tools need.
// Kept as an interface so tests can stub it without a real DB.
type memoryStore interface {
	SearchEvents(queryEmbedding []float32, sessionKey string, limit int, threshold float64) ([]memory.SimilarEvent, error)
	FindEntityByName(name string) (*memory.Entity, error)
	GetEdgesForEntity(entityID string, limit int) ([]memory.Edge, error)
	GetActiveLearnings(limit int) ([]memory.Learning, error)
}

const (
	defaultMemorySearchLimit = 5
	defaultRelationsLimit    = 10
	defaultRecallLimit       = 8
	memorySimilarityFloor    = 0.15
)

// SearchMemoryTool implements spec §4.8's "search_memory" distinguished
// tool: an embedding similarity lookup over past events, across every
// session unless a session_key argument restricts it to one.
type SearchMemoryTool struct {
	store    memoryStore
	embedder memory.Embedder
}

func NewSearchMemoryTool(store memoryStore, embedder memory.Embedder) *SearchMemoryTool {
	return &SearchMemoryTool{store: store, embedder: embedder}
}

func (t *SearchMemoryTool) Name() string { return "search_memory" }

func (t *SearchMemoryTool) Description() string {
	return "Search this conversation's remembered events by semantic similarity to a query."
}

func (t *SearchMemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":       map[string]interface{}{"type": "string", "description": "what to search for"},
			"session_key": map[string]interface{}{"type": "string", "description": "restrict to one session; omit to search every session"},
			"limit":       map[string]interface{}{"type": "integer", "description": "max results (default 5)"},
		},
		"required": []string{"query"},
	}
}

func (t *SearchMemoryTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return ErrorResult("search_memory: query is required")
	}
	limit := intArg(args, "limit", defaultMemorySearchLimit)
	sessionKey, _ := args["session_key"].(string)

	emb, err := t.embedder.Embed(query)
	if err != nil {
		return ErrorResult(fmt.Sprintf("search_memory: embed query: %v", err)).WithError(err)
	}
	matches, err := t.store.SearchEvents(emb, sessionKey, limit, memorySimilarityFloor)
	if err != nil {
		return ErrorResult(fmt.Sprintf("search_memory: %v", err)).WithError(err)
	}
	if len(matches) == 0 {
		return NewResult("No matching memories found.")
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "[%.2f] (%s) %s: %s\n", m.Similarity, m.Event.Timestamp.Format("2006-01-02 15:04"), m.Event.Direction, m.Event.Content)
	}
	return NewResult(b.String())
}

// GetEntityTool implements "get_entity": a case-insensitive name/alias
// lookup into the entity table (§4.2's FindEntityByName).
type GetEntityTool struct {
	store memoryStore
}

func NewGetEntityTool(store memoryStore) *GetEntityTool {
	return &GetEntityTool{store: store}
}

func (t *GetEntityTool) Name() string        { return "get_entity" }
func (t *GetEntityTool) Description() string { return "Look up a known entity by name." }

func (t *GetEntityTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "entity name or known alias"},
		},
		"required": []string{"name"},
	}
}

func (t *GetEntityTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	if strings.TrimSpace(name) == "" {
		return ErrorResult("get_entity: name is required")
	}
	e, err := t.store.FindEntityByName(name)
	if err != nil {
		return ErrorResult(fmt.Sprintf("get_entity: %v", err)).WithError(err)
	}
	if e == nil {
		return NewResult(fmt.Sprintf("No entity known as %q.", name))
	}
	aliases := "none"
	if len(e.Aliases) > 0 {
		aliases = strings.Join(e.Aliases, ", ")
	}
	return NewResult(fmt.Sprintf("%s (%s)\nAliases: %s\nDescription: %s\nSeen %d times, first %s, last %s",
		e.Name, e.EntityType, aliases, e.Description, e.EventCount,
		e.FirstSeen.Format("2006-01-02"), e.LastSeen.Format("2006-01-02")))
}

// GetRelationshipsTool implements "get_relationships": every edge
// touching a named entity, newest first (§4.2 GetEdgesForEntity, §3 Edge).
type GetRelationshipsTool struct {
	store memoryStore
}

func NewGetRelationshipsTool(store memoryStore) *GetRelationshipsTool {
	return &GetRelationshipsTool{store: store}
}

func (t *GetRelationshipsTool) Name() string { return "get_relationships" }

func (t *GetRelationshipsTool) Description() string {
	return "List known relationships (edges) involving a named entity."
}

func (t *GetRelationshipsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":  map[string]interface{}{"type": "string", "description": "entity name or known alias"},
			"limit": map[string]interface{}{"type": "integer", "description": "max edges (default 10)"},
		},
		"required": []string{"name"},
	}
}

func (t *GetRelationshipsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	if strings.TrimSpace(name) == "" {
		return ErrorResult("get_relationships: name is required")
	}
	limit := intArg(args, "limit", defaultRelationsLimit)

	e, err := t.store.FindEntityByName(name)
	if err != nil {
		return ErrorResult(fmt.Sprintf("get_relationships: %v", err)).WithError(err)
	}
	if e == nil {
		return NewResult(fmt.Sprintf("No entity known as %q.", name))
	}
	edges, err := t.store.GetEdgesForEntity(e.ID, limit)
	if err != nil {
		return ErrorResult(fmt.Sprintf("get_relationships: %v", err)).WithError(err)
	}
	if len(edges) == 0 {
		return NewResult(fmt.Sprintf("%s has no known relationships.", e.Name))
	}
	var b strings.Builder
	for _, edge := range edges {
		dir := "->"
		other := edge.TargetEntityID
		if edge.TargetEntityID == e.ID {
			dir = "<-"
			other = edge.SourceEntityID
		}
		fmt.Fprintf(&b, "%s %s %s %s (strength %.2f)\n", e.Name, dir, edge.Relation, other, edge.Strength)
	}
	return NewResult(b.String())
}

// RecallTool implements "recall": the bounded feedback/preference surface
// spec §4.10 asks an agent to be able to pull on demand, independent of the
// per-turn memory context the loop assembles automatically.
type RecallTool struct {
	store memoryStore
}

func NewRecallTool(store memoryStore) *RecallTool {
	return &RecallTool{store: store}
}

func (t *RecallTool) Name() string { return "recall" }

func (t *RecallTool) Description() string {
	return "Recall remembered user preferences and corrections (learnings), most relevant first."
}

func (t *RecallTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{"type": "integer", "description": "max learnings (default 8)"},
		},
	}
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	limit := intArg(args, "limit", defaultRecallLimit)
	learnings, err := t.store.GetActiveLearnings(200)
	if err != nil {
		return ErrorResult(fmt.Sprintf("recall: %v", err)).WithError(err)
	}
	if len(learnings) == 0 {
		return NewResult("No remembered preferences yet.")
	}
	sort.SliceStable(learnings, func(i, j int) bool {
		return learnings[i].RelevanceScore > learnings[j].RelevanceScore
	})
	if len(learnings) > limit {
		learnings = learnings[:limit]
	}
	var b strings.Builder
	for _, l := range learnings {
		fmt.Fprintf(&b, "[%s, %.2f] %s\n", l.Sentiment, l.RelevanceScore, l.Content)
	}
	return NewResult(b.String())
}

func intArg(args map[string]interface{}, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	}
	return def
}
