package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds every LLM provider the gateway has been able to
// construct from config (one with an API key configured becomes a live
// Provider; one without simply never gets registered). Tools and the
// router look providers up by name rather than holding direct references,
// so a provider can be swapped or reloaded without touching its callers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	byAlias   map[string]string // secondary lookup names, e.g. "dashscope" -> "openai"-compatible entries
}

// NewRegistry builds an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		byAlias:   make(map[string]string),
	}
}

// Register adds or replaces a provider under its own Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// RegisterAlias makes alias resolve to the same provider as canonical,
// for providers whose config key differs from their Name() (e.g. a
// custom OpenAI-compatible endpoint onboarded under a vendor name).
func (r *Registry) RegisterAlias(alias, canonical string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAlias[alias] = canonical
}

// Get returns the provider registered under name, resolving aliases
// first. Returns an error rather than (nil, false) since every caller
// wants to report the miss up to the user or fall back to another name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	if canonical, ok := r.byAlias[name]; ok {
		if p, ok := r.providers[canonical]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("providers: %q not configured", name)
}

// Has reports whether name (or an alias of it) resolves to a live provider.
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// Names returns every registered provider name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
