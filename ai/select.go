package ai

import (
	"fmt"
	"slices"
	"sync"
)

// AutoOrder is the preference order used when the provider is "auto" or empty.
var AutoOrder = []string{ProviderAnthropic, ProviderOpenAI, ProviderCopilot, ProviderOllama}

// Selector holds the configured providers and chooses one by name.
type Selector struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewSelector creates a Selector over the given providers.
func NewSelector(providers ...Provider) *Selector {
	s := &Selector{providers: make(map[string]Provider)}
	for _, p := range providers {
		s.Register(p)
	}
	return s
}

// Register adds or replaces a provider under its Name.
func (s *Selector) Register(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Name()] = p
}

// Names returns the registered provider names, sorted.
func (s *Selector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.providers))
	for n := range s.providers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Select returns the named provider. For "auto" or "" it returns the first
// registered provider in AutoOrder, then any other in name order.
func (s *Selector) Select(name string) (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name != "" && name != ProviderAuto {
		p, ok := s.providers[name]
		if !ok {
			return nil, fmt.Errorf("provider %q not registered: %w", name, ErrNoProvider)
		}
		return p, nil
	}
	for _, n := range AutoOrder {
		if p, ok := s.providers[n]; ok {
			return p, nil
		}
	}
	names := make([]string, 0, len(s.providers))
	for n := range s.providers {
		names = append(names, n)
	}
	if len(names) == 0 {
		return nil, ErrNoProvider
	}
	slices.Sort(names)
	return s.providers[names[0]], nil
}
