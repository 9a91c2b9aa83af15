package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned by surfaces that need an error for an unknown node
// type. Lookup itself reports absence with a boolean.
var ErrNotFound = errors.New("node type not found")

// Registry is an immutable catalog of node definitions. It is built once and
// shared by every reader without locking; none of its methods mutate state.
type Registry struct {
	defs  []NodeDefinition
	index map[string]int
}

// New builds a registry from defs, preserving their order. Definitions must
// have unique, non-empty type IDs and valid parameter kinds.
func New(defs []NodeDefinition) (*Registry, error) {
	r := &Registry{
		defs:  make([]NodeDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		if d.TypeID == "" {
			return nil, fmt.Errorf("catalog entry %d: typeId is required", i)
		}
		if _, dup := r.index[d.TypeID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate typeId %q", i, d.TypeID)
		}
		for _, p := range d.ParameterSchema {
			if !p.Kind.Valid() {
				return nil, fmt.Errorf("catalog entry %q: parameter %q has invalid kind %q", d.TypeID, p.Name, p.Kind)
			}
			if p.Kind == KindEnum && len(p.AllowedValues) == 0 {
				return nil, fmt.Errorf("catalog entry %q: enum parameter %q has no allowedValues", d.TypeID, p.Name)
			}
		}
		if d.TypeVersion == 0 {
			d.TypeVersion = 1
		}
		if d.DisplayName == "" {
			d.DisplayName = d.TypeID
		}
		r.index[d.TypeID] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// Lookup returns the definition for typeID. The boolean is false when the
// type is not in the catalog; Lookup never panics on unknown input.
func (r *Registry) Lookup(typeID string) (NodeDefinition, bool) {
	i, ok := r.index[typeID]
	if !ok {
		return NodeDefinition{}, false
	}
	return r.defs[i], true
}

// ByCategory returns every definition whose category set contains category
// exactly, in catalog order.
func (r *Registry) ByCategory(category string) []NodeDefinition {
	var out []NodeDefinition
	for _, d := range r.defs {
		if d.HasCategory(category) {
			out = append(out, d)
		}
	}
	return out
}

// SearchByUseCase returns definitions whose usage hints or description contain
// keyword, case-insensitively, in catalog order. An empty keyword matches
// nothing.
func (r *Registry) SearchByUseCase(keyword string) []NodeDefinition {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}
	var out []NodeDefinition
	for _, d := range r.defs {
		if matchesUseCase(d, kw) {
			out = append(out, d)
		}
	}
	return out
}

func matchesUseCase(d NodeDefinition, kw string) bool {
	if strings.Contains(strings.ToLower(d.Description), kw) {
		return true
	}
	for _, h := range d.UsageHints {
		if strings.Contains(strings.ToLower(h), kw) {
			return true
		}
	}
	return false
}

// All returns every definition in catalog order.
func (r *Registry) All() []NodeDefinition {
	out := make([]NodeDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len returns the number of definitions.
func (r *Registry) Len() int { return len(r.defs) }

// Categories returns the sorted set of categories used by the catalog.
func (r *Registry) Categories() []string {
	seen := make(map[string]struct{})
	for _, d := range r.defs {
		for _, c := range d.Category {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// TriggerFor returns the trigger definition that best matches a free-form
// trigger kind such as "schedule", "webhook" or "manual". It falls back to the
// first definition tagged "manual" in the trigger category.
func (r *Registry) TriggerFor(kind string) (NodeDefinition, bool) {
	triggers := r.ByCategory(CategoryTrigger)
	if len(triggers) == 0 {
		return NodeDefinition{}, false
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" {
		for _, d := range triggers {
			if d.HasCategory(kind) {
				return d, true
			}
		}
		for _, d := range triggers {
			if matchesUseCase(d, kind) {
				return d, true
			}
		}
	}
	for _, d := range triggers {
		if d.HasCategory("manual") {
			return d, true
		}
	}
	return triggers[0], true
}
