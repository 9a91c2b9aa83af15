package compiler

import (
	"strings"

	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/graph"
)

// UnresolvedType is the node type given to a step no catalog entry matches.
// It never resolves, so the step is assembled as an unknown node.
const UnresolvedType = "unresolved"

// The deterministic defaults below depend only on their inputs and the
// registry; the same failure always yields the same value.

// FallbackDecomposition is the Decomposer's default: a manual trigger and
// nothing else.
func FallbackDecomposition() Decomposition {
	return Decomposition{
		Trigger:         Trigger{Type: TriggerManual},
		DataSources:     []Activity{},
		ProcessingSteps: []Activity{},
		Outputs:         []Activity{},
		SpecialLogic:    map[string]any{},
	}
}

// FallbackMapping maps dec onto the catalog without a completion call. The
// trigger type selects a catalog trigger; every other entry takes the first
// non-trigger SearchByUseCase hit for its service label, then for the
// keywords of its description. Entries with no hit are UnresolvedType.
func FallbackMapping(reg *catalog.Registry, dec Decomposition) Mapping {
	m := Mapping{
		MappedSteps:     []MappedStep{triggerMapping(reg, dec.Trigger)},
		AdditionalNodes: []AdditionalNode{},
	}
	groups := []struct {
		role  string
		items []Activity
	}{
		{RoleSource, dec.DataSources},
		{RoleProcess, dec.ProcessingSteps},
		{RoleOutput, dec.Outputs},
	}
	for _, g := range groups {
		for _, a := range g.items {
			step := MappedStep{
				Role:         g.role,
				Description:  a.Description,
				ServiceLabel: a.Label(),
				NodeTypeID:   UnresolvedType,
			}
			def, ok := resolveService(reg, a.Service, a.Description)
			if ok {
				step.NodeTypeID = def.TypeID
				step.Rationale = "matched " + def.DisplayName + " by use case"
			}
			step.Kind = kindFor(def, ok, g.role)
			m.MappedSteps = append(m.MappedSteps, step)
		}
	}
	return m
}

func triggerMapping(reg *catalog.Registry, t Trigger) MappedStep {
	step := MappedStep{
		Role:        RoleTrigger,
		Description: t.Description,
		NodeTypeID:  UnresolvedType,
		Kind:        graph.KindTrigger,
	}
	kind := t.Type
	if kind == "" {
		kind = TriggerManual
	}
	if step.Description == "" {
		step.Description = "Start on " + kind + " trigger"
	}
	if def, ok := reg.TriggerFor(kind); ok {
		step.NodeTypeID = def.TypeID
		step.ServiceLabel = def.DisplayName
		step.Rationale = "trigger type " + kind
	}
	return step
}

// resolveService finds the first non-trigger definition matching label, or
// failing that, any keyword of description.
func resolveService(reg *catalog.Registry, label, description string) (catalog.NodeDefinition, bool) {
	if def, ok := firstAction(reg.SearchByUseCase(label)); ok {
		return def, true
	}
	for _, kw := range catalog.Keywords(description) {
		if def, ok := firstAction(reg.SearchByUseCase(kw)); ok {
			return def, true
		}
	}
	return catalog.NodeDefinition{}, false
}

func firstAction(defs []catalog.NodeDefinition) (catalog.NodeDefinition, bool) {
	for _, d := range defs {
		if !d.HasCategory(catalog.CategoryTrigger) {
			return d, true
		}
	}
	return catalog.NodeDefinition{}, false
}

func kindFor(def catalog.NodeDefinition, known bool, role string) graph.Kind {
	if known {
		switch {
		case def.HasCategory(catalog.CategoryTrigger):
			return graph.KindTrigger
		case def.HasCategory(catalog.CategoryError):
			return graph.KindErrorHandler
		case def.HasCategory(catalog.CategoryLogic):
			return graph.KindLogic
		}
	}
	switch role {
	case RoleTrigger:
		return graph.KindTrigger
	case RoleSource:
		return graph.KindProcess
	case RoleProcess:
		return graph.KindTransform
	}
	return graph.KindAction
}

// FallbackArchitecture lowers a Mapping into steps without a completion
// call: triggers first, the other mapped steps in order, additional nodes
// after them. Runs of two or more data sources are parallelizable, and an
// ErrorHandler follows every Action whose node type needs credentials.
func FallbackArchitecture(reg *catalog.Registry, m Mapping) []graph.Step {
	handler, hasHandler := errorHandlerDef(reg)

	var triggers, rest []MappedStep
	for _, s := range m.MappedSteps {
		if s.Kind == graph.KindTrigger {
			triggers = append(triggers, s)
		} else {
			rest = append(rest, s)
		}
	}

	steps := make([]graph.Step, 0, len(m.MappedSteps)+len(m.AdditionalNodes))
	for _, s := range triggers {
		steps = append(steps, mappedStep(s))
	}
	for i, s := range rest {
		step := mappedStep(s)
		step.Parallelizable = s.Role == RoleSource && sourceRun(rest, i) >= 2
		steps = append(steps, step)
		if !hasHandler || step.Kind != graph.KindAction {
			continue
		}
		if def, ok := reg.Lookup(step.NodeTypeID); ok && len(def.RequiredCredentialKinds) > 0 {
			steps = append(steps, handlerStep(handler, step))
		}
	}
	for _, n := range m.AdditionalNodes {
		steps = append(steps, graph.Step{
			Kind:         n.Kind,
			Description:  n.Description,
			ServiceLabel: n.ServiceLabel,
			NodeTypeID:   n.NodeTypeID,
			Rationale:    n.Reason,
		})
	}
	graph.Reindex(steps)
	return steps
}

func mappedStep(s MappedStep) graph.Step {
	return graph.Step{
		Kind:         s.Kind,
		Description:  s.Description,
		ServiceLabel: s.ServiceLabel,
		NodeTypeID:   s.NodeTypeID,
		Rationale:    s.Rationale,
	}
}

// sourceRun returns the length of the run of consecutive data-source steps
// containing rest[i].
func sourceRun(rest []MappedStep, i int) int {
	if rest[i].Role != RoleSource {
		return 0
	}
	lo, hi := i, i
	for lo > 0 && rest[lo-1].Role == RoleSource {
		lo--
	}
	for hi < len(rest)-1 && rest[hi+1].Role == RoleSource {
		hi++
	}
	return hi - lo + 1
}

func errorHandlerDef(reg *catalog.Registry) (catalog.NodeDefinition, bool) {
	defs := reg.ByCategory(catalog.CategoryError)
	if len(defs) == 0 {
		return catalog.NodeDefinition{}, false
	}
	return defs[0], true
}

func handlerStep(def catalog.NodeDefinition, guarded graph.Step) graph.Step {
	label := guarded.ServiceLabel
	if label == "" {
		label = guarded.Description
	}
	return graph.Step{
		Kind:              graph.KindErrorHandler,
		Description:       "Stop and report when " + label + " fails",
		ServiceLabel:      label + " Failed",
		NodeTypeID:        def.TypeID,
		Rationale:         "guards an external call",
		ErrorHandlingNote: "handles failures of " + label,
	}
}

// OptimizeLocally is the Optimizer's default: adjacent parallelizable steps
// with the same node type are merged into one, then steps are re-indexed.
func OptimizeLocally(steps []graph.Step) []graph.Step {
	out := make([]graph.Step, 0, len(steps))
	for _, s := range steps {
		if n := len(out); n > 0 && mergeable(out[n-1], s) {
			prev := &out[n-1]
			prev.Description = joinNonEmpty("; ", prev.Description, s.Description)
			prev.Rationale = joinNonEmpty("; ", prev.Rationale, s.Rationale)
			continue
		}
		out = append(out, s)
	}
	graph.Reindex(out)
	return out
}

func mergeable(a, b graph.Step) bool {
	return a.Parallelizable && b.Parallelizable &&
		a.Kind != graph.KindErrorHandler && b.Kind != graph.KindErrorHandler &&
		a.NodeTypeID == b.NodeTypeID
}

func joinNonEmpty(sep string, parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, sep)
}
