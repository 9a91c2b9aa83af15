package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/GoCodeAlone/wfgen/catalog"
)

// Normalize repairs a step list before assembly. It returns a new slice:
//   - unknown node types are flagged,
//   - a Trigger step with an unknown type gets the closest catalog trigger,
//   - steps resolving to a trigger definition become Trigger steps, except
//     error handlers, which are retyped to the catalog's error node instead,
//   - Trigger steps move to the front, keeping their relative order,
//   - Trigger and ErrorHandler steps are never parallelizable,
//   - error handlers with nothing to guard are dropped,
//   - indices are made contiguous from 1.
//
// A nil registry skips the catalog-based repairs.
func Normalize(reg *catalog.Registry, steps []Step) ([]Step, []Diagnostic) {
	var diags []Diagnostic
	work := CloneSteps(steps)

	for i := range work {
		if reg == nil {
			break
		}
		s := &work[i]
		def, ok := reg.Lookup(s.NodeTypeID)
		s.UnknownType = !ok
		if !ok {
			diags = append(diags, Diagnostic{Step: s.Index, Code: DiagUnknownType,
				Message: fmt.Sprintf("node type %q is not in the catalog", s.NodeTypeID)})
			if s.Kind != KindTrigger {
				continue
			}
			if repl, found := replacementTrigger(reg, *s); found {
				diags = append(diags, Diagnostic{Step: s.Index, Code: DiagTriggerReplaced,
					Message: fmt.Sprintf("unknown trigger type %q replaced with %s", s.NodeTypeID, repl.TypeID)})
				s.NodeTypeID = repl.TypeID
				s.UnknownType = false
			}
			continue
		}
		if !def.HasCategory(catalog.CategoryTrigger) {
			continue
		}
		if s.Kind != KindErrorHandler {
			s.Kind = KindTrigger
			continue
		}
		if handlers := reg.ByCategory(catalog.CategoryError); len(handlers) > 0 {
			diags = append(diags, Diagnostic{Step: s.Index, Code: DiagHandlerRetyped,
				Message: fmt.Sprintf("error handler type %q is a trigger; using %s", s.NodeTypeID, handlers[0].TypeID)})
			s.NodeTypeID = handlers[0].TypeID
		}
	}

	var triggers, rest []Step
	for _, s := range work {
		if s.Kind == KindTrigger {
			triggers = append(triggers, s)
		} else {
			rest = append(rest, s)
		}
	}
	if len(triggers) > 0 && !triggersLeading(work, len(triggers)) {
		diags = append(diags, Diagnostic{Code: DiagTriggerMoved, Message: "trigger steps moved to the front"})
	}
	work = append(triggers, rest...)

	out := make([]Step, 0, len(work))
	for _, s := range work {
		if (s.Kind == KindTrigger || s.Kind == KindErrorHandler) && s.Parallelizable {
			s.Parallelizable = false
			diags = append(diags, Diagnostic{Step: s.Index, Code: DiagParallelCleared,
				Message: fmt.Sprintf("%s steps cannot run in parallel", s.Kind)})
		}
		if s.Kind == KindErrorHandler && (len(out) == 0 || out[len(out)-1].Kind == KindErrorHandler) {
			diags = append(diags, Diagnostic{Step: s.Index, Code: DiagOrphanHandler,
				Message: "error handler has no step to guard; removed"})
			continue
		}
		out = append(out, s)
	}

	reindexed := false
	for i := range out {
		if out[i].Index != i+1 {
			reindexed = true
		}
	}
	if reindexed {
		Reindex(out)
		diags = append(diags, Diagnostic{Code: DiagReindexed, Message: "step indices made contiguous"})
	}

	if !HasTrigger(out) {
		diags = append(diags, Diagnostic{Code: DiagNoTrigger, Message: "no trigger step survived"})
	}
	return out, diags
}

// triggerAliases maps words found in unknown trigger types and labels onto
// catalog trigger categories.
var triggerAliases = map[string]string{
	"cron":     "schedule",
	"interval": "schedule",
	"timer":    "schedule",
	"hourly":   "schedule",
	"daily":    "schedule",
	"weekly":   "schedule",
	"monthly":  "schedule",
	"hook":     "webhook",
	"mail":     "email",
	"inbox":    "email",
	"feed":     "rss",
}

// replacementTrigger picks a catalog trigger for a Trigger step whose type is
// unknown: the first trigger with a category named by a word of the step's
// type id, label or description, otherwise the manual trigger.
func replacementTrigger(reg *catalog.Registry, s Step) (catalog.NodeDefinition, bool) {
	tail := s.NodeTypeID
	if i := strings.LastIndexByte(tail, '.'); i >= 0 {
		tail = tail[i+1:]
	}
	triggers := reg.ByCategory(catalog.CategoryTrigger)
	for _, w := range catalog.Keywords(tail + " " + s.ServiceLabel + " " + s.Description) {
		if alias, ok := triggerAliases[w]; ok {
			w = alias
		}
		if w == catalog.CategoryTrigger {
			continue
		}
		for _, d := range triggers {
			if d.HasCategory(w) {
				return d, true
			}
		}
	}
	return reg.TriggerFor("manual")
}

func triggersLeading(steps []Step, n int) bool {
	for i := 0; i < n; i++ {
		if steps[i].Kind != KindTrigger {
			return false
		}
	}
	return true
}

// HasTrigger reports whether steps starts with a Trigger step.
func HasTrigger(steps []Step) bool {
	return len(steps) > 0 && steps[0].Kind == KindTrigger
}

// ManualTriggerSteps returns the single-step plan used when nothing usable
// survives generation.
func ManualTriggerSteps(reg *catalog.Registry) []Step {
	typeID := "n8n-nodes-base.manualTrigger"
	label := "Manual Trigger"
	if reg != nil {
		if def, ok := reg.TriggerFor("manual"); ok {
			typeID, label = def.TypeID, def.DisplayName
		}
	}
	return []Step{{
		Index:        1,
		Kind:         KindTrigger,
		Description:  "Start the workflow manually",
		ServiceLabel: label,
		NodeTypeID:   typeID,
	}}
}

// Sentinel errors returned (joined) by Check.
var (
	ErrNoNodes           = errors.New("workflow has no nodes")
	ErrDuplicateID       = errors.New("duplicate node id")
	ErrDuplicateName     = errors.New("duplicate node name")
	ErrDanglingReference = errors.New("connection references a missing node")
	ErrFirstNotTrigger   = errors.New("first node is not a trigger")
	ErrActive            = errors.New("generated workflow must be inactive")
)

// Check verifies the structural invariants of an assembled workflow. With a
// non-nil registry it also requires the first node to be a catalog trigger.
func Check(w *Workflow, reg *catalog.Registry) error {
	if w == nil || len(w.Nodes) == 0 {
		return ErrNoNodes
	}
	var errs []error
	ids := make(map[string]bool, len(w.Nodes))
	names := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if ids[n.ID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, n.ID))
		}
		ids[n.ID] = true
		if names[n.Name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateName, n.Name))
		}
		names[n.Name] = true
	}

	sources := make([]string, 0, len(w.Connections))
	for src := range w.Connections {
		sources = append(sources, src)
	}
	slices.Sort(sources)
	for _, src := range sources {
		if !names[src] {
			errs = append(errs, fmt.Errorf("%w: source %q", ErrDanglingReference, src))
		}
		nc := w.Connections[src]
		for _, slot := range append(slices.Clone(nc.Main), nc.Error...) {
			for _, t := range slot {
				if !names[t.Node] {
					errs = append(errs, fmt.Errorf("%w: %q -> %q", ErrDanglingReference, src, t.Node))
				}
			}
		}
	}

	if reg != nil {
		def, ok := reg.Lookup(w.Nodes[0].Type)
		if !ok || !def.HasCategory(catalog.CategoryTrigger) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrFirstNotTrigger, w.Nodes[0].Type))
		}
	}
	if w.Active {
		errs = append(errs, ErrActive)
	}
	return errors.Join(errs...)
}
