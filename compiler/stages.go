package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/wfgen/ai"
	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/graph"
)

// StageConfig holds the collaborators shared by every pipeline stage.
type StageConfig struct {
	Registry     *catalog.Registry
	Provider     ai.Provider
	Model        string
	MaxTokens    int
	Temperature  float64
	ExcerptLimit int
	Logger       *slog.Logger
}

func (c StageConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// complete makes the stage's single completion call. Provider errors are
// returned as *StageError wrapping *ai.TransportError.
func (c StageConfig) complete(ctx context.Context, stage, system, user string) (string, error) {
	if c.Provider == nil {
		return "", &StageError{Stage: stage, Err: ai.ErrNoProvider}
	}
	resp, err := c.Provider.Complete(ctx, ai.CompletionRequest{
		Model:        c.Model,
		SystemPrompt: system,
		UserMessage:  user,
		History:      []ai.Message{},
		MaxTokens:    c.MaxTokens,
		Temperature:  c.Temperature,
		Metadata:     map[string]any{"stage": stage},
	})
	if err != nil {
		var te *ai.TransportError
		if !errors.As(err, &te) && ctx.Err() == nil {
			err = &ai.TransportError{Provider: c.Provider.Name(), Attempts: 1, Err: err}
		}
		c.logger().Error("completion failed", "stage", stage, "provider", c.Provider.Name(), "error", err)
		return "", &StageError{Stage: stage, Err: err}
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text, nil
}

// decode parses text and unmarshals it into v. Any failure is returned as a
// Fallback reason.
func decode(text string, v any) *Fallback {
	raw, err := ParseResponse(text)
	if err != nil {
		return &Fallback{Reason: err.Error()}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Fallback{Reason: "unexpected shape: " + err.Error()}
	}
	return nil
}

func (c StageConfig) fellBack(stage string, fb *Fallback) *Fallback {
	fb.Stage = stage
	c.logger().Warn("stage fell back to default", "stage", stage, "reason", fb.Reason)
	return fb
}

// Decomposer breaks a task description into trigger, sources, processing
// steps and outputs.
type Decomposer struct {
	cfg StageConfig
}

// NewDecomposer creates a Decomposer.
func NewDecomposer(cfg StageConfig) *Decomposer { return &Decomposer{cfg: cfg} }

// Decompose runs the stage. A non-nil Fallback means the returned value is
// FallbackDecomposition.
func (d *Decomposer) Decompose(ctx context.Context, task string) (Decomposition, *Fallback, error) {
	text, err := d.cfg.complete(ctx, StageDecompose, DecomposeSystemPrompt(), DecomposeUserPrompt(task))
	if err != nil {
		return Decomposition{}, nil, err
	}
	var dec Decomposition
	if fb := decode(text, &dec); fb != nil {
		return FallbackDecomposition(), d.cfg.fellBack(StageDecompose, fb), nil
	}
	if dec.Trigger.Type == "" && dec.Trigger.Description == "" &&
		len(dec.DataSources)+len(dec.ProcessingSteps)+len(dec.Outputs) == 0 {
		return FallbackDecomposition(), d.cfg.fellBack(StageDecompose, &Fallback{Reason: "decomposition is empty"}), nil
	}
	repairDecomposition(&dec)
	if len(dec.ProcessingSteps) == 0 {
		d.cfg.logger().Debug("decomposition has no processing steps", "stage", StageDecompose)
	}
	return dec, nil, nil
}

func repairDecomposition(d *Decomposition) {
	d.Trigger.Type = strings.ToLower(strings.TrimSpace(d.Trigger.Type))
	if d.Trigger.Type == "" {
		d.Trigger.Type = TriggerManual
	}
	if d.DataSources == nil {
		d.DataSources = []Activity{}
	}
	if d.ProcessingSteps == nil {
		d.ProcessingSteps = []Activity{}
	}
	if d.Outputs == nil {
		d.Outputs = []Activity{}
	}
	if d.SpecialLogic == nil {
		d.SpecialLogic = map[string]any{}
	}
}

// NodeMapper binds each part of a Decomposition to a catalog node type.
type NodeMapper struct {
	cfg StageConfig
}

// NewNodeMapper creates a NodeMapper.
func NewNodeMapper(cfg StageConfig) *NodeMapper { return &NodeMapper{cfg: cfg} }

// Map runs the stage. The prompt carries a relevance-ranked catalog excerpt
// bounded by StageConfig.ExcerptLimit.
func (m *NodeMapper) Map(ctx context.Context, task string, dec Decomposition) (Mapping, *Fallback, error) {
	limit := m.cfg.ExcerptLimit
	if limit == 0 {
		limit = catalog.DefaultExcerptLimit
	}
	excerpt := m.cfg.Registry.Excerpt(excerptQuery(task, dec), limit)

	text, err := m.cfg.complete(ctx, StageMap, MapSystemPrompt(), MapUserPrompt(task, dec, excerpt))
	if err != nil {
		return Mapping{}, nil, err
	}
	var mapping Mapping
	if fb := decode(text, &mapping); fb != nil {
		return FallbackMapping(m.cfg.Registry, dec), m.cfg.fellBack(StageMap, fb), nil
	}
	if len(mapping.MappedSteps) == 0 {
		return FallbackMapping(m.cfg.Registry, dec), m.cfg.fellBack(StageMap, &Fallback{Reason: "no mapped steps"}), nil
	}
	repairMapping(m.cfg.Registry, dec, &mapping)
	return mapping, nil, nil
}

func excerptQuery(task string, dec Decomposition) string {
	parts := []string{task, dec.Trigger.Type}
	for _, group := range [][]Activity{dec.DataSources, dec.ProcessingSteps, dec.Outputs} {
		for _, a := range group {
			parts = append(parts, a.Service, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func repairMapping(reg *catalog.Registry, dec Decomposition, m *Mapping) {
	hasTrigger := false
	for i := range m.MappedSteps {
		s := &m.MappedSteps[i]
		s.NodeTypeID = strings.TrimSpace(s.NodeTypeID)
		if _, ok := reg.Lookup(s.NodeTypeID); !ok {
			if s.Role == RoleTrigger {
				if def, ok := reg.TriggerFor(dec.Trigger.Type); ok {
					s.NodeTypeID = def.TypeID
				}
			} else if def, ok := resolveService(reg, s.ServiceLabel, s.Description); ok {
				s.NodeTypeID = def.TypeID
			} else if s.NodeTypeID == "" {
				s.NodeTypeID = UnresolvedType
			}
		}
		def, known := reg.Lookup(s.NodeTypeID)
		if _, ok := graph.ParseKind(string(s.Kind)); !ok || (known && def.HasCategory(catalog.CategoryTrigger) != (s.Kind == graph.KindTrigger)) {
			s.Kind = kindFor(def, known, s.Role)
		}
		if s.Kind == graph.KindTrigger {
			hasTrigger = true
		}
	}
	if !hasTrigger {
		m.MappedSteps = append([]MappedStep{triggerMapping(reg, dec.Trigger)}, m.MappedSteps...)
	}

	if m.AdditionalNodes == nil {
		m.AdditionalNodes = []AdditionalNode{}
	}
	for i := range m.AdditionalNodes {
		n := &m.AdditionalNodes[i]
		n.NodeTypeID = strings.TrimSpace(n.NodeTypeID)
		if _, ok := graph.ParseKind(string(n.Kind)); ok && n.Kind != graph.KindTrigger {
			continue
		}
		def, known := reg.Lookup(n.NodeTypeID)
		switch {
		case known && def.HasCategory(catalog.CategoryLogic):
			n.Kind = graph.KindLogic
		default:
			n.Kind = graph.KindTransform
		}
	}
}

// ArchitectureBuilder turns a Mapping into an ordered step plan.
type ArchitectureBuilder struct {
	cfg StageConfig
}

// NewArchitectureBuilder creates an ArchitectureBuilder.
func NewArchitectureBuilder(cfg StageConfig) *ArchitectureBuilder {
	return &ArchitectureBuilder{cfg: cfg}
}

// Build runs the stage. The returned steps are indexed from 1.
func (b *ArchitectureBuilder) Build(ctx context.Context, task string, m Mapping) ([]graph.Step, *Fallback, error) {
	text, err := b.cfg.complete(ctx, StageArchitect, ArchitectSystemPrompt(), ArchitectUserPrompt(task, m))
	if err != nil {
		return nil, nil, err
	}
	steps, fb := decodeSteps(text)
	if fb != nil {
		return FallbackArchitecture(b.cfg.Registry, m), b.cfg.fellBack(StageArchitect, fb), nil
	}
	return steps, nil, nil
}

// decodeSteps accepts {"steps":[...]} or a bare array, re-indexes and
// validates the result.
func decodeSteps(text string) ([]graph.Step, *Fallback) {
	raw, err := ParseResponse(text)
	if err != nil {
		return nil, &Fallback{Reason: err.Error()}
	}
	var wrapped struct {
		Steps []graph.Step `json:"steps"`
	}
	var steps []graph.Step
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Steps != nil {
		steps = wrapped.Steps
	} else if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, &Fallback{Reason: "unexpected shape: expected a steps array"}
	}
	if len(steps) == 0 {
		return nil, &Fallback{Reason: "no steps"}
	}
	graph.Reindex(steps)
	if err := graph.ValidateSteps(steps); err != nil {
		return nil, &Fallback{Reason: "invalid steps: " + err.Error()}
	}
	return steps, nil
}

// Optimizer simplifies a step plan.
type Optimizer struct {
	cfg StageConfig
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(cfg StageConfig) *Optimizer { return &Optimizer{cfg: cfg} }

// Optimize runs the stage. Output that drops the leading trigger, leaves an
// error handler without a step to guard, or stops guarding a step the input
// guarded is rejected in favour of OptimizeLocally.
func (o *Optimizer) Optimize(ctx context.Context, steps []graph.Step) ([]graph.Step, *Fallback, error) {
	text, err := o.cfg.complete(ctx, StageOptimize, OptimizeSystemPrompt(), OptimizeUserPrompt(steps))
	if err != nil {
		return nil, nil, err
	}
	out, fb := decodeSteps(text)
	if fb == nil {
		fb = checkOptimized(steps, out)
	}
	if fb != nil {
		return OptimizeLocally(steps), o.cfg.fellBack(StageOptimize, fb), nil
	}
	return out, nil, nil
}

func checkOptimized(in, out []graph.Step) *Fallback {
	if graph.HasTrigger(in) && !graph.HasTrigger(out) {
		return &Fallback{Reason: "optimized plan dropped the leading trigger"}
	}
	for i, s := range out {
		if s.Kind != graph.KindErrorHandler {
			continue
		}
		if i == 0 || !guardable(out[i-1]) {
			return &Fallback{Reason: fmt.Sprintf("error handler at step %d has no step to guard", s.Index)}
		}
	}
	matched := make([]bool, len(out))
	for _, g := range guardedSteps(in) {
		found := false
		for i := 0; i+1 < len(out); i++ {
			if matched[i] || out[i+1].Kind != graph.KindErrorHandler || !sameStep(g, out[i]) {
				continue
			}
			matched[i], found = true, true
			break
		}
		if !found {
			return &Fallback{Reason: fmt.Sprintf("optimized plan no longer guards step %d (%s)", g.Index, g.NodeTypeID)}
		}
	}
	return nil
}

// guardedSteps returns the steps directly followed by an error handler.
func guardedSteps(steps []graph.Step) []graph.Step {
	var out []graph.Step
	for i := 1; i < len(steps); i++ {
		if steps[i].Kind == graph.KindErrorHandler && guardable(steps[i-1]) {
			out = append(out, steps[i-1])
		}
	}
	return out
}

// sameStep reports whether b is a, possibly merged with its neighbours.
// OptimizeLocally joins merged descriptions with "; ".
func sameStep(a, b graph.Step) bool {
	return a.NodeTypeID == b.NodeTypeID && strings.Contains(b.Description, a.Description)
}

func guardable(s graph.Step) bool {
	return s.Kind != graph.KindErrorHandler && s.Kind != graph.KindTrigger
}
