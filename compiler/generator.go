// Package compiler turns a natural-language task into an automation
// workflow. A Generator runs four completion-backed stages (decompose, map,
// architect, optimize), repairs the resulting plan and assembles it into a
// graph.Workflow.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/wfgen/ai"
	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/graph"
	"github.com/GoCodeAlone/wfgen/observability/tracing"
	"github.com/GoCodeAlone/wfgen/progress"
)

// Generation outcomes reported to an Observer.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusError    = "error"
	StatusRejected = "rejected"
)

const maxNameWords = 6

// Observer receives timing and outcome measurements. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveStage(stage string, elapsed time.Duration, fellBack bool)
	ObserveGeneration(status string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration, bool)  {}
func (nopObserver) ObserveGeneration(string, time.Duration) {}

// GeneratorOption configures optional Generator behaviour.
type GeneratorOption func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithProgress sets the callback that receives every generation's progress
// events.
func WithProgress(fn progress.Func) GeneratorOption {
	return func(g *Generator) { g.progress = fn }
}

// WithGuardrails checks and sanitizes tasks before any completion call.
func WithGuardrails(gr *ai.Guardrails) GeneratorOption {
	return func(g *Generator) { g.guardrails = gr }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) GeneratorOption {
	return func(g *Generator) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithTracer sets the tracer used for generation and stage spans.
func WithTracer(t trace.Tracer) GeneratorOption {
	return func(g *Generator) { g.tracer = tracing.NewGenerationTracer(t) }
}

// WithExcerptLimit bounds the catalog excerpt sent to the mapping stage. A
// negative limit sends the whole catalog.
func WithExcerptLimit(n int) GeneratorOption {
	return func(g *Generator) { g.stage.ExcerptLimit = n }
}

// WithCompletionOptions sets the model, token limit and temperature of every
// completion request.
func WithCompletionOptions(model string, maxTokens int, temperature float64) GeneratorOption {
	return func(g *Generator) {
		g.stage.Model = model
		g.stage.MaxTokens = maxTokens
		g.stage.Temperature = temperature
	}
}

// WithRules sets the parameter rule table. Without it the built-in rules
// are used.
func WithRules(t *graph.RuleTable) GeneratorOption {
	return func(g *Generator) {
		g.rules = t
		g.rulesSet = true
	}
}

// WithLayout overrides the canvas layout.
func WithLayout(l graph.Layout) GeneratorOption {
	return func(g *Generator) { g.layout = &l }
}

// Generator runs the full pipeline. It is safe for concurrent use; each
// Generate call is independent.
type Generator struct {
	registry   *catalog.Registry
	stage      StageConfig
	assembler  *graph.Assembler
	guardrails *ai.Guardrails
	progress   progress.Func
	observer   Observer
	tracer     *tracing.GenerationTracer
	logger     *slog.Logger

	rules    *graph.RuleTable
	rulesSet bool
	layout   *graph.Layout

	decomposer *Decomposer
	mapper     *NodeMapper
	architect  *ArchitectureBuilder
	optimizer  *Optimizer
}

// NewGenerator creates a Generator over reg that makes its completion calls
// through provider.
func NewGenerator(reg *catalog.Registry, provider ai.Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		registry: reg,
		stage:    StageConfig{Registry: reg, Provider: provider},
		progress: progress.Nop,
		observer: nopObserver{},
		tracer:   tracing.NewGenerationTracer(nil),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.progress == nil {
		g.progress = progress.Nop
	}
	g.stage.Logger = g.logger

	if !g.rulesSet {
		rules, err := graph.DefaultRules()
		if err != nil {
			g.logger.Error("built-in parameter rules failed to load", "error", err)
		}
		g.rules = rules
	}
	aopts := []graph.AssemblerOption{graph.WithRules(g.rules), graph.WithLogger(g.logger)}
	if g.layout != nil {
		aopts = append(aopts, graph.WithLayout(*g.layout))
	}
	g.assembler = graph.NewAssembler(reg, aopts...)

	g.decomposer = NewDecomposer(g.stage)
	g.mapper = NewNodeMapper(g.stage)
	g.architect = NewArchitectureBuilder(g.stage)
	g.optimizer = NewOptimizer(g.stage)
	return g
}

// Registry returns the catalog the generator maps against.
func (g *Generator) Registry() *catalog.Registry { return g.registry }

// Generate compiles task into a workflow. It returns ErrEmptyTask or an
// *ai.GuardrailError before any completion call, a *StageError when a
// completion call fails or ctx ends, and otherwise a Result whose workflow
// passes graph.Check.
func (g *Generator) Generate(ctx context.Context, task string) (*Result, error) {
	return g.GenerateWithProgress(ctx, task, nil)
}

// GenerateWithProgress is Generate with an extra progress callback for this
// call only, reported after the generator-wide one.
func (g *Generator) GenerateWithProgress(ctx context.Context, task string, fn progress.Func) (res *Result, err error) {
	start := time.Now()
	requestID := uuid.NewString()
	report := progress.Multi(g.progress, fn)
	logger := g.logger.With("request_id", requestID)

	ctx, span := g.tracer.StartGeneration(ctx, requestID)
	defer func() {
		status := generationStatus(res, err)
		if err != nil {
			g.tracer.RecordError(span, err)
		} else {
			g.tracer.SetSuccess(span)
			span.SetAttributes(attribute.Int(tracing.AttrNodeCount, len(res.Workflow.Nodes)))
		}
		span.End()
		g.observer.ObserveGeneration(status, time.Since(start))
		logger.Info("generation finished", "status", status, "elapsed", time.Since(start))
	}()

	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}
	if g.guardrails != nil {
		task, err = g.guardrails.Sanitize(ctx, task)
		if err != nil {
			return nil, err
		}
	}

	res = &Result{RequestID: requestID}
	emit := func(stage, msg string, pct int) {
		g.emit(logger, report, progress.Event{RequestID: requestID, Stage: stage, Message: msg, Percent: pct})
	}

	emit(StageDecompose, "Analysing task", 0)
	dec, err := runStage(ctx, g, res, StageDecompose, func(ctx context.Context) (Decomposition, *Fallback, error) {
		return g.decomposer.Decompose(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	res.Decomposition = dec

	emit(StageMap, "Mapping to catalog nodes", 20)
	mapping, err := runStage(ctx, g, res, StageMap, func(ctx context.Context) (Mapping, *Fallback, error) {
		return g.mapper.Map(ctx, task, dec)
	})
	if err != nil {
		return nil, err
	}
	res.Mapping = mapping

	emit(StageArchitect, "Designing workflow steps", 40)
	steps, err := runStage(ctx, g, res, StageArchitect, func(ctx context.Context) ([]graph.Step, *Fallback, error) {
		return g.architect.Build(ctx, task, mapping)
	})
	if err != nil {
		return nil, err
	}

	emit(StageOptimize, "Optimizing workflow", 60)
	steps, err = runStage(ctx, g, res, StageOptimize, func(ctx context.Context) ([]graph.Step, *Fallback, error) {
		return g.optimizer.Optimize(ctx, steps)
	})
	if err != nil {
		return nil, err
	}

	emit(StageAssemble, "Assembling workflow graph", 80)
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageAssemble, Err: err}
	}
	_, aspan := g.tracer.StartStage(ctx, StageAssemble)
	assembleStart := time.Now()
	before := len(res.Fallbacks)
	g.assemble(logger, res, WorkflowName(task), steps)
	if len(res.Fallbacks) > before {
		g.tracer.MarkFallback(aspan, res.Fallbacks[len(res.Fallbacks)-1].Reason)
	}
	g.observer.ObserveStage(StageAssemble, time.Since(assembleStart), len(res.Fallbacks) > before)
	aspan.End()

	emit(StageComplete, "Workflow ready", 100)
	return res, nil
}

// AssembleSteps repairs and assembles a step plan without completion calls.
// The workflow in the returned Result always passes graph.Check.
func (g *Generator) AssembleSteps(name string, steps []graph.Step) *Result {
	res := &Result{RequestID: uuid.NewString()}
	g.assemble(g.logger.With("request_id", res.RequestID), res, name, steps)
	return res
}

func (g *Generator) assemble(logger *slog.Logger, res *Result, name string, steps []graph.Step) {
	steps, diags := graph.Normalize(g.registry, steps)
	if !graph.HasTrigger(steps) {
		res.Fallbacks = append(res.Fallbacks, Fallback{Stage: StageAssemble, Reason: "no trigger step survived"})
		logger.Warn("no trigger survived; using manual trigger graph", "stage", StageAssemble)
		steps = graph.ManualTriggerSteps(g.registry)
	}

	w, adiags := g.assembler.Assemble(name, steps)
	diags = append(diags, adiags...)
	if err := graph.Check(w, g.registry); err != nil {
		res.Fallbacks = append(res.Fallbacks, Fallback{Stage: StageAssemble, Reason: "assembled graph failed checks: " + err.Error()})
		logger.Warn("assembled graph failed checks; using manual trigger graph", "stage", StageAssemble, "error", err)
		steps = graph.ManualTriggerSteps(g.registry)
		w, adiags = g.assembler.Assemble(name, steps)
		diags = append(diags, adiags...)
	}
	for _, d := range diags {
		logger.Debug("assembly diagnostic", "code", d.Code, "step", d.Step, "node", d.Node, "message", d.Message)
	}
	res.Steps = steps
	res.Workflow = w
	res.Diagnostics = diags
}

// runStage runs one stage inside its span, records its fallback and checks
// for cancellation first.
func runStage[T any](ctx context.Context, g *Generator, res *Result, stage string,
	fn func(context.Context) (T, *Fallback, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, &StageError{Stage: stage, Err: err}
	}
	ctx, span := g.tracer.StartStage(ctx, stage)
	defer span.End()

	start := time.Now()
	v, fb, err := fn(ctx)
	g.observer.ObserveStage(stage, time.Since(start), fb != nil)
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			err = &StageError{Stage: stage, Err: err}
		}
		g.tracer.RecordError(span, err)
		return zero, err
	}
	if fb != nil {
		res.Fallbacks = append(res.Fallbacks, *fb)
		g.tracer.MarkFallback(span, fb.Reason)
	}
	return v, nil
}

func (g *Generator) emit(logger *slog.Logger, fn progress.Func, e progress.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("progress callback panicked", "stage", e.Stage, "panic", fmt.Sprint(r))
		}
	}()
	e.Time = time.Now()
	logger.Debug("stage boundary", "stage", e.Stage, "percent", e.Percent)
	fn(e)
}

func generationStatus(res *Result, err error) string {
	var ge *ai.GuardrailError
	switch {
	case errors.Is(err, ErrEmptyTask) || errors.As(err, &ge):
		return StatusRejected
	case err != nil:
		return StatusError
	case res != nil && res.UsedFallback():
		return StatusFallback
	}
	return StatusSuccess
}

// WorkflowName derives a display name from the first words of task.
func WorkflowName(task string) string {
	words := strings.FieldsFunc(task, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	if len(words) == 0 {
		return graph.DefaultWorkflowName
	}
	if len(words) > maxNameWords {
		words = words[:maxNameWords]
	}
	return cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
}
