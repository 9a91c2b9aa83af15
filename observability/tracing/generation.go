package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of generation spans.
const TracerName = "wfgen.compiler"

// Span and attribute names used by GenerationTracer.
const (
	SpanGenerate    = "wfgen.generate"
	SpanStagePrefix = "wfgen.stage."

	AttrRequestID      = "wfgen.request_id"
	AttrStage          = "wfgen.stage"
	AttrFallback       = "wfgen.fallback"
	AttrFallbackReason = "wfgen.fallback.reason"
	AttrNodeCount      = "wfgen.nodes"
)

// GenerationTracer creates spans around a generation and its stages.
type GenerationTracer struct {
	tracer trace.Tracer
}

// NewGenerationTracer creates a GenerationTracer. If tracer is nil, the
// global tracer provider is used.
func NewGenerationTracer(tracer trace.Tracer) *GenerationTracer {
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(TracerName)
	}
	return &GenerationTracer{tracer: tracer}
}

// StartGeneration begins the root span for one generation request.
func (g *GenerationTracer) StartGeneration(ctx context.Context, requestID string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, SpanGenerate,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(AttrRequestID, requestID)),
	)
}

// StartStage begins a child span for one pipeline stage.
func (g *GenerationTracer) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, SpanStagePrefix+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(AttrStage, stage)),
	)
}

// MarkFallback flags a stage span whose output was replaced by its default.
func (g *GenerationTracer) MarkFallback(span trace.Span, reason string) {
	span.SetAttributes(attribute.Bool(AttrFallback, true))
	span.AddEvent("fallback", trace.WithAttributes(attribute.String(AttrFallbackReason, reason)))
}

// RecordError records an error on the given span and sets the span status.
func (g *GenerationTracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks a span as successful.
func (g *GenerationTracer) SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
