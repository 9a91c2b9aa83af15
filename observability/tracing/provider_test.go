package tracing

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected default endpoint localhost:4318, got %s", cfg.Endpoint)
	}
	if cfg.ServiceName != "wfgen" {
		t.Errorf("expected default service name wfgen, got %s", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("expected export to be disabled by default")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected default sample rate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected default insecure to be true")
	}
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		got := Config{SampleRate: tt.rate}.Sampler().Description()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("Sampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()
	p, err := NewProvider(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Enabled() || p.TracerProvider() != nil {
		t.Error("disabled provider reports an SDK provider")
	}
	_, span := p.Tracer().Start(context.Background(), "ignored")
	if span.IsRecording() {
		t.Error("disabled provider span is recording")
	}
	span.End()
	if otel.GetTracerProvider() != before {
		t.Error("disabled provider replaced the global provider")
	}
	if err := p.ForceFlush(context.Background()); err != nil {
		t.Errorf("ForceFlush: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewProvider_ExportsGenerationSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig()
	cfg.ServiceName = "wfgen-test"
	cfg.ServiceVersion = "1.2.3"

	p, err := NewProvider(context.Background(), cfg, WithExporter(exporter), WithoutGlobal())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	if !p.Enabled() {
		t.Fatal("provider with an exporter should be enabled")
	}
	if otel.GetTracerProvider() == p.TracerProvider() {
		t.Error("WithoutGlobal provider was installed globally")
	}

	gt := NewGenerationTracer(p.Tracer())
	ctx, root := gt.StartGeneration(context.Background(), "req-1")
	_, stage := gt.StartStage(ctx, "decompose")
	stage.End()
	root.End()
	if err := p.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	for _, s := range spans {
		if s.InstrumentationScope.Name != TracerName {
			t.Errorf("span %s scope = %q, want %q", s.Name, s.InstrumentationScope.Name, TracerName)
		}
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(semconv.ServiceNameKey)] != "wfgen-test" || attrs[string(semconv.ServiceVersionKey)] != "1.2.3" {
		t.Errorf("resource attributes = %v", attrs)
	}
}

func TestNewExporter_Endpoints(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"host and port", Config{Endpoint: "localhost:4318", Insecure: true}},
		{"url", Config{Endpoint: "https://collector.example.com:4318/v1/traces"}},
		{"headers", Config{Endpoint: "localhost:4318", Headers: map[string]string{"x-api-key": "secret"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := newExporter(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("newExporter: %v", err)
			}
			if err := e.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown: %v", err)
			}
		})
	}
}
