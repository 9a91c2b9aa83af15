package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config is the tracing section of the wfgen config.
type Config struct {
	// Enabled turns on OTLP export. When false NewProvider returns a no-op
	// provider and the globals are left alone.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Endpoint is the OTLP HTTP collector, either host:port or a full URL
	// such as "https://collector:4318/v1/traces".
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Headers are sent with every export, e.g. a collector API key.
	Headers        map[string]string `yaml:"headers" json:"headers,omitempty"`
	ServiceName    string            `yaml:"service_name" json:"serviceName"`
	ServiceVersion string            `yaml:"service_version" json:"serviceVersion"`
	// Insecure disables TLS for a host:port endpoint. A URL endpoint takes
	// its transport from the scheme.
	Insecure bool `yaml:"insecure" json:"insecure"`
	// SampleRate is the root sampling ratio; 0 and values >= 1 sample everything.
	SampleRate float64 `yaml:"sample_rate" json:"sampleRate"`
}

// DefaultConfig returns a Config with export disabled.
func DefaultConfig() Config {
	return Config{
		Endpoint:    "localhost:4318",
		ServiceName: "wfgen",
		Insecure:    true,
		SampleRate:  1.0,
	}
}

// Sampler returns the sampler for the configured rate.
func (c Config) Sampler() sdktrace.Sampler {
	if c.SampleRate <= 0 || c.SampleRate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRate))
}

// Option adjusts NewProvider.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	local    bool
}

// WithExporter sends spans to e instead of the OTLP collector. It enables
// the provider regardless of Config.Enabled.
func WithExporter(e sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = e }
}

// WithoutGlobal keeps the provider out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.local = true }
}

// Provider owns the generation tracer and its export pipeline. A disabled
// Provider hands out a no-op tracer.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds the tracer used by the compiler and the HTTP API. When
// enabled it installs itself, with W3C trace-context and baggage propagation,
// as the global provider unless WithoutGlobal is given.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !cfg.Enabled && o.exporter == nil {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	exporter := o.exporter
	if exporter == nil {
		e, err := newExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		exporter = e
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.Sampler()),
	)
	if !o.local {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	return &Provider{tp: tp, tracer: tp.Tracer(TracerName)}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter for %s: %w", cfg.Endpoint, err)
	}
	return exporter, nil
}

// newResource describes this process. OTEL_RESOURCE_ATTRIBUTES is merged in,
// with the configured service name and version taking precedence.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithFromEnv(),
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersionKey.String(cfg.ServiceVersion)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p.tp != nil }

// Tracer returns the generation tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// TracerProvider returns the SDK provider, or nil when disabled.
func (p *Provider) TracerProvider() *sdktrace.TracerProvider { return p.tp }

// ForceFlush exports every ended span that is still buffered.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
