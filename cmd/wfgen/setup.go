package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/GoCodeAlone/wfgen/ai"
	copilotai "github.com/GoCodeAlone/wfgen/ai/copilot"
	"github.com/GoCodeAlone/wfgen/ai/llm"
	"github.com/GoCodeAlone/wfgen/ai/ollama"
	"github.com/GoCodeAlone/wfgen/ai/openai"
	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/compiler"
	"github.com/GoCodeAlone/wfgen/config"
	"github.com/GoCodeAlone/wfgen/graph"
	"github.com/GoCodeAlone/wfgen/mock"
	"github.com/GoCodeAlone/wfgen/observability"
	"github.com/GoCodeAlone/wfgen/progress"
)

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// offlineProvider answers every stage with nothing usable, so each stage
// takes its catalog-only default. It backs `-provider mock`.
func offlineProvider() ai.Provider {
	return mock.Func(func(ai.CompletionRequest) (string, error) { return "", nil })
}

// cleanups runs registered release functions in reverse order.
type cleanups []func()

func (c *cleanups) add(fn func()) { *c = append(*c, fn) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// buildProvider registers every configured provider, selects one, and wraps
// it with the completion cache and the resilience layer.
func buildProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, done *cleanups) (ai.Provider, error) {
	if cfg.Provider == mock.Name {
		return offlineProvider(), nil
	}

	selector := ai.NewSelector()
	if cfg.Anthropic.APIKey != "" {
		c, err := llm.NewClient(llm.ClientConfig{
			APIKey:     cfg.Anthropic.APIKey,
			Model:      cfg.Anthropic.Model,
			BaseURL:    cfg.Anthropic.BaseURL,
			MaxTokens:  cfg.Completion.MaxTokens,
			HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		selector.Register(c)
	}
	if cfg.OpenAI.APIKey != "" {
		c, err := openai.NewClient(openai.ClientConfig{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			BaseURL:     cfg.OpenAI.BaseURL,
			MaxTokens:   cfg.Completion.MaxTokens,
			Temperature: float32(cfg.Completion.Temperature),
		})
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		selector.Register(c)
	}
	if cfg.Copilot.Enabled {
		c, err := copilotai.NewClient(copilotai.ClientConfig{CLIPath: cfg.Copilot.CLIPath, Model: cfg.Copilot.Model})
		if err != nil {
			return nil, fmt.Errorf("copilot provider: %w", err)
		}
		selector.Register(c)
	}
	if cfg.Ollama.Enabled {
		c, err := ollama.NewClient(ollama.ClientConfig{
			ServerURL:   cfg.Ollama.ServerURL,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Completion.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama provider: %w", err)
		}
		selector.Register(c)
	}

	p, err := selector.Select(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("select provider (registered: %s): %w", strings.Join(selector.Names(), ", "), err)
	}
	logger.Info("completion provider selected", "provider", p.Name())

	if cfg.Cache.Enabled {
		client, err := ai.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("completion cache: %w", err)
		}
		done.add(func() { _ = client.Close() })
		p = ai.NewCachedProvider(p, client, cfg.Cache, logger)
	}

	opts := []ai.ResilientOption{
		ai.WithTimeout(cfg.Completion.Timeout),
		ai.WithRetry(cfg.Retry),
		ai.WithBreaker(ai.NewCircuitBreaker(cfg.Breaker)),
		ai.WithRateLimit(cfg.Completion.RateLimit, cfg.Completion.Burst),
		ai.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, ai.WithObserver(metrics))
	}
	return ai.NewResilient(p, opts...), nil
}

// loadCatalog returns the configured catalog, or the embedded one.
func loadCatalog(cfg *config.Config) (*catalog.Registry, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.Catalog.Path)
}

// loadRules returns the configured rule table, or the embedded one.
func loadRules(cfg *config.Config) (*graph.RuleTable, error) {
	if cfg.Rules.Path == "" {
		return graph.DefaultRules()
	}
	return graph.LoadRulesFile(cfg.Rules.Path)
}

// buildProgress connects the configured external sinks. Each is wrapped with
// progress.Async so a slow broker never stalls a generation.
func buildProgress(cfg config.ProgressConfig, logger *slog.Logger, done *cleanups) (progress.Func, error) {
	var fns []progress.Func
	if cfg.NATSURL != "" {
		conn, err := progress.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		sink := progress.Async(progress.NewNATS(conn, cfg.NATSSubject, logger).Report, cfg.Buffer, logger)
		done.add(func() {
			sink.Close()
			conn.Close()
		})
		fns = append(fns, sink.Report)
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := progress.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		kafka := progress.NewKafka(producer, cfg.KafkaTopic, logger)
		sink := progress.Async(kafka.Report, cfg.Buffer, logger)
		done.add(func() {
			sink.Close()
			_ = kafka.Close()
		})
		fns = append(fns, sink.Report)
	}
	return progress.Multi(fns...), nil
}

// generatorDeps are the long-lived collaborators shared by every generator
// built during a process's lifetime.
type generatorDeps struct {
	cfg      *config.Config
	provider ai.Provider
	logger   *slog.Logger
	progress progress.Func
	metrics  *observability.Metrics
	guard    *ai.Guardrails
	tracer   trace.Tracer
}

// newGenerator loads the catalog and rules files and builds a Generator.
// It is called again whenever a watched file changes.
func (d generatorDeps) newGenerator() (*compiler.Generator, error) {
	reg, err := loadCatalog(d.cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	rules, err := loadRules(d.cfg)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	opts := []compiler.GeneratorOption{
		compiler.WithLogger(d.logger),
		compiler.WithRules(rules),
		compiler.WithExcerptLimit(d.cfg.Catalog.ExcerptLimit),
		compiler.WithCompletionOptions(d.cfg.Completion.Model, d.cfg.Completion.MaxTokens, d.cfg.Completion.Temperature),
		compiler.WithProgress(d.progress),
	}
	if d.guard != nil {
		opts = append(opts, compiler.WithGuardrails(d.guard))
	}
	if d.metrics != nil {
		opts = append(opts, compiler.WithObserver(d.metrics))
	}
	if d.tracer != nil {
		opts = append(opts, compiler.WithTracer(d.tracer))
	}
	return compiler.NewGenerator(reg, d.provider, opts...), nil
}

// setup loads configuration and builds the generator dependencies. The
// returned cleanups must be run when the command exits.
func setup(ctx context.Context, configPath string, override func(*config.Config), logOut io.Writer, withMetrics bool) (generatorDeps, *cleanups, error) {
	done := &cleanups{}
	cfg, err := config.Load(configPath)
	if err != nil {
		return generatorDeps{}, done, err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return generatorDeps{}, done, err
		}
	}
	logger := newLogger(cfg.Log, logOut)

	var metrics *observability.Metrics
	if withMetrics {
		metrics = observability.NewMetricsWithConfig(cfg.Metrics)
	}

	provider, err := buildProvider(ctx, cfg, logger, metrics, done)
	if err != nil {
		return generatorDeps{}, done, err
	}

	guard, err := ai.NewGuardrails(cfg.Guardrails)
	if err != nil {
		return generatorDeps{}, done, fmt.Errorf("guardrails: %w", err)
	}

	fn, err := buildProgress(cfg.Progress, logger, done)
	if err != nil {
		return generatorDeps{}, done, err
	}

	return generatorDeps{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		progress: fn,
		metrics:  metrics,
		guard:    guard,
	}, done, nil
}
