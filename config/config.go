// Package config loads wfgen's YAML configuration, applies environment
// overrides, and watches the files a running server reloads.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/wfgen/ai"
	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/observability"
	"github.com/GoCodeAlone/wfgen/observability/tracing"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root of a wfgen configuration file.
type Config struct {
	// Provider names the completion provider, or "auto".
	Provider string `yaml:"provider" json:"provider"`

	Anthropic  AnthropicConfig             `yaml:"anthropic" json:"anthropic"`
	OpenAI     OpenAIConfig                `yaml:"openai" json:"openai"`
	Ollama     OllamaConfig                `yaml:"ollama" json:"ollama"`
	Copilot    CopilotConfig               `yaml:"copilot" json:"copilot"`
	Completion CompletionConfig            `yaml:"completion" json:"completion"`
	Retry      ai.RetryConfig              `yaml:"retry" json:"retry"`
	Breaker    ai.BreakerConfig            `yaml:"breaker" json:"breaker"`
	Cache      ai.CacheConfig              `yaml:"cache" json:"cache"`
	Catalog    CatalogConfig               `yaml:"catalog" json:"catalog"`
	Rules      RulesConfig                 `yaml:"rules" json:"rules"`
	Guardrails ai.GuardrailConfig          `yaml:"guardrails" json:"guardrails"`
	Server     ServerConfig                `yaml:"server" json:"server"`
	Tracing    tracing.Config              `yaml:"tracing" json:"tracing"`
	Metrics    observability.MetricsConfig `yaml:"metrics" json:"metrics"`
	Progress   ProgressConfig              `yaml:"progress" json:"progress"`
	Log        LogConfig                   `yaml:"log" json:"log"`
}

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key" json:"-"`
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url" json:"baseURL"`
}

// OpenAIConfig configures the OpenAI client.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" json:"-"`
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url" json:"baseURL"`
}

// OllamaConfig configures a local Ollama server. It is only registered when
// enabled, since no credential signals that it is available.
type OllamaConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	ServerURL string `yaml:"server_url" json:"serverURL"`
	Model     string `yaml:"model" json:"model"`
}

// CopilotConfig configures the Copilot SDK provider.
type CopilotConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	CLIPath string `yaml:"cli_path" json:"cliPath"`
	Model   string `yaml:"model" json:"model"`
}

// CompletionConfig holds the per-call settings shared by every stage.
type CompletionConfig struct {
	Model       string        `yaml:"model" json:"model"`
	MaxTokens   int           `yaml:"max_tokens" json:"maxTokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	// RateLimit is calls per second across all stages; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" json:"rateLimit"`
	Burst     int     `yaml:"burst" json:"burst"`
}

// CatalogConfig selects the node catalog. An empty Path uses the embedded one.
type CatalogConfig struct {
	Path         string `yaml:"path" json:"path"`
	ExcerptLimit int    `yaml:"excerpt_limit" json:"excerptLimit"`
}

// RulesConfig selects the parameter rule table. An empty Path uses the
// embedded defaults.
type RulesConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ServerConfig configures `wfgen serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	// JWTSecret enables bearer-token auth on /api routes when set.
	JWTSecret    string        `yaml:"jwt_secret" json:"-"`
	RateLimit    float64       `yaml:"rate_limit" json:"rateLimit"`
	Burst        int           `yaml:"burst" json:"burst"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"readTimeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"writeTimeout"`
	// Watch reloads the catalog and rules files when they change.
	Watch bool `yaml:"watch" json:"watch"`
}

// ProgressConfig enables the external progress sinks.
type ProgressConfig struct {
	NATSURL      string   `yaml:"nats_url" json:"natsURL"`
	NATSSubject  string   `yaml:"nats_subject" json:"natsSubject"`
	KafkaBrokers []string `yaml:"kafka_brokers" json:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafka_topic" json:"kafkaTopic"`
	// Buffer is the queue length of each asynchronous sink.
	Buffer int `yaml:"buffer" json:"buffer"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Provider: ai.ProviderAuto,
		Completion: CompletionConfig{
			MaxTokens:   4096,
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Retry: ai.DefaultRetryConfig(),
		Cache: ai.CacheConfig{
			Prefix: ai.DefaultCachePrefix,
			TTL:    ai.DefaultCacheTTL,
		},
		Catalog:    CatalogConfig{ExcerptLimit: catalog.DefaultExcerptLimit},
		Guardrails: ai.DefaultGuardrailConfig(),
		Server: ServerConfig{
			Addr:         ":8080",
			RateLimit:    5,
			Burst:        10,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Tracing:  tracing.DefaultConfig(),
		Metrics:  observability.DefaultMetricsConfig(),
		Progress: ProgressConfig{NATSSubject: "wfgen.progress", KafkaTopic: "wfgen.progress", Buffer: 64},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// LoadFromFile reads a YAML configuration over Default. Unknown keys are an
// error.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load loads .env from the working directory if present, reads path (or
// Default when path is empty), applies environment overrides, and validates
// the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. Variables that are unset
// or empty leave the field alone.
func (c *Config) ApplyEnv() error {
	setString(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Provider, "WFGEN_PROVIDER")
	setString(&c.Completion.Model, "WFGEN_MODEL")
	setString(&c.Server.JWTSecret, "WFGEN_JWT_SECRET")
	setString(&c.Server.Addr, "WFGEN_ADDR")
	setString(&c.Progress.NATSURL, "WFGEN_NATS_URL")
	setString(&c.Log.Level, "WFGEN_LOG_LEVEL")
	setString(&c.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if v := os.Getenv("WFGEN_REDIS_ADDR"); v != "" {
		c.Cache.Address = v
		c.Cache.Enabled = true
	}
	if v := os.Getenv("WFGEN_KAFKA_BROKERS"); v != "" {
		c.Progress.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("WFGEN_OLLAMA_URL"); v != "" {
		c.Ollama.ServerURL = v
		c.Ollama.Enabled = true
	}
	if v := os.Getenv("WFGEN_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WFGEN_MAX_TOKENS: %w", err)
		}
		c.Completion.MaxTokens = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var providers = []string{
	ai.ProviderAuto, ai.ProviderAnthropic, ai.ProviderOpenAI,
	ai.ProviderCopilot, ai.ProviderOllama, "mock",
}

// Validate reports the first obviously invalid value.
func (c *Config) Validate() error {
	known := false
	for _, p := range providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	switch {
	case !known:
		return fmt.Errorf("config: unknown provider %q (want one of %s)", c.Provider, strings.Join(providers, ", "))
	case c.Completion.MaxTokens < 0:
		return fmt.Errorf("config: completion.max_tokens must not be negative")
	case c.Completion.Temperature < 0 || c.Completion.Temperature > 2:
		return fmt.Errorf("config: completion.temperature %v out of range [0, 2]", c.Completion.Temperature)
	case c.Completion.Timeout < 0:
		return fmt.Errorf("config: completion.timeout must not be negative")
	case c.Completion.RateLimit < 0 || c.Server.RateLimit < 0:
		return fmt.Errorf("config: rate_limit must not be negative")
	case c.Retry.MaxRetries < 0:
		return fmt.Errorf("config: retry.max_retries must not be negative")
	case c.Cache.Enabled && c.Cache.Address == "":
		return fmt.Errorf("config: cache.address is required when the cache is enabled")
	case c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1:
		return fmt.Errorf("config: tracing.sample_rate %v out of range [0, 1]", c.Tracing.SampleRate)
	case c.Progress.Buffer < 0:
		return fmt.Errorf("config: progress.buffer must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// WatchedFiles returns the external catalog and rules files, if any.
func (c *Config) WatchedFiles() []string {
	var files []string
	if c.Catalog.Path != "" {
		files = append(files, c.Catalog.Path)
	}
	if c.Rules.Path != "" {
		files = append(files, c.Rules.Path)
	}
	return files
}
