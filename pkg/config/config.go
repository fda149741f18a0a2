package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/agora/pkg/artifacts"
	"github.com/Mindburn-Labs/agora/pkg/governance"
	"github.com/Mindburn-Labs/agora/pkg/llm"
	"github.com/Mindburn-Labs/agora/pkg/observability"
	"github.com/Mindburn-Labs/agora/pkg/store"
	"github.com/Mindburn-Labs/agora/pkg/votegate"
)

// EnvPrefix prefixes every environment override, e.g. AGORA_STORE_BACKEND.
const EnvPrefix = "agora"

// Limiter backends.
const (
	LimiterNone   = "none"
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Config holds the full runtime configuration.
type Config struct {
	LogLevel  string `yaml:"logLevel"  envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"logFormat" envconfig:"LOG_FORMAT"`

	Store      StoreConfig          `yaml:"store"`
	Artifacts  artifacts.Config     `yaml:"artifacts"`
	LLM        LLMConfig            `yaml:"llm"`
	Governance GovernanceConfig     `yaml:"governance"`
	Pipeline   PipelineConfig       `yaml:"pipeline"`
	Telemetry  observability.Config `yaml:"telemetry"`
}

// StoreConfig selects the record store. DSN is a file path for the file
// backend and a driver DSN for sqlite and postgres.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// LLMConfig configures the text generator. With Enabled false the pipeline
// runs on its offline fallbacks.
type LLMConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"baseUrl"     split_words:"true"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"      split_words:"true"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"   split_words:"true"`
}

// GovernanceConfig configures voting.
type GovernanceConfig struct {
	VoteScope    string          `yaml:"voteScope"    split_words:"true"`
	RecentWindow time.Duration   `yaml:"recentWindow" split_words:"true"`
	Limiter      LimiterConfig   `yaml:"limiter"`
	Rules        []votegate.Rule `yaml:"rules"        ignored:"true"`
}

// LimiterConfig configures per-user vote rate limiting.
type LimiterConfig struct {
	Backend       string `yaml:"backend"`
	PerMinute     int    `yaml:"perMinute"     split_words:"true"`
	Burst         int    `yaml:"burst"`
	RedisAddr     string `yaml:"redisAddr"     split_words:"true"`
	RedisPassword string `yaml:"redisPassword" split_words:"true"`
	RedisDB       int    `yaml:"redisDb"       split_words:"true"`
}

// Policy returns the token bucket parameters.
func (l LimiterConfig) Policy() governance.RatePolicy {
	return governance.RatePolicy{PerMinute: l.PerMinute, Burst: l.Burst}
}

// PipelineConfig configures the proposal pipeline.
type PipelineConfig struct {
	Threshold     int           `yaml:"threshold"`
	Interval      time.Duration `yaml:"interval"`
	Keywords      []string      `yaml:"keywords"`
	MinConfidence float64       `yaml:"minConfidence" split_words:"true"`
	AgentID       string        `yaml:"agentId"       split_words:"true"`
	Rationales    []string      `yaml:"rationales"`
	// OracleProbability drives the demo implementation oracle; zero never
	// reports anything as implemented.
	OracleProbability float64 `yaml:"oracleProbability" split_words:"true"`
	OracleSeed        int64   `yaml:"oracleSeed"        split_words:"true"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Store: StoreConfig{
			Backend: store.BackendFile,
			DSN:     "agora-data.json",
		},
		Artifacts: artifacts.Config{
			Backend: artifacts.BackendLocal,
			Root:    ".",
		},
		LLM: LLMConfig{
			BaseURL:     llm.DefaultBaseURL,
			Model:       "gpt-4o-mini",
			Timeout:     30 * time.Second,
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Governance: GovernanceConfig{
			VoteScope:    string(governance.ScopePerProposal),
			Limiter: LimiterConfig{
				Backend:   LimiterMemory,
				PerMinute: 30,
				Burst:     5,
			},
		},
		Pipeline: PipelineConfig{
			Threshold:     3,
			Interval:      time.Minute,
			MinConfidence: 0,
		},
		Telemetry: *observability.DefaultConfig(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// path is not empty, then AGORA_* environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		bad("logFormat must be text or json, got %q", c.LogFormat)
	}

	switch c.Store.Backend {
	case store.BackendMemory:
	case store.BackendFile, store.BackendSQLite, store.BackendPostgres:
		if c.Store.DSN == "" {
			bad("store.dsn is required for the %s backend", c.Store.Backend)
		}
	default:
		bad("unsupported store backend %q", c.Store.Backend)
	}

	switch c.Artifacts.Backend {
	case artifacts.BackendLocal, artifacts.BackendMemory:
	case artifacts.BackendS3:
		if c.Artifacts.S3.Bucket == "" {
			bad("artifacts.s3.bucket is required")
		}
	case artifacts.BackendGCS:
		if c.Artifacts.GCS.Bucket == "" {
			bad("artifacts.gcs.bucket is required")
		}
	default:
		bad("unsupported artifact backend %q", c.Artifacts.Backend)
	}

	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" {
			bad("llm.baseUrl is required when llm is enabled")
		}
		if c.LLM.Model == "" {
			bad("llm.model is required when llm is enabled")
		}
		if c.LLM.Timeout <= 0 {
			bad("llm.timeout must be positive")
		}
	}

	if _, err := governance.ParseVoteScope(c.Governance.VoteScope); err != nil {
		errs = append(errs, err)
	}
	if c.Governance.RecentWindow < 0 {
		bad("governance.recentWindow must not be negative")
	}
	if _, err := votegate.CompilePolicy(c.Governance.Rules); err != nil {
		errs = append(errs, err)
	}
	l := c.Governance.Limiter
	switch l.Backend {
	case LimiterNone:
	case LimiterMemory, LimiterRedis:
		if l.PerMinute <= 0 || l.Burst <= 0 {
			bad("governance.limiter perMinute and burst must be positive")
		}
		if l.Backend == LimiterRedis && l.RedisAddr == "" {
			bad("governance.limiter.redisAddr is required for the redis limiter")
		}
	default:
		bad("unsupported limiter backend %q", l.Backend)
	}

	if c.Pipeline.Threshold < 1 {
		bad("pipeline.threshold must be at least 1")
	}
	if c.Pipeline.Interval <= 0 {
		bad("pipeline.interval must be positive")
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		bad("pipeline.minConfidence must be within [0, 1]")
	}
	if c.Pipeline.OracleProbability < 0 || c.Pipeline.OracleProbability > 1 {
		bad("pipeline.oracleProbability must be within [0, 1]")
	}

	if c.Telemetry.Enabled && (c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1) {
		bad("telemetry.sampleRate must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("logLevel: %w", err)
	}
	return level, nil
}
