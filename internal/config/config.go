package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the investigator.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Inference    InferenceConfig    `yaml:"inference"`
	LogQuery     LogQueryConfig     `yaml:"logQuery"`
	IssueTracker IssueTrackerConfig `yaml:"issueTracker"`
	Execution    ExecutionConfig    `yaml:"execution"`
	Routing      RoutingConfig      `yaml:"routing"`
	Policy       PolicyConfig       `yaml:"policy"`
	Workers      WorkersConfig      `yaml:"workers"`
	Store        StoreConfig        `yaml:"store"`
	Cache        CacheConfig        `yaml:"cache"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// InferenceConfig configures the natural-language inference endpoint.
type InferenceConfig struct {
	Provider       string                 `yaml:"provider"`
	Model          string                 `yaml:"model"`
	APIKey         string                 `yaml:"apiKey"`
	BaseURL        string                 `yaml:"baseURL"`
	Timeout        time.Duration          `yaml:"timeout"`
	MaxAttempts    int                    `yaml:"maxAttempts"`
	InitialBackoff time.Duration          `yaml:"initialBackoff"`
	MaxBackoff     time.Duration          `yaml:"maxBackoff"`
	Stages         map[string]StageBudget `yaml:"stages"`
}

// StageBudget is the per-stage output size and sampling temperature.
type StageBudget struct {
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

// LogQueryConfig configures the log-query collaborator used by analysis.
type LogQueryConfig struct {
	BaseURL              string        `yaml:"baseURL"`
	QueryPath            string        `yaml:"queryPath"`
	Timeout              time.Duration `yaml:"timeout"`
	Lookback             time.Duration `yaml:"lookback"`
	Lookahead            time.Duration `yaml:"lookahead"`
	MaxConcurrentQueries int           `yaml:"maxConcurrentQueries"`
}

// IssueTrackerConfig configures issue creation for code-fix remediations.
type IssueTrackerConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Token   string        `yaml:"token"`
	Labels  []string      `yaml:"labels"`
	Timeout time.Duration `yaml:"timeout"`
}

// ExecutionConfig controls how auto-executable remediations are dispatched.
type ExecutionConfig struct {
	WebhookURL string        `yaml:"webhookURL"`
	DryRun     bool          `yaml:"dryRun"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RoutingConfig points at the execution routing policy.
type RoutingConfig struct {
	PolicyPath    string `yaml:"policyPath"`
	Watch         bool   `yaml:"watch"`
	DefaultRegion string `yaml:"defaultRegion"`
}

// PolicyConfig holds investigation gate policy switches.
type PolicyConfig struct {
	AlwaysInvestigateOperatorQueries bool `yaml:"alwaysInvestigateOperatorQueries"`
}

// WorkersConfig bounds concurrent investigations.
type WorkersConfig struct {
	MaxConcurrent int `yaml:"maxConcurrent"`
}

// StoreConfig configures the durable checkpoint and result store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls the in-process result cache and run claims.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_INV_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Workers.MaxConcurrent < 1 {
		return fmt.Errorf("workers.maxConcurrent must be at least 1")
	}
	if c.Inference.MaxAttempts < 1 {
		return fmt.Errorf("inference.maxAttempts must be at least 1")
	}
	if c.Inference.MaxBackoff > 0 && c.Inference.InitialBackoff > c.Inference.MaxBackoff {
		return fmt.Errorf("inference.initialBackoff must not exceed inference.maxBackoff")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint must be set when tracing is enabled")
	}
	return nil
}

// Budget returns the budget for a stage, falling back to conservative defaults.
func (c InferenceConfig) Budget(stage string) StageBudget {
	if b, ok := c.Stages[stage]; ok && b.MaxTokens > 0 {
		return b
	}
	if b, ok := defaultStageBudgets()[stage]; ok {
		return b
	}
	return StageBudget{MaxTokens: 1024, Temperature: 0.1}
}

func defaultStageBudgets() map[string]StageBudget {
	return map[string]StageBudget{
		"triage":      {MaxTokens: 1024, Temperature: 0.1},
		"analysis":    {MaxTokens: 2048, Temperature: 0.1},
		"diagnosis":   {MaxTokens: 2048, Temperature: 0.2},
		"remediation": {MaxTokens: 2048, Temperature: 0.2},
	}
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false, MaxSizeMB: 100, MaxBackups: 3},
		Inference: InferenceConfig{
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-5-20250929",
			Timeout:        60 * time.Second,
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     20 * time.Second,
			Stages:         defaultStageBudgets(),
		},
		LogQuery: LogQueryConfig{
			QueryPath:            "/api/v1/logs/query",
			Timeout:              30 * time.Second,
			Lookback:             30 * time.Minute,
			Lookahead:            5 * time.Minute,
			MaxConcurrentQueries: 4,
		},
		IssueTracker: IssueTrackerConfig{
			BaseURL: "https://api.github.com",
			Labels:  []string{"incident", "auto-generated"},
			Timeout: 10 * time.Second,
		},
		Execution: ExecutionConfig{DryRun: true, Timeout: 15 * time.Second},
		Routing:   RoutingConfig{PolicyPath: "configs/routing.yaml", DefaultRegion: "us-east-1"},
		Policy:    PolicyConfig{AlwaysInvestigateOperatorQueries: true},
		Workers:   WorkersConfig{MaxConcurrent: 4},
		Store:     StoreConfig{Path: "data/investigations.db"},
		Cache:     CacheConfig{Enabled: true, Size: 1024, TTL: 15 * time.Minute},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_INV_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_INV_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_INV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_INV_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_INV_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("MIRADOR_INV_MODEL"); v != "" {
		cfg.Inference.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Inference.APIKey == "" {
		cfg.Inference.APIKey = v
	}
	if v := os.Getenv("MIRADOR_INV_INFERENCE_API_KEY"); v != "" {
		cfg.Inference.APIKey = v
	}
	if v := os.Getenv("MIRADOR_INV_INFERENCE_BASE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_INV_INFERENCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Inference.Timeout = d
		}
	}
	if v := os.Getenv("MIRADOR_INV_INFERENCE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Inference.MaxAttempts = n
		}
	}
	if v := os.Getenv("MIRADOR_INV_LOG_QUERY_URL"); v != "" {
		cfg.LogQuery.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_INV_LOG_QUERY_PATH"); v != "" {
		cfg.LogQuery.QueryPath = v
	}
	if v := os.Getenv("MIRADOR_INV_ISSUE_TRACKER_URL"); v != "" {
		cfg.IssueTracker.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_INV_ISSUE_TRACKER_TOKEN"); v != "" {
		cfg.IssueTracker.Token = v
	}
	if v := os.Getenv("MIRADOR_INV_EXECUTION_WEBHOOK"); v != "" {
		cfg.Execution.WebhookURL = v
	}
	if v := os.Getenv("MIRADOR_INV_EXECUTION_DRY_RUN"); v != "" {
		cfg.Execution.DryRun = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_INV_ROUTING_POLICY"); v != "" {
		cfg.Routing.PolicyPath = v
	}
	if v := os.Getenv("MIRADOR_INV_ALWAYS_INVESTIGATE_QUERIES"); v != "" {
		cfg.Policy.AlwaysInvestigateOperatorQueries = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_INV_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers.MaxConcurrent = n
		}
	}
	if v := os.Getenv("MIRADOR_INV_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("MIRADOR_INV_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_INV_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("MIRADOR_INV_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
		cfg.Tracing.Enabled = true
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
