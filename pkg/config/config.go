// Package config loads the pipeline's runtime configuration. Three-layer
// priority, lowest to highest: built-in defaults, an optional YAML file,
// then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aigenflow/pipeline/pkg/logging"
)

// Config is the root configuration object.
type Config struct {
	OutputDir      string        `yaml:"output_dir" env:"PIPELINE_OUTPUT_DIR" default:"./output"`
	MaxRetries     int           `yaml:"max_retries" env:"PIPELINE_MAX_RETRIES" default:"2"`
	TimeoutSeconds int           `yaml:"timeout_seconds" env:"PIPELINE_TIMEOUT_SECONDS" default:"120"`

	Cache    CacheConfig    `yaml:"cache"`
	Fallback FallbackConfig `yaml:"fallback"`
	Batch    BatchConfig    `yaml:"batch"`
	Summary  SummaryConfig  `yaml:"summary"`
	Budget   BudgetConfig   `yaml:"budget"`
	Logging  LoggingConfig  `yaml:"logging"`

	logger logging.Logger
}

// CacheConfig controls the response cache. By default entries live on disk
// under Root; setting RedisURL switches the backend to Redis so multiple
// pipeline instances can share one cache. ByteBudgetMB is loaded but not
// applied: the filesystem store always uses cache.NewManager's 500 MiB budget.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" env:"PIPELINE_CACHE_ENABLED" default:"true"`
	Root         string        `yaml:"root" env:"PIPELINE_CACHE_ROOT"`
	TTL          time.Duration `yaml:"ttl" env:"PIPELINE_CACHE_TTL" default:"24h"`
	ByteBudgetMB int64         `yaml:"byte_budget_mb" env:"PIPELINE_CACHE_BUDGET_MB" default:"500"`
	RedisURL     string        `yaml:"redis_url" env:"PIPELINE_CACHE_REDIS_URL"`
	RedisNamespace string      `yaml:"redis_namespace" env:"PIPELINE_CACHE_REDIS_NAMESPACE" default:"aigenflow-cache"`
}

// FallbackConfig controls the provider fallback chain.
type FallbackConfig struct {
	ProviderOrder           []string      `yaml:"provider_order" env:"PIPELINE_PROVIDER_ORDER" default:"claude,gemini,chatgpt,perplexity"`
	MaxRetries              int           `yaml:"max_retries" env:"PIPELINE_FALLBACK_MAX_RETRIES" default:"2"`
	MaxFallbacks            int           `yaml:"max_fallbacks" env:"PIPELINE_FALLBACK_MAX_FALLBACKS" default:"3"`
	CircuitBreakerEnabled   bool          `yaml:"circuit_breaker_enabled" env:"PIPELINE_CB_ENABLED" default:"true"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" env:"PIPELINE_CB_THRESHOLD" default:"5"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout" env:"PIPELINE_CB_TIMEOUT" default:"60s"`
}

// BatchConfig controls phase 2's bounded-concurrency fan-out.
type BatchConfig struct {
	Enabled      bool `yaml:"enabled" env:"PIPELINE_BATCH_ENABLED" default:"true"`
	MaxBatchSize int  `yaml:"max_batch_size" env:"PIPELINE_BATCH_MAX_SIZE" default:"5"`
}

// SummaryConfig controls the context-optimization gate.
type SummaryConfig struct {
	Enabled              bool    `yaml:"enabled" env:"PIPELINE_SUMMARY_ENABLED" default:"true"`
	TargetReductionRatio float64 `yaml:"target_reduction_ratio" env:"PIPELINE_SUMMARY_RATIO" default:"0.5"`
	ThresholdRatio       float64 `yaml:"threshold_ratio" env:"PIPELINE_SUMMARY_THRESHOLD" default:"0.8"`
	ProviderTag          string  `yaml:"provider_tag" env:"PIPELINE_SUMMARY_PROVIDER" default:"claude"`
	MaxRetries           int     `yaml:"max_retries" env:"PIPELINE_SUMMARY_MAX_RETRIES" default:"2"`
}

// BudgetConfig controls token-spend alerting.
type BudgetConfig struct {
	DailyBudget     float64 `yaml:"daily_budget" env:"PIPELINE_BUDGET_DAILY" default:"10"`
	WeeklyBudget    float64 `yaml:"weekly_budget" env:"PIPELINE_BUDGET_WEEKLY" default:"50"`
	MonthlyBudget   float64 `yaml:"monthly_budget" env:"PIPELINE_BUDGET_MONTHLY" default:"200"`
	AlertThresholds []int   `yaml:"alert_thresholds" env:"PIPELINE_BUDGET_ALERT_THRESHOLDS" default:"50,75,90,100"`
}

// LoggingConfig holds the structured logger settings. logging.New reads
// PIPELINE_LOG_LEVEL and PIPELINE_LOG_FORMAT from the environment itself;
// values set only in the YAML file do not reach it.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"PIPELINE_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"PIPELINE_LOG_FORMAT"`
}

// Default returns a Config populated entirely from built-in defaults.
func Default() *Config {
	return &Config{
		OutputDir:      "./output",
		MaxRetries:     2,
		TimeoutSeconds: 120,
		Cache: CacheConfig{
			Enabled:        true,
			TTL:            24 * time.Hour,
			ByteBudgetMB:   500,
			RedisNamespace: "aigenflow-cache",
		},
		Fallback: FallbackConfig{
			ProviderOrder:           []string{"claude", "gemini", "chatgpt", "perplexity"},
			MaxRetries:              2,
			MaxFallbacks:            3,
			CircuitBreakerEnabled:   true,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   60 * time.Second,
		},
		Batch: BatchConfig{Enabled: true, MaxBatchSize: 5},
		Summary: SummaryConfig{
			Enabled:              true,
			TargetReductionRatio: 0.5,
			ThresholdRatio:       0.8,
			ProviderTag:          "claude",
			MaxRetries:           2,
		},
		Budget: BudgetConfig{
			DailyBudget:     10,
			WeeklyBudget:    50,
			MonthlyBudget:   200,
			AlertThresholds: []int{50, 75, 90, 100},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// WithLogger attaches a logger used for configuration-loading diagnostics.
func (c *Config) WithLogger(l logging.Logger) *Config {
	c.logger = l
	return c
}

// LoadFromFile overlays a YAML file's contents onto c. A missing file is
// not an error; callers that want an optional override file should check
// os.IsNotExist themselves if they need to distinguish it.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if c.logger != nil {
		c.logger.Info("configuration loaded from file", map[string]interface{}{"path": path})
	}
	return nil
}

// LoadFromEnv overlays environment variables onto c. Env vars take
// precedence over both defaults and a loaded file.
func (c *Config) LoadFromEnv() error {
	loaded := 0

	if v := os.Getenv("PIPELINE_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
		loaded++
	}
	if v, ok := getenvInt("PIPELINE_MAX_RETRIES"); ok {
		c.MaxRetries = v
		loaded++
	}
	if v, ok := getenvInt("PIPELINE_TIMEOUT_SECONDS"); ok {
		c.TimeoutSeconds = v
		loaded++
	}

	if v, ok := getenvBool("PIPELINE_CACHE_ENABLED"); ok {
		c.Cache.Enabled = v
		loaded++
	}
	if v := os.Getenv("PIPELINE_CACHE_ROOT"); v != "" {
		c.Cache.Root = v
		loaded++
	}
	if v, ok := getenvDuration("PIPELINE_CACHE_TTL"); ok {
		c.Cache.TTL = v
		loaded++
	}
	if v, ok := getenvInt64("PIPELINE_CACHE_BUDGET_MB"); ok {
		c.Cache.ByteBudgetMB = v
		loaded++
	}
	if v := os.Getenv("PIPELINE_CACHE_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
		loaded++
	}
	if v := os.Getenv("PIPELINE_CACHE_REDIS_NAMESPACE"); v != "" {
		c.Cache.RedisNamespace = v
		loaded++
	}

	if v := os.Getenv("PIPELINE_PROVIDER_ORDER"); v != "" {
		c.Fallback.ProviderOrder = splitCSV(v)
		loaded++
	}
	if v, ok := getenvInt("PIPELINE_FALLBACK_MAX_RETRIES"); ok {
		c.Fallback.MaxRetries = v
		loaded++
	}
	if v, ok := getenvInt("PIPELINE_FALLBACK_MAX_FALLBACKS"); ok {
		c.Fallback.MaxFallbacks = v
		loaded++
	}
	if v, ok := getenvBool("PIPELINE_CB_ENABLED"); ok {
		c.Fallback.CircuitBreakerEnabled = v
		loaded++
	}
	if v, ok := getenvInt("PIPELINE_CB_THRESHOLD"); ok {
		c.Fallback.CircuitBreakerThreshold = v
		loaded++
	}
	if v, ok := getenvDuration("PIPELINE_CB_TIMEOUT"); ok {
		c.Fallback.CircuitBreakerTimeout = v
		loaded++
	}

	if v, ok := getenvBool("PIPELINE_BATCH_ENABLED"); ok {
		c.Batch.Enabled = v
		loaded++
	}
	if v, ok := getenvInt("PIPELINE_BATCH_MAX_SIZE"); ok {
		c.Batch.MaxBatchSize = v
		loaded++
	}

	if v, ok := getenvBool("PIPELINE_SUMMARY_ENABLED"); ok {
		c.Summary.Enabled = v
		loaded++
	}
	if v, ok := getenvFloat("PIPELINE_SUMMARY_RATIO"); ok {
		c.Summary.TargetReductionRatio = v
		loaded++
	}
	if v, ok := getenvFloat("PIPELINE_SUMMARY_THRESHOLD"); ok {
		c.Summary.ThresholdRatio = v
		loaded++
	}
	if v := os.Getenv("PIPELINE_SUMMARY_PROVIDER"); v != "" {
		c.Summary.ProviderTag = v
		loaded++
	}
	if v, ok := getenvInt("PIPELINE_SUMMARY_MAX_RETRIES"); ok {
		c.Summary.MaxRetries = v
		loaded++
	}

	if v, ok := getenvFloat("PIPELINE_BUDGET_DAILY"); ok {
		c.Budget.DailyBudget = v
		loaded++
	}
	if v, ok := getenvFloat("PIPELINE_BUDGET_WEEKLY"); ok {
		c.Budget.WeeklyBudget = v
		loaded++
	}
	if v, ok := getenvFloat("PIPELINE_BUDGET_MONTHLY"); ok {
		c.Budget.MonthlyBudget = v
		loaded++
	}
	if v := os.Getenv("PIPELINE_BUDGET_ALERT_THRESHOLDS"); v != "" {
		c.Budget.AlertThresholds = splitCSVInts(v)
		loaded++
	}

	if v := os.Getenv("PIPELINE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
		loaded++
	}
	if v := os.Getenv("PIPELINE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
		loaded++
	}

	if c.logger != nil {
		c.logger.Debug("configuration loaded from environment", map[string]interface{}{"vars_set": loaded})
	}
	return nil
}

// Validate checks invariants LoadFromEnv/LoadFromFile can't enforce on
// their own (bounds, non-empty ordering) and returns every violation found.
func (c *Config) Validate() error {
	var problems []string
	if c.MaxRetries < 0 {
		problems = append(problems, "max_retries must be >= 0")
	}
	if len(c.Fallback.ProviderOrder) == 0 {
		problems = append(problems, "fallback.provider_order must not be empty")
	}
	if c.Batch.MaxBatchSize <= 0 {
		problems = append(problems, "batch.max_batch_size must be > 0")
	}
	if c.Summary.TargetReductionRatio <= 0 || c.Summary.TargetReductionRatio >= 1 {
		problems = append(problems, "summary.target_reduction_ratio must be in (0, 1)")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getenvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func getenvInt64(key string) (int64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

func getenvFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func getenvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

func getenvDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	return d, err == nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCSVInts(v string) []int {
	parts := splitCSV(v)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
