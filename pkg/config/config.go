package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for mirage-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Generation service (the external code-generation model)
	Generation GenerationConfig `yaml:"generation"`

	// Embedding service (optional; the deterministic embedder is used when disabled)
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Program catalog
	Catalog CatalogConfig `yaml:"catalog"`

	// Catalog database (PostgreSQL, only used when catalog backend is "postgres")
	Database DatabaseConfig `yaml:"database"`

	// Sandbox resource budgets
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Pipeline orchestration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Privacy disclosure limits
	Privacy PrivacyConfig `yaml:"privacy"`
}

// Generation provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Catalog backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// GenerationConfig holds settings for the external generation service.
type GenerationConfig struct {
	// Provider selects the client implementation: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"GENERATION_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"GENERATION_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"GENERATION_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"GENERATION_API_KEY"` // Secret - not in YAML

	// RequestTimeoutSeconds bounds a single generation call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"GENERATION_REQUEST_TIMEOUT_SECONDS" env-default:"120"`

	// MaxServiceRetries is the number of retries after a retryable failure
	// before falling back to the built-in template program.
	MaxServiceRetries int `yaml:"max_service_retries" env:"GENERATION_MAX_SERVICE_RETRIES" env-default:"2"`

	Temperature float64 `yaml:"temperature" env:"GENERATION_TEMPERATURE" env-default:"0.2"`

	// Circuit breaker over the generation endpoint.
	BreakerThreshold    int `yaml:"breaker_threshold" env:"GENERATION_BREAKER_THRESHOLD" env-default:"5"`
	BreakerResetSeconds int `yaml:"breaker_reset_seconds" env:"GENERATION_BREAKER_RESET_SECONDS" env-default:"30"`
}

// EmbeddingConfig holds settings for the optional embedding service.
// When disabled, fingerprint vectors come from the deterministic stats embedder.
type EmbeddingConfig struct {
	Enabled bool   `yaml:"enabled" env:"EMBEDDING_ENABLED" env-default:"false"`
	BaseURL string `yaml:"base_url" env:"EMBEDDING_BASE_URL" env-default:""`
	Model   string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey  string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
}

// EffectiveBaseURL returns the embedding URL, falling back to the generation URL.
func (c *EmbeddingConfig) EffectiveBaseURL(gen *GenerationConfig) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return gen.BaseURL
}

// EffectiveAPIKey returns the embedding key, falling back to the generation key.
func (c *EmbeddingConfig) EffectiveAPIKey(gen *GenerationConfig) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return gen.APIKey
}

// CatalogConfig holds program catalog settings.
type CatalogConfig struct {
	// Backend selects the store: "memory", "sqlite" or "postgres".
	Backend string `yaml:"backend" env:"CATALOG_BACKEND" env-default:"memory"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path" env:"CATALOG_SQLITE_PATH" env-default:"catalog.db"`

	// MatchThreshold is the minimum cosine similarity for program reuse.
	MatchThreshold float64 `yaml:"match_threshold" env:"CATALOG_MATCH_THRESHOLD" env-default:"0.8"`

	// BroadFallback enables the cross-schema scan when the exact
	// structural-hash bucket has no qualifying entry.
	BroadFallback bool `yaml:"broad_fallback" env:"CATALOG_BROAD_FALLBACK" env-default:"true"`

	// DedupeThreshold is the cosine similarity above which an upsert for the
	// same structural hash folds into the existing entry instead of inserting.
	DedupeThreshold float64 `yaml:"dedupe_threshold" env:"CATALOG_DEDUPE_THRESHOLD" env-default:"0.995"`
}

// DatabaseConfig holds PostgreSQL catalog database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"mirage"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"mirage_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// SandboxConfig holds execution budgets for untrusted generation programs.
type SandboxConfig struct {
	// TimeBudgetSeconds bounds a single program execution.
	TimeBudgetSeconds int `yaml:"time_budget_seconds" env:"SANDBOX_TIME_BUDGET_SECONDS" env-default:"10"`

	// MemoryBudgetMB bounds program memory. The wasm engine enforces this as
	// a page limit; the interpreter engine enforces it on output size.
	MemoryBudgetMB int `yaml:"memory_budget_mb" env:"SANDBOX_MEMORY_BUDGET_MB" env-default:"256"`

	// ScratchRoot is the directory under which per-execution scratch
	// directories are created. Defaults to the system temp dir.
	ScratchRoot string `yaml:"scratch_root" env:"SANDBOX_SCRATCH_ROOT" env-default:""`

	// MaxProgramBytes caps accepted program source size.
	MaxProgramBytes int `yaml:"max_program_bytes" env:"SANDBOX_MAX_PROGRAM_BYTES" env-default:"262144"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	// MaxAttempts bounds sandbox executions per run, counting the first.
	MaxAttempts int `yaml:"max_attempts" env:"PIPELINE_MAX_ATTEMPTS" env-default:"3"`

	// MinFidelityScore is the default acceptance threshold.
	MinFidelityScore float64 `yaml:"min_fidelity_score" env:"PIPELINE_MIN_FIDELITY_SCORE" env-default:"0.75"`

	// BatchConcurrency bounds concurrent runs in RunBatch.
	BatchConcurrency int `yaml:"batch_concurrency" env:"PIPELINE_BATCH_CONCURRENCY" env-default:"4"`
}

// PrivacyConfig holds disclosure limits enforced during fingerprint extraction.
type PrivacyConfig struct {
	// SuppressionFloor is the minimum number of occurrences a categorical
	// label needs before its frequency may be disclosed.
	SuppressionFloor int `yaml:"suppression_floor" env:"PRIVACY_SUPPRESSION_FLOOR" env-default:"2"`

	// MaxDisclosedCategories caps how many labels a profile may carry.
	MaxDisclosedCategories int `yaml:"max_disclosed_categories" env:"PRIVACY_MAX_DISCLOSED_CATEGORIES" env-default:"50"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// Environment variables override YAML values. Secrets (GENERATION_API_KEY,
// EMBEDDING_API_KEY, PGPASSWORD) must come from environment variables
// (yaml:"-" fields).
func Load() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration built from environment variables and
// defaults only, without requiring a config.yaml. Intended for embedding the
// engine as a library.
func Default() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize fills derived fields and validates ranges.
func (c *Config) normalize() error {
	if c.Sandbox.ScratchRoot == "" {
		c.Sandbox.ScratchRoot = filepath.Join(os.TempDir(), "mirage-engine")
	}
	return c.validate()
}

func (c *Config) validate() error {
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}

	switch c.Catalog.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("unknown catalog backend %q", c.Catalog.Backend)
	}

	if c.Catalog.MatchThreshold < 0 || c.Catalog.MatchThreshold > 1 {
		return fmt.Errorf("catalog match_threshold must be in [0,1], got %v", c.Catalog.MatchThreshold)
	}
	if c.Catalog.DedupeThreshold < 0 || c.Catalog.DedupeThreshold > 1 {
		return fmt.Errorf("catalog dedupe_threshold must be in [0,1], got %v", c.Catalog.DedupeThreshold)
	}
	if c.Pipeline.MinFidelityScore < 0 || c.Pipeline.MinFidelityScore > 1 {
		return fmt.Errorf("pipeline min_fidelity_score must be in [0,1], got %v", c.Pipeline.MinFidelityScore)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline max_attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.BatchConcurrency < 1 {
		return fmt.Errorf("pipeline batch_concurrency must be at least 1, got %d", c.Pipeline.BatchConcurrency)
	}
	if c.Sandbox.TimeBudgetSeconds < 1 {
		return fmt.Errorf("sandbox time_budget_seconds must be at least 1, got %d", c.Sandbox.TimeBudgetSeconds)
	}
	if c.Sandbox.MemoryBudgetMB < 1 {
		return fmt.Errorf("sandbox memory_budget_mb must be at least 1, got %d", c.Sandbox.MemoryBudgetMB)
	}
	if c.Privacy.SuppressionFloor < 1 {
		return fmt.Errorf("privacy suppression_floor must be at least 1, got %d", c.Privacy.SuppressionFloor)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string. The host is
// rewritten for Docker so a localhost catalog database stays reachable from
// inside a container.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
