// Package config loads gateway configuration from config.yaml and the
// environment. Environment variables override YAML values; secrets come
// only from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the SQL gateway.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	Lock     LockConfig     `yaml:"lock"`
	LLM      LLMConfig      `yaml:"llm"`
	Patterns PatternsConfig `yaml:"patterns"`
	Query    QueryConfig    `yaml:"query"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"sqlagent"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"sqlagent"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	Schema         string `yaml:"schema" env:"PGSCHEMA" env-default:"public"`
	// DescriptionsPath points at an optional YAML file mapping table name
	// to a description included in generation prompts.
	DescriptionsPath string `yaml:"descriptions_path" env:"SCHEMA_DESCRIPTIONS_PATH" env-default:""`
}

// URL builds the pgx connection URL.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig holds the optional Redis connection. An empty URL runs the
// gateway without Redis: caching falls back per CacheConfig.Backend and
// the request lock fails open.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL" env-default:""`
}

// CacheConfig holds exact and semantic cache settings.
type CacheConfig struct {
	// Backend selects the storage layer: memory, disk, or redis.
	// Empty picks redis when REDIS_URL is set, memory otherwise.
	Backend string `yaml:"backend" env:"CACHE_BACKEND" env-default:""`
	// Dir is the disk backend's root directory.
	Dir string `yaml:"dir" env:"CACHE_DIR" env-default:".sqlagent/cache"`
	// TTL is the exact cache's entry lifetime.
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1h"`
	// SemanticTTL is the semantic cache's entry lifetime.
	SemanticTTL time.Duration `yaml:"semantic_ttl" env:"CACHE_SEMANTIC_TTL" env-default:"24h"`
	// SimilarityThreshold is the minimum cosine similarity for a semantic hit.
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"CACHE_SIMILARITY_THRESHOLD" env-default:"0.90"`
	// CleanupInterval drives the periodic expired-entry purge. Zero disables it.
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CACHE_CLEANUP_INTERVAL" env-default:"10m"`
}

// LockConfig holds request lock settings.
type LockConfig struct {
	TTL time.Duration `yaml:"ttl" env:"LOCK_TTL" env-default:"30s"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	Provider       string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint       string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	Model          string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	EmbeddingModel string `yaml:"embedding_model" env:"LLM_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey         string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	MaxTokens      int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2000"`
}

// PatternsConfig holds error pattern store settings.
type PatternsConfig struct {
	Path     string        `yaml:"path" env:"PATTERNS_PATH" env-default:".sqlagent/patterns.json"`
	StaleAge time.Duration `yaml:"stale_age" env:"PATTERNS_STALE_AGE" env-default:"720h"`
}

// QueryConfig holds validation and execution settings.
type QueryConfig struct {
	Timeout        time.Duration `yaml:"timeout" env:"QUERY_TIMEOUT" env-default:"30s"`
	MaxRows        int           `yaml:"max_rows" env:"QUERY_MAX_ROWS" env-default:"1000"`
	MaxCorrections int           `yaml:"max_corrections" env:"QUERY_MAX_CORRECTIONS" env-default:"2"`
	// AllowedFunctionsStr extends or replaces the default function
	// whitelist; comma-separated, empty keeps the defaults.
	AllowedFunctionsStr string `yaml:"allowed_functions" env:"QUERY_ALLOWED_FUNCTIONS" env-default:""`
	// AllowedFunctions is parsed from AllowedFunctionsStr at load time.
	AllowedFunctions []string `yaml:"-"`
}

// Load reads configuration from config.yaml (if present) and the
// environment.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.parseComplexFields()
	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	if c.Query.AllowedFunctionsStr != "" {
		for _, name := range strings.Split(c.Query.AllowedFunctionsStr, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Query.AllowedFunctions = append(c.Query.AllowedFunctions, name)
			}
		}
	}
}
