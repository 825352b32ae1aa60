package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for mnemo-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3470"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL graph store)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (policy cache + event bus; optional)
	Redis RedisConfig `yaml:"redis"`

	// Lifecycle defaults applied to workspaces without a stored policy
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"mnemo"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"mnemo_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds Redis configuration. An empty host disables Redis:
// policy reads skip the cache and lifecycle events are logged only.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// LifecycleConfig holds the default lifecycle policy values used for
// workspaces that have never stored a policy of their own. Defaults are
// read once at load time and never persisted on behalf of a workspace.
type LifecycleConfig struct {
	PruneAfterDays         int     `yaml:"prune_after_days" env:"LIFECYCLE_PRUNE_AFTER_DAYS" env-default:"180"`
	ConsolidateThreshold   float64 `yaml:"consolidate_threshold" env:"LIFECYCLE_CONSOLIDATE_THRESHOLD" env-default:"0.85"`
	ArchiveAfterDays       int     `yaml:"archive_after_days" env:"LIFECYCLE_ARCHIVE_AFTER_DAYS" env-default:"365"`
	MaxMemoriesPerProject  int     `yaml:"max_memories_per_project" env:"LIFECYCLE_MAX_MEMORIES_PER_PROJECT" env-default:"5000"`
	RetainDecisionsForever bool    `yaml:"retain_decisions_forever" env:"LIFECYCLE_RETAIN_DECISIONS_FOREVER" env-default:"true"`
	RetainPatternsForever  bool    `yaml:"retain_patterns_forever" env:"LIFECYCLE_RETAIN_PATTERNS_FOREVER" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; configuration then comes entirely from
// environment variables and defaults.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
