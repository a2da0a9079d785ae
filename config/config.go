// Package config loads the configuration surface of nuvex: the YAML/env
// fields that decide which layers exist, how they connect, and how they log.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// SSLMode controls how the L3 connection negotiates TLS.
type SSLMode string

const (
	SSLOff     SSLMode = "off"
	SSLDefault SSLMode = "default"
	SSLCustom  SSLMode = "custom"
)

// PostgresSchema names the identifiers L3 validates and uses to build its
// DDL and prepared statements.
type PostgresSchema struct {
	TableName string `yaml:"tableName"`
	Columns   struct {
		Key   string `yaml:"key"`
		Value string `yaml:"value"`
	} `yaml:"columns"`
}

// PostgresConfig configures the L3 store layer. A zero-value Host means L3
// is not configured at all.
type PostgresConfig struct {
	Host                    string         `yaml:"host"`
	Port                    int            `yaml:"port"`
	Database                string         `yaml:"database"`
	User                    string         `yaml:"user"`
	Password                string         `yaml:"password"`
	SSL                     SSLMode        `yaml:"ssl"`
	Max                     int            `yaml:"max"`
	IdleTimeoutMillis       int            `yaml:"idleTimeoutMillis"`
	ConnectionTimeoutMillis int            `yaml:"connectionTimeoutMillis"`
	Schema                  PostgresSchema `yaml:"schema"`
}

// Configured reports whether enough fields are present to attempt an L3
// connection.
func (p PostgresConfig) Configured() bool {
	return p.Host != ""
}

// RedisConfig configures the L2 cache layer. An empty URL means L2 is not
// configured and the engine runs in two-layer mode.
type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// Configured reports whether L2 is present.
func (r RedisConfig) Configured() bool {
	return r.URL != ""
}

// MemoryConfig configures the L1 cache layer, which always exists.
type MemoryConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	MaxSize         int           `yaml:"maxSize"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// LoggingConfig routes the structured logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Logger  string `yaml:"logger"` // "console" or "json"
	Level   string `yaml:"level"`
}

// Config is the full configuration surface of spec.md §6.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Memory   MemoryConfig   `yaml:"memory"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the configuration surface with spec.md's stated defaults:
// a 10,000-entry L1 with no TTL override, no L2, no L3, info-level console
// logging.
func Default() Config {
	return Config{
		Postgres: PostgresConfig{
			Max: 10,
			Schema: PostgresSchema{
				TableName: "nuvex_store",
				Columns: struct {
					Key   string `yaml:"key"`
					Value string `yaml:"value"`
				}{Key: "key", Value: "value"},
			},
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Memory: MemoryConfig{
			MaxSize: 10000,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Logger:  "console",
			Level:   "info",
		},
	}
}

// Load reads a YAML configuration file (if path is non-empty and exists),
// layers NUVEX_* environment overrides on top, and returns the merged
// Config. A missing path is not an error — Default() plus env overrides is
// a valid configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			buf, err := os.ReadFile(path)
			if err != nil {
				return cfg, fmt.Errorf("config: reading %s: %w", path, err)
			}
			if err := yaml.Unmarshal(buf, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// applyEnv overlays NUVEX_* environment variables onto cfg; a variable that
// is set takes precedence over the value from the YAML file. Duration-shaped
// fields parse with str2duration so values
// like "30s" or "5m" work the same as in the YAML document.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s must be a boolean: %w", key, err)
		}
		*dst = b
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		d, err := str2duration.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s must be a duration (e.g. 30s, 5m): %w", key, err)
		}
		*dst = d
		return nil
	}

	str("NUVEX_POSTGRES_HOST", &cfg.Postgres.Host)
	if err := integer("NUVEX_POSTGRES_PORT", &cfg.Postgres.Port); err != nil {
		return err
	}
	str("NUVEX_POSTGRES_DATABASE", &cfg.Postgres.Database)
	str("NUVEX_POSTGRES_USER", &cfg.Postgres.User)
	str("NUVEX_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	if v, ok := os.LookupEnv("NUVEX_POSTGRES_SSL"); ok {
		cfg.Postgres.SSL = SSLMode(strings.ToLower(v))
	}
	if err := integer("NUVEX_POSTGRES_MAX", &cfg.Postgres.Max); err != nil {
		return err
	}
	if err := integer("NUVEX_POSTGRES_IDLE_TIMEOUT_MILLIS", &cfg.Postgres.IdleTimeoutMillis); err != nil {
		return err
	}
	if err := integer("NUVEX_POSTGRES_CONNECTION_TIMEOUT_MILLIS", &cfg.Postgres.ConnectionTimeoutMillis); err != nil {
		return err
	}
	str("NUVEX_POSTGRES_SCHEMA_TABLE_NAME", &cfg.Postgres.Schema.TableName)
	str("NUVEX_POSTGRES_SCHEMA_COLUMN_KEY", &cfg.Postgres.Schema.Columns.Key)
	str("NUVEX_POSTGRES_SCHEMA_COLUMN_VALUE", &cfg.Postgres.Schema.Columns.Value)

	str("NUVEX_REDIS_URL", &cfg.Redis.URL)
	if err := duration("NUVEX_REDIS_TTL", &cfg.Redis.TTL); err != nil {
		return err
	}

	if err := duration("NUVEX_MEMORY_TTL", &cfg.Memory.TTL); err != nil {
		return err
	}
	if err := integer("NUVEX_MEMORY_MAX_SIZE", &cfg.Memory.MaxSize); err != nil {
		return err
	}
	if err := duration("NUVEX_MEMORY_CLEANUP_INTERVAL", &cfg.Memory.CleanupInterval); err != nil {
		return err
	}

	if err := boolean("NUVEX_LOGGING_ENABLED", &cfg.Logging.Enabled); err != nil {
		return err
	}
	str("NUVEX_LOGGING_LOGGER", &cfg.Logging.Logger)
	str("NUVEX_LOGGING_LEVEL", &cfg.Logging.Level)

	return nil
}

// CleanupInterval returns the configured cleanup cadence, defaulting to
// TTL/24 per spec.md's memory.cleanupInterval effect.
func (c Config) CleanupInterval() time.Duration {
	if c.Memory.CleanupInterval > 0 {
		return c.Memory.CleanupInterval
	}
	if c.Memory.TTL > 0 {
		return c.Memory.TTL / 24
	}
	return time.Minute
}
