// ABOUTME: Configuration loading and parsing for fold-auth
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTokenTTL is the token lifetime when auth.token_ttl is not set.
const DefaultTokenTTL = 24 * time.Hour

// Database backend names
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config represents the complete fold-auth configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds storage configuration. SQLite holds both users and
// tokens; with the redis backend, tokens move to Redis while users stay in
// SQLite.
type DatabaseConfig struct {
	TokenBackend string `yaml:"token_backend"` // "sqlite" (default) or "redis"
	Path         string `yaml:"path"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisPrefix  string `yaml:"redis_prefix"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	BypassPrefixes []string      `yaml:"bypass_prefixes"`
	TokenTTL       time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenTTLRaw string `yaml:"token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file may omit.
func (c *Config) applyDefaults() {
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if len(c.Auth.BypassPrefixes) == 0 {
		c.Auth.BypassPrefixes = []string{"/api/v1/auth"}
	}
	if c.Database.TokenBackend == "" {
		c.Database.TokenBackend = BackendSQLite
	}
	if c.Database.RedisPrefix == "" {
		c.Database.RedisPrefix = "foldauth"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	switch c.Database.TokenBackend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case BackendRedis:
		if c.Database.RedisAddr == "" {
			return fmt.Errorf("database.redis_addr is required when token_backend is redis")
		}
		// Users always live in SQLite
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	default:
		return fmt.Errorf("database.token_backend must be %q or %q, got %q", BackendSQLite, BackendRedis, c.Database.TokenBackend)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func (c *Config) parseDurations() error {
	if c.Auth.TokenTTLRaw != "" {
		ttl, err := time.ParseDuration(c.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", c.Auth.TokenTTLRaw, err)
		}
		c.Auth.TokenTTL = ttl
	}
	return nil
}
