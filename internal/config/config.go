// ABOUTME: Configuration loading and parsing for chat-relay
// ABOUTME: Supports YAML files with environment variable expansion, defaults and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultHTTPAddr        = "127.0.0.1:8787"
	DefaultStoreBackend    = "sqlite"
	DefaultStoreTTL        = 7 * 24 * time.Hour
	DefaultJanitorInterval = time.Hour
	DefaultProvider        = "workers-ai"
	DefaultModel           = "@cf/meta/llama-3.1-8b-instruct"
	DefaultCookieName      = "session"
	DefaultSessionMaxAge   = 7 * 24 * time.Hour
	DefaultSystemPrompt    = "You are a helpful assistant."
	DefaultMetricsPath     = "/metrics"
	MinSessionSecretBytes  = 32
)

// Config represents the complete chat-relay configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Session    SessionConfig    `yaml:"session"`
	Completion CompletionConfig `yaml:"completion"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr    string   `yaml:"http_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StoreConfig selects and configures the conversation cache backend
type StoreConfig struct {
	Backend string      `yaml:"backend"` // sqlite, redis, memory
	Path    string      `yaml:"path"`    // sqlite database file
	Redis   RedisConfig `yaml:"redis"`

	TTL             time.Duration `yaml:"-"`
	JanitorInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TTLRaw             string `yaml:"ttl"`
	JanitorIntervalRaw string `yaml:"janitor_interval"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// UpstreamConfig holds the inference provider settings
type UpstreamConfig struct {
	Provider  string `yaml:"provider"` // workers-ai, openai
	BaseURL   string `yaml:"base_url"`
	AccountID string `yaml:"account_id"`
	APIToken  string `yaml:"api_token"`
	Model     string `yaml:"model"`
}

// SessionConfig holds the session cookie settings
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	Secret     string        `yaml:"secret"`
	Secure     bool          `yaml:"secure"`
	MaxAge     time.Duration `yaml:"-"`
	MaxAgeRaw  string        `yaml:"max_age"`
}

// CompletionConfig holds completion behavior settings
type CompletionConfig struct {
	SystemPrompt      string `yaml:"system_prompt"`
	SerializeSessions *bool  `yaml:"serialize_sessions"`
	MaxMessageBytes   int    `yaml:"max_message_bytes"`
}

// Serialize reports whether per-session serialization is on (default true).
func (c CompletionConfig) Serialize() bool {
	return c.SerializeSessions == nil || *c.SerializeSessions
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML, applying env expansion, durations, defaults and validation.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
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

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Store.TTL == 0 {
		c.Store.TTL = DefaultStoreTTL
	}
	if c.Store.JanitorInterval == 0 {
		c.Store.JanitorInterval = DefaultJanitorInterval
	}
	if c.Upstream.Provider == "" {
		c.Upstream.Provider = DefaultProvider
	}
	if c.Upstream.Model == "" && c.Upstream.Provider == "workers-ai" {
		c.Upstream.Model = DefaultModel
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Session.MaxAge == 0 {
		c.Session.MaxAge = DefaultSessionMaxAge
	}
	if c.Completion.SystemPrompt == "" {
		c.Completion.SystemPrompt = DefaultSystemPrompt
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be sqlite, redis or memory, got %q", c.Store.Backend)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must be positive")
	}

	switch c.Upstream.Provider {
	case "workers-ai":
		if c.Upstream.AccountID == "" {
			return fmt.Errorf("upstream.account_id is required for workers-ai")
		}
	case "openai":
		if c.Upstream.Model == "" {
			return fmt.Errorf("upstream.model is required for openai")
		}
	default:
		return fmt.Errorf("upstream.provider must be workers-ai or openai, got %q", c.Upstream.Provider)
	}

	if len(c.Session.Secret) < MinSessionSecretBytes {
		return fmt.Errorf("session.secret must be at least %d bytes", MinSessionSecretBytes)
	}

	if c.Completion.MaxMessageBytes < 0 {
		return fmt.Errorf("completion.max_message_bytes must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Store.TTLRaw != "" {
		cfg.Store.TTL, err = time.ParseDuration(cfg.Store.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing store.ttl %q: %w", cfg.Store.TTLRaw, err)
		}
	}

	if cfg.Store.JanitorIntervalRaw != "" {
		cfg.Store.JanitorInterval, err = time.ParseDuration(cfg.Store.JanitorIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing store.janitor_interval %q: %w", cfg.Store.JanitorIntervalRaw, err)
		}
	}

	if cfg.Session.MaxAgeRaw != "" {
		cfg.Session.MaxAge, err = time.ParseDuration(cfg.Session.MaxAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing session.max_age %q: %w", cfg.Session.MaxAgeRaw, err)
		}
	}

	return nil
}
