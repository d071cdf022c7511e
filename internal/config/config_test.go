// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, duration parsing and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"
  cors_origins:
    - "https://chat.example.com"

store:
  backend: "redis"
  ttl: "48h"
  redis:
    addr: "localhost:6379"
    password: "pw"
    db: 2

upstream:
  provider: "workers-ai"
  account_id: "acct-123"
  api_token: "cf-token"

session:
  cookie_name: "sid"
  secret: "`+testSecret+`"
  max_age: "24h"
  secure: true

completion:
  system_prompt: "Be brief."
  serialize_sessions: false
  max_message_bytes: 4096

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/internal/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://chat.example.com" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}

	if cfg.Store.Backend != "redis" {
		t.Errorf("Store.Backend = %q, want redis", cfg.Store.Backend)
	}
	if cfg.Store.TTL != 48*time.Hour {
		t.Errorf("Store.TTL = %v, want %v", cfg.Store.TTL, 48*time.Hour)
	}
	if cfg.Store.Redis.Addr != "localhost:6379" || cfg.Store.Redis.Password != "pw" || cfg.Store.Redis.DB != 2 {
		t.Errorf("Store.Redis = %+v", cfg.Store.Redis)
	}

	if cfg.Upstream.AccountID != "acct-123" {
		t.Errorf("Upstream.AccountID = %q, want %q", cfg.Upstream.AccountID, "acct-123")
	}
	if cfg.Upstream.Model != DefaultModel {
		t.Errorf("Upstream.Model = %q, want default %q", cfg.Upstream.Model, DefaultModel)
	}

	if cfg.Session.CookieName != "sid" {
		t.Errorf("Session.CookieName = %q, want sid", cfg.Session.CookieName)
	}
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Errorf("Session.MaxAge = %v, want %v", cfg.Session.MaxAge, 24*time.Hour)
	}
	if !cfg.Session.Secure {
		t.Error("Session.Secure = false, want true")
	}

	if cfg.Completion.SystemPrompt != "Be brief." {
		t.Errorf("Completion.SystemPrompt = %q", cfg.Completion.SystemPrompt)
	}
	if cfg.Completion.Serialize() {
		t.Error("Completion.Serialize() = true, want false")
	}
	if cfg.Completion.MaxMessageBytes != 4096 {
		t.Errorf("Completion.MaxMessageBytes = %d, want 4096", cfg.Completion.MaxMessageBytes)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
store:
  path: "./relay.db"
upstream:
  account_id: "acct"
session:
  secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Server.HTTPAddr", cfg.Server.HTTPAddr, DefaultHTTPAddr},
		{"Store.Backend", cfg.Store.Backend, "sqlite"},
		{"Store.TTL", cfg.Store.TTL, 7 * 24 * time.Hour},
		{"Store.JanitorInterval", cfg.Store.JanitorInterval, time.Hour},
		{"Upstream.Provider", cfg.Upstream.Provider, "workers-ai"},
		{"Upstream.Model", cfg.Upstream.Model, "@cf/meta/llama-3.1-8b-instruct"},
		{"Session.CookieName", cfg.Session.CookieName, "session"},
		{"Session.MaxAge", cfg.Session.MaxAge, 7 * 24 * time.Hour},
		{"Completion.SystemPrompt", cfg.Completion.SystemPrompt, "You are a helpful assistant."},
		{"Completion.Serialize", cfg.Completion.Serialize(), true},
		{"Logging.Level", cfg.Logging.Level, "info"},
		{"Logging.Format", cfg.Logging.Format, "text"},
		{"Metrics.Path", cfg.Metrics.Path, "/metrics"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CF_ACCOUNT", "acct-from-env")
	t.Setenv("TEST_CF_TOKEN", "token-from-env")
	t.Setenv("TEST_SESSION_SECRET", testSecret)

	configPath := writeConfig(t, `
store:
  backend: "memory"
upstream:
  account_id: "${TEST_CF_ACCOUNT}"
  api_token: "${TEST_CF_TOKEN}"
session:
  secret: "${TEST_SESSION_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.AccountID != "acct-from-env" {
		t.Errorf("Upstream.AccountID = %q, want %q", cfg.Upstream.AccountID, "acct-from-env")
	}
	if cfg.Upstream.APIToken != "token-from-env" {
		t.Errorf("Upstream.APIToken = %q, want %q", cfg.Upstream.APIToken, "token-from-env")
	}
	if cfg.Session.Secret != testSecret {
		t.Errorf("Session.Secret not expanded")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_SECRET_FOR_TEST")

	configPath := writeConfig(t, `
store:
  backend: "memory"
upstream:
  account_id: "acct"
session:
  secret: "${UNSET_SECRET_FOR_TEST}"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "session.secret") {
		t.Errorf("Load() error = %v, want session.secret failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/relay.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "store:\n  backend: [unclosed\n")
	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		content string
	}{
		{"store ttl", "store.ttl", "store:\n  backend: memory\n  ttl: \"a week\"\n"},
		{"janitor interval", "store.janitor_interval", "store:\n  backend: memory\n  janitor_interval: \"often\"\n"},
		{"session max age", "session.max_age", "session:\n  max_age: \"7d\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Load() expected error for %s", tt.field)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Load() error = %q, want mention of %s", err.Error(), tt.field)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:    StoreConfig{Backend: "sqlite", Path: "./relay.db", TTL: time.Hour},
			Upstream: UpstreamConfig{Provider: "workers-ai", AccountID: "acct"},
			Session:  SessionConfig{Secret: testSecret},
			Logging:  LoggingConfig{Format: "text"},
			Metrics:  MetricsConfig{Path: "/metrics"},
		}
	}

	tests := []struct {
		name          string
		mutate        func(*Config)
		wantErrSubstr string
	}{
		{"valid", func(*Config) {}, ""},
		{"sqlite needs path", func(c *Config) { c.Store.Path = "" }, "store.path is required"},
		{"redis needs addr", func(c *Config) { c.Store.Backend = "redis" }, "store.redis.addr is required"},
		{"memory needs nothing", func(c *Config) { c.Store = StoreConfig{Backend: "memory"} }, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "store.backend must be"},
		{"negative ttl", func(c *Config) { c.Store.TTL = -time.Hour }, "store.ttl must be positive"},
		{"workers ai needs account", func(c *Config) { c.Upstream.AccountID = "" }, "upstream.account_id is required"},
		{"openai needs model", func(c *Config) { c.Upstream = UpstreamConfig{Provider: "openai"} }, "upstream.model is required"},
		{"openai with model", func(c *Config) { c.Upstream = UpstreamConfig{Provider: "openai", Model: "gpt-4o-mini"} }, ""},
		{"unknown provider", func(c *Config) { c.Upstream.Provider = "bedrock" }, "upstream.provider must be"},
		{"short secret", func(c *Config) { c.Session.Secret = "short" }, "session.secret must be at least 32 bytes"},
		{"negative message limit", func(c *Config) { c.Completion.MaxMessageBytes = -1 }, "completion.max_message_bytes"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format must be"},
		{"metrics path", func(c *Config) { c.Metrics = MetricsConfig{Enabled: true, Path: "metrics"} }, "metrics.path must start with /"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single env var", "${FOO}", "bar"},
		{"env var with surrounding text", "prefix-${FOO}-suffix", "prefix-bar-suffix"},
		{"multiple env vars", "${FOO}/${BAZ}", "bar/qux"},
		{"no env vars", "no-vars-here", "no-vars-here"},
		{"unset env var", "${UNSET_VAR}", ""},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
