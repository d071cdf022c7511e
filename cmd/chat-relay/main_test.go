// ABOUTME: Tests for chat-relay CLI helpers
// ABOUTME: Covers config path resolution, init config generation and log output

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chat-relay/internal/config"
	"github.com/2389/chat-relay/internal/store"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CHAT_RELAY_CONFIG", "/etc/relay.yaml")
	assert.Equal(t, "/etc/relay.yaml", getConfigPath())

	t.Setenv("CHAT_RELAY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "chat-relay", "relay.yaml"), getConfigPath())
}

func TestRenderConfig_Parses(t *testing.T) {
	t.Setenv("CF_ACCOUNT_ID", "acct-123")
	secret, err := generateSecret()
	require.NoError(t, err)

	out := renderConfig(initAnswers{
		HTTPAddr:      "0.0.0.0:9000",
		Backend:       "redis",
		RedisAddr:     "cache:6379",
		Provider:      "workers-ai",
		AccountID:     "${CF_ACCOUNT_ID}",
		Model:         config.DefaultModel,
		SessionSecret: secret,
		SecureCookies: true,
		LogLevel:      "debug",
		LogFormat:     "json",
	})

	cfg, err := config.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "acct-123", cfg.Upstream.AccountID)
	assert.Equal(t, secret, cfg.Session.Secret)
	assert.True(t, cfg.Session.Secure)
	assert.True(t, cfg.Completion.Serialize())
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")

	answers := strings.Join([]string{
		path,     // config path
		"",       // http addr
		"memory", // backend
		"",       // provider
		"acct",   // account id
		"token",  // api token
		"",       // model
		"y",      // secure cookies
		"warn",   // log level
		"",       // log format
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(answers), &out))
	assert.Contains(t, out.String(), "Config written to "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "acct", cfg.Upstream.AccountID)
	assert.Equal(t, config.DefaultModel, cfg.Upstream.Model)
	assert.True(t, cfg.Session.Secure)
	assert.GreaterOrEqual(t, len(cfg.Session.Secret), config.MinSessionSecretBytes)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestRunInit_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0600))

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(path+"\nno\n"), &out))
	assert.Contains(t, out.String(), "Aborted.")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestRunInit_UnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	err := runInit(strings.NewReader(path+"\n\netcd\n"), &bytes.Buffer{})
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.With("component", "gateway").WithGroup("req").Info("hello", "id", 7)
	logger.Debug("hidden")

	line := buf.String()
	assert.Contains(t, line, "INF hello")
	assert.Contains(t, line, "component=gateway")
	assert.Contains(t, line, "req.id=7")
	assert.NotContains(t, line, "hidden")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestPrintHistory(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "(no cached conversation)\n", buf.String())

	buf.Reset()
	printHistory(&buf, store.History{
		{Role: store.RoleSystem, Content: "Be brief."},
		{Role: store.RoleUser, Content: "Hi"},
		{Role: store.RoleAssistant, Content: "Hello"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "user"))
	assert.True(t, strings.HasSuffix(lines[2], "Hello"))
}

func TestSessionArg(t *testing.T) {
	id, err := sessionArg([]string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = sessionArg(nil)
	assert.Error(t, err)
	_, err = sessionArg([]string{"a", "b"})
	assert.Error(t, err)
}
