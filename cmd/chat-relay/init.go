// ABOUTME: Interactive config file generator for chat-relay init
// ABOUTME: Prompts for listener, store and upstream settings and writes a YAML config with a fresh session secret

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/chat-relay/internal/config"
)

// initAnswers holds the values collected by runInit.
type initAnswers struct {
	HTTPAddr      string
	Backend       string
	DBPath        string
	RedisAddr     string
	Provider      string
	AccountID     string
	APIToken      string
	Model         string
	SessionSecret string
	SecureCookies bool
	LogLevel      string
	LogFormat     string
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "chat-relay configuration setup")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	defaultDBPath := filepath.Join(getDataPath(), "cache.db")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, out, "HTTP address", config.DefaultHTTPAddr)

	fmt.Fprintln(out, "\n--- Conversation Store ---")
	a.Backend = prompt(reader, out, "Backend (sqlite/redis/memory)", config.DefaultStoreBackend)
	switch a.Backend {
	case "sqlite":
		a.DBPath = prompt(reader, out, "SQLite database path", defaultDBPath)
	case "redis":
		a.RedisAddr = prompt(reader, out, "Redis address", "localhost:6379")
	case "memory":
	default:
		return fmt.Errorf("unknown store backend %q", a.Backend)
	}

	fmt.Fprintln(out, "\n--- Upstream Configuration ---")
	a.Provider = prompt(reader, out, "Provider (workers-ai/openai)", config.DefaultProvider)
	switch a.Provider {
	case "workers-ai":
		a.AccountID = prompt(reader, out, "Cloudflare account ID", "${CF_ACCOUNT_ID}")
		a.APIToken = prompt(reader, out, "API token", "${CF_API_TOKEN}")
		a.Model = prompt(reader, out, "Model", config.DefaultModel)
	case "openai":
		a.APIToken = prompt(reader, out, "API token", "${OPENAI_API_KEY}")
		a.Model = prompt(reader, out, "Model", "gpt-4o-mini")
	default:
		return fmt.Errorf("unknown upstream provider %q", a.Provider)
	}

	fmt.Fprintln(out, "\n--- Sessions ---")
	a.SecureCookies = yes(prompt(reader, out, "Serve over HTTPS (secure cookies)?", "no"))
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	a.SessionSecret = secret

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, out, "Log format (text/json)", "text")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file carries the session secret
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if a.Backend == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(a.DBPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  chat-relay serve")

	return nil
}

// renderConfig produces the YAML config file for a.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# chat-relay configuration\n")
	cfg.WriteString("# Generated by chat-relay init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	cfg.WriteString("\n")

	cfg.WriteString("store:\n")
	cfg.WriteString(fmt.Sprintf("  backend: %q\n", a.Backend))
	switch a.Backend {
	case "sqlite":
		cfg.WriteString(fmt.Sprintf("  path: %q\n", a.DBPath))
		cfg.WriteString("  janitor_interval: \"1h\"\n")
	case "redis":
		cfg.WriteString("  redis:\n")
		cfg.WriteString(fmt.Sprintf("    addr: %q\n", a.RedisAddr))
	}
	cfg.WriteString("  ttl: \"168h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("upstream:\n")
	cfg.WriteString(fmt.Sprintf("  provider: %q\n", a.Provider))
	if a.AccountID != "" {
		cfg.WriteString(fmt.Sprintf("  account_id: %q\n", a.AccountID))
	}
	if a.APIToken != "" {
		cfg.WriteString(fmt.Sprintf("  api_token: %q\n", a.APIToken))
	}
	cfg.WriteString(fmt.Sprintf("  model: %q\n", a.Model))
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString(fmt.Sprintf("  secret: %q\n", a.SessionSecret))
	cfg.WriteString(fmt.Sprintf("  secure: %t\n", a.SecureCookies))
	cfg.WriteString("  max_age: \"168h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("completion:\n")
	cfg.WriteString(fmt.Sprintf("  system_prompt: %q\n", config.DefaultSystemPrompt))
	cfg.WriteString("  serialize_sessions: true\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	return cfg.String()
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
