// ABOUTME: Entry point for chat-relay, the streaming completion relay server
// ABOUTME: Provides serve, init, health, history and clear commands

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/chat-relay/internal/config"
	"github.com/2389/chat-relay/internal/gateway"
	"github.com/2389/chat-relay/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _           _                  _
  ___| |__   __ _| |_      _ __ ___| | __ _ _   _
 / __| '_ \ / _' | __|____| '__/ _ \ |/ _' | | | |
| (__| | | | (_| | ||_____| | |  __/ | (_| | |_| |
 \___|_| |_|\__,_|\__|    |_|  \___|_|\__,_|\__, |
                                            |___/
`

// getConfigPath returns the path to the relay config file.
// Priority: CHAT_RELAY_CONFIG env var > XDG_CONFIG_HOME/chat-relay/relay.yaml > ~/.config/chat-relay/relay.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHAT_RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chat-relay", "relay.yaml")
}

// getDataPath returns the path to the chat-relay data directory.
// Priority: XDG_DATA_HOME/chat-relay > ~/.local/share/chat-relay
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "chat-relay")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: chat-relay <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve               Start the relay server")
	fmt.Fprintln(w, "  init                Create a new config file interactively")
	fmt.Fprintln(w, "  health              Check relay readiness")
	fmt.Fprintln(w, "  history <session>   Print the cached conversation for a session")
	fmt.Fprintln(w, "  clear <session>     Drop the cached conversation for a session")
	fmt.Fprintln(w, "  version             Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "history":
		err = runHistory(ctx, os.Args[2:])
	case "clear":
		err = runClear(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s", cfg.Store.Backend)
	if cfg.Store.Backend == "sqlite" {
		gray.Printf(" (%s)", cfg.Store.Path)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Upstream:  %s ", cfg.Upstream.Provider)
	cyan.Println(cfg.Upstream.Model)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}

	fmt.Println()

	logger.Info("starting chat-relay",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println(string(body))
	return nil
}

// openStore loads the config and opens the store it names, for commands
// that inspect the cache directly.
func openStore(ctx context.Context) (store.Store, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return gateway.OpenStore(ctx, cfg.Store)
}

func sessionArg(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("exactly one session id is required")
	}
	return args[0], nil
}

func runHistory(ctx context.Context, args []string) error {
	sessionID, err := sessionArg(args)
	if err != nil {
		return err
	}

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	history, err := s.Load(ctx, store.MessagesKey(sessionID))
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	printHistory(os.Stdout, history)
	return nil
}

func printHistory(w io.Writer, history store.History) {
	if len(history) == 0 {
		fmt.Fprintln(w, "(no cached conversation)")
		return
	}
	for _, m := range history {
		var role string
		switch m.Role {
		case store.RoleSystem:
			role = color.HiBlackString("system   ")
		case store.RoleUser:
			role = color.GreenString("user     ")
		case store.RoleAssistant:
			role = color.CyanString("assistant")
		default:
			role = string(m.Role)
		}
		fmt.Fprintf(w, "%s  %s\n", role, m.Content)
	}
}

func runClear(ctx context.Context, args []string) error {
	sessionID, err := sessionArg(args)
	if err != nil {
		return err
	}

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Clear(ctx, store.MessagesKey(sessionID)); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	color.New(color.FgGreen).Printf("  ✓ Cleared %s\n", sessionID)
	return nil
}
