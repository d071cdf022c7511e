// ABOUTME: Gateway wires store, upstream, sessions and completion into one HTTP server
// ABOUTME: Manages listener lifecycle, health endpoints and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/chat-relay/internal/completion"
	"github.com/2389/chat-relay/internal/config"
	"github.com/2389/chat-relay/internal/metrics"
	"github.com/2389/chat-relay/internal/session"
	"github.com/2389/chat-relay/internal/store"
	"github.com/2389/chat-relay/internal/upstream"
)

// Gateway serves the relay's HTTP API.
type Gateway struct {
	config     *config.Config
	store      store.Store
	completion *completion.Service
	sessions   *session.Manager
	metrics    *metrics.Metrics
	requests   *requestValidator
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// OpenStore creates the conversation cache selected by cfg.
// CHAT_RELAY_DB_PATH overrides the sqlite path.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		path := cfg.Path
		if envPath := os.Getenv("CHAT_RELAY_DB_PATH"); envPath != "" {
			path = envPath
		}
		s, err := store.NewSQLiteStore(path, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing redis store: %w", err)
		}
		return s, nil
	case "memory":
		return store.NewMockStore(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewUpstream creates the inference client selected by cfg.
func NewUpstream(cfg config.UpstreamConfig, logger *slog.Logger) (upstream.Client, error) {
	switch cfg.Provider {
	case "workers-ai":
		return upstream.NewWorkersAIClient(upstream.WorkersAIConfig{
			BaseURL:   cfg.BaseURL,
			AccountID: cfg.AccountID,
			APIToken:  cfg.APIToken,
			Model:     cfg.Model,
		}, logger)
	case "openai":
		return upstream.NewOpenAIClient(upstream.OpenAIConfig{
			BaseURL:  cfg.BaseURL,
			APIToken: cfg.APIToken,
			Model:    cfg.Model,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Provider)
	}
}

// New creates a Gateway from configuration, opening the store and the
// upstream client it names.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	up, err := NewUpstream(cfg.Upstream, logger)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initializing upstream: %w", err)
	}
	gw, err := NewWithComponents(cfg, s, up, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithComponents creates a Gateway around an existing store and upstream
// client. The Gateway takes ownership of s and closes it on Shutdown.
func NewWithComponents(cfg *config.Config, s store.Store, up upstream.Client, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sessions, err := session.NewManager(session.Config{
		CookieName: cfg.Session.CookieName,
		Secret:     []byte(cfg.Session.Secret),
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.Session.Secure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing sessions: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	svc := completion.New(s, up, completion.Options{
		SystemPrompt:      cfg.Completion.SystemPrompt,
		SerializeSessions: cfg.Completion.Serialize(),
		Metrics:           m,
	}, logger)

	gw := &Gateway{
		config:     cfg,
		store:      s,
		completion: svc,
		sessions:   sessions,
		metrics:    m,
		requests:   newRequestValidator(cfg.Completion.MaxMessageBytes),
		logger:     logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no session required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	if m != nil {
		mux.Handle(cfg.Metrics.Path, m.Handler())
		logger.Info("metrics endpoint enabled", "path", cfg.Metrics.Path)
	}

	api := func(h http.HandlerFunc) http.Handler {
		return corsMiddleware(cfg.Server.CORSOrigins)(sessions.Middleware(h))
	}
	mux.Handle("/api/completion", api(gw.handleCompletion))
	mux.Handle("/api/messages", api(gw.handleMessages))

	gw.handler = secureHeaders(mux)
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the fully wrapped HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Completion exposes the completion service.
func (g *Gateway) Completion() *completion.Service {
	return g.completion
}

// startServers starts the HTTP server in a goroutine, returning its error channel.
func (g *Gateway) startServers(httpLn net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal blocks until context is canceled or a server error occurs.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"store", g.config.Store.Backend,
		"provider", g.config.Upstream.Provider,
	)

	httpLn, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	if sq, ok := g.store.(*store.SQLiteStore); ok {
		sq.StartJanitor(ctx, g.config.Store.JanitorInterval)
	}

	errCh := g.startServers(httpLn)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs a graceful shutdown with a 5 second timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, letting in-flight streams finish until ctx
// expires, then closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the conversation store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%s)", g.config.Store.Backend)
}
