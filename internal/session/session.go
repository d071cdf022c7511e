// ABOUTME: Cookie-backed session middleware that assigns every API caller a stable session id
// ABOUTME: Re-signs the cookie on each request so the session slides forward like the cache TTL

package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCookieName = "session"
	DefaultMaxAge     = 7 * 24 * time.Hour
)

// Config configures a Manager.
type Config struct {
	CookieName string
	Secret     []byte
	MaxAge     time.Duration
	Secure     bool
}

// Manager issues and reads session cookies.
type Manager struct {
	signer *Signer
	name   string
	maxAge time.Duration
	secure bool
	newID  func() string
	logger *slog.Logger
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	signer, err := NewSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Manager{
		signer: signer,
		name:   name,
		maxAge: maxAge,
		secure: cfg.Secure,
		newID:  func() string { return uuid.New().String() },
		logger: logger.With("component", "session"),
	}, nil
}

type sessionKey struct{}

// WithSession returns a context carrying sessionID.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// FromContext returns the session id set by the middleware, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Resolve returns the session id carried by r, or a fresh one when the
// cookie is missing, tampered with, or expired. fresh reports which.
func (m *Manager) Resolve(r *http.Request) (id string, fresh bool) {
	c, err := r.Cookie(m.name)
	if err == nil && c.Value != "" {
		id, err := m.signer.Verify(c.Value)
		if err == nil {
			return id, false
		}
		m.logger.Debug("discarding session cookie", "error", err)
	}
	return m.newID(), true
}

// Middleware attaches the caller's session id to the request context and
// refreshes the cookie.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, fresh := m.Resolve(r)
		if fresh {
			m.logger.Debug("new session issued", "session", id)
		}

		token, err := m.signer.Sign(id, m.maxAge)
		if err != nil {
			m.logger.Error("signing session cookie", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.name,
			Value:    token,
			Path:     "/",
			MaxAge:   int(m.maxAge / time.Second),
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteStrictMode,
		})

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
	})
}
