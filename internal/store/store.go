// ABOUTME: Store interface and data types for conversation history persistence
// ABOUTME: Defines Message, History and the TTL-bounded key/value Store contract

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable wraps every failure of the backing store.
// Callers match it with errors.Is; the underlying cause is preserved.
var ErrStoreUnavailable = errors.New("store unavailable")

// DefaultTTL is the sliding expiration window applied on every Save.
const DefaultTTL = 7 * 24 * time.Hour

// Role identifies the author of a message.
type Role string

// Role constants
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single conversation entry. Treat as immutable once created.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an ordered list of messages, oldest first.
type History []Message

// Validate checks that every role is known and, when the history is
// non-empty, that the first message is the system message.
func (h History) Validate() error {
	if len(h) == 0 {
		return nil
	}
	if h[0].Role != RoleSystem {
		return fmt.Errorf("first message has role %q, want %q", h[0].Role, RoleSystem)
	}
	for i, m := range h {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
	}
	return nil
}

// Clone returns a copy that shares no backing array with h.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// MessagesKey returns the store key holding a session's message history.
func MessagesKey(sessionID string) string {
	return sessionID + ":messages"
}

// Store persists conversation history under a session key.
//
// Values are replaced wholesale; there is no merge and no optimistic
// concurrency check, so the last writer for a key wins.
type Store interface {
	// Load returns the stored history, or an empty History if the key is
	// missing or expired. A missing key is never an error.
	Load(ctx context.Context, key string) (History, error)

	// Save replaces the stored value and resets its expiration window.
	Save(ctx context.Context, key string, history History) error

	// Clear removes the entry. Clearing a missing key is not an error.
	Clear(ctx context.Context, key string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

// unavailable wraps err so that errors.Is(err, ErrStoreUnavailable) holds.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
