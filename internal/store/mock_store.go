// ABOUTME: In-memory Store implementation used by tests and the "memory" backend
// ABOUTME: Honors the TTL contract and counts operations so tests can assert commit behavior

package store

import (
	"context"
	"sync"
	"time"
)

type mockEntry struct {
	history   History
	expiresAt time.Time
}

// MockStore is an in-memory Store implementation.
type MockStore struct {
	mu      sync.RWMutex
	entries map[string]mockEntry
	ttl     time.Duration

	// Now is the clock used for expiry; tests may replace it.
	Now func() time.Time

	// Err, when non-nil, is returned (wrapped as ErrStoreUnavailable) by
	// every operation whose name is listed in FailOps, or by all operations
	// when FailOps is empty.
	Err     error
	FailOps []string

	loads  int
	saves  int
	clears int
}

// NewMockStore creates a new MockStore. A zero ttl selects DefaultTTL.
func NewMockStore(ttl time.Duration) *MockStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MockStore{
		entries: make(map[string]mockEntry),
		ttl:     ttl,
		Now:     time.Now,
	}
}

func (m *MockStore) failure(op string) error {
	if m.Err == nil {
		return nil
	}
	if len(m.FailOps) == 0 {
		return unavailable(op, m.Err)
	}
	for _, o := range m.FailOps {
		if o == op {
			return unavailable(op, m.Err)
		}
	}
	return nil
}

// Load returns a copy of the stored history.
func (m *MockStore) Load(ctx context.Context, key string) (History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loads++
	if err := m.failure("load"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("load", err)
	}

	e, ok := m.entries[key]
	if !ok || !m.Now().Before(e.expiresAt) {
		return History{}, nil
	}
	return e.history.Clone(), nil
}

// Save stores a copy of history and resets the expiry.
func (m *MockStore) Save(ctx context.Context, key string, history History) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if err := m.failure("save"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("save", err)
	}

	m.entries[key] = mockEntry{
		history:   history.Clone(),
		expiresAt: m.Now().Add(m.ttl),
	}
	return nil
}

// Clear removes key.
func (m *MockStore) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clears++
	if err := m.failure("clear"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("clear", err)
	}
	delete(m.entries, key)
	return nil
}

// Ping reports the injected failure, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failure("ping")
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

// SaveCount returns how many times Save has been called.
func (m *MockStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// LoadCount returns how many times Load has been called.
func (m *MockStore) LoadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads
}

// ClearCount returns how many times Clear has been called.
func (m *MockStore) ClearCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clears
}
