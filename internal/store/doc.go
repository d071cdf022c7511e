// Package store provides TTL-bounded persistence of conversation history.
//
// # Data Model
//
// A session's history is a JSON array of {role, content} objects stored as a
// single value under the key "<sessionId>:messages" (see MessagesKey). The
// first element, when present, is always the system message.
//
// # Backends
//
//   - SQLiteStore: modernc.org/sqlite, one row per key with an expires_at
//     column. Expired rows are invisible to Load and removed by PurgeExpired.
//   - RedisStore: go-redis, SET with EX so Redis expires keys natively.
//   - MockStore: in-memory, used by tests and the "memory" backend.
//
// # Semantics
//
// Save replaces the value wholesale and resets the expiration window
// (DefaultTTL, 7 days, unless configured). There is no merge: the last
// writer for a key wins. Load on a missing or expired key returns an empty
// History and no error. Clear is idempotent.
//
// # Error Handling
//
// Every backend failure is wrapped so that errors.Is(err, ErrStoreUnavailable)
// holds. A stored value that fails to decode is reported the same way rather
// than silently discarded. Stores never retry.
//
// # Testing
//
// Use NewMockStore(0) for unit tests. Set MockStore.Err (and optionally
// FailOps) to inject failures; SaveCount reports how many commits happened.
//
// Use NewSQLiteStore(":memory:", ttl) for integration tests with real SQLite.
package store
