// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Keeps one JSON-encoded history row per key with a sliding expires_at column

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. A zero ttl selects DefaultTTL.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection for both cases. In-memory databases are per connection,
	// and concurrent writers on a file would otherwise race for the lock.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "ttl", ttl)
	return s, nil
}

// sqliteDSN applies busy_timeout on every connection the pool opens, so a
// writer in another process waits for the lock instead of failing with
// SQLITE_BUSY.
func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)"
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversation_cache (
			cache_key  TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversation_cache_expires
			ON conversation_cache(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Load retrieves the history stored under key.
// Expired rows are treated as missing; they are removed by PurgeExpired.
func (s *SQLiteStore) Load(ctx context.Context, key string) (History, error) {
	query := `SELECT value FROM conversation_cache WHERE cache_key = ? AND expires_at > ?`

	var value string
	err := s.db.QueryRowContext(ctx, query, key, s.now().UnixMilli()).Scan(&value)
	if err == sql.ErrNoRows {
		return History{}, nil
	}
	if err != nil {
		return nil, unavailable("load", err)
	}

	var history History
	if err := json.Unmarshal([]byte(value), &history); err != nil {
		return nil, unavailable("load", fmt.Errorf("decoding history for %q: %w", key, err))
	}
	if history == nil {
		history = History{}
	}
	return history, nil
}

// Save replaces the value under key and pushes its expiry ttl into the future.
// Uses INSERT OR REPLACE to handle both insert and update cases.
func (s *SQLiteStore) Save(ctx context.Context, key string, history History) error {
	value, err := json.Marshal(history.Clone())
	if err != nil {
		return unavailable("save", fmt.Errorf("encoding history: %w", err))
	}

	query := `
		INSERT OR REPLACE INTO conversation_cache (cache_key, value, updated_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	now := s.now()
	_, err = s.db.ExecContext(ctx, query,
		key,
		string(value),
		now.UTC().Format(time.RFC3339),
		now.Add(s.ttl).UnixMilli(),
	)
	if err != nil {
		return unavailable("save", err)
	}

	s.logger.Debug("saved history", "key", key, "messages", len(history), "size", len(value))
	return nil
}

// Clear deletes the row for key. Deleting a missing key is a no-op.
func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_cache WHERE cache_key = ?`, key); err != nil {
		return unavailable("clear", err)
	}
	s.logger.Debug("cleared history", "key", key)
	return nil
}

// PurgeExpired deletes every expired row and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_cache WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, unavailable("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return n, nil
}

// StartJanitor runs PurgeExpired every interval until ctx is cancelled.
func (s *SQLiteStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.PurgeExpired(ctx)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Warn("purging expired histories failed", "error", err)
					}
					continue
				}
				if n > 0 {
					s.logger.Debug("purged expired histories", "count", n)
				}
			}
		}
	}()
}
