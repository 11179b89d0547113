// Package storage provides the named-JSON-blob persistence adapter backed by
// an embedded sqlite database. Persistence is best-effort: callers keep their
// in-memory state authoritative and mirror it here after every mutation.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reflectlab/journal-platform/pkg/logger"
)

// Persisted blob keys.
const (
	KeyReflections        = "reflections"
	KeyChatSessions       = "chat-sessions"
	KeyActiveContext      = "active-context"
	KeySelectedReflection = "selected-reflection-id"
)

// Store persists named JSON blobs.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStore opens (or creates) the database at path and runs migrations.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	// WAL mode for concurrent access, busy timeout for write contention
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: log}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS blobs (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create blobs table: %w", err)
	}

	return tx.Commit()
}

// Save marshals v and upserts it under key.
func (s *Store) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal blob %q: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save blob %q: %w", key, err)
	}

	return nil
}

// Load unmarshals the blob stored under key into out. It returns false when
// the key is absent or its stored value is malformed; malformed data is
// logged and discarded so the caller falls back to its default state.
func (s *Store) Load(ctx context.Context, key string, out any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load blob %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), out); err != nil {
		s.logger.Warn("discarding malformed stored blob", "key", key, "error", err)
		if _, derr := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); derr != nil {
			s.logger.Warn("failed to delete malformed blob", "key", key, "error", derr)
		}
		return false, nil
	}

	return true, nil
}

// Delete removes the blob stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete blob %q: %w", key, err)
	}
	return nil
}

// Ping reports storage health for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
