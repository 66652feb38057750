package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries    = 3
	writeRetryDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS view_sessions (
		session_key TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		state_json TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_view_sessions_last_seen ON view_sessions(last_seen_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves the view state stored under key.
func (s *SQLiteStore) GetSession(ctx context.Context, key string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state_json FROM view_sessions WHERE session_key = ?`, key)

	var stateJSON string
	err := row.Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(stateJSON), &session); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &session, nil
}

// SaveSession creates or replaces the view state stored under key.
func (s *SQLiteStore) SaveSession(ctx context.Context, key string, session *domain.Session) error {
	stateJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	query := `
	INSERT INTO view_sessions (session_key, username, state_json, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_key) DO UPDATE SET
		username = excluded.username,
		state_json = excluded.state_json,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	now := time.Now()
	lastSeen := session.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = now
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	return shared.RetryOnConflict(ctx, "save_session", writeRetries, writeRetryDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			key, session.Username, string(stateJSON),
			lastSeen.Unix(), createdAt.Unix(), now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// DeleteSession removes the view state stored under key.
func (s *SQLiteStore) DeleteSession(ctx context.Context, key string) error {
	return shared.RetryOnConflict(ctx, "delete_session", writeRetries, writeRetryDelay, func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM view_sessions WHERE session_key = ?`, key); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// DeleteExpiredSessions removes view state not seen within ttl.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()

	var deleted int64
	err := shared.RetryOnConflict(ctx, "delete_expired_sessions", writeRetries, writeRetryDelay, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM view_sessions WHERE last_seen_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete expired sessions: %w", err)
		}
		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
