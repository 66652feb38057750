// Package store provides persistence of per-browser view state.
//
// Only UI state is kept here (transcript cache, toggles, CSRF token). Users and
// conversations are owned by the quiz service.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ashureev/quizchat/internal/domain"
)

// Repository defines the interface for persisting session view state.
type Repository interface {
	// GetSession retrieves the state stored under key. Returns nil, nil if absent.
	GetSession(ctx context.Context, key string) (*domain.Session, error)

	// SaveSession creates or replaces the state stored under key.
	SaveSession(ctx context.Context, key string, session *domain.Session) error

	// DeleteSession removes the state stored under key.
	DeleteSession(ctx context.Context, key string) error

	// DeleteExpiredSessions removes state not seen within ttl.
	DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// SessionKey derives the storage key for a session token.
// Tokens are never written to disk in clear.
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
