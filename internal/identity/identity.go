// Package identity restores the browser's quiz service session on every request
// and drives login, registration and logout.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/store"
)

type contextKey int

const (
	sessionKey contextKey = iota
	expiredKey
)

// FromContext returns the session attached by Middleware.
// It never returns nil; requests without a session get an anonymous one.
func FromContext(ctx context.Context) *domain.Session {
	if v, ok := ctx.Value(sessionKey).(*domain.Session); ok && v != nil {
		return v
	}
	return &domain.Session{State: domain.StateAnonymous}
}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// ExpiredFromContext reports whether the request carried a token the quiz service rejected.
func ExpiredFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(expiredKey).(bool)
	return v
}

// Sessions ties browser cookies to stored view state.
type Sessions struct {
	repo    store.Repository
	cookies *CookieManager
	auth    *Authenticator
}

// NewSessions creates a session manager.
func NewSessions(repo store.Repository, cookies *CookieManager, auth *Authenticator) *Sessions {
	return &Sessions{repo: repo, cookies: cookies, auth: auth}
}

// Middleware restores the session for the request's cookie and stores it in the context.
//
// Stored view state is used when present. Otherwise the token is validated with a
// round trip to the quiz service; a rejected token removes the cookie and marks the
// request as expired, while an unreachable service leaves the cookie in place.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token, ok := s.cookies.Get(r)
		if !ok {
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, FromContext(ctx))))
			return
		}

		sess, err := s.restore(ctx, token)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrSessionExpired):
			slog.Info("Stored session token rejected", "ip", IPFromRequest(r))
			if derr := s.cookies.Delete(w); derr != nil {
				slog.Error("Failed to delete session cookie", "error", derr)
			}
			ctx = context.WithValue(ctx, expiredKey, true)
			sess = nil
		default:
			slog.Warn("Failed to restore session", "ip", IPFromRequest(r), "error", err)
			sess = nil
		}

		if sess == nil {
			sess = &domain.Session{State: domain.StateAnonymous}
		}
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
	})
}

func (s *Sessions) restore(ctx context.Context, token string) (*domain.Session, error) {
	key := store.SessionKey(token)
	sess, err := s.repo.GetSession(ctx, key)
	if err != nil {
		slog.Warn("Failed to load stored session", "error", err)
	}
	if sess != nil && sess.State == domain.StateAuthenticated {
		sess.Token = token
		return sess, nil
	}

	sess, err = s.auth.Restore(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, sess); err != nil {
		slog.Warn("Failed to persist restored session", "error", err)
	}
	return sess, nil
}

// Reload re-reads the stored view state for token. It returns nil when nothing
// authenticated is stored, in which case the caller keeps what it has.
func (s *Sessions) Reload(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.repo.GetSession(ctx, store.SessionKey(token))
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if sess == nil || sess.State != domain.StateAuthenticated {
		return nil, nil
	}
	sess.Token = token
	return sess, nil
}

// Save persists the view state of an authenticated session.
func (s *Sessions) Save(ctx context.Context, sess *domain.Session) error {
	if !sess.Authenticated() {
		return nil
	}
	sess.Touch(time.Now())
	if err := s.repo.SaveSession(ctx, store.SessionKey(sess.Token), sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Start writes the stored state and cookie for a freshly authenticated session.
// No cookie is written unless the state was stored.
func (s *Sessions) Start(ctx context.Context, w http.ResponseWriter, sess *domain.Session) error {
	if err := s.Save(ctx, sess); err != nil {
		return err
	}
	if err := s.cookies.Set(w, sess.Token); err != nil {
		if derr := s.repo.DeleteSession(ctx, store.SessionKey(sess.Token)); derr != nil {
			slog.Warn("Failed to delete stored session", "error", derr)
		}
		return err
	}
	return nil
}

// End logs the session out: stored state is dropped, the cookie is deleted and
// sess returns to anonymous.
func (s *Sessions) End(ctx context.Context, w http.ResponseWriter, sess *domain.Session) error {
	if sess.Token != "" {
		if err := s.repo.DeleteSession(ctx, store.SessionKey(sess.Token)); err != nil {
			slog.Warn("Failed to delete stored session", "error", err)
		}
	}
	sess.Clear()
	return s.cookies.Delete(w)
}

// IPFromRequest returns a normalized remote IP for request tracing and rate limiting.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
