package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/quizapi"
)

// API is the subset of the quiz service used for authentication.
type API interface {
	Register(ctx context.Context, creds domain.Credentials) (string, error)
	Login(ctx context.Context, creds domain.Credentials) (*quizapi.LoginResult, error)
	GetConversations(ctx context.Context, token string) ([]domain.Conversation, error)
}

// Authenticator drives the Anonymous → Authenticating → Authenticated flow.
type Authenticator struct {
	api API
}

// NewAuthenticator creates an authenticator backed by api.
func NewAuthenticator(api API) *Authenticator {
	return &Authenticator{api: api}
}

// Register creates an account. Nothing is sent upstream when the form is invalid.
func (a *Authenticator) Register(ctx context.Context, reg domain.Registration) (string, error) {
	if err := reg.Validate(); err != nil {
		return "", err
	}
	msg, err := a.api.Register(ctx, reg.Credentials)
	if err != nil {
		return "", err
	}
	slog.Info("User registered", "username", reg.Username)
	return msg, nil
}

// Login moves sess through Authenticating. On success sess is Authenticated and
// holds the token and a fresh transcript; otherwise sess is Anonymous.
func (a *Authenticator) Login(ctx context.Context, sess *domain.Session, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	sess.Clear()
	sess.State = domain.StateAuthenticating

	res, err := a.api.Login(ctx, creds)
	if err != nil {
		sess.Clear()
		return err
	}

	*sess = *domain.NewSession(res.Token, res.UserID, creds.Username)
	slog.Info("User logged in", "user_id", res.UserID, "username", creds.Username)
	return nil
}

// Restore validates token with a round trip to the quiz service and returns an
// authenticated session carrying the user's conversation list.
// A rejected token yields domain.ErrSessionExpired.
func (a *Authenticator) Restore(ctx context.Context, token string) (*domain.Session, error) {
	convs, err := a.api.GetConversations(ctx, token)
	if err != nil {
		if domain.IsUnauthorized(err) {
			return nil, fmt.Errorf("restore session: %w: %w", domain.ErrSessionExpired, err)
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}

	sess := domain.NewSession(token, "", "")
	sess.Conversations = convs
	return sess, nil
}
