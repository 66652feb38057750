// Package chat manages the quiz transcript of a session and dispatches quiz
// requests to the generation service.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/quizapi"
)

// API is the subset of the quiz service used by the chat service.
type API interface {
	Generate(ctx context.Context, token string, req quizapi.GenerateRequest) (*quizapi.GenerateResponse, error)
	GetConversations(ctx context.Context, token string) ([]domain.Conversation, error)
}

// Submission is a prompt typed into the chat input together with the sidebar settings.
type Submission struct {
	Text             string
	Topic            string
	WebSearchEnabled bool
	PDFs             []quizapi.PDF
}

// Service applies chat operations to a session.
type Service struct {
	api API
}

// NewService creates a chat service backed by api.
func NewService(api API) *Service {
	return &Service{api: api}
}

// RefreshConversations replaces the cached conversation list.
func (s *Service) RefreshConversations(ctx context.Context, sess *domain.Session) error {
	convs, err := s.api.GetConversations(ctx, sess.Token)
	if err != nil {
		return wrapUpstream(err, "list conversations")
	}
	sess.Conversations = convs
	return nil
}

// NewConversation resets the transcript and refreshes the history list.
// A failed refresh still resets the transcript; the error is returned for display.
func (s *Service) NewConversation(ctx context.Context, sess *domain.Session) error {
	err := s.RefreshConversations(ctx, sess)
	if domain.IsUnauthorized(err) {
		return err
	}
	sess.StartNewConversation()
	return err
}

// SelectConversation loads a historical conversation fetched fresh from the service.
func (s *Service) SelectConversation(ctx context.Context, sess *domain.Session, conversationID string) error {
	if err := s.RefreshConversations(ctx, sess); err != nil {
		return err
	}
	conv, ok := domain.FindConversation(sess.Conversations, conversationID)
	if !ok {
		return fmt.Errorf("select %q: %w", conversationID, domain.ErrConversationNotFound)
	}
	sess.LoadConversation(conv)
	return nil
}

// Submit validates a submission, sends it upstream and appends the reply.
// On failure the transcript is left as it was before the call.
func (s *Service) Submit(ctx context.Context, sess *domain.Session, sub Submission) (*domain.Message, error) {
	topic := strings.TrimSpace(sub.Topic)
	text := strings.TrimSpace(sub.Text)

	sess.QuizTopic = topic
	sess.WebSearchEnabled = sub.WebSearchEnabled

	if topic == "" {
		return nil, &domain.ValidationError{Field: "topic", Message: "Please enter the topic of the quiz"}
	}
	if text == "" {
		return nil, &domain.ValidationError{Field: "prompt", Message: "Please enter a prompt"}
	}
	if sess.AwaitingReply() {
		return nil, domain.ErrReplyPending
	}

	prompt := domain.ComposePrompt(text, topic)
	before := len(sess.Messages)
	sess.Messages = append(sess.Messages, domain.Message{Role: domain.RoleUser, Content: prompt, QuizTopic: topic})

	resp, err := s.api.Generate(ctx, sess.Token, quizapi.GenerateRequest{
		Prompt:           prompt,
		ConversationID:   sess.ConversationID,
		WebSearchEnabled: sub.WebSearchEnabled,
		PDFs:             sub.PDFs,
	})
	if err != nil {
		sess.Messages = sess.Messages[:before]
		slog.Warn("Quiz generation failed",
			"user_id", sess.UserID,
			"conversation_id", sess.ConversationID,
			"error", err)
		return nil, wrapUpstream(err, "generate quiz")
	}

	if resp.ConversationID != "" {
		sess.ConversationID = resp.ConversationID
	}
	reply := domain.Message{Role: domain.RoleAssistant, Content: resp.Answer, QuizTopic: topic}
	sess.Messages = append(sess.Messages, reply)

	slog.Info("Quiz generated",
		"user_id", sess.UserID,
		"conversation_id", sess.ConversationID,
		"pdfs", len(sub.PDFs),
		"web_search", sub.WebSearchEnabled)
	return &reply, nil
}

// wrapUpstream maps rejected tokens to ErrSessionExpired and keeps other errors inspectable.
func wrapUpstream(err error, op string) error {
	if err == nil {
		return nil
	}
	if domain.IsUnauthorized(err) && !errors.Is(err, domain.ErrSessionExpired) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrSessionExpired, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
