package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthState is the position of a session in the authentication flow.
type AuthState int

const (
	// StateAnonymous is a visitor without a valid session token.
	StateAnonymous AuthState = iota
	// StateAuthenticating is a session waiting on a login round trip.
	StateAuthenticating
	// StateAuthenticated is a session holding a token accepted by the quiz service.
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session holds the per-user view state of the chat UI.
// The token is carried by the browser cookie and is never serialized.
type Session struct {
	State            AuthState      `json:"state"`
	Token            string         `json:"-"`
	UserID           string         `json:"user_id"`
	Username         string         `json:"username"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	Messages         []Message      `json:"messages"`
	QuizTopic        string         `json:"quiz_topic"`
	WebSearchEnabled bool           `json:"web_search_enabled"`
	UploadKey        int            `json:"upload_key"`
	Conversations    []Conversation `json:"conversations"`
	CSRFToken        string         `json:"csrf_token"`
	Notice           string         `json:"notice,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	LastSeenAt       time.Time      `json:"last_seen_at"`
}

// NewSession creates an authenticated session seeded with a fresh transcript.
func NewSession(token, userID, username string) *Session {
	now := time.Now()
	return &Session{
		State:      StateAuthenticated,
		Token:      token,
		UserID:     userID,
		Username:   username,
		Messages:   []Message{InstructionMessage()},
		CSRFToken:  uuid.NewString(),
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

// Authenticated returns true if the session may call the quiz service.
func (s *Session) Authenticated() bool {
	return s != nil && s.State == StateAuthenticated && s.Token != ""
}

// StartNewConversation resets the transcript to the seeded instruction message.
func (s *Session) StartNewConversation() {
	s.ConversationID = ""
	s.Messages = []Message{InstructionMessage()}
	s.QuizTopic = ""
	s.WebSearchEnabled = false
	s.UploadKey++
}

// LoadConversation replaces the transcript with a historical conversation.
func (s *Session) LoadConversation(c Conversation) {
	s.ConversationID = c.ConversationID
	s.Messages = append([]Message(nil), c.Messages...)
	s.QuizTopic = c.Topic()
	s.WebSearchEnabled = c.IsWeb()
	s.UploadKey++
}

// AwaitingReply returns true if the transcript ends with an unanswered user message.
func (s *Session) AwaitingReply() bool {
	if len(s.Messages) == 0 {
		return false
	}
	return s.Messages[len(s.Messages)-1].Role == RoleUser
}

// TakeNotice returns the pending one-shot notice and clears it.
func (s *Session) TakeNotice() string {
	n := s.Notice
	s.Notice = ""
	return n
}

// Touch records activity on the session.
func (s *Session) Touch(now time.Time) {
	s.LastSeenAt = now
}

// Clear drops every piece of state, returning the session to anonymous.
func (s *Session) Clear() {
	*s = Session{State: StateAnonymous}
}
