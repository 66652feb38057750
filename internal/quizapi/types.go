package quizapi

import (
	"encoding/json"
	"strings"
)

// PDF is an uploaded document forwarded to the generate endpoint.
type PDF struct {
	Name string
	Data []byte
}

// GenerateRequest is the multipart payload for POST /generate.
type GenerateRequest struct {
	Prompt           string
	ConversationID   string
	WebSearchEnabled bool
	PDFs             []PDF
}

// GenerateResponse is the body returned by POST /generate.
type GenerateResponse struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
}

// LoginResult is a successful login.
type LoginResult struct {
	Token   string
	UserID  string
	Message string
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// statusResponse is the {message} | {error} envelope used by register and login.
type statusResponse struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	UserID  json.RawMessage `json:"user_id"`
}

// userID renders user_id whether the service sends it as a number or a string.
func (r statusResponse) userID() string {
	if len(r.UserID) == 0 || string(r.UserID) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.UserID, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.UserID))
}
