package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"unicode/utf8"

	"github.com/ashureev/quizchat/internal/domain"
)

const (
	noticeExpired    = "Your session has expired. Please log in again."
	noticeRegistered = "Registered successfully! Please login."
)

type authView struct {
	Mode     string
	Username string
	Error    string
	Notice   string
}

type historyItem struct {
	ID     string
	Label  string
	Active bool
}

type transcriptItem struct {
	User       bool
	Text       string
	HTML       template.HTML
	Answers    string
	HasAnswers bool
}

type chatView struct {
	Username   string
	CSRFToken  string
	Topic      string
	WebSearch  bool
	UploadKey  int
	History    []historyItem
	Transcript []transcriptItem
	Prompt     string
	Error      string
	Notice     string
}

func (h *Handler) chatView(sess *domain.Session) chatView {
	v := chatView{
		Username:  sess.Username,
		CSRFToken: sess.CSRFToken,
		Topic:     sess.QuizTopic,
		WebSearch: sess.WebSearchEnabled,
		UploadKey: sess.UploadKey,
		Notice:    sess.TakeNotice(),
	}

	for _, e := range domain.LabelConversations(sess.Conversations) {
		v.History = append(v.History, historyItem{
			ID:     e.ConversationID,
			Label:  e.Label,
			Active: e.ConversationID == sess.ConversationID,
		})
	}

	for _, m := range sess.Messages {
		if m.Role == domain.RoleUser {
			v.Transcript = append(v.Transcript, transcriptItem{User: true, Text: m.Display()})
			continue
		}
		quiz, answers, ok := m.Parts()
		v.Transcript = append(v.Transcript, transcriptItem{
			HTML:       h.md.HTML(quiz),
			Answers:    answers,
			HasAnswers: ok,
		})
	}
	return v
}

// userMessage maps an error to the text shown inline, with the matching status code.
func userMessage(err error) (int, string) {
	var (
		ve *domain.ValidationError
		ae *domain.AuthError
		te *domain.TransportError
		mb *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Message
	case errors.As(err, &ae):
		return http.StatusUnauthorized, ae.Message
	case errors.As(err, &mb):
		return http.StatusRequestEntityTooLarge,
			fmt.Sprintf("The upload is too large. The limit is %d MB.", mb.Limit>>20)
	case errors.Is(err, domain.ErrReplyPending):
		return http.StatusConflict, "A quiz is already being generated. Please wait for it to finish."
	case errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound, "That conversation no longer exists."
	case errors.As(err, &te):
		if te.StatusCode == 0 {
			return http.StatusBadGateway, "Could not reach the quiz service. Please try again."
		}
		msg := fmt.Sprintf("The quiz service returned an error (status %d).", te.StatusCode)
		if te.Body != "" {
			msg += " " + truncate(te.Body, 300)
		}
		return http.StatusBadGateway, msg
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
