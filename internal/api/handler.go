// Package api provides the HTTP handlers of the quiz chat UI.
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/quizchat/internal/chat"
	"github.com/ashureev/quizchat/internal/identity"
	"github.com/ashureev/quizchat/internal/middleware"
	"github.com/ashureev/quizchat/internal/render"
	"github.com/ashureev/quizchat/internal/store"
	"github.com/go-chi/chi/v5"
)

// Renderer executes a named page template.
type Renderer interface {
	Render(w io.Writer, page string, data any) error
}

// Handler serves the auth and chat pages.
type Handler struct {
	sessions  *identity.Sessions
	auth      *identity.Authenticator
	chat      *chat.Service
	views     Renderer
	md        *render.Markdown
	maxUpload int64

	// sessionLocks serializes state changes per session.
	sessionLocks sync.Map
}

// NewHandler creates a new Handler with its dependencies.
func NewHandler(
	sessions *identity.Sessions,
	auth *identity.Authenticator,
	chatSvc *chat.Service,
	views Renderer,
	md *render.Markdown,
	maxUpload int64,
) *Handler {
	return &Handler{
		sessions:  sessions,
		auth:      auth,
		chat:      chatSvc,
		views:     views,
		md:        md,
		maxUpload: maxUpload,
	}
}

// RegisterRoutes registers the browser-facing routes. limit throttles the
// routes that reach the quiz service with user input.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(h.sessions.Middleware)

		r.Get("/", h.AuthPage)
		r.With(limit).Post("/login", h.Login)
		r.With(limit).Post("/register", h.Register)
		r.Post("/logout", h.Logout)

		r.Route("/chat", func(r chi.Router) {
			r.Use(RequireSession)
			r.Get("/", h.ChatPage)
			r.With(limit).Post("/", h.Submit)
			r.Post("/new", h.NewConversation)
			r.Post("/conversations/{id}", h.SelectConversation)
		})
	})
}

// RateLimitKey keys authenticated requests by session and anonymous ones by client IP.
func RateLimitKey(r *http.Request) string {
	if sess := identity.FromContext(r.Context()); sess.Authenticated() {
		return "session:" + store.SessionKey(sess.Token)
	}
	return "ip:" + identity.IPFromRequest(r)
}

// RequireSession redirects anonymous visitors to the login page.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.FromContext(r.Context()).Authenticated() {
			next.ServeHTTP(w, r)
			return
		}
		target := "/"
		if identity.ExpiredFromContext(r.Context()) {
			target = "/?expired=1"
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// page renders a template into a buffer first so a failed render never sends a partial page.
func (h *Handler) page(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.views.Render(&buf, name, data); err != nil {
		slog.Error("Failed to render page", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Failed to write page", "page", name, "error", err)
	}
}
