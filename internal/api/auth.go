package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/identity"
	"github.com/ashureev/quizchat/internal/store"
)

// AuthPage renders the login or registration form.
func (h *Handler) AuthPage(w http.ResponseWriter, r *http.Request) {
	if identity.FromContext(r.Context()).Authenticated() {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	v := authView{Mode: "login"}
	if q.Get("mode") == "register" {
		v.Mode = "register"
	}
	switch {
	case identity.ExpiredFromContext(r.Context()) || q.Get("expired") != "":
		v.Notice = noticeExpired
	case q.Get("registered") != "":
		v.Notice = noticeRegistered
	}
	h.page(w, http.StatusOK, "auth.html", v)
}

// Login authenticates against the quiz service and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	creds := domain.Credentials{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}

	sess := &domain.Session{}
	if err := h.auth.Login(r.Context(), sess, creds); err != nil {
		status, msg := userMessage(err)
		var te *domain.TransportError
		if errors.As(err, &te) {
			slog.Warn("Login request failed", "username", creds.Username, "error", err)
		}
		h.page(w, status, "auth.html", authView{Mode: "login", Username: creds.Username, Error: msg})
		return
	}

	if err := h.chat.RefreshConversations(r.Context(), sess); err != nil {
		slog.Warn("Failed to load conversations after login", "user_id", sess.UserID, "error", err)
	}
	if err := h.sessions.Start(r.Context(), w, sess); err != nil {
		slog.Error("Failed to start session", "user_id", sess.UserID, "error", err)
		h.page(w, http.StatusInternalServerError, "auth.html",
			authView{Mode: "login", Username: creds.Username, Error: "Login failed"})
		return
	}
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// Register creates an account and sends the user back to the login form.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	reg := domain.Registration{
		Credentials: domain.Credentials{
			Username: strings.TrimSpace(r.PostFormValue("username")),
			Password: r.PostFormValue("password"),
		},
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}

	if _, err := h.auth.Register(r.Context(), reg); err != nil {
		status, msg := userMessage(err)
		h.page(w, status, "auth.html", authView{Mode: "register", Username: reg.Username, Error: msg})
		return
	}
	http.Redirect(w, r, "/?registered=1", http.StatusSeeOther)
}

// Logout ends the session. Cookie failures are logged and the user is still logged out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())
	if sess.Authenticated() {
		if err := r.ParseForm(); err != nil || !validCSRF(sess, r.PostFormValue("csrf_token")) {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}
		h.sessionLocks.Delete(store.SessionKey(sess.Token))
		slog.Info("User logged out", "user_id", sess.UserID)
	}
	if err := h.sessions.End(r.Context(), w, sess); err != nil {
		slog.Error("Failed to delete session cookie", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func validCSRF(sess *domain.Session, token string) bool {
	if sess.CSRFToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(token)) == 1
}
