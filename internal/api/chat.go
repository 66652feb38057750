package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"

	"github.com/ashureev/quizchat/internal/chat"
	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/identity"
	"github.com/ashureev/quizchat/internal/quizapi"
	"github.com/ashureev/quizchat/internal/store"
	"github.com/go-chi/chi/v5"
)

const multipartMemory = 8 << 20

// ChatPage renders the sidebar, transcript and input box.
func (h *Handler) ChatPage(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())
	unlock, ok := h.lockSession(r, sess)
	if !ok {
		// A reply is in flight; its handler owns the stored state.
		h.page(w, http.StatusOK, "chat.html", h.chatView(sess))
		return
	}
	defer unlock()

	v := h.chatView(sess)
	h.save(r, sess)
	h.page(w, http.StatusOK, "chat.html", v)
}

// Submit sends the typed prompt upstream and appends the reply to the transcript.
// Failures are rendered inline with the prompt kept in the input box.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())

	if err := h.parseChatForm(w, r); err != nil {
		h.renderChatError(w, r, sess, err, "")
		return
	}
	if !validCSRF(sess, r.FormValue("csrf_token")) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	unlock, ok := h.lockSession(r, sess)
	if !ok {
		slog.Warn("Quiz generation already in progress", "user_id", sess.UserID)
		h.renderChatError(w, r, sess, domain.ErrReplyPending, r.FormValue("prompt"))
		return
	}
	defer unlock()

	sub := chat.Submission{
		Text:             r.FormValue("prompt"),
		Topic:            r.FormValue("topic"),
		WebSearchEnabled: r.FormValue("web_search") == "on",
	}

	pdfs, err := h.uploadedPDFs(r, sess)
	if err != nil {
		sess.QuizTopic = sub.Topic
		sess.WebSearchEnabled = sub.WebSearchEnabled
		h.save(r, sess)
		h.renderChatError(w, r, sess, err, sub.Text)
		return
	}
	sub.PDFs = pdfs

	_, err = h.chat.Submit(r.Context(), sess, sub)
	h.save(r, sess)
	if err != nil {
		h.renderChatError(w, r, sess, err, sub.Text)
		return
	}
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// NewConversation starts an empty conversation.
func (h *Handler) NewConversation(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())
	if !h.checkCSRF(w, r, sess) {
		return
	}
	unlock, ok := h.lockSession(r, sess)
	if !ok {
		h.renderChatError(w, r, sess, domain.ErrReplyPending, "")
		return
	}
	defer unlock()

	if err := h.chat.NewConversation(r.Context(), sess); err != nil {
		if h.expire(w, r, sess, err) {
			return
		}
		_, sess.Notice = userMessage(err)
	}
	h.save(r, sess)
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// SelectConversation loads a conversation from the history list.
func (h *Handler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())
	if !h.checkCSRF(w, r, sess) {
		return
	}
	unlock, ok := h.lockSession(r, sess)
	if !ok {
		h.renderChatError(w, r, sess, domain.ErrReplyPending, "")
		return
	}
	defer unlock()

	id := chi.URLParam(r, "id")
	if err := h.chat.SelectConversation(r.Context(), sess, id); err != nil {
		if h.expire(w, r, sess, err) {
			return
		}
		slog.Warn("Failed to select conversation", "user_id", sess.UserID, "conversation_id", id, "error", err)
		_, sess.Notice = userMessage(err)
	}
	h.save(r, sess)
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

func (h *Handler) parseChatForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("parse chat form: %w", err)
	}
	return nil
}

// uploadedPDFs reads the attached files. Files posted from a form rendered before
// the last conversation reset are ignored.
func (h *Handler) uploadedPDFs(r *http.Request, sess *domain.Session) ([]quizapi.PDF, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File["pdfs"]) == 0 {
		return nil, nil
	}
	key, err := strconv.Atoi(r.FormValue("upload_key"))
	if err != nil || key != sess.UploadKey {
		slog.Info("Ignoring uploads from a stale form", "user_id", sess.UserID)
		return nil, nil
	}

	var pdfs []quizapi.PDF
	for _, fh := range r.MultipartForm.File["pdfs"] {
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		pdf, err := chat.NewPDF(fh.Filename, data)
		if err != nil {
			return nil, err
		}
		pdfs = append(pdfs, pdf)
	}
	return pdfs, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	return data, nil
}

func (h *Handler) renderChatError(w http.ResponseWriter, r *http.Request, sess *domain.Session, err error, prompt string) {
	if h.expire(w, r, sess, err) {
		return
	}
	status, msg := userMessage(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Chat request failed", "user_id", sess.UserID, "conversation_id", sess.ConversationID, "error", err)
	}

	v := h.chatView(sess)
	v.Prompt = prompt
	v.Error = msg
	h.page(w, status, "chat.html", v)
}

// expire logs the session out when the quiz service rejected its token.
func (h *Handler) expire(w http.ResponseWriter, r *http.Request, sess *domain.Session, err error) bool {
	if !errors.Is(err, domain.ErrSessionExpired) {
		return false
	}
	slog.Info("Session token rejected by quiz service", "user_id", sess.UserID)
	h.sessionLocks.Delete(store.SessionKey(sess.Token))
	if derr := h.sessions.End(r.Context(), w, sess); derr != nil {
		slog.Error("Failed to delete session cookie", "error", derr)
	}
	http.Redirect(w, r, "/?expired=1", http.StatusSeeOther)
	return true
}

func (h *Handler) checkCSRF(w http.ResponseWriter, r *http.Request, sess *domain.Session) bool {
	if err := r.ParseForm(); err != nil || !validCSRF(sess, r.PostFormValue("csrf_token")) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return false
	}
	return true
}

// lockSession takes the per-session lock without waiting and swaps the latest
// stored state into sess, so work started from a stale page acts on what the
// previous holder saved. ok is false when another request holds the lock.
func (h *Handler) lockSession(r *http.Request, sess *domain.Session) (unlock func(), ok bool) {
	v, _ := h.sessionLocks.LoadOrStore(store.SessionKey(sess.Token), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, false
	}

	fresh, err := h.sessions.Reload(r.Context(), sess.Token)
	switch {
	case err != nil:
		slog.Warn("Failed to reload session", "user_id", sess.UserID, "error", err)
	case fresh != nil:
		*sess = *fresh
	}
	return mu.Unlock, true
}

func (h *Handler) save(r *http.Request, sess *domain.Session) {
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		slog.Warn("Failed to save session", "user_id", sess.UserID, "error", err)
	}
}
