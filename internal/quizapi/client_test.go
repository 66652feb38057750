package quizapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func TestLoginExtractsSessionCookie(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body credentialsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a", body.Username)
		assert.Equal(t, "p", body.Password)

		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok123", Path: "/", HttpOnly: true})
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"message":"Login successful","user_id":7}`)
	})

	res, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "tok123", res.Token)
	assert.Equal(t, "7", res.UserID)
	assert.Equal(t, "Login successful", res.Message)
}

func TestLoginFailureSurfacesServerError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Invalid username or password"}`)
	})

	_, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "bad"})
	var ae *domain.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Invalid username or password", ae.Message)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
}

func TestLoginFailureFallsBackToGenericMessage(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})

	_, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "p"})
	var ae *domain.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Login failed", ae.Message)
}

func TestLoginWithoutCookieFails(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"Login successful"}`)
	})

	_, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "p"})
	var ae *domain.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Login failed", ae.Message)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)
		var body credentialsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Username == "taken" {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"Username already exists"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"User registered successfully"}`)
	})

	msg, err := c.Register(context.Background(), domain.Credentials{Username: "new", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", msg)

	_, err = c.Register(context.Background(), domain.Credentials{Username: "taken", Password: "p"})
	var ae *domain.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Username already exists", ae.Message)
}

func TestGenerateSendsMultipartForm(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		ck, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "tok123", ck.Value)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "5 MCQs. Topic: Algebra", r.FormValue("prompt"))
		assert.Equal(t, "c1", r.FormValue("conversation_id"))
		assert.Equal(t, "true", r.FormValue("web_search_enabled"))

		files := r.MultipartForm.File["pdfs"]
		require.Len(t, files, 2)
		assert.Equal(t, "notes.pdf", files[0].Filename)
		assert.Equal(t, "application/pdf", files[0].Header.Get("Content-Type"))

		_, _ = io.WriteString(w, `{"conversation_id":"c1","answer":"Q1...ANSWERS:A1..."}`)
	})

	resp, err := c.Generate(context.Background(), "tok123", GenerateRequest{
		Prompt:           "5 MCQs. Topic: Algebra",
		ConversationID:   "c1",
		WebSearchEnabled: true,
		PDFs: []PDF{
			{Name: "notes.pdf", Data: []byte("%PDF-1.4 a")},
			{Name: "more.pdf", Data: []byte("%PDF-1.4 b")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.Equal(t, "Q1...ANSWERS:A1...", resp.Answer)
}

func TestGenerateOmitsOptionalFields(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hasConv := r.MultipartForm.Value["conversation_id"]
		_, hasWeb := r.MultipartForm.Value["web_search_enabled"]
		assert.False(t, hasConv)
		assert.False(t, hasWeb)
		assert.Empty(t, r.MultipartForm.File["pdfs"])
		_, _ = io.WriteString(w, `{"conversation_id":"c9","answer":"ok"}`)
	})

	resp, err := c.Generate(context.Background(), "tok", GenerateRequest{Prompt: "p. Topic: t"})
	require.NoError(t, err)
	assert.Equal(t, "c9", resp.ConversationID)
}

func TestGenerateNonOKReturnsTransportError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "search backend unavailable\n")
	})

	_, err := c.Generate(context.Background(), "tok", GenerateRequest{Prompt: "p"})
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, "search backend unavailable", te.Body)
	assert.False(t, te.Unauthorized())
}

func TestGenerateUnauthorized(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Generate(context.Background(), "stale", GenerateRequest{Prompt: "p"})
	assert.True(t, domain.IsUnauthorized(err))
}

func TestGetConversations(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/get_conversations", r.URL.Path)
		ck, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "tok", ck.Value)
		_, _ = io.WriteString(w, `[
			{"conversation_id":"c1","conversation_type":"web","messages":[
				{"role":"user","content":"5 MCQs. Topic: News","quiz_topic":"News"},
				{"role":"assistant","content":"Q ANSWERS: A","quiz_topic":"News"}]},
			{"conversation_id":"c2","conversation_type":"default","messages":[]}
		]`)
	})

	convs, err := c.GetConversations(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.True(t, convs[0].IsWeb())
	assert.Equal(t, "News", convs[0].Topic())
	assert.Equal(t, domain.RoleAssistant, convs[0].Messages[1].Role)
	assert.Equal(t, "c2", convs[1].ConversationID)
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithTimeout(time.Second))
	_, err := c.GetConversations(context.Background(), "tok")
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.Error(t, te.Unwrap())
}

func throttleOnce(t *testing.T, retryAfter string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRetryTransportHonoursRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := throttleOnce(t, "1", &calls)

	hc := &http.Client{Transport: WithRetryAfter(nil, 2)}
	resp, err := hc.Post(srv.URL, "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryTransportPassesThroughWithoutDelay(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := throttleOnce(t, "0", &calls)

	hc := &http.Client{Transport: WithRetryAfter(nil, 2)}
	resp, err := hc.Post(srv.URL, "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryTransportLeavesCallerRequestUntouched(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := throttleOnce(t, "1", &calls)

	body := &closeCounter{Reader: strings.NewReader("payload")}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := WithRetryAfter(nil, 2).RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
	assert.Same(t, body, req.Body, "caller's body is not replaced")
	assert.NotSame(t, req, resp.Request, "attempts use a clone")
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
	assert.Equal(t, 1, body.closed)
}

type closeCounter struct {
	io.Reader
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3*time.Second, parseRetryAfter("3", now))
	assert.Equal(t, maxRetryAfter, parseRetryAfter("3600", now))
	assert.Equal(t, 10*time.Second, parseRetryAfter(now.Add(10*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter("", now))
	assert.Zero(t, parseRetryAfter("soon", now))
}
