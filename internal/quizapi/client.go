// Package quizapi is the HTTP client for the remote quiz generation service.
//
// The service exposes four endpoints: register, login, generate and
// get_conversations. Authenticated calls carry the service's session token
// in a cookie named "session".
package quizapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/ashureev/quizchat/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// CookieName is the cookie the quiz service reads the session token from.
const CookieName = "session"

const (
	// DefaultTimeout bounds a single call; quiz generation can be slow.
	DefaultTimeout = 120 * time.Second

	// maxResponseSize caps upstream response bodies.
	maxResponseSize = 10 << 20

	defaultMaxRetries = 2
)

// Client talks to the quiz generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(WithRetryAfter(http.DefaultTransport, defaultMaxRetries)),
			Timeout:   DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates a user account and returns the service's confirmation message.
func (c *Client) Register(ctx context.Context, creds domain.Credentials) (string, error) {
	const op = "register"

	resp, body, err := c.postJSON(ctx, op, "/register", credentialsRequest(creds))
	if err != nil {
		return "", err
	}

	var status statusResponse
	_ = json.Unmarshal(body, &status)
	if resp.StatusCode/100 != 2 || status.Error != "" {
		return "", &domain.AuthError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fallback(status.Error, "Registration failed"),
		}
	}
	return status.Message, nil
}

// Login exchanges credentials for a session token.
// The token is the value of the cookie set by the service.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*LoginResult, error) {
	const op = "login"

	resp, body, err := c.postJSON(ctx, op, "/login", credentialsRequest(creds))
	if err != nil {
		return nil, err
	}

	var status statusResponse
	_ = json.Unmarshal(body, &status)
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.AuthError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fallback(status.Error, "Login failed"),
		}
	}

	token := sessionToken(resp)
	if token == "" {
		return nil, &domain.AuthError{Op: op, StatusCode: resp.StatusCode, Message: "Login failed"}
	}

	return &LoginResult{
		Token:   token,
		UserID:  status.userID(),
		Message: status.Message,
	}, nil
}

// Generate asks the service for a quiz. A non-200 reply is returned as a
// *domain.TransportError carrying the response body.
func (c *Client) Generate(ctx context.Context, token string, gr GenerateRequest) (*GenerateResponse, error) {
	const op = "generate"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeGenerateForm(mw, gr); err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("encode form: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", &buf)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	resp, body, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out GenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

// GetConversations lists the user's conversations in the order the service returns them.
func (c *Client) GetConversations(ctx context.Context, token string) ([]domain.Conversation, error) {
	const op = "get_conversations"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_conversations", nil)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	resp, body, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var convs []domain.Conversation
	if err := json.Unmarshal(body, &convs); err != nil {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return convs, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any) (*http.Response, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op)
}

// do sends req and reads the capped response body.
func (c *Client) do(req *http.Request, op string) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &domain.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(body) > maxResponseSize {
		return nil, nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("response body too large")}
	}
	return resp, body, nil
}

func writeGenerateForm(mw *multipart.Writer, gr GenerateRequest) error {
	if err := mw.WriteField("prompt", gr.Prompt); err != nil {
		return err
	}
	if gr.ConversationID != "" {
		if err := mw.WriteField("conversation_id", gr.ConversationID); err != nil {
			return err
		}
	}
	if gr.WebSearchEnabled {
		if err := mw.WriteField("web_search_enabled", "true"); err != nil {
			return err
		}
	}
	for _, pdf := range gr.PDFs {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdfs"; filename="%s"`, quoteEscaper.Replace(pdf.Name)))
		h.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := part.Write(pdf.Data); err != nil {
			return err
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// sessionToken extracts the session cookie value, falling back to the first cookie set.
func sessionToken(resp *http.Response) string {
	cookies := resp.Cookies()
	for _, ck := range cookies {
		if ck.Name == CookieName && ck.Value != "" {
			return ck.Value
		}
	}
	if len(cookies) > 0 {
		return cookies[0].Value
	}
	return ""
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
