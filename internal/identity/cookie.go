package identity

import (
	"net/http"
	"time"

	"github.com/ashureev/quizchat/internal/domain"
	"github.com/ashureev/quizchat/internal/quizapi"
)

// CookieName is the browser cookie holding the quiz service session token.
const CookieName = quizapi.CookieName

// CookieManager persists the session token in the browser.
type CookieManager struct {
	maxAge time.Duration
	secure bool
}

// NewCookieManager creates a cookie manager. Cookies are Secure unless isDev.
func NewCookieManager(maxAge time.Duration, isDev bool) *CookieManager {
	return &CookieManager{maxAge: maxAge, secure: !isDev}
}

// Get returns the session token sent by the browser.
func (m *CookieManager) Get(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Set stores token in the browser.
func (m *CookieManager) Set(w http.ResponseWriter, token string) error {
	return m.write(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		Expires:  time.Now().Add(m.maxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	})
}

// Delete expires the session cookie in the browser.
func (m *CookieManager) Delete(w http.ResponseWriter) error {
	return m.write(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	})
}

func (m *CookieManager) write(w http.ResponseWriter, c *http.Cookie) error {
	if err := c.Valid(); err != nil {
		return &domain.CookieError{Name: c.Name, Err: err}
	}
	http.SetCookie(w, c)
	return nil
}
