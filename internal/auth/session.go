package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CookieName is the name of the identity cookie.
const CookieName = "user_id"

// Codec turns a user ID into a cookie value and back.
type Codec interface {
	Encode(userID string) (string, error)
	Decode(value string) (string, error)
}

// PlainCodec stores the user ID as-is. It is the default; TokenService is
// the signed alternative.
type PlainCodec struct{}

func (PlainCodec) Encode(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: empty user id")
	}
	return userID, nil
}

func (PlainCodec) Decode(value string) (string, error) {
	if value == "" {
		return "", errors.New("auth: empty cookie value")
	}
	return value, nil
}

// SessionManager issues, reads and revokes the identity cookie.
//
// COOKIE ATTRIBUTES:
//   - HttpOnly   → JavaScript cannot read it (XSS can't steal it)
//   - Path=/     → sent with every request to this site
//   - SameSite=Lax → not sent on cross-site POSTs (basic CSRF protection)
//   - Secure     → HTTPS only; enabled in production
//
// No MaxAge is set on issue, so the browser drops the cookie when the session
// ends. Revocation is the only place an expiry is written.
type SessionManager struct {
	secure bool
	codec  Codec
}

// NewSessionManager returns a manager using codec, or PlainCodec when codec is nil.
func NewSessionManager(secure bool, codec Codec) *SessionManager {
	if codec == nil {
		codec = PlainCodec{}
	}
	return &SessionManager{secure: secure, codec: codec}
}

// Bind returns the cookie store for a single request/response pair.
func (m *SessionManager) Bind(w http.ResponseWriter, r *http.Request) *CookieSession {
	return &CookieSession{manager: m, w: w, r: r}
}

func (m *SessionManager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// HasSessionCookie reports whether the request carries a non-empty identity
// cookie. It does not decode or validate the value.
func HasSessionCookie(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	return err == nil && c.Value != ""
}

// CookieSession is the per-request view of the identity cookie.
// Reads only look at the request; writes only touch the response.
type CookieSession struct {
	manager *SessionManager
	w       http.ResponseWriter
	r       *http.Request
}

// UserID returns the user ID carried by the request cookie.
// A missing or undecodable cookie reads as absent, never as an error.
func (s *CookieSession) UserID() (string, bool) {
	c, err := s.r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, err := s.manager.codec.Decode(c.Value)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Issue writes the identity cookie for userID onto the response.
func (s *CookieSession) Issue(userID string) error {
	value, err := s.manager.codec.Encode(userID)
	if err != nil {
		return fmt.Errorf("auth: encoding session: %w", err)
	}
	http.SetCookie(s.w, s.manager.cookie(value))
	return nil
}

// Revoke overwrites the cookie with an empty value that expired at the Unix
// epoch, keeping the attributes used at issue so the browser matches and
// deletes it.
func (s *CookieSession) Revoke() error {
	c := s.manager.cookie("")
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	http.SetCookie(s.w, c)
	return nil
}
