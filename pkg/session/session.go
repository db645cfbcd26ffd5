// pkg/session/session.go
package session

import (
	"net/http"
	"time"

	"authmail/pkg/claims"
)

const cookieName = "authmail_session"

// Manager issues and reads the administrative session cookie. The cookie
// value is a signed claim minted with the master secret, the same
// primitive tenants use for their end users.
type Manager struct {
	codec  claims.Codec
	secret string
	ttl    time.Duration
	secure bool
}

func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{codec: claims.New(), secret: secret, ttl: ttl, secure: secure}
}

// Issue sets the session cookie for subject.
func (m *Manager) Issue(w http.ResponseWriter, subject string) error {
	payload, err := m.codec.Sign(m.secret, subject, false, m.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    payload,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Subject returns the authenticated admin email, or "" when the request
// carries no valid session. Verification failure is a normal negative
// outcome, not an error.
func (m *Manager) Subject(r *http.Request) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	claim, err := m.codec.Verify(m.secret, c.Value)
	if err != nil {
		return ""
	}
	return claim.Subject
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
