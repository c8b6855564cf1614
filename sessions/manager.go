package sessions

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-shh/token"
	"github.com/rs/zerolog/log"
)

// SessionCookie is the base name of the cookie carrying the identity token.
const SessionCookie = "session"

// Manager turns identity tokens into sessions and owns the session cookie.
type Manager struct {
	decoder     token.Decoder
	testingMode bool
	maxAge      time.Duration
}

// NewManager creates a session manager. maxAge caps the cookie lifetime; the
// token's own expiry still applies.
func NewManager(decoder token.Decoder, testingMode bool, maxAge time.Duration) *Manager {
	return &Manager{
		decoder:     decoder,
		testingMode: testingMode,
		maxAge:      maxAge,
	}
}

// CookieName returns the name the session cookie is issued under.
func (m *Manager) CookieName() string {
	return CookieName(SessionCookie, m.testingMode)
}

// Establish verifies idToken and stores it in the session cookie.
func (m *Manager) Establish(w http.ResponseWriter, idToken string) (*Session, error) {
	session, err := m.decode(idToken)
	if err != nil {
		return nil, fmt.Errorf("[sessions Establish] %w", err)
	}
	http.SetCookie(w, NewCookie(SessionCookie, idToken, int(m.maxAge.Seconds()), m.testingMode))
	return session, nil
}

// Clear deletes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, ExpiredCookie(SessionCookie, m.testingMode))
}

// Resolve returns the session carried by the request, or nil. Invalid tokens
// are logged and treated as anonymous; expired ones silently so.
func (m *Manager) Resolve(r *http.Request) *Session {
	cookie, err := r.Cookie(m.CookieName())
	if err != nil || cookie.Value == "" {
		return nil
	}

	session, err := m.decode(cookie.Value)
	if err != nil {
		if !errors.Is(err, token.ErrTokenExpired) {
			log.Ctx(r.Context()).Warn().Err(err).Msg("Ignoring invalid session token")
		}
		return nil
	}
	return session
}

func (m *Manager) decode(idToken string) (*Session, error) {
	claims, err := m.decoder.Decode(idToken)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti claim", token.ErrInvalidToken)
	}

	session := &Session{
		UserID:    claims.Subject,
		CSRFToken: claims.ID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
