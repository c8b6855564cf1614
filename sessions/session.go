package sessions

import (
	"crypto/subtle"
	"time"
)

// Session is the request scoped identity derived from a verified identity
// token. Nothing about it is stored server side.
type Session struct {
	UserID    string
	CSRFToken string
	ExpiresAt time.Time
}

// ValidCSRF reports whether submitted matches the session's CSRF token.
func (s *Session) ValidCSRF(submitted string) bool {
	if s == nil || s.CSRFToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(submitted)) == 1
}
