package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-shh/sessions"
	"github.com/rs/zerolog/log"
)

// SessionMode controls what WithSession does for anonymous requests.
type SessionMode int

const (
	// SessionOptional serves anonymous requests with a nil session.
	SessionOptional SessionMode = iota
	// SessionRequired redirects anonymous requests to the login flow.
	SessionRequired
)

const csrfFormField = "csrf"

// SessionHandlerFunc is a handler receiving the resolved session, nil when the
// request is anonymous.
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, session *sessions.Session)

// WithSession resolves the session once and hands it to next. POST requests
// carrying a session must submit its CSRF token in the csrf form field.
func (s *Server) WithSession(mode SessionMode, next SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.sessions.Resolve(r)

		if session == nil {
			if mode == SessionRequired {
				s.redirectToLogin(w, r)
				return
			}
			next(w, r, nil)
			return
		}

		setNoStore(w)

		if r.Method == http.MethodPost && !session.ValidCSRF(r.PostFormValue(csrfFormField)) {
			log.Ctx(r.Context()).Warn().Str("user_id", session.UserID).Msg("CSRF token mismatch")
			s.renderError(w, r, http.StatusForbidden, "Your session has changed, please reload the page and try again.")
			return
		}

		next(w, r, session)
	}
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	continueURL := s.serviceAddress + r.URL.RequestURI()
	loginURL := s.servicePathFor(RouteLogin) + "?continue=" + url.QueryEscape(continueURL)
	http.Redirect(w, r, loginURL, http.StatusFound)
}
