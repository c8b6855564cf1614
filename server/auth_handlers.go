package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-shh/authflow"
	"github.com/jrsteele09/go-shh/internal/metrics"
	"github.com/jrsteele09/go-shh/sessions"
	"github.com/rs/zerolog/log"
)

// LoginHandler starts the OIDC flow and redirects to the provider
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := s.auth.StartLogin(w, r.URL.Query().Get("continue"))
		if err != nil {
			if errors.Is(err, authflow.ErrInvalidContinueURL) {
				log.Ctx(r.Context()).Warn().Err(err).Msg("Rejected login continue url")
				s.renderError(w, r, http.StatusBadRequest, "Invalid continue url.")
				return
			}
			log.Ctx(r.Context()).Err(err).Msg("Failed to start login")
			s.renderError(w, r, http.StatusInternalServerError, "")
			return
		}

		metrics.LoginsTotal.WithLabelValues(metrics.LoginStarted).Inc()
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OidcCallbackHandler completes the OIDC flow. Declined consent goes back to
// the home page; every other failure is a protocol violation.
func (s *Server) OidcCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		continueURL, err := s.auth.HandleCallback(w, r)
		if err != nil {
			switch {
			case errors.Is(err, authflow.ErrAccessDenied):
				metrics.LoginsTotal.WithLabelValues(metrics.LoginDeclined).Inc()
				log.Ctx(r.Context()).Info().Msg("User declined login")
				http.Redirect(w, r, s.servicePathFor(RouteIndex), http.StatusFound)
			case errors.Is(err, authflow.ErrInvalidContinueURL):
				metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
				log.Ctx(r.Context()).Warn().Err(err).Msg("Rejected callback continue url")
				s.renderError(w, r, http.StatusBadRequest, "Invalid continue url.")
			default:
				metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
				log.Ctx(r.Context()).Err(err).Msg("OIDC callback failed")
				s.renderError(w, r, http.StatusInternalServerError, "")
			}
			return
		}

		metrics.LoginsTotal.WithLabelValues(metrics.LoginCompleted).Inc()
		http.Redirect(w, r, continueURL, http.StatusFound)
	}
}

// LogoutHandler clears the session cookie, including stale or invalid ones. It
// is not CSRF protected: the session is only ever removed, never used.
func (s *Server) LogoutHandler() SessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		continueURL, err := s.auth.ValidateContinueURL(r.URL.Query().Get("continue"))
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("Rejected logout continue url")
			s.renderError(w, r, http.StatusBadRequest, "Invalid continue url.")
			return
		}

		s.sessions.Clear(w)
		if session != nil {
			log.Ctx(r.Context()).Info().Str("user_id", session.UserID).Msg("User logged out")
		}
		http.Redirect(w, r, continueURL, http.StatusFound)
	}
}
