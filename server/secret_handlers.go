package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-shh/internal/metrics"
	"github.com/jrsteele09/go-shh/secrets"
	"github.com/jrsteele09/go-shh/sessions"
	"github.com/rs/zerolog/log"
)

const secretNotFoundMessage = "Oops, that secret can't be found."

// SubmitResultPageData renders the link to a newly stored secret
type SubmitResultPageData struct {
	PageData
	SecretURL string
	TTL       string
}

// SecretsPageData renders the caller's unread secrets
type SecretsPageData struct {
	PageData
	Secrets []SecretView
}

// SecretView is a secret's metadata as shown to users
type SecretView struct {
	ID          string
	URL         string
	Description string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// SecretPageData renders the confirmation and reveal pages
type SecretPageData struct {
	PageData
	ID          string
	Description string
	ExpiresAt   time.Time
	Secret      string
}

func (s *Server) secretPath(id string) string {
	return s.servicePathFor(RouteSecrets + "/" + id)
}

func (s *Server) secretURL(id string) string {
	return s.serviceAddress + RouteSecrets + "/" + id
}

func (s *Server) SubmitSecretHandler() SessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		newSecret, err := submitSecretParams(r)
		if err != nil {
			message, _ := paramErrorMessage(err)
			s.renderError(w, r, http.StatusBadRequest, message)
			return
		}
		if session != nil {
			newSecret.OwnerID = session.UserID
		}

		id, err := s.store.Create(r.Context(), newSecret)
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to store secret")
			s.renderError(w, r, http.StatusInternalServerError, "")
			return
		}
		metrics.SecretsCreatedTotal.Inc()
		log.Ctx(r.Context()).Info().Str("ttl", string(newSecret.TTL)).Bool("owned", session != nil).Msg("Secret stored")

		w.Header().Set("Location", s.secretPath(id))
		setNoStore(w)
		s.render(w, r, http.StatusAccepted, "submit_result.html", SubmitResultPageData{
			PageData:  s.pageData(session),
			SecretURL: s.secretURL(id),
			TTL:       newSecret.TTL.Label(),
		})
	}
}

func (s *Server) ListSecretsHandler() SessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		owned, err := s.store.FetchForOwner(r.Context(), session.UserID, s.now())
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to list secrets")
			s.renderError(w, r, http.StatusInternalServerError, "")
			return
		}

		views := make([]SecretView, 0, len(owned))
		for _, secret := range owned {
			views = append(views, SecretView{
				ID:          secret.ID,
				URL:         s.secretURL(secret.ID),
				Description: secret.DescriptionText(),
				CreatedAt:   secret.CreatedAt,
				ExpiresAt:   secret.ExpiresAt,
			})
		}

		s.render(w, r, http.StatusOK, "secrets.html", SecretsPageData{
			PageData: s.pageData(session),
			Secrets:  views,
		})
	}
}

// ConfirmSecretHandler shows a secret's metadata without consuming it, so link
// previews and scanners cannot burn the secret.
func (s *Server) ConfirmSecretHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		secret, err := s.store.Peek(r.Context(), id, s.now())
		if err != nil {
			s.secretLookupFailed(w, r, err)
			return
		}

		s.render(w, r, http.StatusOK, "confirm.html", SecretPageData{
			PageData:    s.pageData(nil),
			ID:          secret.ID,
			Description: secret.DescriptionText(),
			ExpiresAt:   secret.ExpiresAt,
		})
	}
}

// RevealSecretHandler returns the payload and destroys the secret.
func (s *Server) RevealSecretHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		secret, err := s.store.RetrieveAndConsume(r.Context(), id, s.now())
		if err != nil {
			s.secretLookupFailed(w, r, err)
			return
		}
		metrics.SecretsRetrievedTotal.Inc()
		log.Ctx(r.Context()).Info().Msg("Secret revealed and destroyed")

		s.render(w, r, http.StatusOK, "secret.html", SecretPageData{
			PageData:    s.pageData(nil),
			ID:          secret.ID,
			Description: secret.DescriptionText(),
			ExpiresAt:   secret.ExpiresAt,
			Secret:      string(secret.Payload),
		})
	}
}

func (s *Server) secretLookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, secrets.ErrNotFound) {
		metrics.SecretsNotFoundTotal.Inc()
		s.renderError(w, r, http.StatusNotFound, secretNotFoundMessage)
		return
	}
	log.Ctx(r.Context()).Err(err).Msg("Failed to read secret")
	s.renderError(w, r, http.StatusInternalServerError, "")
}
