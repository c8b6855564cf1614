package server

import (
	"net/http"

	"github.com/jrsteele09/go-shh/secrets"
	"github.com/jrsteele09/go-shh/sessions"
)

// PageData is the template model shared by every page
type PageData struct {
	AppName     string
	OidcName    string
	AboutURL    string
	ServicePath string
	UserID      string
	CSRF        string
}

type ttlOption struct {
	Value string
	Label string
}

// IndexPageData renders the secret submission form
type IndexPageData struct {
	PageData
	TTLs                 []ttlOption
	DefaultTTL           string
	MaxDescriptionLength int
	MaxSecretLength      int
}

// ErrorPageData renders an error with an optional user facing message
type ErrorPageData struct {
	PageData
	Status     int
	StatusText string
	Message    string
}

func (s *Server) pageData(session *sessions.Session) PageData {
	data := PageData{
		AppName:     s.config.GetAppName(),
		OidcName:    s.config.GetOidcName(),
		AboutURL:    s.config.GetOidcAboutURL(),
		ServicePath: s.servicePath,
	}
	if session != nil {
		data.UserID = session.UserID
		data.CSRF = session.CSRFToken
	}
	return data
}

// IndexHandler renders the home page
func (s *Server) IndexHandler() SessionHandlerFunc {
	ttls := make([]ttlOption, 0, len(secrets.TTLs()))
	for _, ttl := range secrets.TTLs() {
		ttls = append(ttls, ttlOption{Value: string(ttl), Label: ttl.Label()})
	}

	return func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		s.render(w, r, http.StatusOK, "index.html", IndexPageData{
			PageData:             s.pageData(session),
			TTLs:                 ttls,
			DefaultTTL:           string(secrets.TTL15Minutes),
			MaxDescriptionLength: secrets.MaxDescriptionLength,
			MaxSecretLength:      secrets.MaxPayloadLength,
		})
	}
}

// StatusHandler reports readiness for load balancers
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		setNoStore(w)
		if !s.lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Shutting down"))
			return
		}
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "")
	}
}

// renderError renders the error page. Messages are only shown for client
// errors; server errors stay generic.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if status >= http.StatusInternalServerError {
		message = ""
	}
	s.render(w, r, status, "error.html", ErrorPageData{
		PageData:   s.pageData(nil),
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	})
}
