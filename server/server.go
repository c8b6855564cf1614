package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-shh/authflow"
	"github.com/jrsteele09/go-shh/internal/config"
	"github.com/jrsteele09/go-shh/internal/lifecycle"
	"github.com/jrsteele09/go-shh/secrets"
	"github.com/jrsteele09/go-shh/sessions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env            string // Environment (e.g., "DEV", "PROD")
	mux            *http.ServeMux
	routes         []string
	config         config.Config
	serviceAddress string
	servicePath    string
	store          secrets.Store
	sessions       *sessions.Manager
	auth           *authflow.Coordinator
	lifecycle      *lifecycle.Coordinator
	templates      map[string]*template.Template
	now            func() time.Time
}

func New(config config.Config, store secrets.Store, sessionManager *sessions.Manager, auth *authflow.Coordinator, lc *lifecycle.Coordinator) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	s := &Server{
		env:            config.GetEnv(),
		mux:            http.NewServeMux(),
		config:         config,
		serviceAddress: config.GetServiceAddress(),
		servicePath:    config.GetServicePath(),
		store:          store,
		sessions:       sessionManager,
		auth:           auth,
		lifecycle:      lc,
		templates:      templates,
		now:            time.Now,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// servicePathFor prefixes a route with the path the service is mounted under.
func (s *Server) servicePathFor(route string) string {
	return s.servicePath + route
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
