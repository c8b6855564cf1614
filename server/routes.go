package server

import (
	"net/http"

	"github.com/jrsteele09/go-shh/internal/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteStatus, ChainMiddleware(s.StatusHandler(), s.lifecycle.Track))

	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.WithSession(SessionOptional, s.IndexHandler()), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteOidcCallback, ChainMiddleware(s.OidcCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.WithSession(SessionOptional, s.LogoutHandler()), s.HTMLMiddleWare()...))

	// SECRETS
	s.RegisterRouteHandler("POST "+RouteSecrets, ChainMiddleware(s.WithSession(SessionOptional, s.SubmitSecretHandler()), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSecrets, ChainMiddleware(s.WithSession(SessionRequired, s.ListSecretsHandler()), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSecret, ChainMiddleware(s.ConfirmSecretHandler(), s.HTMLMiddleWare(NoStoreMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteSecret, ChainMiddleware(s.RevealSecretHandler(), s.HTMLMiddleWare(NoStoreMiddleware)...))

	if s.config.GetMetricsEnabled() && s.config.GetMetricsPort() == "" {
		s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	}

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.lifecycle.Track, s.RecoverMiddleware, s.CacheMiddleware))
	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundHandler(), s.HTMLMiddleWare()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := r.PathValue("file")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			logError(r, err)
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
