package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jrsteele09/go-shh/authflow"
	"github.com/jrsteele09/go-shh/internal/config"
	"github.com/jrsteele09/go-shh/internal/database"
	"github.com/jrsteele09/go-shh/internal/lifecycle"
	"github.com/jrsteele09/go-shh/internal/metrics"
	"github.com/jrsteele09/go-shh/secrets"
	"github.com/jrsteele09/go-shh/server"
	"github.com/jrsteele09/go-shh/sessions"
	"github.com/jrsteele09/go-shh/token"
	"github.com/jrsteele09/go-shh/token/keys"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var (
	port        int
	testingMode bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the web UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("port") {
			overrides["server.port"] = port
		}
		if cmd.Flags().Changed("testing-mode") {
			overrides["testing_mode"] = testingMode
		}

		cfg, err := loadConfig(cmd, overrides)
		if err != nil {
			return err
		}
		if err := cfg.ValidateServer(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		displayAppname(cfg.GetAppName())
		if cfg.GetTestingMode() {
			log.Warn().Msg("Testing mode: cookies are not Secure and have no __Host- prefix")
		}

		ctx, cancel := signalContext()
		defer cancel()

		return runServer(ctx, cfg)
	},
}

func init() {
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	serverCmd.Flags().BoolVar(&testingMode, "testing-mode", false, "allow plain HTTP cookies for local development")
}

func runServer(ctx context.Context, cfg config.Config) error {
	db, err := database.Open(ctx, cfg.GetDatabaseDriver(), cfg.GetDatabaseDSN(), database.PoolConfig{
		MaxOpenConns:    cfg.GetDatabaseMaxOpenConns(),
		MaxIdleConns:    cfg.GetDatabaseMaxIdleConns(),
		ConnMaxLifetime: cfg.GetDatabaseConnMaxLifetime(),
	})
	if err != nil {
		return err
	}
	defer db.Close()

	httpClient, err := authflow.NewHTTPClient(cfg.GetOidcCAPEMFile())
	if err != nil {
		return err
	}

	endpoint := oauth2.Endpoint{
		AuthURL:  cfg.GetOidcAuthEndpoint(),
		TokenURL: cfg.GetOidcTokenEndpoint(),
	}
	jwksURL := cfg.GetOidcJWKSURL()
	if cfg.GetOidcDiscover() {
		discovered, discoveredJWKS, err := authflow.Discover(ctx, cfg.GetOidcIssuer(), httpClient)
		if err != nil {
			return err
		}
		endpoint = discovered
		if jwksURL == "" && cfg.GetOidcPublicKeyFile() == "" {
			jwksURL = discoveredJWKS
		}
	}

	decoder, err := newDecoder(ctx, cfg, jwksURL, httpClient)
	if err != nil {
		return err
	}

	sessionManager := sessions.NewManager(decoder, cfg.GetTestingMode(), cfg.GetSessionCookieMaxAge())
	auth, err := authflow.New(authflow.Config{
		ServiceAddress:  cfg.GetServiceAddress(),
		RedirectURI:     cfg.GetOidcRedirectURI(),
		ClientID:        cfg.GetOidcClientID(),
		ClientSecret:    cfg.GetOidcClientSecret(),
		Endpoint:        endpoint,
		ExchangeTimeout: cfg.GetOidcExchangeTimeout(),
		FlowMaxAge:      cfg.GetFlowCookieMaxAge(),
		TestingMode:     cfg.GetTestingMode(),
	}, decoder, sessionManager, httpClient)
	if err != nil {
		return err
	}

	lc := lifecycle.New(cfg.GetShutdownSleep(), cfg.GetShutdownWait())
	handler, err := server.New(cfg, secrets.NewSQLStore(db), sessionManager, auth, lc)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.GetPort())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GetPort(), err)
	}

	if cfg.GetMetricsEnabled() && cfg.GetMetricsPort() != "" {
		metricsListener, err := net.Listen("tcp", cfg.GetMetricsPort())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GetMetricsPort(), err)
		}
		go serveMetrics(ctx, metricsListener)
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	log.Info().Str("service_address", cfg.GetServiceAddress()).Msg("Starting server")
	return lc.Serve(ctx, httpServer, listener)
}

// serveMetrics exposes /metrics on a listener kept off the public port until
// ctx is cancelled.
func serveMetrics(ctx context.Context, listener net.Listener) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	metricsServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = metricsServer.Close()
	}()

	log.Info().Str("addr", listener.Addr().String()).Msg("Metrics listening")
	if err := metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Msg("Metrics server failed")
	}
}

// newDecoder verifies identity tokens against the provider's JWKS when one is
// known, otherwise against the configured public key file.
func newDecoder(ctx context.Context, cfg config.Config, jwksURL string, httpClient *http.Client) (token.Decoder, error) {
	if jwksURL != "" {
		return token.NewJWKSDecoder(ctx, jwksURL, cfg.GetOidcIssuer(), cfg.GetOidcClientID(), httpClient)
	}
	publicKey, err := keys.LoadPublicKey(cfg.GetOidcPublicKeyFile())
	if err != nil {
		return nil, err
	}
	return token.NewDecoder(publicKey, cfg.GetOidcIssuer(), cfg.GetOidcClientID()), nil
}
