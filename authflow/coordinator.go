package authflow

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	shherrors "github.com/jrsteele09/go-shh/internal/errors"
	"github.com/jrsteele09/go-shh/sessions"
	"github.com/jrsteele09/go-shh/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// FlowCookie is the base name of the cookie holding the pending login.
const FlowCookie = "oidc"

const (
	randomBytes            = 32
	defaultExchangeTimeout = 10 * time.Second
	defaultFlowMaxAge      = 10 * time.Minute
)

var (
	ErrInvalidContinueURL = shherrors.ErrInvalidContinueURL
	ErrStateMismatch      = shherrors.ErrStateMismatch
	ErrNonceMismatch      = shherrors.ErrNonceMismatch
	ErrAccessDenied       = shherrors.ErrAccessDenied
	ErrProviderError      = shherrors.ErrProviderError
	ErrExchangeFailed     = shherrors.ErrExchangeFailed
)

// Config describes the relying party and its provider.
type Config struct {
	ServiceAddress  string
	RedirectURI     string
	ClientID        string
	ClientSecret    string
	Endpoint        oauth2.Endpoint
	ExchangeTimeout time.Duration
	FlowMaxAge      time.Duration
	TestingMode     bool
}

// Coordinator drives the authorization code flow: StartLogin issues state and
// nonce, HandleCallback verifies them and establishes the session.
type Coordinator struct {
	oauth2Config    *oauth2.Config
	continueURLs    *ContinueURLValidator
	decoder         token.Decoder
	sessions        *sessions.Manager
	httpClient      *http.Client
	exchangeTimeout time.Duration
	flowMaxAge      time.Duration
	testingMode     bool
}

// New creates a coordinator. httpClient is used for the token exchange.
func New(cfg Config, decoder token.Decoder, sessionManager *sessions.Manager, httpClient *http.Client) (*Coordinator, error) {
	continueURLs, err := NewContinueURLValidator(cfg.ServiceAddress)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := cfg.Endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInHeader

	c := &Coordinator{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{oidc.ScopeOpenID},
		},
		continueURLs:    continueURLs,
		decoder:         decoder,
		sessions:        sessionManager,
		httpClient:      httpClient,
		exchangeTimeout: cfg.ExchangeTimeout,
		flowMaxAge:      cfg.FlowMaxAge,
		testingMode:     cfg.TestingMode,
	}
	if c.exchangeTimeout <= 0 {
		c.exchangeTimeout = defaultExchangeTimeout
	}
	if c.flowMaxAge <= 0 {
		c.flowMaxAge = defaultFlowMaxAge
	}
	return c, nil
}

// ValidateContinueURL checks a redirect target supplied by the client.
func (c *Coordinator) ValidateContinueURL(continueURL string) (string, error) {
	return c.continueURLs.Validate(continueURL)
}

// FlowCookieName returns the name the pending flow cookie is issued under.
func (c *Coordinator) FlowCookieName() string {
	return sessions.CookieName(FlowCookie, c.testingMode)
}

// StartLogin records a new pending flow in the flow cookie and returns the
// provider authorization URL to redirect the browser to.
func (c *Coordinator) StartLogin(w http.ResponseWriter, continueURL string) (string, error) {
	continueURL, err := c.continueURLs.Validate(continueURL)
	if err != nil {
		return "", err
	}

	state, err := generateRandomString(randomBytes)
	if err != nil {
		return "", fmt.Errorf("[authflow StartLogin] failed to generate state: %w", err)
	}
	nonce, err := generateRandomString(randomBytes)
	if err != nil {
		return "", fmt.Errorf("[authflow StartLogin] failed to generate nonce: %w", err)
	}

	pending := PendingFlow{State: state, Nonce: nonce, ContinueURL: continueURL}
	http.SetCookie(w, sessions.NewCookie(FlowCookie, pending.Encode(), int(c.flowMaxAge.Seconds()), c.testingMode))

	return c.oauth2Config.AuthCodeURL(state, oidc.Nonce(HashNonce(nonce))), nil
}

// HandleCallback completes the flow for the provider's redirect back to the
// service and returns the continue URL. The flow cookie is cleared whatever
// the outcome, so a state can only ever be consumed once.
func (c *Coordinator) HandleCallback(w http.ResponseWriter, r *http.Request) (string, error) {
	http.SetCookie(w, sessions.ExpiredCookie(FlowCookie, c.testingMode))

	pending, err := c.pendingFlow(r)
	if err != nil {
		return "", err
	}

	query := r.URL.Query()
	if subtle.ConstantTimeCompare([]byte(pending.State), []byte(query.Get("state"))) != 1 {
		return "", fmt.Errorf("%w: callback state does not match pending flow", ErrStateMismatch)
	}

	if providerErr := query.Get("error"); providerErr != "" {
		if providerErr == "access_denied" {
			return "", ErrAccessDenied
		}
		return "", fmt.Errorf("%w: %s: %s", ErrProviderError, providerErr, query.Get("error_description"))
	}

	continueURL, err := c.continueURLs.Validate(pending.ContinueURL)
	if err != nil {
		return "", err
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: callback carried no code", ErrProviderError)
	}

	idToken, err := c.exchange(r.Context(), code)
	if err != nil {
		return "", err
	}

	claims, err := c.decoder.Decode(idToken)
	if err != nil {
		return "", fmt.Errorf("[authflow HandleCallback] provider returned unusable id_token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(HashNonce(pending.Nonce))) != 1 {
		return "", ErrNonceMismatch
	}

	session, err := c.sessions.Establish(w, idToken)
	if err != nil {
		return "", err
	}
	log.Ctx(r.Context()).Info().Str("user_id", session.UserID).Msg("User logged in")

	return continueURL, nil
}

func (c *Coordinator) pendingFlow(r *http.Request) (PendingFlow, error) {
	cookie, err := r.Cookie(c.FlowCookieName())
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return PendingFlow{}, fmt.Errorf("%w: no pending flow", ErrStateMismatch)
		}
		return PendingFlow{}, fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	return DecodePendingFlow(cookie.Value)
}

func (c *Coordinator) exchange(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.exchangeTimeout)
	defer cancel()

	tok, err := c.oauth2Config.Exchange(oidc.ClientContext(ctx, c.httpClient), code)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", fmt.Errorf("%w: token response carried no id_token", ErrExchangeFailed)
	}
	return idToken, nil
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashNonce is the value sent to the provider for a raw nonce, and so the
// value the identity token's nonce claim must carry.
func HashNonce(nonce string) string {
	hash := sha256.Sum256([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
