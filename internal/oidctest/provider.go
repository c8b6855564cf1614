// Package oidctest runs a disposable OpenID Connect provider for tests. It
// implements just enough of the authorization code flow to drive login
// end-to-end: discovery, /auth, /token and /certs.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-shh/token"
	"github.com/jrsteele09/go-shh/token/keys"
	"github.com/stretchr/testify/require"
)

type authGrant struct {
	nonce       string
	redirectURI string
}

// Provider is a local OIDC provider.
type Provider struct {
	t          *testing.T
	httpServer *httptest.Server
	keyPair    *keys.KeyPair
	signer     *keys.Signer

	mu             sync.Mutex
	clientID       string
	clientSecret   string
	subject        string
	nonceOverride  *string
	failExchange   bool
	tokenStall     time.Duration
	tokenTTL       time.Duration
	grants         map[string]authGrant
	tokenExchanges int
}

// Start creates a provider that accepts the given client credentials and is
// stopped when the test ends.
func Start(t *testing.T, clientID, clientSecret string) *Provider {
	t.Helper()

	kp, err := keys.GenerateRSAKeyPair("oidctest", 2048)
	require.NoError(t, err)

	p := &Provider{
		t:            t,
		keyPair:      kp,
		signer:       keys.NewSigner(kp),
		clientID:     clientID,
		clientSecret: clientSecret,
		subject:      "alice@example.com",
		tokenTTL:     time.Hour,
		grants:       make(map[string]authGrant),
	}
	p.httpServer = httptest.NewServer(p)
	t.Cleanup(p.httpServer.Close)
	return p
}

func (p *Provider) Issuer() string        { return p.httpServer.URL }
func (p *Provider) AuthEndpoint() string  { return p.httpServer.URL + "/auth" }
func (p *Provider) TokenEndpoint() string { return p.httpServer.URL + "/token" }
func (p *Provider) JWKSURL() string       { return p.httpServer.URL + "/certs" }
func (p *Provider) Client() *http.Client  { return p.httpServer.Client() }
func (p *Provider) PublicKey() *rsa.PublicKey {
	return p.keyPair.PublicKey
}

// PublicKeyPEM returns the signing key in PKIX PEM form.
func (p *Provider) PublicKeyPEM() string {
	pemKey, err := p.keyPair.ExportPublicKeyPEM()
	require.NoError(p.t, err)
	return pemKey
}

// SetSubject sets the sub claim of issued identity tokens.
func (p *Provider) SetSubject(subject string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = subject
}

// SetNonce forces the nonce claim of issued tokens instead of echoing the
// nonce sent to /auth.
func (p *Provider) SetNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonceOverride = &nonce
}

// FailTokenExchange makes /token reply with invalid_grant.
func (p *Provider) FailTokenExchange() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failExchange = true
}

// StallTokenExchange makes /token wait for d, or until the client gives up,
// before answering.
func (p *Provider) StallTokenExchange(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStall = d
}

// TokenExchanges reports how many codes were successfully exchanged.
func (p *Provider) TokenExchanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenExchanges
}

// MintIDToken signs an identity token for the configured client.
func (p *Provider) MintIDToken(subject, nonce string, ttl time.Duration) string {
	now := time.Now()
	raw, err := p.signer.Sign(&token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer(),
			Subject:   subject,
			Audience:  jwt.ClaimStrings{p.clientID},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Nonce: nonce,
	})
	require.NoError(p.t, err)
	return raw
}

// Authorize follows the authorization URL the way a browser would after the
// user consents and returns the callback URL the provider redirects to.
func (p *Provider) Authorize(authURL string) *url.URL {
	p.t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(authURL)
	require.NoError(p.t, err)
	defer resp.Body.Close()
	require.Equal(p.t, http.StatusFound, resp.StatusCode)

	callback, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(p.t, err)
	return callback
}

func (p *Provider) writeJSON(w http.ResponseWriter, status int, out any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}

func (p *Provider) writeTokenError(w http.ResponseWriter, status int, code, description string) {
	p.writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// ServeHTTP implements the provider's http.Handler.
func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		p.mu.Lock()
		stall := p.tokenStall
		p.mu.Unlock()
		if stall > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(stall):
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/.well-known/openid-configuration":
		p.writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                                p.Issuer(),
			"authorization_endpoint":                p.AuthEndpoint(),
			"token_endpoint":                        p.TokenEndpoint(),
			"jwks_uri":                              p.JWKSURL(),
			"id_token_signing_alg_values_supported": []string{keys.RS256},
		})

	case "/certs":
		p.writeJSON(w, http.StatusOK, p.signer.JWKS())

	case "/auth":
		qv := r.URL.Query()
		redirectURI := qv.Get("redirect_uri")
		if qv.Get("response_type") != "code" || qv.Get("client_id") != p.clientID || redirectURI == "" {
			http.Error(w, "invalid_request", http.StatusBadRequest)
			return
		}

		code := randomCode()
		p.grants[code] = authGrant{nonce: qv.Get("nonce"), redirectURI: redirectURI}

		callback := redirectURI + "?state=" + url.QueryEscape(qv.Get("state")) + "&code=" + url.QueryEscape(code)
		http.Redirect(w, r, callback, http.StatusFound)

	case "/token":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		clientID, clientSecret, ok := r.BasicAuth()
		if !ok || clientID != p.clientID || clientSecret != p.clientSecret {
			p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		}
		if r.FormValue("grant_type") != "authorization_code" {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		}

		code := r.FormValue("code")
		grant, exists := p.grants[code]
		delete(p.grants, code)
		if !exists || p.failExchange {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
			return
		}
		if r.FormValue("redirect_uri") != grant.redirectURI {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
			return
		}

		nonce := grant.nonce
		if p.nonceOverride != nil {
			nonce = *p.nonceOverride
		}
		p.tokenExchanges++

		p.writeJSON(w, http.StatusOK, map[string]any{
			"access_token": randomCode(),
			"token_type":   "Bearer",
			"expires_in":   int(p.tokenTTL.Seconds()),
			"id_token":     p.MintIDToken(p.subject, nonce, p.tokenTTL),
		})

	default:
		http.NotFound(w, r)
	}
}

func randomCode() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
