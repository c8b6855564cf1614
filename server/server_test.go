package server_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-shh/authflow"
	"github.com/jrsteele09/go-shh/internal/config"
	"github.com/jrsteele09/go-shh/internal/lifecycle"
	"github.com/jrsteele09/go-shh/internal/oidctest"
	"github.com/jrsteele09/go-shh/secrets"
	"github.com/jrsteele09/go-shh/secrets/repofakes"
	"github.com/jrsteele09/go-shh/server"
	"github.com/jrsteele09/go-shh/sessions"
	"github.com/jrsteele09/go-shh/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	serviceAddress = "https://secrets.example.com"
	clientID       = "shh"
	clientSecret   = "client-secret"
)

type serverFixture struct {
	server    *server.Server
	store     *repofakes.FakeSecretStore
	provider  *oidctest.Provider
	sessions  *sessions.Manager
	lifecycle *lifecycle.Coordinator
}

func newServerFixture(t *testing.T, configure ...func(*config.Settings)) *serverFixture {
	t.Helper()

	cfg := config.New()
	cfg.TestingMode = true
	cfg.Service.Hostname = "secrets.example.com"
	cfg.Oidc.ClientID = clientID
	cfg.Oidc.ClientSecret = clientSecret
	for _, c := range configure {
		c(cfg)
	}

	provider := oidctest.Start(t, clientID, clientSecret)
	cfg.Oidc.Issuer = provider.Issuer()

	decoder := token.NewDecoder(provider.PublicKey(), provider.Issuer(), clientID)
	manager := sessions.NewManager(decoder, true, cfg.GetSessionCookieMaxAge())

	coordinator, err := authflow.New(authflow.Config{
		ServiceAddress: cfg.GetServiceAddress(),
		RedirectURI:    cfg.GetOidcRedirectURI(),
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  provider.AuthEndpoint(),
			TokenURL: provider.TokenEndpoint(),
		},
		TestingMode: true,
	}, decoder, manager, provider.Client())
	require.NoError(t, err)

	store := repofakes.NewFakeSecretStore()
	lc := lifecycle.New(0, time.Second)
	lc.MarkReady()

	srv, err := server.New(cfg, store, manager, coordinator, lc)
	require.NoError(t, err)

	return &serverFixture{
		server:    srv,
		store:     store,
		provider:  provider,
		sessions:  manager,
		lifecycle: lc,
	}
}

func (f *serverFixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	return rec
}

// login establishes a session for subject and returns its cookies and CSRF token.
func (f *serverFixture) login(t *testing.T, subject string) ([]*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	session, err := f.sessions.Establish(rec, f.provider.MintIDToken(subject, "", time.Hour))
	require.NoError(t, err)
	return rec.Result().Cookies(), session.CSRFToken
}

func postForm(target string, form url.Values, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func get(target string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestIndex(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	require.Equal(t, "deny", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	require.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	body := rec.Body.String()
	require.Contains(t, body, `action="/secrets"`)
	require.Contains(t, body, `<option value="15m" selected>`)
	require.Contains(t, body, "Log in with")
	require.NotContains(t, body, `name="csrf"`)
}

func TestIndexLoggedIn(t *testing.T) {
	f := newServerFixture(t)
	cookies, csrf := f.login(t, "alice")

	rec := f.do(get("/", cookies...))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	require.Contains(t, body, `name="csrf" value="`+csrf+`"`)
	require.Contains(t, body, "alice")
	require.Contains(t, body, "Log out")
}

func TestStatus(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/status"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())

	require.NoError(t, f.lifecycle.Shutdown(&http.Server{}))

	rec = f.do(get("/status"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNotFound(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/nope"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "404 Not Found")
}

func TestStaticFiles(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/static/main.css"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = f.do(get("/static/missing.css"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.do(get("/metrics"))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.NotContains(t, rec.Body.String(), "shh_secrets_created_total")
	})

	t.Run("enabled on the public listener", func(t *testing.T) {
		f := newServerFixture(t, func(cfg *config.Settings) {
			cfg.Metrics.Enabled = true
		})
		f.do(get("/"))
		rec := f.do(get("/metrics"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "shh_http_requests_total")
	})

	t.Run("dedicated port keeps it off the public listener", func(t *testing.T) {
		f := newServerFixture(t, func(cfg *config.Settings) {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Port = 9100
		})
		rec := f.do(get("/metrics"))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.NotContains(t, rec.Body.String(), "shh_secrets_created_total")
	})
}

func TestLogin(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/login?continue=" + url.QueryEscape("/secrets")))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location.String(), f.provider.AuthEndpoint()))
	require.Equal(t, serviceAddress+"/oidc/callback", location.Query().Get("redirect_uri"))
	require.NotNil(t, findCookie(rec, authflow.FlowCookie))
}

func TestLoginRejectsForeignContinueURL(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/login?continue=" + url.QueryEscape("https://evil.example.com/")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, findCookie(rec, authflow.FlowCookie))
}

func TestLoginCallback(t *testing.T) {
	f := newServerFixture(t)
	f.provider.SetSubject("bob@example.com")

	login := f.do(get("/login?continue=" + url.QueryEscape("/secrets")))
	require.Equal(t, http.StatusFound, login.Code)

	callback := f.provider.Authorize(login.Header().Get("Location"))
	rec := f.do(get(callback.RequestURI(), login.Result().Cookies()...))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/secrets", rec.Header().Get("Location"))

	sessionCookie := findCookie(rec, sessions.SessionCookie)
	require.NotNil(t, sessionCookie)

	list := f.do(get("/secrets", sessionCookie))
	require.Equal(t, http.StatusOK, list.Code)
	require.Contains(t, list.Body.String(), "bob@example.com")
}

func TestLoginCallbackDeclined(t *testing.T) {
	f := newServerFixture(t)

	login := f.do(get("/login"))
	authURL, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)

	query := url.Values{
		"state": {authURL.Query().Get("state")},
		"error": {"access_denied"},
	}
	rec := f.do(get("/oidc/callback?"+query.Encode(), login.Result().Cookies()...))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	require.Nil(t, findCookie(rec, sessions.SessionCookie))
}

func TestLoginCallbackWithoutPendingFlow(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/oidc/callback?state=abc&code=def"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, f.provider.TokenExchanges())
}

func TestLogoutClearsInvalidSessionCookie(t *testing.T) {
	f := newServerFixture(t)

	stale := &http.Cookie{Name: sessions.SessionCookie, Value: "not-a-token"}
	rec := f.do(get("/logout", stale))
	require.Equal(t, http.StatusFound, rec.Code)

	cleared := findCookie(rec, sessions.SessionCookie)
	require.NotNil(t, cleared)
	require.Negative(t, cleared.MaxAge)
}

func TestLogout(t *testing.T) {
	f := newServerFixture(t)
	cookies, _ := f.login(t, "alice")

	rec := f.do(get("/logout", cookies...))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	cleared := findCookie(rec, sessions.SessionCookie)
	require.NotNil(t, cleared)
	require.Negative(t, cleared.MaxAge)
}

func TestSubmitSecretAnonymous(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(postForm("/secrets", url.Values{
		"secret":      {"hunter2"},
		"ttl":         {"5m"},
		"description": {"wifi password"},
	}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/secrets/"))
	require.Contains(t, rec.Body.String(), serviceAddress+location)
	require.Contains(t, rec.Body.String(), "5 minutes")
	require.Equal(t, 1, f.store.Len())

	id := strings.TrimPrefix(location, "/secrets/")
	secret, err := f.store.Peek(t.Context(), id, time.Now())
	require.NoError(t, err)
	require.Empty(t, secret.Owner())
	require.Equal(t, "wifi password", secret.DescriptionText())
}

func TestSubmitSecretOwned(t *testing.T) {
	f := newServerFixture(t)
	cookies, csrf := f.login(t, "alice")

	rec := f.do(postForm("/secrets", url.Values{
		"secret": {"hunter2"},
		"ttl":    {"1h"},
		"csrf":   {csrf},
	}, cookies...))
	require.Equal(t, http.StatusAccepted, rec.Code)

	owned, err := f.store.FetchForOwner(t.Context(), "alice", time.Now())
	require.NoError(t, err)
	require.Len(t, owned, 1)
}

func TestSubmitSecretRequiresCSRF(t *testing.T) {
	f := newServerFixture(t)
	cookies, _ := f.login(t, "alice")

	for name, csrf := range map[string]string{"missing": "", "wrong": "not-the-token"} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(postForm("/secrets", url.Values{
				"secret": {"hunter2"},
				"ttl":    {"5m"},
				"csrf":   {csrf},
			}, cookies...))
			require.Equal(t, http.StatusForbidden, rec.Code)
			require.Zero(t, f.store.Len())
		})
	}
}

func TestSubmitSecretValidation(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{
			name:    "missing secret",
			form:    url.Values{"ttl": {"5m"}},
			message: "Missing secret.",
		},
		{
			name:    "missing ttl",
			form:    url.Values{"secret": {"hunter2"}},
			message: "Missing ttl.",
		},
		{
			name:    "unsupported ttl",
			form:    url.Values{"secret": {"hunter2"}, "ttl": {"2h"}},
			message: "Invalid ttl: Must be a value from 5m,15m,30m,1h.",
		},
		{
			name:    "long description",
			form:    url.Values{"secret": {"hunter2"}, "ttl": {"5m"}, "description": {strings.Repeat("d", secrets.MaxDescriptionLength+1)}},
			message: "The description can",
		},
		{
			name:    "long secret",
			form:    url.Values{"secret": {strings.Repeat("s", secrets.MaxPayloadLength+1)}, "ttl": {"5m"}},
			message: "longer than 2,000 bytes.",
		},
		{
			name:    "multibyte secret over the byte limit",
			form:    url.Values{"secret": {strings.Repeat("é", secrets.MaxPayloadLength/2+1)}, "ttl": {"5m"}},
			message: "longer than 2,000 bytes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			rec := f.do(postForm("/secrets", tt.form))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.message)
			require.Zero(t, f.store.Len())
		})
	}
}

func TestSubmitSecretAtByteLimit(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(postForm("/secrets", url.Values{
		"secret": {strings.Repeat("é", secrets.MaxPayloadLength/2)},
		"ttl":    {"5m"},
	}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, f.store.Len())
}

func TestSubmitSecretStorageFailure(t *testing.T) {
	f := newServerFixture(t)
	f.store.FailWith(secrets.ErrDuplicateID)

	rec := f.do(postForm("/secrets", url.Values{"secret": {"hunter2"}, "ttl": {"5m"}}))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
}

func TestListSecretsRequiresLogin(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/secrets"))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login?continue="+url.QueryEscape(serviceAddress+"/secrets"), rec.Header().Get("Location"))
}

func TestListSecrets(t *testing.T) {
	f := newServerFixture(t)
	cookies, _ := f.login(t, "alice")

	_, err := f.store.Create(t.Context(), secrets.NewSecret{Payload: []byte("a"), TTL: secrets.TTL1Hour, Description: "for bob", OwnerID: "alice"})
	require.NoError(t, err)
	_, err = f.store.Create(t.Context(), secrets.NewSecret{Payload: []byte("b"), TTL: secrets.TTL1Hour, Description: "someone else's", OwnerID: "carol"})
	require.NoError(t, err)

	rec := f.do(get("/secrets", cookies...))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "for bob")
	require.NotContains(t, rec.Body.String(), "someone else")
	require.NotContains(t, rec.Body.String(), "<pre")
}

func TestConfirmAndRevealSecret(t *testing.T) {
	f := newServerFixture(t)

	id, err := f.store.Create(t.Context(), secrets.NewSecret{Payload: []byte("hunter2"), TTL: secrets.TTL5Minutes, Description: "db password"})
	require.NoError(t, err)

	confirm := f.do(get("/secrets/" + id))
	require.Equal(t, http.StatusOK, confirm.Code)
	require.Equal(t, "no-store", confirm.Header().Get("Cache-Control"))
	require.Contains(t, confirm.Body.String(), "db password")
	require.Contains(t, confirm.Body.String(), `action="/secrets/`+id+`"`)
	require.NotContains(t, confirm.Body.String(), "hunter2")
	require.Equal(t, 1, f.store.Len())

	reveal := f.do(postForm("/secrets/"+id, url.Values{}))
	require.Equal(t, http.StatusOK, reveal.Code)
	require.Equal(t, "no-store", reveal.Header().Get("Cache-Control"))
	require.Contains(t, reveal.Body.String(), "hunter2")
	require.Zero(t, f.store.Len())

	again := f.do(postForm("/secrets/"+id, url.Values{}))
	require.Equal(t, http.StatusNotFound, again.Code)
	require.Contains(t, again.Body.String(), "Oops, that secret can")

	confirm = f.do(get("/secrets/" + id))
	require.Equal(t, http.StatusNotFound, confirm.Code)
}

func TestRevealEscapesPayload(t *testing.T) {
	f := newServerFixture(t)

	id, err := f.store.Create(t.Context(), secrets.NewSecret{Payload: []byte("<script>alert(1)</script>"), TTL: secrets.TTL5Minutes})
	require.NoError(t, err)

	rec := f.do(postForm("/secrets/"+id, url.Values{}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "<script>")
	require.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestUnknownSecret(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(get("/secrets/does-not-exist"))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(postForm("/secrets/does-not-exist", url.Values{}))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
