package sessions_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-shh/internal/oidctest"
	"github.com/jrsteele09/go-shh/sessions"
	"github.com/jrsteele09/go-shh/token"
	"github.com/stretchr/testify/require"
)

const testClientID = "shh"

func newManager(t *testing.T, testingMode bool) (*sessions.Manager, *oidctest.Provider) {
	t.Helper()
	provider := oidctest.Start(t, testClientID, "client-secret")
	decoder := token.NewDecoder(provider.PublicKey(), provider.Issuer(), testClientID)
	return sessions.NewManager(decoder, testingMode, 24*time.Hour), provider
}

func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestEstablishAndResolve(t *testing.T) {
	manager, provider := newManager(t, true)
	idToken := provider.MintIDToken("alice", "", time.Hour)

	rec := httptest.NewRecorder()
	established, err := manager.Establish(rec, idToken)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.Equal(t, idToken, cookies[0].Value)
	require.Equal(t, 86400, cookies[0].MaxAge)
	require.Equal(t, "/", cookies[0].Path)
	require.True(t, cookies[0].HttpOnly)
	require.False(t, cookies[0].Secure)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	resolved := manager.Resolve(requestWithCookies(rec))
	require.NotNil(t, resolved)
	require.Equal(t, "alice", resolved.UserID)
	require.Equal(t, established.CSRFToken, resolved.CSRFToken)
	require.NotEmpty(t, resolved.CSRFToken)
}

func TestHostPrefixOutsideTestingMode(t *testing.T) {
	manager, provider := newManager(t, false)

	rec := httptest.NewRecorder()
	_, err := manager.Establish(rec, provider.MintIDToken("alice", "", time.Hour))
	require.NoError(t, err)

	cookie := rec.Result().Cookies()[0]
	require.Equal(t, "__Host-session", cookie.Name)
	require.True(t, cookie.Secure)
	require.NotNil(t, manager.Resolve(requestWithCookies(rec)))
}

func TestResolveRejects(t *testing.T) {
	manager, provider := newManager(t, true)

	t.Run("no cookie", func(t *testing.T) {
		require.Nil(t, manager.Resolve(httptest.NewRequest(http.MethodGet, "/", nil)))
	})

	t.Run("tampered token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: provider.MintIDToken("alice", "", time.Hour) + "x"})
		require.Nil(t, manager.Resolve(r))
	})

	t.Run("expired token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: provider.MintIDToken("alice", "", -time.Minute)})
		require.Nil(t, manager.Resolve(r))
	})

	t.Run("establish refuses invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		_, err := manager.Establish(rec, "garbage")
		require.ErrorIs(t, err, token.ErrInvalidToken)
		require.Empty(t, rec.Result().Cookies())
	})
}

func TestClear(t *testing.T) {
	manager, _ := newManager(t, true)
	rec := httptest.NewRecorder()
	manager.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Less(t, cookies[0].MaxAge, 0)
}

func TestValidCSRF(t *testing.T) {
	session := &sessions.Session{UserID: "alice", CSRFToken: "jti-1"}
	require.True(t, session.ValidCSRF("jti-1"))
	require.False(t, session.ValidCSRF("jti-2"))
	require.False(t, session.ValidCSRF(""))

	var anonymous *sessions.Session
	require.False(t, anonymous.ValidCSRF("jti-1"))
}
