package token_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-shh/token"
	"github.com/jrsteele09/go-shh/token/keys"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://id.example.com"
	testAudience = "shh-client"
)

type decoderFixture struct {
	keyPair *keys.KeyPair
	signer  *keys.Signer
	now     time.Time
}

func newDecoderFixture(t *testing.T) *decoderFixture {
	t.Helper()
	kp, err := keys.GenerateRSAKeyPair("kid-1", 2048)
	require.NoError(t, err)
	return &decoderFixture{
		keyPair: kp,
		signer:  keys.NewSigner(kp),
		now:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *decoderFixture) claims() *token.Claims {
	return &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{testAudience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(f.now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
		},
		Nonce: "nonce-hash",
	}
}

func (f *decoderFixture) sign(t *testing.T, claims *token.Claims) string {
	t.Helper()
	raw, err := f.signer.Sign(claims)
	require.NoError(t, err)
	return raw
}

func (f *decoderFixture) decoder() *token.JWTDecoder {
	return token.NewDecoder(f.keyPair.PublicKey, testIssuer, testAudience, token.WithClock(func() time.Time { return f.now }))
}

func TestDecode(t *testing.T) {
	f := newDecoderFixture(t)

	t.Run("valid token", func(t *testing.T) {
		claims := f.claims()
		decoded, err := f.decoder().Decode(f.sign(t, claims))
		require.NoError(t, err)
		require.Equal(t, "user-1", decoded.Subject)
		require.Equal(t, claims.ID, decoded.ID)
		require.Equal(t, "nonce-hash", decoded.Nonce)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := f.claims()
		claims.ExpiresAt = jwt.NewNumericDate(f.now.Add(-time.Second))
		_, err := f.decoder().Decode(f.sign(t, claims))
		require.ErrorIs(t, err, token.ErrInvalidToken)
		require.ErrorIs(t, err, token.ErrTokenExpired)
	})

	invalid := []struct {
		name   string
		mutate func(*token.Claims)
	}{
		{name: "wrong issuer", mutate: func(c *token.Claims) { c.Issuer = "https://evil.example.com" }},
		{name: "wrong audience", mutate: func(c *token.Claims) { c.Audience = jwt.ClaimStrings{"other"} }},
		{name: "missing expiry", mutate: func(c *token.Claims) { c.ExpiresAt = nil }},
		{name: "missing subject", mutate: func(c *token.Claims) { c.Subject = "" }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			claims := f.claims()
			tt.mutate(claims)
			_, err := f.decoder().Decode(f.sign(t, claims))
			require.ErrorIs(t, err, token.ErrInvalidToken)
			require.NotErrorIs(t, err, token.ErrTokenExpired)
		})
	}

	t.Run("signed by another key", func(t *testing.T) {
		other := newDecoderFixture(t)
		_, err := f.decoder().Decode(other.sign(t, f.claims()))
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("hmac token rejected", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, f.claims()).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = f.decoder().Decode(raw)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.decoder().Decode("not.a.token")
		require.ErrorIs(t, err, token.ErrInvalidToken)

		_, err = f.decoder().Decode("")
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})
}

func TestJWKSDecoder(t *testing.T) {
	f := newDecoderFixture(t)
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.signer.JWKS())
	}))
	t.Cleanup(jwksServer.Close)

	decoder, err := token.NewJWKSDecoder(t.Context(), jwksServer.URL, testIssuer, testAudience, jwksServer.Client(),
		token.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	decoded, err := decoder.Decode(f.sign(t, f.claims()))
	require.NoError(t, err)
	require.Equal(t, "user-1", decoded.Subject)

	_, err = token.NewJWKSDecoder(t.Context(), "", testIssuer, testAudience, nil)
	require.Error(t, err)
}
