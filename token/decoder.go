package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	shherrors "github.com/jrsteele09/go-shh/internal/errors"
)

var (
	ErrInvalidToken = shherrors.ErrInvalidToken
	ErrTokenExpired = shherrors.ErrTokenExpired
)

// Claims are the identity token claims the service relies on.
type Claims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce,omitempty"`
}

// Decoder verifies a raw identity token and returns its claims.
type Decoder interface {
	Decode(rawToken string) (*Claims, error)
}

// Option configures a JWTDecoder.
type Option func(*JWTDecoder)

// WithClock overrides the time used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(d *JWTDecoder) {
		d.now = now
	}
}

// WithLeeway allows for clock skew between the provider and the service.
func WithLeeway(leeway time.Duration) Option {
	return func(d *JWTDecoder) {
		d.leeway = leeway
	}
}

// JWTDecoder validates RS256 identity tokens against fixed trust anchors.
type JWTDecoder struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	now      func() time.Time
	leeway   time.Duration
}

var _ Decoder = (*JWTDecoder)(nil)

// NewDecoder creates a decoder that trusts a single public key.
func NewDecoder(publicKey *rsa.PublicKey, issuer, audience string, opts ...Option) *JWTDecoder {
	return newDecoder(func(*jwt.Token) (any, error) {
		return publicKey, nil
	}, issuer, audience, opts...)
}

func newDecoder(keyfunc jwt.Keyfunc, issuer, audience string, opts ...Option) *JWTDecoder {
	d := &JWTDecoder{
		keyfunc:  keyfunc,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode verifies the signature, issuer, audience and expiry of rawToken. Every
// failure matches ErrInvalidToken; expired tokens additionally match
// ErrTokenExpired.
func (d *JWTDecoder) Decode(rawToken string) (*Claims, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, d.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(d.issuer),
		jwt.WithAudience(d.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(d.leeway),
		jwt.WithTimeFunc(d.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return claims, nil
}
