package token

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
)

const jwksRefreshInterval = 10 * time.Minute

// NewJWKSDecoder creates a decoder whose keys are fetched from a provider's
// JWKS endpoint and refreshed in the background until ctx is cancelled.
func NewJWKSDecoder(ctx context.Context, jwksURL, issuer, audience string, client *http.Client, opts ...Option) (*JWTDecoder, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("[token NewJWKSDecoder] JWKS endpoint not configured")
	}

	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:          client,
		Ctx:             ctx,
		RefreshInterval: jwksRefreshInterval,
		ValidateOptions: jwkset.JWKValidateOptions{
			SkipAll: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[token NewJWKSDecoder] failed to create JWKS storage: %w", err)
	}

	jwks, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("[token NewJWKSDecoder] failed to create JWKS provider: %w", err)
	}

	return newDecoder(jwks.Keyfunc, issuer, audience, opts...), nil
}
