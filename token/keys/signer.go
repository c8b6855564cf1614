package keys

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs claims into compact RS256 tokens carrying the key id header.
type Signer struct {
	keyPair *KeyPair
}

// NewSigner creates a new signer for the given key pair
func NewSigner(keyPair *KeyPair) *Signer {
	return &Signer{
		keyPair: keyPair,
	}
}

func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyPair.KeyID

	signedToken, err := token.SignedString(s.keyPair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// JWKS returns the key set advertising the signer's public key
func (s *Signer) JWKS() JWKS {
	return JWKS{Keys: []JWK{s.keyPair.ToJWK()}}
}
