package errors

import (
	"errors"
)

// Common error types for the shh service
var (
	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// OIDC flow errors
	ErrInvalidContinueURL = errors.New("invalid continue url")
	ErrStateMismatch      = errors.New("oidc state mismatch")
	ErrNonceMismatch      = errors.New("oidc nonce mismatch")
	ErrAccessDenied       = errors.New("oidc access denied")
	ErrProviderError      = errors.New("oidc provider error")
	ErrExchangeFailed     = errors.New("oidc code exchange failed")

	// Secret errors
	ErrDuplicateID = errors.New("duplicate secret id")
	ErrInvalidTTL  = errors.New("invalid ttl")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)
