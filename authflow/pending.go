package authflow

import (
	"encoding/base64"
	"fmt"
	"strings"

	shherrors "github.com/jrsteele09/go-shh/internal/errors"
)

// PendingFlow is the login attempt carried in the flow cookie between
// StartLogin and HandleCallback. The cookie is unsigned so every field is
// attacker influenced.
type PendingFlow struct {
	State       string
	Nonce       string
	ContinueURL string
}

// Encode serialises the flow as base64url("state:nonce:continue_url").
func (p PendingFlow) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(p.State + ":" + p.Nonce + ":" + p.ContinueURL))
}

// DecodePendingFlow parses a flow cookie value. The continue URL may itself
// contain colons, so only the first two separate fields.
func DecodePendingFlow(value string) (PendingFlow, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return PendingFlow{}, fmt.Errorf("%w: undecodable flow cookie", shherrors.ErrStateMismatch)
	}

	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return PendingFlow{}, fmt.Errorf("%w: malformed flow cookie", shherrors.ErrStateMismatch)
	}
	return PendingFlow{
		State:       parts[0],
		Nonce:       parts[1],
		ContinueURL: parts[2],
	}, nil
}
