package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	shherrors "github.com/jrsteele09/go-shh/internal/errors"
	"github.com/jrsteele09/go-shh/internal/utils"
)

const (
	MaxDescriptionLength = 100
	MaxPayloadLength     = 2000

	idBytes = 16
)

var (
	ErrNotFound       = shherrors.ErrNotFound
	ErrDuplicateID    = shherrors.ErrDuplicateID
	ErrInvalidTTL     = shherrors.ErrInvalidTTL
	ErrInvalidRequest = shherrors.ErrInvalidRequest
)

// Secret is a stored secret. Payload is only populated by RetrieveAndConsume.
type Secret struct {
	ID          string    `db:"secret_id"`
	OwnerID     *string   `db:"owner_id"`
	Description *string   `db:"description"`
	Payload     []byte    `db:"secret"`
	CreatedAt   time.Time `db:"create_dt"`
	ExpiresAt   time.Time `db:"expire_dt"`
}

// Owner returns the owning subject, empty for anonymous secrets.
func (s Secret) Owner() string {
	return utils.Value(s.OwnerID)
}

// DescriptionText returns the description, empty when none was given.
func (s Secret) DescriptionText() string {
	return utils.Value(s.Description)
}

// ExpiredAt reports whether the secret is no longer retrievable at t.
func (s Secret) ExpiredAt(t time.Time) bool {
	return s.ExpiresAt.Before(t)
}

// NewSecret is a request to store a secret.
type NewSecret struct {
	Payload     []byte
	TTL         TTL
	Description string
	OwnerID     string
}

// Validate checks the request against the size and TTL limits.
func (n NewSecret) Validate() error {
	if len(n.Payload) == 0 {
		return fmt.Errorf("%w: missing secret", ErrInvalidRequest)
	}
	if len(n.Payload) > MaxPayloadLength {
		return fmt.Errorf("%w: secret longer than %d bytes", ErrInvalidRequest, MaxPayloadLength)
	}
	if utf8.RuneCountInString(n.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidRequest, MaxDescriptionLength)
	}
	if !n.TTL.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTTL, string(n.TTL))
	}
	return nil
}

// Build validates the request and produces the row to insert.
func (n NewSecret) Build(id string, now time.Time) (Secret, error) {
	if err := n.Validate(); err != nil {
		return Secret{}, err
	}
	now = now.UTC()
	return Secret{
		ID:          id,
		OwnerID:     utils.NilIfZero(n.OwnerID),
		Description: utils.NilIfZero(strings.TrimSpace(n.Description)),
		Payload:     n.Payload,
		CreatedAt:   now,
		ExpiresAt:   now.Add(n.TTL.Duration()),
	}, nil
}

// GenerateID returns 16 random bytes encoded as unpadded base64url.
func GenerateID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
