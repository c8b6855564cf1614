package secrets

import (
	"context"
	"time"
)

// Store persists secrets and guarantees each payload is handed out at most
// once. Lookups treat never-existed, consumed and expired alike: ErrNotFound.
type Store interface {
	// Create stores a new secret and returns its id. A colliding id fails with
	// ErrDuplicateID and is never retried or overwritten.
	Create(ctx context.Context, secret NewSecret) (string, error)

	// FetchForOwner lists the owner's live secrets oldest first, without payloads.
	FetchForOwner(ctx context.Context, ownerID string, asOf time.Time) ([]Secret, error)

	// Peek returns a live secret's metadata without consuming it.
	Peek(ctx context.Context, id string, asOf time.Time) (*Secret, error)

	// RetrieveAndConsume deletes a live secret and returns it with its payload.
	RetrieveAndConsume(ctx context.Context, id string, asOf time.Time) (*Secret, error)

	// PurgeExpired deletes every secret that expired before asOf.
	PurgeExpired(ctx context.Context, asOf time.Time) (int64, error)
}

// Options are shared by Store implementations.
type Options struct {
	Now        func() time.Time
	GenerateID func() (string, error)
}

type Option func(*Options)

// WithClock overrides the creation time source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

// WithIDGenerator overrides secret id generation.
func WithIDGenerator(generate func() (string, error)) Option {
	return func(o *Options) {
		o.GenerateID = generate
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Now:        time.Now,
		GenerateID: GenerateID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
