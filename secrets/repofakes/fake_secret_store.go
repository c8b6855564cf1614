package repofakes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-shh/secrets"
)

// FakeSecretStore is a thread-safe in-memory implementation of secrets.Store
type FakeSecretStore struct {
	mu      sync.RWMutex
	opts    secrets.Options
	secrets map[string]secrets.Secret
	err     error
}

var _ secrets.Store = (*FakeSecretStore)(nil)

// NewFakeSecretStore creates a new in-memory secret store
func NewFakeSecretStore(opts ...secrets.Option) *FakeSecretStore {
	return &FakeSecretStore{
		opts:    secrets.NewOptions(opts...),
		secrets: make(map[string]secrets.Secret),
	}
}

// FailWith makes every subsequent call return err, simulating an unavailable
// database. Pass nil to recover.
func (f *FakeSecretStore) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Len returns the number of stored secrets, expired ones included.
func (f *FakeSecretStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.secrets)
}

func (f *FakeSecretStore) Create(ctx context.Context, newSecret secrets.NewSecret) (string, error) {
	id, err := f.opts.GenerateID()
	if err != nil {
		return "", err
	}
	secret, err := newSecret.Build(id, f.opts.Now())
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if _, exists := f.secrets[id]; exists {
		return "", fmt.Errorf("%w: %s", secrets.ErrDuplicateID, id)
	}

	// Store a copy to prevent external modifications
	secret.Payload = append([]byte(nil), secret.Payload...)
	f.secrets[id] = secret
	return id, nil
}

func (f *FakeSecretStore) FetchForOwner(ctx context.Context, ownerID string, asOf time.Time) ([]secrets.Secret, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return nil, f.err
	}

	owned := []secrets.Secret{}
	for _, secret := range f.secrets {
		if secret.Owner() == ownerID && !secret.ExpiredAt(asOf) {
			secret.Payload = nil
			owned = append(owned, secret)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID < owned[j].ID
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})
	return owned, nil
}

func (f *FakeSecretStore) Peek(ctx context.Context, id string, asOf time.Time) (*secrets.Secret, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return nil, f.err
	}

	secret, exists := f.secrets[id]
	if !exists || secret.ExpiredAt(asOf) {
		return nil, secrets.ErrNotFound
	}
	secret.Payload = nil
	return &secret, nil
}

func (f *FakeSecretStore) RetrieveAndConsume(ctx context.Context, id string, asOf time.Time) (*secrets.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	secret, exists := f.secrets[id]
	if !exists || secret.ExpiredAt(asOf) {
		return nil, secrets.ErrNotFound
	}
	delete(f.secrets, id)
	return &secret, nil
}

func (f *FakeSecretStore) PurgeExpired(ctx context.Context, asOf time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}

	var deleted int64
	for id, secret := range f.secrets {
		if secret.ExpiredAt(asOf) {
			delete(f.secrets, id)
			deleted++
		}
	}
	return deleted, nil
}
