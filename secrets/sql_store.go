package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jrsteele09/go-shh/internal/database"
)

const (
	insertSecretSQL = `INSERT INTO secret (secret_id, owner_id, description, secret, create_dt, expire_dt)
VALUES (:secret_id, :owner_id, :description, :secret, :create_dt, :expire_dt)`

	selectOwnerSecretsSQL = `SELECT secret_id, owner_id, description, create_dt, expire_dt
FROM secret WHERE owner_id = ? AND expire_dt >= ? ORDER BY create_dt, secret_id`

	peekSecretSQL = `SELECT secret_id, owner_id, description, create_dt, expire_dt
FROM secret WHERE secret_id = ? AND expire_dt >= ?`

	consumeSecretSQL = `DELETE FROM secret WHERE secret_id = ? AND expire_dt >= ?
RETURNING secret_id, owner_id, description, secret, create_dt, expire_dt`

	purgeExpiredSQL = `DELETE FROM secret WHERE expire_dt < ?`
)

// SQLStore is the Store backed by sqlx, over SQLite or PostgreSQL.
type SQLStore struct {
	db   *sqlx.DB
	opts Options
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sqlx.DB, opts ...Option) *SQLStore {
	return &SQLStore{
		db:   db,
		opts: NewOptions(opts...),
	}
}

func (s *SQLStore) Create(ctx context.Context, newSecret NewSecret) (string, error) {
	id, err := s.opts.GenerateID()
	if err != nil {
		return "", fmt.Errorf("[secrets Create] %w", err)
	}

	secret, err := newSecret.Build(id, s.opts.Now())
	if err != nil {
		return "", err
	}

	if _, err := s.db.NamedExecContext(ctx, insertSecretSQL, secret); err != nil {
		if database.IsUniqueViolation(err) {
			return "", fmt.Errorf("[secrets Create] %w: %s", ErrDuplicateID, id)
		}
		return "", fmt.Errorf("[secrets Create] failed to insert secret: %w", err)
	}
	return id, nil
}

func (s *SQLStore) FetchForOwner(ctx context.Context, ownerID string, asOf time.Time) ([]Secret, error) {
	owned := []Secret{}
	if err := s.db.SelectContext(ctx, &owned, s.db.Rebind(selectOwnerSecretsSQL), ownerID, asOf.UTC()); err != nil {
		return nil, fmt.Errorf("[secrets FetchForOwner] failed to list secrets: %w", err)
	}
	return owned, nil
}

func (s *SQLStore) Peek(ctx context.Context, id string, asOf time.Time) (*Secret, error) {
	var secret Secret
	if err := s.db.GetContext(ctx, &secret, s.db.Rebind(peekSecretSQL), id, asOf.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[secrets Peek] failed to read secret: %w", err)
	}
	return &secret, nil
}

// RetrieveAndConsume deletes and returns the row in a single statement, so of
// any number of concurrent callers exactly one sees the row.
func (s *SQLStore) RetrieveAndConsume(ctx context.Context, id string, asOf time.Time) (*Secret, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("[secrets RetrieveAndConsume] failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var secret Secret
	if err := tx.GetContext(ctx, &secret, tx.Rebind(consumeSecretSQL), id, asOf.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[secrets RetrieveAndConsume] failed to consume secret: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("[secrets RetrieveAndConsume] failed to commit: %w", err)
	}
	return &secret, nil
}

func (s *SQLStore) PurgeExpired(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(purgeExpiredSQL), asOf.UTC())
	if err != nil {
		return 0, fmt.Errorf("[secrets PurgeExpired] failed to delete expired secrets: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("[secrets PurgeExpired] failed to count deleted secrets: %w", err)
	}
	return deleted, nil
}
