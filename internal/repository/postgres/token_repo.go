package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/cloudbox/internal/errs"
)

// TokenRepo implements repository.TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// EnsureUser inserts the identity with a NULL token; repeated calls are no-ops.
func (r *TokenRepo) EnsureUser(ctx context.Context, userID int64) error {
	const q = `
INSERT INTO users (id, token) VALUES ($1, NULL)
ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, q, userID)
	return err
}

// GetToken selects the current token of an identity.
func (r *TokenRepo) GetToken(ctx context.Context, userID int64) (string, error) {
	const q = `SELECT COALESCE(token, '') FROM users WHERE id=$1`
	var tok string
	if err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&tok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return tok, nil
}

// SetToken overwrites the token of an existing identity.
func (r *TokenRepo) SetToken(ctx context.Context, userID int64, token string) error {
	const q = `UPDATE users SET token = $2 WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, userID, token)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *TokenRepo) Ping(ctx context.Context) error { return r.db.Pool.Ping(ctx) }
