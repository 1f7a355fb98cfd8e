// Package sqlite contains a single-file SQLite implementation of the token repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/and161185/cloudbox/internal/errs"
)

// Open opens (creating if needed) the database file at path.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	return db, nil
}

// TokenRepo implements repository.TokenRepository on SQLite.
type TokenRepo struct{ db *sql.DB }

// NewTokenRepo constructs a token repository over an opened database.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// EnsureUser inserts the identity with a NULL token; repeated calls are no-ops.
func (r *TokenRepo) EnsureUser(ctx context.Context, userID int64) error {
	const q = `INSERT INTO users (id, token) VALUES (?, NULL) ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// GetToken selects the current token of an identity.
func (r *TokenRepo) GetToken(ctx context.Context, userID int64) (string, error) {
	const q = `SELECT COALESCE(token, '') FROM users WHERE id = ?`
	var tok string
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&tok); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return tok, nil
}

// SetToken overwrites the token of an existing identity.
func (r *TokenRepo) SetToken(ctx context.Context, userID int64, token string) error {
	const q = `UPDATE users SET token = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, token, userID)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Ping checks that the database file is usable.
func (r *TokenRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	c := se.Code()
	return c == sqlite3.SQLITE_CONSTRAINT_UNIQUE || c == sqlite3.SQLITE_CONSTRAINT
}
