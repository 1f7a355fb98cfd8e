// Package repository defines storage interfaces implemented by concrete backends.
package repository

import "context"

// TokenRepository persists the identity -> token mapping.
//
// Implementations report a missing identity with errs.ErrNotFound and a token
// already held by another identity with errs.ErrAlreadyExists. Any other error
// is a collaborator failure.
type TokenRepository interface {
	// EnsureUser inserts a record with a NULL token unless one already exists.
	EnsureUser(ctx context.Context, userID int64) error
	// GetToken returns the stored token ("" if never set).
	GetToken(ctx context.Context, userID int64) (string, error)
	// SetToken overwrites the token of an existing record.
	SetToken(ctx context.Context, userID int64, token string) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
