package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/cloudbox/internal/crypto"
	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/repository"
)

// TokenRegistry maps user identities to their current access token.
type TokenRegistry interface {
	// EnsureRegistered creates the identity record if it does not exist yet.
	EnsureRegistered(ctx context.Context, userID int64) error
	// CurrentToken returns the stored token, "" if none was minted yet.
	CurrentToken(ctx context.Context, userID int64) (string, error)
	// RotateToken mints, stores and returns a fresh token.
	RotateToken(ctx context.Context, userID int64) (string, error)
}

// RegistryOptions tune token minting.
type RegistryOptions struct {
	TokenLength      int
	Alphabet         string
	CollisionRetries int // extra attempts when a minted token is already taken
}

type RegistryImpl struct {
	repo repository.TokenRepository
	opts RegistryOptions
	mint func(length int, alphabet string) (string, error)
}

var _ TokenRegistry = (*RegistryImpl)(nil)

// NewRegistry constructs a TokenRegistry; zero options fall back to defaults.
func NewRegistry(repo repository.TokenRepository, opts RegistryOptions) *RegistryImpl {
	if opts.TokenLength <= 0 {
		opts.TokenLength = crypto.IdentityTokenLen
	}
	if opts.Alphabet == "" {
		opts.Alphabet = crypto.Alphabet
	}
	if opts.CollisionRetries < 0 {
		opts.CollisionRetries = 0
	}
	return &RegistryImpl{repo: repo, opts: opts, mint: crypto.MintToken}
}

// EnsureRegistered has insert-or-ignore semantics: an existing token is kept.
func (r *RegistryImpl) EnsureRegistered(ctx context.Context, userID int64) error {
	if err := r.repo.EnsureUser(ctx, userID); err != nil {
		return categorize("ensure registered", err)
	}
	return nil
}

// CurrentToken never mints. Unknown identities fail with errs.ErrIdentityUnknown.
func (r *RegistryImpl) CurrentToken(ctx context.Context, userID int64) (string, error) {
	tok, err := r.repo.GetToken(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return "", errs.ErrIdentityUnknown
	}
	if err != nil {
		return "", categorize("current token", err)
	}
	return tok, nil
}

// RotateToken replaces the identity's token. The namespace of the old token is
// left in place (orphaned, not deleted).
func (r *RegistryImpl) RotateToken(ctx context.Context, userID int64) (string, error) {
	attempts := r.opts.CollisionRetries + 1
	for i := 0; i < attempts; i++ {
		tok, err := r.mint(r.opts.TokenLength, r.opts.Alphabet)
		if err != nil {
			return "", fmt.Errorf("mint token: %w", err)
		}
		err = r.repo.SetToken(ctx, userID, tok)
		switch {
		case err == nil:
			return tok, nil
		case errors.Is(err, errs.ErrAlreadyExists):
			continue
		case errors.Is(err, errs.ErrNotFound):
			return "", errs.ErrIdentityUnknown
		default:
			return "", categorize("rotate token", err)
		}
	}
	return "", fmt.Errorf("rotate token: %d minted tokens collided: %w", attempts, errs.ErrAlreadyExists)
}
