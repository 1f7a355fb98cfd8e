package service

import (
	"context"
	"fmt"

	"github.com/and161185/cloudbox/internal/crypto"
	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/storage"
)

// NamespaceManager performs file operations inside the namespace of a token.
type NamespaceManager interface {
	// Exists reports whether a namespace was created for exactly this token.
	Exists(ctx context.Context, token string) (bool, error)
	// Create creates the namespace; an existing one is not an error.
	Create(ctx context.Context, token string) error
	// List returns entry names sorted ascending.
	List(ctx context.Context, token string) ([]string, error)
	// Put writes or overwrites an entry.
	Put(ctx context.Context, token, name string, data []byte) error
	// Get reads an entry.
	Get(ctx context.Context, token, name string) ([]byte, error)
}

type NamespaceService struct {
	bucket   storage.Bucket
	alphabet string
}

var _ NamespaceManager = (*NamespaceService)(nil)

// NewNamespaceService constructs a NamespaceManager over bucket. Tokens must be
// drawn from alphabet (crypto.Alphabet when empty).
func NewNamespaceService(bucket storage.Bucket, alphabet string) *NamespaceService {
	if alphabet == "" {
		alphabet = crypto.Alphabet
	}
	return &NamespaceService{bucket: bucket, alphabet: alphabet}
}

// validToken keeps malformed tokens (including traversal attempts) away from storage.
func (s *NamespaceService) validToken(token string) bool {
	return crypto.InAlphabet(token, s.alphabet)
}

// Exists uses exact, case-sensitive token matching.
func (s *NamespaceService) Exists(ctx context.Context, token string) (bool, error) {
	if !s.validToken(token) {
		return false, nil
	}
	ok, err := s.bucket.Exists(ctx, token)
	if err != nil {
		return false, categorize("namespace exists", err)
	}
	return ok, nil
}

// Create is idempotent.
func (s *NamespaceService) Create(ctx context.Context, token string) error {
	if !s.validToken(token) {
		return fmt.Errorf("create namespace: malformed token: %w", errs.ErrValidation)
	}
	return categorize("create namespace", s.bucket.Create(ctx, token))
}

// List fails with errs.ErrNamespaceNotFound for unknown tokens.
func (s *NamespaceService) List(ctx context.Context, token string) ([]string, error) {
	if !s.validToken(token) {
		return nil, errs.ErrNamespaceNotFound
	}
	names, err := s.bucket.List(ctx, token)
	if err != nil {
		return nil, categorize("list entries", err)
	}
	return names, nil
}

// Put rejects unsafe names before touching storage.
func (s *NamespaceService) Put(ctx context.Context, token, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !s.validToken(token) {
		return errs.ErrNamespaceNotFound
	}
	return categorize("put entry", s.bucket.Put(ctx, token, name, data))
}

// Get fails with errs.ErrEntryNotFound when the namespace lacks the entry.
func (s *NamespaceService) Get(ctx context.Context, token, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !s.validToken(token) {
		return nil, errs.ErrNamespaceNotFound
	}
	data, err := s.bucket.Get(ctx, token, name)
	if err != nil {
		return nil, categorize("get entry", err)
	}
	return data, nil
}
