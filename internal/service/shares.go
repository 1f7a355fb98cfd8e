package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/and161185/cloudbox/internal/crypto"
	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/model"
	"github.com/and161185/cloudbox/internal/storage"
)

// ShareManager creates identity-less, one-shot share namespaces.
type ShareManager interface {
	// Create stores all entries under a freshly minted token.
	Create(ctx context.Context, entries []model.Entry) (model.Share, error)
	// List returns the entry names of a share.
	List(ctx context.Context, token string) ([]string, error)
	// Get reads one entry of a share.
	Get(ctx context.Context, token, name string) ([]byte, error)
	// Sweep removes shares older than the configured TTL and reports how many.
	Sweep(ctx context.Context) (int, error)
}

// ShareOptions tune share tokens and expiry.
type ShareOptions struct {
	TokenLength      int
	Alphabet         string
	CollisionRetries int           // extra mints when a token already names a share
	TTL              time.Duration // 0 disables expiry
}

type ShareService struct {
	bucket storage.Bucket
	ns     *NamespaceService
	opts   ShareOptions
	mint   func(length int, alphabet string) (string, error)
	now    func() time.Time
}

var _ ShareManager = (*ShareService)(nil)

// NewShareService constructs a ShareManager over its own bucket root.
func NewShareService(bucket storage.Bucket, opts ShareOptions) *ShareService {
	if opts.TokenLength <= 0 {
		opts.TokenLength = crypto.ShareTokenLen
	}
	if opts.Alphabet == "" {
		opts.Alphabet = crypto.Alphabet
	}
	if opts.CollisionRetries < 0 {
		opts.CollisionRetries = 0
	}
	return &ShareService{
		bucket: bucket,
		ns:     NewNamespaceService(bucket, opts.Alphabet),
		opts:   opts,
		mint:   crypto.MintToken,
		now:    time.Now,
	}
}

// TTL returns the configured share lifetime (0: shares never expire).
func (s *ShareService) TTL() time.Duration { return s.opts.TTL }

// Create validates every name up front so a bad batch leaves no share behind.
// Duplicate names within the batch resolve to the last payload.
func (s *ShareService) Create(ctx context.Context, entries []model.Entry) (model.Share, error) {
	if len(entries) == 0 {
		return model.Share{}, fmt.Errorf("create share: no entries: %w", errs.ErrValidation)
	}
	for _, e := range entries {
		if err := ValidateName(e.Name); err != nil {
			return model.Share{}, fmt.Errorf("create share: %q: %w", e.Name, err)
		}
	}

	tok, err := s.reserve(ctx)
	if err != nil {
		return model.Share{}, err
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := s.ns.Put(ctx, tok, e.Name, e.Data); err != nil {
			_ = s.bucket.Remove(context.WithoutCancel(ctx), tok)
			return model.Share{}, err
		}
		seen[e.Name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return model.Share{Token: tok, Names: names}, nil
}

// reserve mints tokens until one can be created exclusively.
func (s *ShareService) reserve(ctx context.Context) (string, error) {
	attempts := s.opts.CollisionRetries + 1
	for i := 0; i < attempts; i++ {
		tok, err := s.mint(s.opts.TokenLength, s.opts.Alphabet)
		if err != nil {
			return "", fmt.Errorf("mint token: %w", err)
		}
		err = s.bucket.CreateExclusive(ctx, tok)
		if errors.Is(err, errs.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return "", categorize("create share", err)
		}
		return tok, nil
	}
	return "", fmt.Errorf("create share: %d minted tokens collided: %w", attempts, errs.ErrAlreadyExists)
}

// List has the same contract as NamespaceService.List.
func (s *ShareService) List(ctx context.Context, token string) ([]string, error) {
	return s.ns.List(ctx, token)
}

// Get has the same contract as NamespaceService.Get.
func (s *ShareService) Get(ctx context.Context, token, name string) ([]byte, error) {
	return s.ns.Get(ctx, token, name)
}

// Sweep removes every share created more than TTL ago. It keeps going after a
// failed removal and reports the first error.
func (s *ShareService) Sweep(ctx context.Context) (int, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}
	infos, err := s.bucket.Namespaces(ctx)
	if err != nil {
		return 0, categorize("sweep shares", err)
	}
	cutoff := s.now().Add(-s.opts.TTL)
	var (
		removed  int
		firstErr error
	)
	for _, in := range infos {
		if !in.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.bucket.Remove(ctx, in.Token); err != nil {
			if firstErr == nil {
				firstErr = categorize("sweep shares", err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
