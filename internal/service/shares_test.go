package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cloudbox/internal/crypto"
	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/model"
	fsbucket "github.com/and161185/cloudbox/internal/storage/fs"
)

func TestShare_CreateListGet(t *testing.T) {
	t.Parallel()
	s := NewShareService(newFSBucket(t, "shares"), ShareOptions{})
	ctx := context.Background()

	b1, b2 := []byte("png-one"), []byte("png-two")
	sh, err := s.Create(ctx, []model.Entry{{Name: "x.png", Data: b1}, {Name: "y.png", Data: b2}})
	require.NoError(t, err)
	require.Len(t, sh.Token, crypto.ShareTokenLen)
	require.True(t, crypto.InAlphabet(sh.Token, crypto.Alphabet))
	require.Equal(t, []string{"x.png", "y.png"}, sh.Names)

	names, err := s.List(ctx, sh.Token)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"x.png", "y.png"}, names); diff != "" {
		t.Fatalf("List (-want +got):\n%s", diff)
	}
	got, err := s.Get(ctx, sh.Token, "x.png")
	require.NoError(t, err)
	require.Equal(t, b1, got)
}

func TestShare_DistinctTokens(t *testing.T) {
	t.Parallel()
	s := NewShareService(newFSBucket(t, "shares"), ShareOptions{})
	ctx := context.Background()

	a, err := s.Create(ctx, []model.Entry{{Name: "a", Data: []byte("1")}})
	require.NoError(t, err)
	b, err := s.Create(ctx, []model.Entry{{Name: "a", Data: []byte("2")}})
	require.NoError(t, err)
	require.NotEqual(t, a.Token, b.Token)

	got, err := s.Get(ctx, a.Token, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
}

func TestShare_DuplicateNamesLastWins(t *testing.T) {
	t.Parallel()
	s := NewShareService(newFSBucket(t, "shares"), ShareOptions{})
	ctx := context.Background()

	sh, err := s.Create(ctx, []model.Entry{
		{Name: "d.txt", Data: []byte("first")},
		{Name: "c.txt", Data: []byte("c")},
		{Name: "d.txt", Data: []byte("second")},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c.txt", "d.txt"}, sh.Names)
	got, err := s.Get(ctx, sh.Token, "d.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestShare_RejectsBadBatchWithoutSideEffects(t *testing.T) {
	t.Parallel()
	b := newFSBucket(t, "shares")
	s := NewShareService(b, ShareOptions{})
	ctx := context.Background()

	_, err := s.Create(ctx, nil)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Create(ctx, []model.Entry{{Name: "ok.txt"}, {Name: "../evil"}})
	require.ErrorIs(t, err, errs.ErrUnsafeName)

	infos, err := b.Namespaces(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)
}

func TestShare_RemintsOnCollision(t *testing.T) {
	t.Parallel()
	b := newFSBucket(t, "shares")
	s := NewShareService(b, ShareOptions{CollisionRetries: 1})
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, "taken"))

	seq := []string{"taken", "free"}
	calls := 0
	s.mint = func(int, string) (string, error) {
		tok := seq[calls%len(seq)]
		calls++
		return tok, nil
	}
	sh, err := s.Create(ctx, []model.Entry{{Name: "f", Data: []byte("x")}})
	require.NoError(t, err)
	require.Equal(t, "free", sh.Token)
	require.Equal(t, 2, calls)

	// existing share under the colliding token is untouched
	names, err := s.List(ctx, "taken")
	require.NoError(t, err)
	require.Empty(t, names)

	s.mint = func(int, string) (string, error) { return "taken", nil }
	_, err = s.Create(ctx, []model.Entry{{Name: "f", Data: []byte("x")}})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestShare_NotFound(t *testing.T) {
	t.Parallel()
	s := NewShareService(newFSBucket(t, "shares"), ShareOptions{})
	ctx := context.Background()

	_, err := s.List(ctx, "nosuchshare1")
	require.ErrorIs(t, err, errs.ErrNamespaceNotFound)

	sh, err := s.Create(ctx, []model.Entry{{Name: "f", Data: nil}})
	require.NoError(t, err)
	_, err = s.Get(ctx, sh.Token, "g")
	require.ErrorIs(t, err, errs.ErrEntryNotFound)
	_, err = s.Get(ctx, sh.Token, "../f")
	require.ErrorIs(t, err, errs.ErrUnsafeName)
}

func TestShare_Sweep(t *testing.T) {
	t.Parallel()
	b := newFSBucket(t, "shares")
	ctx := context.Background()

	disabled := NewShareService(b, ShareOptions{})
	n, err := disabled.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	s := NewShareService(b, ShareOptions{TTL: time.Hour})
	old, err := s.Create(ctx, []model.Entry{{Name: "old", Data: []byte("o")}})
	require.NoError(t, err)
	fresh, err := s.Create(ctx, []model.Entry{{Name: "new", Data: []byte("n")}})
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(b.Root(), ".created", old.Token), past, past))

	// writes after creation don't extend the lifetime
	require.NoError(t, b.Put(ctx, old.Token, "later", []byte("l")))

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.List(ctx, old.Token)
	require.ErrorIs(t, err, errs.ErrNamespaceNotFound)
	_, err = s.List(ctx, fresh.Token)
	require.NoError(t, err)
}

func TestShare_SweepCategorizesStorageFailure(t *testing.T) {
	t.Parallel()
	s := NewShareService(brokenBucket{err: errors.New("io")}, ShareOptions{TTL: time.Minute})
	_, err := s.Sweep(context.Background())
	require.ErrorIs(t, err, errs.ErrPersistenceUnavailable)
}

func TestShare_SeparateRootFromNamespaces(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	files, err := fsbucket.New(filepath.Join(root, "files"))
	require.NoError(t, err)
	shares, err := fsbucket.New(filepath.Join(root, "shares"))
	require.NoError(t, err)

	ns := NewNamespaceService(files, "")
	sh := NewShareService(shares, ShareOptions{})
	ctx := context.Background()

	created, err := sh.Create(ctx, []model.Entry{{Name: "f", Data: []byte("x")}})
	require.NoError(t, err)
	ok, err := ns.Exists(ctx, created.Token)
	require.NoError(t, err)
	require.False(t, ok, "shares must not be visible as identity namespaces")
}
