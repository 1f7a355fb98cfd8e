package fs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cloudbox/internal/errs"
)

func newBucket(t *testing.T) *Bucket {
	t.Helper()
	b, err := New(filepath.Join(t.TempDir(), "files"))
	require.NoError(t, err)
	return b
}

func TestBucket_CreateIdempotent(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()

	ok, err := b.Exists(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Create(ctx, "tok"))
	require.NoError(t, b.Put(ctx, "tok", "keep.txt", []byte("x")))
	require.NoError(t, b.Create(ctx, "tok"))

	ok, err = b.Exists(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)

	names, err := b.List(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, []string{"keep.txt"}, names, "second Create must not wipe entries")

	require.ErrorIs(t, b.CreateExclusive(ctx, "tok"), errs.ErrAlreadyExists)
}

func TestBucket_ExistsIsCaseSensitive(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, "AbC"))

	// On case-insensitive filesystems the directory lookup would match; skip there.
	if _, err := os.Stat(filepath.Join(b.Root(), "abc")); err == nil {
		t.Skip("case-insensitive filesystem")
	}
	ok, err := b.Exists(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBucket_PutGetRoundTripAndOverwrite(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, "tok"))

	require.NoError(t, b.Put(ctx, "tok", "a.txt", []byte("one")))
	got, err := b.Get(ctx, "tok", "a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("one"), got)

	require.NoError(t, b.Put(ctx, "tok", "a.txt", []byte("two")))
	got, err = b.Get(ctx, "tok", "a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("two"), got)

	// nothing left behind in staging
	des, err := os.ReadDir(filepath.Join(b.Root(), stagingDir))
	require.NoError(t, err)
	require.Empty(t, des)
}

func TestBucket_Errors(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()

	_, err := b.List(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNamespaceNotFound)
	require.ErrorIs(t, b.Put(ctx, "missing", "a", nil), errs.ErrNamespaceNotFound)
	_, err = b.Get(ctx, "missing", "a")
	require.ErrorIs(t, err, errs.ErrNamespaceNotFound)

	require.NoError(t, b.Create(ctx, "tok"))
	_, err = b.Get(ctx, "tok", "nope")
	require.ErrorIs(t, err, errs.ErrEntryNotFound)

	require.ErrorIs(t, b.Put(ctx, "tok", "../escape", []byte("x")), errs.ErrUnsafeName)
	require.ErrorIs(t, b.Put(ctx, "tok", "..", []byte("x")), errs.ErrUnsafeName)
	require.ErrorIs(t, b.Create(ctx, "../up"), errs.ErrUnsafeName)
	require.ErrorIs(t, b.Create(ctx, stagingDir), errs.ErrUnsafeName)
	_, err = os.Stat(filepath.Join(filepath.Dir(b.Root()), "escape"))
	require.True(t, os.IsNotExist(err))
}

func TestBucket_ListSortedFilesOnly(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, "tok"))
	for _, n := range []string{"c.bin", "a.txt", "b.png"} {
		require.NoError(t, b.Put(ctx, "tok", n, []byte(n)))
	}
	require.NoError(t, os.Mkdir(filepath.Join(b.Root(), "tok", "subdir"), 0o755))

	names, err := b.List(ctx, "tok")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"a.txt", "b.png", "c.bin"}, names); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	_, err = b.Get(ctx, "tok", "subdir")
	require.ErrorIs(t, err, errs.ErrEntryNotFound)
}

func TestBucket_NamespacesAndRemove(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, "one"))
	require.NoError(t, b.Create(ctx, "two"))
	require.NoError(t, b.Put(ctx, "two", "f", []byte("x")))

	infos, err := b.Namespaces(ctx)
	require.NoError(t, err)
	got := map[string]bool{}
	for _, in := range infos {
		got[in.Token] = true
		require.False(t, in.CreatedAt.IsZero())
	}
	require.Equal(t, map[string]bool{"one": true, "two": true}, got)

	require.NoError(t, b.Remove(ctx, "two"))
	require.NoError(t, b.Remove(ctx, "two"))
	ok, err := b.Exists(ctx, "two")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBucket_CreatedAtSurvivesWrites(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, "tok"))

	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(b.Root(), createdDir, "tok"), past, past))
	require.NoError(t, b.Put(ctx, "tok", "a.txt", []byte("x")))
	require.NoError(t, b.Create(ctx, "tok"))

	infos, err := b.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.True(t, infos[0].CreatedAt.Equal(past), "created at %v", infos[0].CreatedAt)

	names, err := b.List(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, names)

	require.NoError(t, b.Remove(ctx, "tok"))
	_, err = os.Stat(filepath.Join(b.Root(), createdDir, "tok"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBucket_ConcurrentPutSameName(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, "tok"))

	a := bytes.Repeat([]byte("A"), 1<<20)
	c := bytes.Repeat([]byte("B"), 1<<20)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); assert.NoError(t, b.Put(ctx, "tok", "same.txt", a)) }()
		go func() { defer wg.Done(); assert.NoError(t, b.Put(ctx, "tok", "same.txt", c)) }()
	}
	wg.Wait()

	got, err := b.Get(ctx, "tok", "same.txt")
	require.NoError(t, err)
	if !bytes.Equal(got, a) && !bytes.Equal(got, c) {
		t.Fatalf("entry is a mix of concurrent writes")
	}
}
