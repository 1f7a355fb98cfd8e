package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/migrate"
)

func newRepo(t *testing.T) *TokenRepo {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cloud_storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrate.UpDB(context.Background(), db, migrate.DialectSQLite))
	return NewTokenRepo(db)
}

func TestTokenRepo_Lifecycle(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.GetToken(ctx, 100)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, r.SetToken(ctx, 100, "abc"), errs.ErrNotFound)

	require.NoError(t, r.EnsureUser(ctx, 100))
	tok, err := r.GetToken(ctx, 100)
	require.NoError(t, err)
	require.Empty(t, tok)

	require.NoError(t, r.SetToken(ctx, 100, "abc"))
	require.NoError(t, r.EnsureUser(ctx, 100), "repeat registration must not fail")

	tok, err = r.GetToken(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "abc", tok, "repeat registration must not clear the token")

	require.NoError(t, r.SetToken(ctx, 100, "def"))
	tok, err = r.GetToken(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "def", tok)
}

func TestTokenRepo_TokenTakenByAnotherIdentity(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.EnsureUser(ctx, 1))
	require.NoError(t, r.EnsureUser(ctx, 2))
	require.NoError(t, r.SetToken(ctx, 1, "same"))
	require.ErrorIs(t, r.SetToken(ctx, 2, "same"), errs.ErrAlreadyExists)
}

func TestTokenRepo_Ping(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.Ping(context.Background()))
}
