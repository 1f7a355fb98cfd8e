package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cloudbox/internal/errs"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestTokenRepo_EnsureUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTokenRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO users \(id, token\) VALUES \(\$1, NULL\) ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.EnsureUser(ctx, 42))

	// second call hits the conflict branch and inserts nothing
	mock.ExpectExec(`INSERT INTO users \(id, token\) VALUES \(\$1, NULL\) ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.NoError(t, r.EnsureUser(ctx, 42))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(int64(42)).
		WillReturnError(errors.New("conn refused"))
	require.Error(t, r.EnsureUser(ctx, 42))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_GetToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTokenRepo(db)
	ctx := context.Background()

	tok := "abcDEF123"
	mock.ExpectQuery(`SELECT COALESCE\(token, ''\) FROM users WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow(tok))
	got, err := r.GetToken(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, tok, got)

	mock.ExpectQuery(`SELECT COALESCE\(token, ''\) FROM users WHERE id=\$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow(""))
	got, err = r.GetToken(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, got)

	mock.ExpectQuery(`SELECT COALESCE\(token, ''\) FROM users WHERE id=\$1`).
		WithArgs(int64(3)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetToken(ctx, 3)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`SELECT COALESCE\(token, ''\) FROM users WHERE id=\$1`).
		WithArgs(int64(4)).
		WillReturnError(errors.New("broken pipe"))
	_, err = r.GetToken(ctx, 4)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_SetToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTokenRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE users SET token = \$2 WHERE id = \$1`).
		WithArgs(int64(7), "tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetToken(ctx, 7, "tok"))

	mock.ExpectExec(`UPDATE users SET token = \$2 WHERE id = \$1`).
		WithArgs(int64(8), "tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetToken(ctx, 8, "tok"), errs.ErrNotFound)

	mock.ExpectExec(`UPDATE users SET token = \$2 WHERE id = \$1`).
		WithArgs(int64(7), "taken").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.SetToken(ctx, 7, "taken"), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	r := NewTokenRepo(&DB{Pool: mock})

	mock.ExpectPing()
	require.NoError(t, r.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.Error(t, r.Ping(context.Background()))
}
