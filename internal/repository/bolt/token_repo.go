// Package bolt contains an embedded BoltDB implementation of the token repository.
package bolt

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"

	"github.com/and161185/cloudbox/internal/errs"
)

var (
	usersBucket  = []byte("users")  // maps ids to tokens (empty value: no token yet)
	tokensBucket = []byte("tokens") // maps tokens back to ids
)

// TokenRepo implements repository.TokenRepository on a Bolt file.
type TokenRepo struct{ db *bolt.DB }

// Open opens (creating if needed) the Bolt file at path and its buckets.
func Open(path string) (*TokenRepo, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{usersBucket, tokensBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &TokenRepo{db: db}, nil
}

// Close releases the database file lock.
func (r *TokenRepo) Close() error { return r.db.Close() }

func key(userID int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(userID))
	return k
}

// EnsureUser inserts the identity with no token; repeated calls are no-ops.
func (r *TokenRepo) EnsureUser(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get(key(userID)) != nil {
			return nil
		}
		return b.Put(key(userID), []byte{})
	})
}

// GetToken returns the current token of an identity.
func (r *TokenRepo) GetToken(ctx context.Context, userID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var tok string
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(usersBucket).Get(key(userID))
		if v == nil {
			return errs.ErrNotFound
		}
		tok = string(v)
		return nil
	})
	return tok, err
}

// SetToken overwrites the token of an existing identity, keeping the reverse index in step.
func (r *TokenRepo) SetToken(ctx context.Context, userID int64, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		users, tokens := tx.Bucket(usersBucket), tx.Bucket(tokensBucket)
		k := key(userID)
		old := users.Get(k)
		if old == nil {
			return errs.ErrNotFound
		}
		if owner := tokens.Get([]byte(token)); owner != nil && string(owner) != string(k) {
			return errs.ErrAlreadyExists
		}
		if len(old) > 0 {
			if err := tokens.Delete(old); err != nil {
				return err
			}
		}
		if err := tokens.Put([]byte(token), k); err != nil {
			return err
		}
		return users.Put(k, []byte(token))
	})
}

// Ping reports whether the database is still open.
func (r *TokenRepo) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(func(*bolt.Tx) error { return nil })
}
