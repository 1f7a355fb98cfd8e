package main

import (
	"context"
	"fmt"

	"github.com/and161185/cloudbox/internal/config"
	"github.com/and161185/cloudbox/internal/migrate"
	"github.com/and161185/cloudbox/internal/repository"
	boltrepo "github.com/and161185/cloudbox/internal/repository/bolt"
	"github.com/and161185/cloudbox/internal/repository/postgres"
	sqliterepo "github.com/and161185/cloudbox/internal/repository/sqlite"
	"github.com/and161185/cloudbox/internal/storage"
	fsbucket "github.com/and161185/cloudbox/internal/storage/fs"
	s3bucket "github.com/and161185/cloudbox/internal/storage/s3"
)

// openRegistry migrates (for SQL drivers) and opens the identity→token store.
func openRegistry(ctx context.Context, cfg config.RegistryConfig) (repository.TokenRepository, func(), error) {
	switch cfg.Driver {
	case "postgres":
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewTokenRepo(db), db.Close, nil
	case "sqlite":
		db, err := sqliterepo.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.UpDB(ctx, db, migrate.DialectSQLite); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		return sqliterepo.NewTokenRepo(db), func() { _ = db.Close() }, nil
	case "bolt":
		r, err := boltrepo.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry driver %q", cfg.Driver)
	}
}

// openBuckets returns the identity namespace bucket and the share bucket.
func openBuckets(ctx context.Context, cfg config.StorageConfig) (storage.Bucket, storage.Bucket, error) {
	switch cfg.Driver {
	case "fs":
		ns, err := fsbucket.New(cfg.NamespacesRoot)
		if err != nil {
			return nil, nil, err
		}
		sh, err := fsbucket.New(cfg.SharesRoot)
		if err != nil {
			return nil, nil, err
		}
		return ns, sh, nil
	case "s3":
		client, err := s3bucket.NewClient(ctx, s3bucket.ClientConfig{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		ns, err := s3bucket.New(client, cfg.S3.Bucket, cfg.NamespacesRoot)
		if err != nil {
			return nil, nil, err
		}
		sh, err := s3bucket.New(client, cfg.S3.Bucket, cfg.SharesRoot)
		if err != nil {
			return nil, nil, err
		}
		return ns, sh, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
