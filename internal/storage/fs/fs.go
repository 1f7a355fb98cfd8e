// Package fs implements a storage.Bucket on the local filesystem.
//
// Layout:
//
//	<root>/<token>/<name>   entries
//	<root>/.staging/        temporary files renamed into place on Put
//	<root>/.created/<token> empty marker whose mtime is the creation time
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/model"
	"github.com/and161185/cloudbox/internal/storage"
)

const (
	stagingDir = ".staging"
	createdDir = ".created"
)

// Bucket is a directory-per-namespace bucket.
type Bucket struct {
	root    string
	staging string
	created string
}

var _ storage.Bucket = (*Bucket)(nil)

// New prepares root (and its staging area) and returns a bucket over it.
func New(root string) (*Bucket, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	b := &Bucket{
		root:    abs,
		staging: filepath.Join(abs, stagingDir),
		created: filepath.Join(abs, createdDir),
	}
	for _, dir := range []string{b.staging, b.created} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare bucket root %s: %w", abs, err)
		}
	}
	return b, nil
}

// Root returns the absolute bucket root.
func (b *Bucket) Root() string { return b.root }

func (b *Bucket) nsDir(ns string) (string, error) {
	if err := storage.CheckSegment(ns); err != nil {
		return "", err
	}
	if strings.HasPrefix(ns, ".") {
		return "", errs.ErrUnsafeName
	}
	return filepath.Join(b.root, ns), nil
}

func (b *Bucket) entryPath(ns, name string) (string, error) {
	dir, err := b.nsDir(ns)
	if err != nil {
		return "", err
	}
	if err := storage.CheckSegment(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Exists reports whether <root>/<ns> is a directory.
func (b *Bucket) Exists(ctx context.Context, ns string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, err := b.nsDir(ns)
	if err != nil {
		return false, nil
	}
	fi, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// Create makes the namespace directory; an existing one is left untouched.
func (b *Bucket) Create(ctx context.Context, ns string) error {
	err := b.CreateExclusive(ctx, ns)
	if errors.Is(err, errs.ErrAlreadyExists) {
		return nil
	}
	return err
}

// CreateExclusive makes the namespace directory or fails with errs.ErrAlreadyExists.
func (b *Bucket) CreateExclusive(ctx context.Context, ns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := b.nsDir(ns)
	if err != nil {
		return err
	}
	err = os.Mkdir(dir, 0o755)
	if errors.Is(err, fs.ErrExist) {
		if fi, serr := os.Stat(dir); serr == nil && !fi.IsDir() {
			return fmt.Errorf("namespace %s: not a directory", ns)
		}
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	// entry renames touch the directory mtime, so creation is recorded apart
	return os.WriteFile(filepath.Join(b.created, ns), nil, 0o644)
}

// List returns the names of regular files in the namespace directory.
func (b *Bucket) List(ctx context.Context, ns string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := b.nsDir(ns)
	if err != nil {
		return nil, errs.ErrNamespaceNotFound
	}
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrNamespaceNotFound
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		if de.Type().IsRegular() {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Put stages data in a temp file and renames it over the entry.
func (b *Bucket) Put(ctx context.Context, ns, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := b.entryPath(ns, name)
	if err != nil {
		return err
	}
	if ok, err := b.Exists(ctx, ns); err != nil {
		return err
	} else if !ok {
		return errs.ErrNamespaceNotFound
	}

	tmp, err := os.CreateTemp(b.staging, "put-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.ErrNamespaceNotFound
		}
		return err
	}
	return nil
}

// Get reads an entry file.
func (b *Bucket) Get(ctx context.Context, ns, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.entryPath(ns, name)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		if ok, _ := b.Exists(ctx, ns); !ok {
			return nil, errs.ErrNamespaceNotFound
		}
		return nil, errs.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, errs.ErrEntryNotFound
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrEntryNotFound
	}
	return data, err
}

// Namespaces lists namespace directories with the mtime of their creation
// marker. Directories without a marker report their own mtime.
func (b *Bucket) Namespaces(ctx context.Context) ([]model.NamespaceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	des, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	out := make([]model.NamespaceInfo, 0, len(des))
	for _, de := range des {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue // removed concurrently
		}
		created := fi.ModTime()
		if mi, err := os.Stat(filepath.Join(b.created, de.Name())); err == nil {
			created = mi.ModTime()
		}
		out = append(out, model.NamespaceInfo{Token: de.Name(), CreatedAt: created})
	}
	return out, nil
}

// Remove deletes the namespace directory tree.
func (b *Bucket) Remove(ctx context.Context, ns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := b.nsDir(ns)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(b.created, ns)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
