// Package storage defines the bucket abstraction that backs token namespaces.
//
// A bucket holds flat namespaces keyed by token. Each namespace is a set of
// named entries without subdirectories. Callers validate tokens and entry
// names before reaching a bucket; implementations still refuse anything that
// is not a single path segment.
package storage

import (
	"context"
	"strings"

	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/model"
)

// Bucket stores namespaces of named entries.
//
// Error contract:
//   - List, Put and Get on a missing namespace return errs.ErrNamespaceNotFound.
//   - Get of a missing entry returns errs.ErrEntryNotFound.
//   - CreateExclusive on an existing namespace returns errs.ErrAlreadyExists.
//   - Put is atomic: readers see the old or the new payload, never a mix.
type Bucket interface {
	// Exists reports whether the namespace was created.
	Exists(ctx context.Context, ns string) (bool, error)
	// Create creates the namespace if absent.
	Create(ctx context.Context, ns string) error
	// CreateExclusive creates the namespace and fails if it already exists.
	CreateExclusive(ctx context.Context, ns string) error
	// List returns entry names in ascending order.
	List(ctx context.Context, ns string) ([]string, error)
	// Put writes (or overwrites) an entry.
	Put(ctx context.Context, ns, name string, data []byte) error
	// Get reads an entry.
	Get(ctx context.Context, ns, name string) ([]byte, error)
	// Namespaces enumerates every namespace with its creation time.
	Namespaces(ctx context.Context) ([]model.NamespaceInfo, error)
	// Remove deletes a namespace and all of its entries. Missing namespaces are ignored.
	Remove(ctx context.Context, ns string) error
}

// CheckSegment rejects anything that is not a plain single path segment.
func CheckSegment(s string) error {
	if s == "" || s == "." || s == ".." ||
		strings.ContainsAny(s, "/\\\x00") {
		return errs.ErrUnsafeName
	}
	return nil
}
