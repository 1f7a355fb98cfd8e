// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Error kinds reported by the core. Front-ends map them to user-facing messages
// and status codes with errors.Is.
var (
	// ErrPersistenceUnavailable indicates the registry or storage collaborator
	// is unreachable or returned an unexpected failure.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrNamespaceNotFound indicates no namespace exists for the token.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrEntryNotFound indicates the namespace has no entry with the given name.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrUnsafeName indicates an entry name that would escape the namespace root.
	ErrUnsafeName = errors.New("unsafe entry name")

	// ErrIdentityUnknown indicates a lookup for an identity that was never registered.
	ErrIdentityUnknown = errors.New("identity unknown")
)

// Collaborator-level sentinels.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint or conditional create conflict
	// (e.g., a minted token that is already taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRateLimited indicates the caller exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation indicates malformed input (empty batch, oversized payload, ...).
	ErrValidation = errors.New("validation")
)
