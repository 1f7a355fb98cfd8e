// Package model defines domain entities used by services, repositories and storage.
package model

import "time"

// IdentityToken pairs a user identity with its current token.
// Token is empty until the first rotation.
type IdentityToken struct {
	UserID int64
	Token  string
}

// Entry is a single named file payload inside a namespace.
type Entry struct {
	Name string
	Data []byte
}

// Share is the result of an ephemeral share upload.
type Share struct {
	Token string
	Names []string // sorted, de-duplicated
}

// NamespaceInfo describes a namespace as seen by a storage bucket.
type NamespaceInfo struct {
	Token     string
	CreatedAt time.Time
}
