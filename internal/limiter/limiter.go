// Package limiter defines per-client request rate limiting.
package limiter

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Limiter throttles requests per client key.
type Limiter interface {
	// Allow reports whether a request for key may proceed now and, if not,
	// how long the client should wait before retrying.
	Allow(key string) (bool, time.Duration)
}

// HashIP returns a stable key for an IP string to avoid keeping raw addresses.
func HashIP(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:16])
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(string) (bool, time.Duration) { return true, 0 }
