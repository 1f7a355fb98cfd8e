// Package crypto implements random token minting.
package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// Alphabet is the default token alphabet: digits plus upper and lower case letters.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Default token lengths.
const (
	IdentityTokenLen = 18
	ShareTokenLen    = 12
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// MintToken draws length characters independently and uniformly from alphabet.
// No uniqueness check is performed; callers that need one retry on conflict.
func MintToken(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", errors.New("token length must be positive")
	}
	if len(alphabet) < 2 {
		return "", errors.New("token alphabet too small")
	}
	max := big.NewInt(int64(len(alphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}

// InAlphabet reports whether s is non-empty and made only of alphabet characters.
func InAlphabet(s, alphabet string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
