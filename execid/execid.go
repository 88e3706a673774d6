// Package execid generates opaque execution and function identifiers and
// produces stable content digests used by the content-addressed caches.
package execid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns an opaque execution (or function) identifier. Uniqueness is
// guaranteed by the underlying UUIDv4 generator; callers must not parse or
// assign meaning to the string's structure.
func New() string {
	return uuid.NewString()
}

// HashContent returns a stable lowercase hex digest of b, used to key the
// compiled-artifact and generative-result caches. The same algorithm must be
// used for reads and writes in a given deployment; this package always uses
// SHA-256.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString is a convenience wrapper around HashContent for text inputs.
func HashString(s string) string {
	return HashContent([]byte(s))
}
