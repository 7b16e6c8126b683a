// Package checksum fingerprints note content so the journal can tell its own
// writes from edits made by other programs.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data hashes to sum. An empty sum never matches,
// since deletions are journaled without one.
func Matches(sum string, data []byte) bool {
	return sum != "" && Sum(data) == sum
}
