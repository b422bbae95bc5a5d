package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the hex-encoded SHA-256 digest of s. Used as the storage key
// for cached query results so that backends never see raw SQL in key space.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// QuestionFingerprint produces a stable key for a natural-language question.
// Case and whitespace differences do not change the fingerprint.
func QuestionFingerprint(question string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return Hash(folded)
}
