package structure

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum returns the hex-encoded SHA-256 digest of content. Content is
// hashed byte-for-byte: line endings are deliberately not normalized, so
// whitespace-only differences in generated code stay visible.
func Checksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
