// Package fingerprint computes the content hash used to deduplicate documents.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Compute returns the hex SHA-256 of text after NFC normalization and
// trimming of surrounding whitespace. Equal content always yields an equal
// fingerprint regardless of Unicode composition form.
func Compute(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Normalize returns the canonical form of text that Compute hashes.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
