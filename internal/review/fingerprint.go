package review

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint derives the stable identity of a code finding from the file
// path and diff content hash alone. Title, line numbers, and wording never
// feed the hash, so repeated runs over unchanged content yield the same
// identity no matter how the model phrases the finding.
func Fingerprint(path, contentHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", path, contentHash)))
	return hex.EncodeToString(sum[:])
}

// MetadataFingerprint derives the identity of a revision-metadata finding
// from the description text alone, independent of any per-file hash.
func MetadataFingerprint(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}

// findingID generates a short display ID for a finding.
func findingID(path, title string, line int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", path, title, line)))
	return hex.EncodeToString(sum[:])[:8]
}
