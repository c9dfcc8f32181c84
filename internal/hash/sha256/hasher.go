// Package sha256 computes content digests for crawl artifacts.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces hex-encoded SHA-256 digests. The indexer records one per
// stored page so downstream consumers can deduplicate and verify artifacts.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex SHA-256 digest of data. The error return exists to
// satisfy the crawler.Hasher contract; the digest itself cannot fail.
func (h *Hasher) Hash(data []byte) (string, error) {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:]), nil
}
