package core

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names the hash function used for file, directory, and
// fingerprint digests within one invocation.
type Algorithm string

const (
	// AlgorithmSHA1 is the default. Fingerprints stored by earlier runs were
	// produced with it, so switching algorithms forces one rebuild.
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmBLAKE3 Algorithm = "blake3"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = AlgorithmSHA1

// ParseAlgorithm maps a configuration string to an Algorithm.
// The empty string selects DefaultAlgorithm.
func ParseAlgorithm(raw string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return DefaultAlgorithm, nil
	case AlgorithmSHA1:
		return AlgorithmSHA1, nil
	case AlgorithmSHA256:
		return AlgorithmSHA256, nil
	case AlgorithmBLAKE3:
		return AlgorithmBLAKE3, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q (expected sha1|sha256|blake3)", raw)
	}
}

// New returns a fresh accumulator. Unknown values fall back to DefaultAlgorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case AlgorithmSHA256:
		return sha256.New()
	case AlgorithmBLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// Sum hashes data in one shot.
func (a Algorithm) Sum(data []byte) Digest {
	h := a.New()
	h.Write(data)
	return Digest(h.Sum(nil))
}

// Digest is the finalized output of a hash accumulator.
// Two digests are equal iff their bytes are equal.
type Digest []byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// Equal reports whether d and other hold the same bytes.
func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d, other)
}

// IsZero reports whether the digest holds no bytes.
func (d Digest) IsZero() bool {
	return len(d) == 0
}
