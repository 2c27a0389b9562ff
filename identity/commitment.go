// Package identity derives one-way public commitments from extracted keys and
// keeps an append-only ledger of registered identity records.
package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a supported commitment hash.
type Algorithm string

const (
	AlgSHA3_256   Algorithm = "sha3-256"
	AlgSHA3_512   Algorithm = "sha3-512"
	AlgSHA256     Algorithm = "sha256"
	AlgBLAKE2b256 Algorithm = "blake2b-256"
)

const (
	domainCommit = "SVCA_OHASH_V1"
	domainNonce  = "SVCA_COMMITMENT"
)

// Record is the public registration of an identity. Immutable once created.
type Record struct {
	PublicHash  string            `json:"public_hash"`
	Timestamp   string            `json:"timestamp"`
	SourceID    string            `json:"source_id"`
	EntropyBits float64           `json:"entropy_bits"`
	Algorithm   string            `json:"algorithm"`
	Metadata    map[string]string `json:"metadata"`
}

// Commitment computes one-way public hashes over derived keys.
//
// The domain prefix keeps commitments from colliding with any other hash use
// in the system, and the algorithm tag keeps digests from different hash
// functions semantically distinct.
type Commitment struct {
	alg Algorithm
}

// NewCommitment constructs a commitment scheme for the given algorithm.
func NewCommitment(alg Algorithm) (*Commitment, error) {
	switch alg {
	case AlgSHA3_256, AlgSHA3_512, AlgSHA256, AlgBLAKE2b256:
		return &Commitment{alg: alg}, nil
	default:
		return nil, fmt.Errorf("identity: unsupported algorithm %q", alg)
	}
}

// Algorithm returns the configured hash algorithm.
func (c *Commitment) Algorithm() Algorithm { return c.alg }

func (c *Commitment) newHash() hash.Hash {
	switch c.alg {
	case AlgSHA3_512:
		return sha3.New512()
	case AlgSHA256:
		return sha256.New()
	case AlgBLAKE2b256:
		h, _ := blake2b.New256(nil)
		return h
	default:
		return sha3.New256()
	}
}

// Compute returns the hex public hash of a key. The salt, when non-nil,
// strengthens the commitment; verification must supply the same salt.
func (c *Commitment) Compute(key, salt []byte) string {
	h := c.newHash()
	h.Write([]byte(domainCommit))
	h.Write([]byte(c.alg))
	h.Write(key)
	if salt != nil {
		h.Write(salt)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether key (and salt) reproduce the claimed hash.
func (c *Commitment) Verify(key []byte, claimed string, salt []byte) bool {
	computed := c.Compute(key, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(claimed)) == 1
}

// ComputeNonceCommitment binds a key to a single-use nonce, for proofs of
// knowledge that must not reuse the registered public hash.
func (c *Commitment) ComputeNonceCommitment(key, nonce []byte) string {
	h := c.newHash()
	h.Write([]byte(domainNonce))
	h.Write(key)
	h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil))
}

// CreateRecord builds a public identity record for a derived key.
func (c *Commitment) CreateRecord(key []byte, sourceID string, entropyBits float64, metadata map[string]string) Record {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return Record{
		PublicHash:  c.Compute(key, nil),
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		SourceID:    sourceID,
		EntropyBits: entropyBits,
		Algorithm:   string(c.alg),
		Metadata:    meta,
	}
}

// DerivePublicID shortens a public hash into a human-friendly identifier.
func DerivePublicID(publicHash string) string {
	if len(publicHash) <= 16 {
		return publicHash
	}
	return publicHash[:16]
}
