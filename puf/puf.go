// Package puf models physically unclonable sources: hardware primitives whose
// responses derive from microscopic manufacturing variation and cannot be
// cloned by a remote party.
//
// All variants in this package are simulations driven by a deterministic
// seeded stream; a hardware-backed source integrates by implementing Source.
package puf

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// Response is a single raw readout from a physical source.
type Response struct {
	// Bits is the raw noisy response. Never empty.
	Bits []byte

	// EntropyBits is the entropy declared by the source.
	EntropyBits float64

	// BitErrorRate is the expected fraction of bits that differ between
	// repeated readouts, in [0, 0.5].
	BitErrorRate float64

	// Challenge echoes the challenge used, if any.
	Challenge []byte
}

// Source is the capability every physical source must provide.
//
// ID must be derived from internal secret state via a one-way hash only;
// it must never be invertible to the secret.
type Source interface {
	Generate(challenge []byte) (Response, error)
	Entropy() float64
	BER() float64
	ID() string
}

var ErrEmptyResponse = errors.New("puf: empty response")

const (
	domainInternalState = "SVCA_PUF_INTERNAL_STATE"
	domainSourceID      = "SVCA_PUF_ID"
	defaultChallenge    = "DEFAULT_CHALLENGE"
)

// deriveInternalState expands a secret seed into the source's internal state.
func deriveInternalState(seed []byte) []byte {
	h := sha3.New256()
	h.Write([]byte(domainInternalState))
	h.Write(seed)
	return h.Sum(nil)
}

// deriveID produces the public, one-way identifier for an internal state.
func deriveID(internal []byte) string {
	h := sha3.New256()
	h.Write([]byte(domainSourceID))
	h.Write(internal)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// clampBER bounds a bit error rate to the physically meaningful range.
func clampBER(ber float64) float64 {
	if ber < 0 {
		return 0
	}
	if ber > 0.5 {
		return 0.5
	}
	return ber
}

// flipBits flips int(len(data)*8*ber) bit positions drawn from the stream,
// emulating readout noise at the declared error rate.
func flipBits(s *Stream, data []byte, ber float64) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	if ber == 0 || len(data) == 0 {
		return out
	}
	totalBits := len(data) * 8
	flips := int(float64(totalBits) * ber)
	for i := 0; i < flips; i++ {
		pos := s.Intn(totalBits)
		out[pos/8] ^= 1 << (pos % 8)
	}
	return out
}
