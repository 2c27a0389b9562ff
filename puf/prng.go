package puf

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Stream is a deterministic byte stream derived from a seed and a domain tag.
//
// Two streams built from the same (domain, seed) pair yield identical bytes,
// which makes every simulated source reproducible end to end. This replaces
// the ad-hoc numeric randomness a physical simulation would otherwise need.
type Stream struct {
	shake sha3.ShakeHash
}

// NewStream constructs a stream for the given domain and seed.
func NewStream(domain string, seed []byte) *Stream {
	sh := sha3.NewShake256()
	_, _ = sh.Write([]byte(domain))
	_, _ = sh.Write([]byte{0})
	_, _ = sh.Write(seed)
	return &Stream{shake: sh}
}

// Bytes returns the next n bytes of the stream.
func (s *Stream) Bytes(n int) []byte {
	out := make([]byte, n)
	_, _ = s.shake.Read(out)
	return out
}

// Uint64 returns the next 8 stream bytes as a big-endian integer.
func (s *Stream) Uint64() uint64 {
	var buf [8]byte
	_, _ = s.shake.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}

// Intn returns a value in [0, n). n must be positive.
//
// Rejection sampling keeps the draw unbiased for any n.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic("puf: Intn requires positive n")
	}
	max := uint64(n)
	limit := (^uint64(0) / max) * max
	for {
		v := s.Uint64()
		if v < limit {
			return int(v % max)
		}
	}
}

// Float64 returns a value in [0, 1).
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) / float64(1<<53)
}
