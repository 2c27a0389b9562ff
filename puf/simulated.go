package puf

import (
	"golang.org/x/crypto/sha3"
)

// Simulated is a software source for tests and development.
//
// A secret seed stands in for the physical identity; readout noise is drawn
// from a deterministic stream so repeated runs reproduce the same sequence
// of noisy responses. Not a substitute for real hardware.
type Simulated struct {
	internal     []byte
	id           string
	entropyBits  float64
	ber          float64
	responseSize int
	noise        *Stream
}

var _ Source = (*Simulated)(nil)

// SimulatedConfig configures a Simulated source. Zero values pick defaults:
// 256 declared entropy bits, 2% BER, 32-byte responses.
type SimulatedConfig struct {
	Seed         []byte
	EntropyBits  float64
	BER          float64
	ResponseSize int
}

// NewSimulated constructs a simulated source from a secret seed.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.EntropyBits == 0 {
		cfg.EntropyBits = 256
	}
	if cfg.BER == 0 {
		cfg.BER = 0.02
	}
	if cfg.ResponseSize == 0 {
		cfg.ResponseSize = 32
	}
	internal := deriveInternalState(cfg.Seed)
	return &Simulated{
		internal:     internal,
		id:           deriveID(internal),
		entropyBits:  cfg.EntropyBits,
		ber:          clampBER(cfg.BER),
		responseSize: cfg.ResponseSize,
		noise:        NewStream("SVCA_PUF_SIM_NOISE", internal),
	}
}

// Generate produces a noisy readout for the challenge (or the default
// challenge when nil).
func (p *Simulated) Generate(challenge []byte) (Response, error) {
	base := p.baseResponse(challenge)
	noisy := flipBits(p.noise, base, p.ber)
	if len(noisy) == 0 {
		return Response{}, ErrEmptyResponse
	}
	return Response{
		Bits:         noisy,
		EntropyBits:  p.entropyBits,
		BitErrorRate: p.ber,
		Challenge:    challenge,
	}, nil
}

// StableResponse returns the noise-free readout for a challenge. Enrollment
// uses this to fix the reference response the extractor sketches against.
func (p *Simulated) StableResponse(challenge []byte) []byte {
	return p.baseResponse(challenge)
}

func (p *Simulated) baseResponse(challenge []byte) []byte {
	h := sha3.NewShake256()
	_, _ = h.Write(p.internal)
	if challenge != nil {
		_, _ = h.Write(challenge)
	} else {
		_, _ = h.Write([]byte(defaultChallenge))
	}
	out := make([]byte, p.responseSize)
	_, _ = h.Read(out)
	return out
}

func (p *Simulated) Entropy() float64 { return p.entropyBits }
func (p *Simulated) BER() float64     { return p.ber }
func (p *Simulated) ID() string       { return p.id }
