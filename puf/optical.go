package puf

// Optical simulates a speckle-pattern source: laser light through a material
// with random micro-structure yields an interference pattern unique to the
// physical sample.
//
// The response carries pattern bytes directly (subsampled to the response
// size) rather than a digest of the pattern, so the declared BER survives
// into the emitted bits and downstream error correction stays meaningful.
type Optical struct {
	internal    []byte
	id          string
	pattern     []byte
	speckleSize int
	entropyBits float64
	ber         float64
	noise       *Stream
}

var _ Source = (*Optical)(nil)

// OpticalConfig configures an Optical source. Zero values pick defaults:
// a 64x64 speckle grid, 512 declared entropy bits, 5% BER.
type OpticalConfig struct {
	MaterialSeed []byte
	SpeckleSize  int
	EntropyBits  float64
	BER          float64
}

// NewOptical constructs an optical source from a material seed.
func NewOptical(cfg OpticalConfig) *Optical {
	if cfg.SpeckleSize == 0 {
		cfg.SpeckleSize = 64
	}
	if cfg.EntropyBits == 0 {
		cfg.EntropyBits = 512
	}
	if cfg.BER == 0 {
		cfg.BER = 0.05
	}
	internal := deriveInternalState(cfg.MaterialSeed)
	structure := NewStream("SVCA_PUF_OPTICAL_STRUCTURE", internal)
	return &Optical{
		internal:    internal,
		id:          deriveID(internal),
		pattern:     structure.Bytes(cfg.SpeckleSize * cfg.SpeckleSize),
		speckleSize: cfg.SpeckleSize,
		entropyBits: cfg.EntropyBits,
		ber:         clampBER(cfg.BER),
		noise:       NewStream("SVCA_PUF_OPTICAL_NOISE", internal),
	}
}

// Generate reads the speckle pattern with measurement noise. A challenge, if
// given, selects the read window inside the pattern.
func (p *Optical) Generate(challenge []byte) (Response, error) {
	const responseSize = 64

	offset := 0
	if len(challenge) >= 4 {
		offset = int(uint32(challenge[0])<<24|uint32(challenge[1])<<16|uint32(challenge[2])<<8|uint32(challenge[3])) % len(p.pattern)
	}

	window := make([]byte, responseSize)
	for i := range window {
		window[i] = p.pattern[(offset+i)%len(p.pattern)]
	}

	noisy := flipBits(p.noise, window, p.ber)
	return Response{
		Bits:         noisy,
		EntropyBits:  p.entropyBits,
		BitErrorRate: p.ber,
		Challenge:    challenge,
	}, nil
}

func (p *Optical) Entropy() float64 { return p.entropyBits }
func (p *Optical) BER() float64     { return p.ber }
func (p *Optical) ID() string       { return p.id }
