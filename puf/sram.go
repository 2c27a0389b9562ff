package puf

// SRAM simulates a power-up SRAM source: each cell has a manufacturing bias
// toward 0 or 1, and thermal noise flips a small fraction of cells between
// power cycles. Typical of NFC chips and embedded microcontrollers.
type SRAM struct {
	internal    []byte
	id          string
	baseState   []byte
	sramSize    int
	entropyBits float64
	ber         float64
	noise       *Stream
}

var _ Source = (*SRAM)(nil)

// SRAMConfig configures an SRAM source. Zero values pick defaults:
// 1 KiB of cells, 256 declared entropy bits, 2% BER.
type SRAMConfig struct {
	ChipSeed    []byte
	SRAMSize    int
	EntropyBits float64
	BER         float64
}

// NewSRAM constructs an SRAM source from a chip seed.
func NewSRAM(cfg SRAMConfig) *SRAM {
	if cfg.SRAMSize == 0 {
		cfg.SRAMSize = 1024
	}
	if cfg.EntropyBits == 0 {
		cfg.EntropyBits = 256
	}
	if cfg.BER == 0 {
		cfg.BER = 0.02
	}
	internal := deriveInternalState(cfg.ChipSeed)
	fabrication := NewStream("SVCA_PUF_SRAM_BIAS", internal)
	return &SRAM{
		internal:    internal,
		id:          deriveID(internal),
		baseState:   fabrication.Bytes(cfg.SRAMSize),
		sramSize:    cfg.SRAMSize,
		entropyBits: cfg.EntropyBits,
		ber:         clampBER(cfg.BER),
		noise:       NewStream("SVCA_PUF_SRAM_NOISE", internal),
	}
}

// Generate simulates a power-up readout. A challenge, if given, selects the
// 32-byte region read from the cell array.
func (p *SRAM) Generate(challenge []byte) (Response, error) {
	state := p.baseState
	if len(challenge) >= 2 {
		offset := (int(challenge[0])<<8 | int(challenge[1])) % p.sramSize
		region := make([]byte, 32)
		for i := range region {
			region[i] = p.baseState[(offset+i)%p.sramSize]
		}
		state = region
	}

	noisy := flipBits(p.noise, state, p.ber)
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

func (p *SRAM) Entropy() float64 { return p.entropyBits }
func (p *SRAM) BER() float64     { return p.ber }
func (p *SRAM) ID() string       { return p.id }
