// Package extractor derives stable cryptographic keys from noisy physical
// responses using the Gen/Rep construction of Dodis et al. (2004).
//
// Gen(w) yields a key and public helper data; Rep(w', helper) reproduces the
// exact same key whenever the Hamming distance between w' and w is within the
// configured tolerance, and fails explicitly beyond it. Reproduction never
// returns a wrong key silently.
package extractor

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrCorrectionExceeded reports that the noisy response differs from the
	// enrolled response by more bits than the configured tolerance.
	ErrCorrectionExceeded = errors.New("extractor: error correction capacity exceeded")

	// ErrHelperFormat reports malformed or incompatible helper data.
	ErrHelperFormat = errors.New("extractor: malformed helper data")
)

const (
	domainGen   = "FUZZY_EXTRACTOR_GEN"
	domainCheck = "FUZZY_EXTRACTOR_CHK"

	checkSize  = 32
	headerSize = 8 // response length (u32) + repetition factor (u32)
)

// Extractor converts noisy source readouts into stable keys.
//
// The secure sketch is a code-offset over a repetition code with factor
// r = 2t+1: any error pattern of weight at most t corrupts at most t bits of
// any single block, so per-block majority decoding recovers the enrolled
// response exactly. Helper data is public; the key itself is derived from the
// response alone under a separate hash domain.
type Extractor struct {
	keyLen    int // bytes
	tolerance int // correctable bits
}

// New constructs an extractor producing keyLen-byte keys and tolerating up to
// tolerance flipped bits between enrollment and reproduction.
func New(keyLen, tolerance int) (*Extractor, error) {
	if keyLen <= 0 {
		return nil, errors.New("extractor: key length must be positive")
	}
	if tolerance < 0 {
		return nil, errors.New("extractor: tolerance must be non-negative")
	}
	return &Extractor{keyLen: keyLen, tolerance: tolerance}, nil
}

// KeyLength returns the derived key length in bytes.
func (e *Extractor) KeyLength() int { return e.keyLen }

// Tolerance returns the number of correctable bit errors.
func (e *Extractor) Tolerance() int { return e.tolerance }

// Gen derives a stable key and public helper data from a source response.
func (e *Extractor) Gen(response []byte) (key, helper []byte, err error) {
	if len(response) == 0 {
		return nil, nil, errors.New("extractor: empty response")
	}

	r := 2*e.tolerance + 1
	sketch, err := e.sketch(response, r)
	if err != nil {
		return nil, nil, err
	}

	helper = make([]byte, 0, headerSize+len(sketch)+checkSize)
	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(response)))
	binary.BigEndian.PutUint32(header[4:8], uint32(r))
	helper = append(helper, header[:]...)
	helper = append(helper, sketch...)
	helper = append(helper, checkDigest(response)...)

	return e.deriveKey(response), helper, nil
}

// Rep reproduces the key from a noisy readout and the helper data produced by
// Gen. It returns ErrCorrectionExceeded when the readout is farther from the
// enrolled response than the configured tolerance.
func (e *Extractor) Rep(noisy, helper []byte) ([]byte, error) {
	respLen, r, sketch, check, err := e.parseHelper(helper)
	if err != nil {
		return nil, err
	}
	if len(noisy) != respLen {
		return nil, fmt.Errorf("%w: response length %d, enrolled %d", ErrHelperFormat, len(noisy), respLen)
	}

	recovered := e.unsketch(noisy, sketch, r, respLen)

	// A wrong reconstruction must never surface as a key.
	if subtle.ConstantTimeCompare(checkDigest(recovered), check) != 1 {
		return nil, ErrCorrectionExceeded
	}

	// The reconstruction is exact, so this is the true distance. Enforce the
	// tolerance bound even when block decoding happened to succeed beyond it.
	if hammingDistance(recovered, noisy) > e.tolerance {
		return nil, ErrCorrectionExceeded
	}

	return e.deriveKey(recovered), nil
}

// EstimateEntropy estimates the extractable entropy of a response read at the
// given bit error rate: n·(1−2·BER)², capped at the key length.
func (e *Extractor) EstimateEntropy(response []byte, ber float64) float64 {
	n := float64(len(response) * 8)
	h := n * (1 - 2*ber) * (1 - 2*ber)
	max := float64(e.keyLen * 8)
	if h > max {
		return max
	}
	return h
}

// sketch computes the code-offset of the response against a random repetition
// codeword: sketch = pad(response) XOR Enc(m) for a uniformly random m.
func (e *Extractor) sketch(response []byte, r int) ([]byte, error) {
	n := len(response) * 8
	blocks := (n + r - 1) / r
	padded := blocks * r

	msg := make([]byte, (blocks+7)/8)
	if _, err := rand.Read(msg); err != nil {
		return nil, err
	}

	sketch := make([]byte, (padded+7)/8)
	for i := 0; i < padded; i++ {
		w := byte(0)
		if i < n {
			w = bitAt(response, i)
		}
		c := bitAt(msg, i/r)
		setBit(sketch, i, w^c)
	}
	return sketch, nil
}

// unsketch recovers the enrolled response from a noisy readout: majority-
// decode the offset codeword, re-encode, and strip the offset.
func (e *Extractor) unsketch(noisy, sketch []byte, r, respLen int) []byte {
	n := respLen * 8
	blocks := (n + r - 1) / r

	recovered := make([]byte, respLen)
	for b := 0; b < blocks; b++ {
		ones := 0
		for j := 0; j < r; j++ {
			i := b*r + j
			w := byte(0)
			if i < n {
				w = bitAt(noisy, i)
			}
			if bitAt(sketch, i)^w == 1 {
				ones++
			}
		}
		m := byte(0)
		if ones*2 > r {
			m = 1
		}
		for j := 0; j < r; j++ {
			i := b*r + j
			if i >= n {
				break
			}
			setBit(recovered, i, bitAt(sketch, i)^m)
		}
	}
	return recovered
}

func (e *Extractor) parseHelper(helper []byte) (respLen, r int, sketch, check []byte, err error) {
	if len(helper) < headerSize+checkSize {
		return 0, 0, nil, nil, ErrHelperFormat
	}
	respLen = int(binary.BigEndian.Uint32(helper[0:4]))
	r = int(binary.BigEndian.Uint32(helper[4:8]))
	if respLen <= 0 || r != 2*e.tolerance+1 {
		return 0, 0, nil, nil, ErrHelperFormat
	}
	n := respLen * 8
	blocks := (n + r - 1) / r
	sketchLen := (blocks*r + 7) / 8
	if len(helper) != headerSize+sketchLen+checkSize {
		return 0, 0, nil, nil, ErrHelperFormat
	}
	sketch = helper[headerSize : headerSize+sketchLen]
	check = helper[headerSize+sketchLen:]
	return respLen, r, sketch, check, nil
}

// deriveKey expands the response into the requested key length via
// counter-mode iteration of the domain-separated hash.
func (e *Extractor) deriveKey(response []byte) []byte {
	seed := sha3.New256()
	seed.Write([]byte(domainGen))
	seed.Write(response)
	material := seed.Sum(nil)

	out := make([]byte, 0, e.keyLen)
	var counter [4]byte
	for i := uint32(0); len(out) < e.keyLen; i++ {
		binary.BigEndian.PutUint32(counter[:], i)
		h := sha3.New256()
		h.Write(material)
		h.Write(counter[:])
		out = append(out, h.Sum(nil)...)
	}
	return out[:e.keyLen]
}

func checkDigest(response []byte) []byte {
	h := sha3.New256()
	h.Write([]byte(domainCheck))
	h.Write(response)
	return h.Sum(nil)
}

func bitAt(b []byte, i int) byte {
	return (b[i/8] >> (i % 8)) & 1
}

func setBit(b []byte, i int, v byte) {
	if v == 1 {
		b[i/8] |= 1 << (i % 8)
	} else {
		b[i/8] &^= 1 << (i % 8)
	}
}

func hammingDistance(a, b []byte) int {
	d := 0
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}
