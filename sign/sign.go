// Package sign attests state vectors with ed25519 or dilithium3 signatures.
//
// The gate consumes only the boolean outcome of Verify; this package is the
// collaborator that produces it. Public keys travel as "<alg>:<base64>"
// strings so key material stays printable in artifacts and ledgers.
package sign

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

const domainStateSig = "SVCA_STATE_SIG_V1"

// Sentinel errors for key and signature handling.
var (
	ErrInvalidKey       = errors.New("sign: invalid public key encoding")
	ErrUnsupportedAlg   = errors.New("sign: unsupported signature algorithm")
	ErrInvalidSignature = errors.New("sign: invalid signature encoding")
)

// StateDigest is the domain-tagged message actually signed for a state
// vector hash. Signing the digest rather than the raw hash keeps state
// signatures from being replayable in any other signing context.
func StateDigest(stateHash string) []byte {
	h := sha3.New256()
	h.Write([]byte(domainStateSig))
	h.Write([]byte(stateHash))
	return h.Sum(nil)
}

// EncodeEd25519Public returns the printable key string for an ed25519 public key.
func EncodeEd25519Public(pub ed25519.PublicKey) string {
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub)
}

// EncodeDilithium3Public returns the printable key string for a dilithium3 public key.
func EncodeDilithium3Public(pub *mode3.PublicKey) (string, error) {
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	return "dilithium3:" + base64.StdEncoding.EncodeToString(b), nil
}

// GenerateEd25519 derives an ed25519 keypair from a seed and returns the
// private key with its encoded public half.
func GenerateEd25519(seed []byte) (ed25519.PrivateKey, string, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, "", fmt.Errorf("sign: seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, EncodeEd25519Public(priv.Public().(ed25519.PublicKey)), nil
}

// GenerateDilithium3 returns a new dilithium3 keypair with its encoded
// public half.
func GenerateDilithium3(rand io.Reader) (*mode3.PrivateKey, string, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, "", err
	}
	encoded, err := EncodeDilithium3Public(pub)
	if err != nil {
		return nil, "", err
	}
	return priv, encoded, nil
}

// SignEd25519 returns a base64 ed25519 signature over the digest.
func SignEd25519(digest []byte, priv ed25519.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, digest))
}

// SignDilithium3 returns a base64 dilithium3 signature over the digest.
func SignDilithium3(digest []byte, priv *mode3.PrivateKey) (string, error) {
	if priv == nil {
		return "", errors.New("sign: missing private key")
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(priv, digest, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature over digest against an encoded public
// key. Any decoding or algorithm problem is an error; a well-formed but
// wrong signature returns (false, nil).
func Verify(encodedPub string, digest []byte, sigB64 string) (bool, error) {
	alg, pubB64, ok := strings.Cut(encodedPub, ":")
	if !ok {
		return false, ErrInvalidKey
	}
	pub, err := decodeBase64(pubB64)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sig, err := decodeBase64(sigB64)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch alg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return false, ErrInvalidKey
		}
		if len(sig) != ed25519.SignatureSize {
			return false, ErrInvalidSignature
		}
		return ed25519.Verify(ed25519.PublicKey(pub), digest, sig), nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		if len(sig) != mode3.SignatureSize {
			return false, ErrInvalidSignature
		}
		return mode3.Verify(&pk, digest, sig), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedAlg, alg)
	}
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
