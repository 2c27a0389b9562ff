package sign

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func TestEd25519SignVerify(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	priv, pub, err := GenerateEd25519(seed)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	if !strings.HasPrefix(pub, "ed25519:") {
		t.Fatalf("public key encoding: %q", pub)
	}

	digest := StateDigest("abc123")
	sig := SignEd25519(digest, priv)

	ok, err := Verify(pub, digest, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("valid signature rejected")
	}

	ok, err = Verify(pub, StateDigest("abc124"), sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("signature accepted for a different digest")
	}
}

func TestGenerateEd25519RejectsBadSeed(t *testing.T) {
	if _, _, err := GenerateEd25519([]byte("short")); err == nil {
		t.Fatalf("short seed accepted")
	}
}

func TestDilithium3SignVerify(t *testing.T) {
	priv, pub, err := GenerateDilithium3(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateDilithium3: %v", err)
	}
	if !strings.HasPrefix(pub, "dilithium3:") {
		t.Fatalf("public key encoding: %q", pub)
	}

	digest := StateDigest("abc123")
	sig, err := SignDilithium3(digest, priv)
	if err != nil {
		t.Fatalf("SignDilithium3: %v", err)
	}

	ok, err := Verify(pub, digest, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("valid dilithium3 signature rejected")
	}

	ok, err = Verify(pub, StateDigest("abc124"), sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("dilithium3 signature accepted for a different digest")
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	priv, pub, err := GenerateEd25519(seed)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	digest := StateDigest("abc")
	sig := SignEd25519(digest, priv)

	if _, err := Verify("no-colon", digest, sig); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("key without algorithm tag: got %v, want ErrInvalidKey", err)
	}
	if _, err := Verify("ed25519:!!!", digest, sig); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("undecodable key: got %v, want ErrInvalidKey", err)
	}
	if _, err := Verify("ed25519:AAAA", digest, sig); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("wrong-length key: got %v, want ErrInvalidKey", err)
	}
	if _, err := Verify(pub, digest, "!!!"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("undecodable signature: got %v, want ErrInvalidSignature", err)
	}
	if _, err := Verify(pub, digest, "AAAA"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("wrong-length signature: got %v, want ErrInvalidSignature", err)
	}
	if _, err := Verify("rsa:AAAA", digest, sig); !errors.Is(err, ErrUnsupportedAlg) {
		t.Fatalf("unsupported algorithm: got %v, want ErrUnsupportedAlg", err)
	}
}

func TestStateDigestIsDomainTagged(t *testing.T) {
	d1 := StateDigest("hash-a")
	d2 := StateDigest("hash-b")
	if bytes.Equal(d1, d2) {
		t.Fatalf("digests collide across state hashes")
	}
	if len(d1) != 32 {
		t.Fatalf("digest length: got %d, want 32", len(d1))
	}
}
