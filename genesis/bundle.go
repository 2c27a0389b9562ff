// Package genesis seals an identity's origin into an immutable, externally
// verifiable artifact: bundle contents, identity commitment, triple time
// anchor, and metadata folded into a single genesis hash.
package genesis

import (
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

const domainBundle = "GENESIS_BUNDLE"

// Bundle holds the named files sealed into an artifact.
type Bundle struct {
	files map[string][]byte
}

// NewBundle constructs an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{files: make(map[string][]byte)}
}

// Add stores a file under name, replacing any previous content.
func (b *Bundle) Add(name string, content []byte) {
	b.files[name] = append([]byte(nil), content...)
}

// Len returns the number of files in the bundle.
func (b *Bundle) Len() int { return len(b.files) }

// FileHash returns the SHA3-256 digest of one file.
func (b *Bundle) FileHash(name string) (string, error) {
	content, ok := b.files[name]
	if !ok {
		return "", fmt.Errorf("genesis: file not in bundle: %s", name)
	}
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}

// Hash folds all files, sorted by name, into one domain-tagged digest.
func (b *Bundle) Hash() string {
	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha3.New256()
	h.Write([]byte(domainBundle))
	for _, name := range names {
		h.Write([]byte(name))
		h.Write(b.files[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// clone deep-copies the bundle so snapshots cannot reach stored contents.
func (b *Bundle) clone() *Bundle {
	out := NewBundle()
	for name, content := range b.files {
		out.Add(name, content)
	}
	return out
}

// Manifest maps each file name to its individual hash.
func (b *Bundle) Manifest() map[string]string {
	out := make(map[string]string, len(b.files))
	for name, content := range b.files {
		sum := sha3.Sum256(content)
		out[name] = hex.EncodeToString(sum[:])
	}
	return out
}
