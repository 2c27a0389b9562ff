package genesis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strconv"

	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/sha3"

	"github.com/MatVerse-py/svca-lab-genesis/anchor"
	"github.com/MatVerse-py/svca-lab-genesis/storage"
)

const (
	domainGenesis = "SVCA_GENESIS_V1"

	// maxAnchorDriftSeconds bounds the pairwise spread the three anchors may
	// show before verification fails.
	maxAnchorDriftSeconds = 5.0
)

// Sentinel errors for artifact lifecycle misuse.
var (
	ErrAlreadyFinalized = errors.New("genesis: artifact already finalized")
	ErrNotFinalized     = errors.New("genesis: artifact not finalized")
)

// Artifact is the sealable record of an identity's origin.
//
// While Draft it accepts bundle entries, metadata, and signatures. Finalize
// is a one-time transition: it acquires the triple anchor, computes the
// genesis hash, and freezes the artifact. Every mutator fails afterwards.
type Artifact struct {
	sourceID    string
	commitment  string
	entropyBits float64
	name        string
	description string

	bundle     *Bundle
	anchors    *anchor.TripleAnchor
	signatures []string
	metadata   map[string]string

	finalized   bool
	genesisHash string
}

// Config carries the identity and experiment fields of an artifact.
type Config struct {
	SourceID    string
	Commitment  string
	EntropyBits float64
	Name        string
	Description string

	// Anchors overrides the default triple anchor, usually to inject remote
	// network/ledger sources.
	Anchors *anchor.TripleAnchor
}

// NewArtifact constructs a Draft artifact.
func NewArtifact(cfg Config) *Artifact {
	anchors := cfg.Anchors
	if anchors == nil {
		anchors = anchor.New()
	}
	return &Artifact{
		sourceID:    cfg.SourceID,
		commitment:  cfg.Commitment,
		entropyBits: cfg.EntropyBits,
		name:        cfg.Name,
		description: cfg.Description,
		bundle:      NewBundle(),
		anchors:     anchors,
		metadata:    make(map[string]string),
	}
}

// Finalized reports whether the artifact has been sealed.
func (a *Artifact) Finalized() bool { return a.finalized }

// GenesisHash returns the sealed hash; empty while Draft.
func (a *Artifact) GenesisHash() string { return a.genesisHash }

// Bundle returns a snapshot of the bundle for inspection. Mutating the
// snapshot never reaches the artifact; entries are added through
// AddBundleEntry only, so sealing stays enforceable.
func (a *Artifact) Bundle() *Bundle { return a.bundle.clone() }

// AddBundleEntry stores a file in the artifact bundle.
func (a *Artifact) AddBundleEntry(name string, content []byte) error {
	if a.finalized {
		return ErrAlreadyFinalized
	}
	a.bundle.Add(name, content)
	return nil
}

// AddMetadata records a metadata pair.
func (a *Artifact) AddMetadata(key, value string) error {
	if a.finalized {
		return ErrAlreadyFinalized
	}
	a.metadata[key] = value
	return nil
}

// AddSignature attaches an external signature over the artifact contents.
func (a *Artifact) AddSignature(sig string) error {
	if a.finalized {
		return ErrAlreadyFinalized
	}
	a.signatures = append(a.signatures, sig)
	return nil
}

// Finalize seals the artifact: acquires all three time anchors, computes the
// genesis hash, and makes the artifact immutable. Returns the genesis hash.
func (a *Artifact) Finalize(ctx context.Context) (string, error) {
	if a.finalized {
		return "", ErrAlreadyFinalized
	}
	if _, err := a.anchors.CreateAll(ctx); err != nil {
		return "", err
	}
	hash, err := a.computeGenesisHash()
	if err != nil {
		return "", err
	}
	a.genesisHash = hash
	a.finalized = true
	return hash, nil
}

func (a *Artifact) computeGenesisHash() (string, error) {
	anchorHash, err := a.anchors.Hash()
	if err != nil {
		return "", err
	}

	h := sha3.New256()
	h.Write([]byte(domainGenesis))
	h.Write([]byte(a.sourceID))
	h.Write([]byte(a.commitment))
	h.Write([]byte(strconv.FormatFloat(a.entropyBits, 'g', -1, 64)))
	h.Write([]byte(a.name))
	h.Write([]byte(a.description))
	h.Write([]byte(a.bundle.Hash()))
	h.Write([]byte(anchorHash))

	keys := make([]string, 0, len(a.metadata))
	for k := range a.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte(a.metadata[k]))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the genesis hash and checks anchor mutual consistency.
// It returns false for a Draft artifact and for any mismatch.
func (a *Artifact) Verify() bool {
	if !a.finalized {
		return false
	}
	recomputed, err := a.computeGenesisHash()
	if err != nil || recomputed != a.genesisHash {
		return false
	}
	ok, err := a.anchors.VerifyConsistency(maxAnchorDriftSeconds)
	return err == nil && ok
}

// Export is the persisted artifact shape.
type Export struct {
	GenesisHash string `json:"genesis_hash"`
	Version     string `json:"version"`

	IntegrityVector struct {
		BundleHash string            `json:"bundle_hash"`
		Manifest   map[string]string `json:"manifest"`
		FileCount  int               `json:"file_count"`
	} `json:"integrity_vector"`

	IdentityCommitment struct {
		SourceID    string  `json:"source_id"`
		PublicHash  string  `json:"public_hash"`
		EntropyBits float64 `json:"entropy_bits"`
	} `json:"identity_commitment"`

	PhysicalWitness struct {
		SourceID    string  `json:"source_id"`
		EntropyBits float64 `json:"entropy_bits"`
	} `json:"physical_witness"`

	TemporalAnchors map[string]anchor.Anchor `json:"temporal_anchors"`

	Experiment struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Metadata    map[string]string `json:"metadata"`
	} `json:"experiment"`

	Signatures []string `json:"signatures"`

	LineagePolicy struct {
		Parent      *string `json:"parent"`
		ForkAllowed bool    `json:"fork_allowed"`
		ForkPolicy  string  `json:"fork_policy"`
	} `json:"lineage_policy"`
}

// Export dumps the sealed artifact. A genesis artifact has no parent and an
// open fork policy.
func (a *Artifact) Export() (Export, error) {
	if !a.finalized {
		return Export{}, ErrNotFinalized
	}

	var out Export
	out.GenesisHash = a.genesisHash
	out.Version = "1.0.0"

	out.IntegrityVector.BundleHash = a.bundle.Hash()
	out.IntegrityVector.Manifest = a.bundle.Manifest()
	out.IntegrityVector.FileCount = a.bundle.Len()

	out.IdentityCommitment.SourceID = a.sourceID
	out.IdentityCommitment.PublicHash = a.commitment
	out.IdentityCommitment.EntropyBits = a.entropyBits

	out.PhysicalWitness.SourceID = a.sourceID
	out.PhysicalWitness.EntropyBits = a.entropyBits

	out.TemporalAnchors = a.anchors.Export()

	out.Experiment.Name = a.name
	out.Experiment.Description = a.description
	out.Experiment.Metadata = make(map[string]string, len(a.metadata))
	for k, v := range a.metadata {
		out.Experiment.Metadata[k] = v
	}

	out.Signatures = append([]string(nil), a.signatures...)

	out.LineagePolicy.Parent = nil
	out.LineagePolicy.ForkAllowed = true
	out.LineagePolicy.ForkPolicy = "open"
	return out, nil
}

// ExportJSON serializes the sealed artifact.
func (a *Artifact) ExportJSON() ([]byte, error) {
	out, err := a.Export()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(out, "", "  ")
}

// SaveTo persists the sealed artifact to a content-addressable store and
// returns its CID.
func (a *Artifact) SaveTo(cas storage.CAS) (cid.Cid, error) {
	b, err := a.ExportJSON()
	if err != nil {
		return cid.Undef, err
	}
	return cas.Put(b)
}
