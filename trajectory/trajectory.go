package trajectory

import (
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/sha3"
)

const domainTrajectory = "TRAJECTORY"

// Trajectory is the append-only hash chain of state vectors.
//
// Invariants:
//   - the genesis vector has no PrevHash;
//   - every later vector's PrevHash equals the stored hash of its predecessor;
//   - SequenceID increases strictly from 0;
//   - past entries are never mutated or removed.
type Trajectory struct {
	mu     sync.RWMutex
	states []StateVector
	hashes []string
}

// New constructs an empty trajectory.
func New() *Trajectory {
	return &Trajectory{}
}

// NewWithGenesis constructs a trajectory seeded with a genesis vector and
// returns the genesis hash.
func NewWithGenesis(genesis StateVector) (*Trajectory, string) {
	t := New()
	return t, t.Append(genesis)
}

// Append chains the vector onto the trajectory: it sets PrevHash to the
// current head hash, assigns the next sequence ID, stores the vector with its
// canonical hash, and returns that hash.
func (t *Trajectory) Append(v StateVector) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(v)
}

func (t *Trajectory) appendLocked(v StateVector) string {
	stored := v.clone()
	if len(t.hashes) > 0 {
		stored.PrevHash = t.hashes[len(t.hashes)-1]
	} else {
		stored.PrevHash = ""
	}
	stored.SequenceID = len(t.states)

	hash := stored.Hash()
	t.states = append(t.states, stored)
	t.hashes = append(t.hashes, hash)
	return hash
}

// VerifyChain reports whether every vector's PrevHash matches the stored hash
// of its predecessor.
func (t *Trajectory) VerifyChain() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.states) > 0 && t.states[0].PrevHash != "" {
		return false
	}
	for i := 1; i < len(t.states); i++ {
		if t.states[i].PrevHash != t.hashes[i-1] {
			return false
		}
	}
	return true
}

// Current returns the most recent vector.
func (t *Trajectory) Current() (StateVector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.states) == 0 {
		return StateVector{}, false
	}
	return t.states[len(t.states)-1].clone(), true
}

// Genesis returns the first vector.
func (t *Trajectory) Genesis() (StateVector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.states) == 0 {
		return StateVector{}, false
	}
	return t.states[0].clone(), true
}

// ByIndex returns the vector at the given position.
func (t *Trajectory) ByIndex(i int) (StateVector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.states) {
		return StateVector{}, false
	}
	return t.states[i].clone(), true
}

// ByHash returns the vector whose stored hash matches.
func (t *Trajectory) ByHash(hash string) (StateVector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, h := range t.hashes {
		if h == hash {
			return t.states[i].clone(), true
		}
	}
	return StateVector{}, false
}

// HeadHash returns the hash of the most recent vector.
func (t *Trajectory) HeadHash() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.hashes) == 0 {
		return "", false
	}
	return t.hashes[len(t.hashes)-1], true
}

// Len returns the number of chained vectors.
func (t *Trajectory) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

// TrajectoryHash folds all per-state hashes, in order, into one commitment
// to the whole history.
func (t *Trajectory) TrajectoryHash() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return foldHashes(t.hashes)
}

func foldHashes(hashes []string) string {
	h := sha3.New256()
	h.Write([]byte(domainTrajectory))
	for _, sh := range hashes {
		h.Write([]byte(sh))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Export is a full serializable dump of the trajectory.
type Export struct {
	GenesisHash    string        `json:"genesis_hash,omitempty"`
	CurrentHash    string        `json:"current_hash,omitempty"`
	TrajectoryHash string        `json:"trajectory_hash"`
	StateCount     int           `json:"state_count"`
	States         []StateVector `json:"states"`
	Hashes         []string      `json:"hashes"`
}

// ExportAll dumps every state and hash for reporting layers.
func (t *Trajectory) ExportAll() Export {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := Export{
		TrajectoryHash: foldHashes(t.hashes),
		StateCount:     len(t.states),
		States:         make([]StateVector, 0, len(t.states)),
		Hashes:         append([]string(nil), t.hashes...),
	}
	for _, s := range t.states {
		out.States = append(out.States, s.clone())
	}
	if len(t.hashes) > 0 {
		out.GenesisHash = t.hashes[0]
		out.CurrentHash = t.hashes[len(t.hashes)-1]
	}
	return out
}
