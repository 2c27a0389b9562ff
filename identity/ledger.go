package identity

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/MatVerse-py/svca-lab-genesis/storage"
)

// ErrDuplicateIdentity reports a registration attempt for a public hash that
// is already in the ledger.
var ErrDuplicateIdentity = errors.New("identity: duplicate public hash")

// Ledger is an append-only registry of identity records keyed by public hash.
//
// Registration is an atomic check-then-insert: the first writer wins and a
// duplicate never overwrites the existing record. Records are never removed.
type Ledger struct {
	mu      sync.Mutex
	records map[string]Record
	order   []string
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[string]Record)}
}

// Register inserts a record. It returns false iff the public hash is already
// present; the stored record is left untouched in that case.
func (l *Ledger) Register(rec Record) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.PublicHash]; exists {
		return false
	}
	l.records[rec.PublicHash] = rec
	l.order = append(l.order, rec.PublicHash)
	return true
}

// Lookup returns the record registered under the public hash.
func (l *Ledger) Lookup(publicHash string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[publicHash]
	return rec, ok
}

// Exists reports whether the public hash is registered.
func (l *Ledger) Exists(publicHash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[publicHash]
	return ok
}

// Records returns all records in registration order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, 0, len(l.order))
	for _, h := range l.order {
		out = append(out, l.records[h])
	}
	return out
}

// Count returns the number of registered records.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// snapshot is the persisted ledger shape.
type snapshot struct {
	Records []Record `json:"records"`
	Count   int      `json:"count"`
}

// ExportJSON serializes the ledger for persistence.
func (l *Ledger) ExportJSON() ([]byte, error) {
	recs := l.Records()
	return json.MarshalIndent(snapshot{Records: recs, Count: len(recs)}, "", "  ")
}

// SaveTo persists a ledger snapshot to a content-addressable store and
// returns its CID.
func (l *Ledger) SaveTo(cas storage.CAS) (cid.Cid, error) {
	b, err := l.ExportJSON()
	if err != nil {
		return cid.Undef, err
	}
	return cas.Put(b)
}

// LoadLedger rebuilds a ledger from snapshot bytes produced by ExportJSON.
// A snapshot containing two records with the same public hash is corrupt.
func LoadLedger(data []byte) (*Ledger, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	l := NewLedger()
	for _, rec := range snap.Records {
		if !l.Register(rec) {
			return nil, ErrDuplicateIdentity
		}
	}
	return l, nil
}

// LoadLedgerFrom fetches and rebuilds a ledger snapshot from a CAS.
func LoadLedgerFrom(cas storage.CAS, id cid.Cid) (*Ledger, error) {
	b, err := cas.Get(id)
	if err != nil {
		return nil, err
	}
	return LoadLedger(b)
}
