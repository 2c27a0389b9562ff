// Package anchor produces and verifies triple time anchors: three
// independently sourced timestamps that make temporal precedence harder to
// forge than a single clock would.
package anchor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"
)

// Type names one of the three anchor sources.
type Type string

const (
	TypeSystem  Type = "system"
	TypeNetwork Type = "network"
	TypeLedger  Type = "ledger"
)

const domainTripleAnchor = "TRIPLE_ANCHOR"

// ErrMissingAnchor reports a consistency or hash request over an incomplete
// anchor set.
var ErrMissingAnchor = errors.New("anchor: anchor set incomplete")

// Stamp is a raw timestamp fetched from a source.
type Stamp struct {
	Unix      float64
	ISO       string
	Signature string
}

// Anchor is one recorded timestamp, tagged with its source.
type Anchor struct {
	Type         Type    `json:"type"`
	Timestamp    float64 `json:"timestamp"`
	TimestampISO string  `json:"timestamp_iso"`
	Source       string  `json:"source"`
	Signature    string  `json:"signature,omitempty"`
	Degraded     bool    `json:"degraded,omitempty"`
}

// TimeSource fetches a timestamp from a named external source. Blocking
// implementations must honor ctx cancellation.
type TimeSource interface {
	FetchTimestamp(ctx context.Context, source string) (Stamp, error)
}

// SystemClock reads the local clock. It never degrades.
type SystemClock struct{}

// FetchTimestamp returns the local wall-clock time.
func (SystemClock) FetchTimestamp(_ context.Context, _ string) (Stamp, error) {
	return stampNow(), nil
}

// SimulatedLedger mimics a ledger anchor by signing the stamp with a
// domain-tagged digest over the block contents. It stands in for a real
// chain until one is wired behind the TimeSource contract.
type SimulatedLedger struct{}

// FetchTimestamp returns the current time with a simulated block signature.
func (SimulatedLedger) FetchTimestamp(_ context.Context, source string) (Stamp, error) {
	st := stampNow()
	h := sha3.New256()
	h.Write([]byte("SIMULATED_BLOCK"))
	h.Write([]byte(source))
	h.Write([]byte(formatUnix(st.Unix)))
	st.Signature = hex.EncodeToString(h.Sum(nil))
	return st, nil
}

func stampNow() Stamp {
	now := time.Now().UTC()
	return Stamp{
		Unix: float64(now.UnixNano()) / 1e9,
		ISO:  now.Format(time.RFC3339Nano),
	}
}

func formatUnix(f float64) string {
	return strconv.FormatFloat(f, 'f', 9, 64)
}

// TripleAnchor acquires and holds the three anchors for one artifact.
//
// Network and ledger acquisition is timeout-bounded: a source that fails or
// times out degrades to a local-clock anchor flagged Degraded rather than
// blocking finalization indefinitely.
type TripleAnchor struct {
	system  TimeSource
	network TimeSource
	ledger  TimeSource
	timeout time.Duration
	anchors map[Type]Anchor
}

// Option configures a TripleAnchor.
type Option func(*TripleAnchor)

// WithNetworkSource replaces the network-time collaborator.
func WithNetworkSource(src TimeSource) Option {
	return func(t *TripleAnchor) { t.network = src }
}

// WithLedgerSource replaces the ledger collaborator.
func WithLedgerSource(src TimeSource) Option {
	return func(t *TripleAnchor) { t.ledger = src }
}

// WithTimeout bounds each external fetch.
func WithTimeout(d time.Duration) Option {
	return func(t *TripleAnchor) { t.timeout = d }
}

// New constructs a TripleAnchor. Without options the network and ledger
// sources are simulated locally.
func New(opts ...Option) *TripleAnchor {
	t := &TripleAnchor{
		system:  SystemClock{},
		network: SystemClock{},
		ledger:  SimulatedLedger{},
		timeout: 5 * time.Second,
		anchors: make(map[Type]Anchor),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateAll acquires all three anchors. The system anchor always comes from
// the local clock; the other two degrade on timeout or fetch error.
func (t *TripleAnchor) CreateAll(ctx context.Context) ([]Anchor, error) {
	specs := []struct {
		typ    Type
		src    TimeSource
		source string
	}{
		{TypeSystem, t.system, "system_clock"},
		{TypeNetwork, t.network, "network_time"},
		{TypeLedger, t.ledger, "ledger_sim"},
	}

	out := make([]Anchor, 0, len(specs))
	for _, sp := range specs {
		a := t.fetchOne(ctx, sp.typ, sp.src, sp.source)
		t.anchors[sp.typ] = a
		out = append(out, a)
	}
	return out, nil
}

func (t *TripleAnchor) fetchOne(ctx context.Context, typ Type, src TimeSource, source string) Anchor {
	fctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type fetched struct {
		st  Stamp
		err error
	}
	ch := make(chan fetched, 1)
	go func() {
		st, err := src.FetchTimestamp(fctx, source)
		ch <- fetched{st, err}
	}()

	select {
	case f := <-ch:
		if f.err == nil {
			return Anchor{
				Type:         typ,
				Timestamp:    f.st.Unix,
				TimestampISO: f.st.ISO,
				Source:       source,
				Signature:    f.st.Signature,
			}
		}
	case <-fctx.Done():
	}

	local := stampNow()
	return Anchor{
		Type:         typ,
		Timestamp:    local.Unix,
		TimestampISO: local.ISO,
		Source:       source + "_degraded_local",
		Degraded:     true,
	}
}

// Get returns the anchor recorded for the given type.
func (t *TripleAnchor) Get(typ Type) (Anchor, bool) {
	a, ok := t.anchors[typ]
	return a, ok
}

// Export returns the recorded anchors keyed by type name.
func (t *TripleAnchor) Export() map[string]Anchor {
	out := make(map[string]Anchor, len(t.anchors))
	for typ, a := range t.anchors {
		out[string(typ)] = a
	}
	return out
}

// VerifyConsistency reports whether all three anchors exist and their
// pairwise timestamp drift stays at or below maxDriftSeconds.
func (t *TripleAnchor) VerifyConsistency(maxDriftSeconds float64) (bool, error) {
	ts := make([]float64, 0, 3)
	for _, typ := range []Type{TypeSystem, TypeNetwork, TypeLedger} {
		a, ok := t.anchors[typ]
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrMissingAnchor, typ)
		}
		ts = append(ts, a.Timestamp)
	}
	sort.Float64s(ts)
	return ts[len(ts)-1]-ts[0] <= maxDriftSeconds, nil
}

// Median returns the median anchor timestamp, the robust representative time
// when one source is skewed.
func (t *TripleAnchor) Median() (float64, error) {
	if len(t.anchors) != 3 {
		return 0, ErrMissingAnchor
	}
	ts := make([]float64, 0, 3)
	for _, a := range t.anchors {
		ts = append(ts, a.Timestamp)
	}
	sort.Float64s(ts)
	return ts[1], nil
}

// Hash folds all anchors, sorted by type, into one domain-tagged digest.
func (t *TripleAnchor) Hash() (string, error) {
	if len(t.anchors) != 3 {
		return "", ErrMissingAnchor
	}
	types := make([]string, 0, len(t.anchors))
	for typ := range t.anchors {
		types = append(types, string(typ))
	}
	sort.Strings(types)

	h := sha3.New256()
	h.Write([]byte(domainTripleAnchor))
	for _, ts := range types {
		a := t.anchors[Type(ts)]
		h.Write([]byte(ts))
		h.Write([]byte(formatUnix(a.Timestamp)))
		h.Write([]byte(a.Source))
		h.Write([]byte(a.Signature))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
