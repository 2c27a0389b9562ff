// Package gate decides whether candidate state vectors may be appended to a
// trajectory.
//
// The gate is fail-closed: a failed signature check, a Critical rule
// violation, or an evaluator fault inside a rule all resolve to Block. No
// path returns Allow unless the signature explicitly passed and the rule set
// raised nothing worse than a Warning (nothing at all in strict mode).
package gate

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/MatVerse-py/svca-lab-genesis/rules"
	"github.com/MatVerse-py/svca-lab-genesis/trajectory"
)

// Decision is the gate's verdict on a candidate state.
type Decision string

const (
	// Allow admits the candidate onto the trajectory.
	Allow Decision = "allow"
	// Block rejects the candidate outright.
	Block Decision = "block"
	// Quarantine withholds the candidate without appending it; it carries
	// Error-severity violations that strict mode would have blocked.
	Quarantine Decision = "quarantine"
)

// Result carries the decision together with everything it was based on.
type Result struct {
	Decision        Decision
	Violations      []rules.Violation
	Message         string
	State           trajectory.StateVector
	SignatureValid  bool
	TrajectoryValid bool
}

// Allowed reports whether the candidate was admitted.
func (r Result) Allowed() bool { return r.Decision == Allow }

// Statistics is a snapshot of the gate's admission counters.
type Statistics struct {
	Allowed   int     `json:"allowed"`
	Blocked   int     `json:"blocked"`
	Total     int     `json:"total"`
	BlockRate float64 `json:"block_rate"`
	Strict    bool    `json:"strict"`
}

// Gate evaluates candidates against a rule set plus trajectory context.
//
// The mutex serializes the combined evaluate-and-append operation: two
// concurrent candidates must never both read the same head and both be
// allowed, since that would fork the chain.
type Gate struct {
	mu      sync.Mutex
	rules   *rules.Set
	strict  bool
	allowed int
	blocked int
}

// New constructs a gate over the given rule set. In strict mode any
// violation, whatever its severity, blocks the candidate.
func New(set *rules.Set, strict bool) *Gate {
	if set == nil {
		set = rules.DefaultSet()
	}
	return &Gate{rules: set, strict: strict}
}

// Strict reports whether the gate blocks on every violation.
func (g *Gate) Strict() bool { return g.strict }

// Validate evaluates a candidate against the trajectory without appending.
func (g *Gate) Validate(candidate trajectory.StateVector, traj *trajectory.Trajectory, signatureValid bool) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	res := g.evaluateLocked(candidate, traj, signatureValid)
	g.countLocked(res)
	return res
}

// ValidateAndAppend evaluates the candidate and, on Allow, appends it to the
// trajectory inside the same critical section. The returned hash is empty
// unless the decision is Allow. A nil trajectory cannot accept an append, so
// the candidate is blocked for missing context rather than evaluated.
func (g *Gate) ValidateAndAppend(candidate trajectory.StateVector, traj *trajectory.Trajectory, signatureValid bool) (Result, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if traj == nil {
		res := Result{
			State:          candidate,
			SignatureValid: signatureValid,
			Decision:       Block,
			Message:        "missing trajectory context",
		}
		g.countLocked(res)
		return res, ""
	}

	res := g.evaluateLocked(candidate, traj, signatureValid)
	g.countLocked(res)
	if res.Decision != Allow {
		return res, ""
	}
	return res, traj.Append(candidate)
}

// evaluateLocked runs the decision procedure. First match wins, no step
// skipped:
//
//  1. invalid signature blocks before any rule runs;
//  2. any Critical violation blocks;
//  3. strict mode blocks on any remaining violation;
//  4. any Error violation quarantines;
//  5. otherwise allow, possibly with Warnings attached.
func (g *Gate) evaluateLocked(candidate trajectory.StateVector, traj *trajectory.Trajectory, signatureValid bool) Result {
	res := Result{
		State:           candidate,
		SignatureValid:  signatureValid,
		TrajectoryValid: traj == nil || traj.VerifyChain(),
	}

	if !signatureValid {
		res.Decision = Block
		res.Message = "signature verification failed"
		return res
	}

	res.Violations = g.rules.CheckAll(flatten(candidate, traj))

	var critical, errs, warns int
	for _, v := range res.Violations {
		switch v.Severity {
		case rules.SeverityCritical:
			critical++
		case rules.SeverityError:
			errs++
		default:
			warns++
		}
	}

	switch {
	case critical > 0:
		res.Decision = Block
		res.Message = fmt.Sprintf("%d critical violation(s)", critical)
	case g.strict && len(res.Violations) > 0:
		res.Decision = Block
		res.Message = fmt.Sprintf("strict mode: %d violation(s)", len(res.Violations))
	case errs > 0:
		res.Decision = Quarantine
		res.Message = fmt.Sprintf("%d error violation(s)", errs)
	default:
		res.Decision = Allow
		if warns > 0 {
			res.Message = fmt.Sprintf("allowed with %d warning(s)", warns)
		} else {
			res.Message = "all checks passed"
		}
	}
	return res
}

func (g *Gate) countLocked(res Result) {
	if res.Decision == Allow {
		g.allowed++
	} else {
		g.blocked++
	}
}

// Statistics returns a snapshot of the admission counters.
func (g *Gate) Statistics() Statistics {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := g.allowed + g.blocked
	st := Statistics{Allowed: g.allowed, Blocked: g.blocked, Total: total, Strict: g.strict}
	if total > 0 {
		st.BlockRate = float64(g.blocked) / float64(total)
	}
	return st
}

// ResetStatistics zeroes the admission counters.
func (g *Gate) ResetStatistics() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowed, g.blocked = 0, 0
}

// flatten merges the candidate vector with trajectory-derived context into
// the view rule predicates evaluate. A candidate's declared bit error rate
// travels in its metadata under the "ber" key.
func flatten(candidate trajectory.StateVector, traj *trajectory.Trajectory) rules.State {
	st := rules.State{
		SourceID:    strPtr(candidate.SourceID),
		Timestamp:   floatPtr(candidate.Timestamp),
		Temperature: candidate.Temperature,
		EntropyBits: candidate.EntropyBits,
	}
	if candidate.Location != nil {
		st.Lat = floatPtr(candidate.Location.Lat)
		st.Lon = floatPtr(candidate.Location.Lon)
	}
	if raw, ok := candidate.Metadata["ber"]; ok {
		ber, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			// A declared but unreadable error rate must reach the rules as a
			// fault, never vanish.
			ber = math.NaN()
		}
		st.BER = floatPtr(ber)
	}

	if traj != nil {
		if prev, ok := traj.Current(); ok {
			st.PrevTimestamp = floatPtr(prev.Timestamp)
			if prev.Location != nil {
				st.PrevLat = floatPtr(prev.Location.Lat)
				st.PrevLon = floatPtr(prev.Location.Lon)
			}
		}
		if head, ok := traj.HeadHash(); ok {
			st.PrevHash = strPtr(head)
		}
	}
	return st
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
