package gate

import (
	"testing"

	"github.com/MatVerse-py/svca-lab-genesis/rules"
	"github.com/MatVerse-py/svca-lab-genesis/trajectory"
)

func f(v float64) *float64 { return &v }

func newChain(genesis trajectory.StateVector) *trajectory.Trajectory {
	traj, _ := trajectory.NewWithGenesis(genesis)
	return traj
}

func TestInvalidSignatureAlwaysBlocks(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})

	// Even a perfectly clean candidate is blocked without a valid signature.
	res := g.Validate(trajectory.StateVector{SourceID: "src", Timestamp: 200}, traj, false)
	if res.Decision != Block {
		t.Fatalf("decision: got %s, want block", res.Decision)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("rules were evaluated despite a failed signature")
	}
	if res.Allowed() {
		t.Fatalf("Allowed true on a blocked result")
	}
}

func TestEntropyFloorBlocks(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100, EntropyBits: f(256)})

	res := g.Validate(trajectory.StateVector{SourceID: "src", Timestamp: 200, EntropyBits: f(64)}, traj, true)
	if res.Decision != Block {
		t.Fatalf("decision: got %s, want block", res.Decision)
	}
}

func TestTimestampRegressionBlocks(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})

	res := g.Validate(trajectory.StateVector{SourceID: "src", Timestamp: 50}, traj, true)
	if res.Decision != Block {
		t.Fatalf("decision: got %s, want block", res.Decision)
	}
}

func TestErrorViolationQuarantines(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})

	candidate := trajectory.StateVector{
		SourceID:  "src",
		Timestamp: 200,
		Metadata:  map[string]string{"ber": "0.9"},
	}
	res, hash := g.ValidateAndAppend(candidate, traj, true)
	if res.Decision != Quarantine {
		t.Fatalf("decision: got %s, want quarantine", res.Decision)
	}
	if hash != "" {
		t.Fatalf("quarantined candidate was appended")
	}
	if traj.Len() != 1 {
		t.Fatalf("trajectory grew on quarantine")
	}
}

func TestStrictModeBlocksErrorViolations(t *testing.T) {
	g := New(nil, true)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})

	candidate := trajectory.StateVector{
		SourceID:  "src",
		Timestamp: 200,
		Metadata:  map[string]string{"ber": "0.9"},
	}
	res := g.Validate(candidate, traj, true)
	if res.Decision != Block {
		t.Fatalf("strict decision: got %s, want block", res.Decision)
	}
}

func TestStrictModeBlocksWarnings(t *testing.T) {
	set := rules.DefaultSet()
	set.MustAdd(rules.Rule{
		ID:       "WARN_ALWAYS",
		Severity: rules.SeverityWarning,
		Check:    func(rules.State) (bool, error) { return false, nil },
	})

	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})
	candidate := trajectory.StateVector{SourceID: "src", Timestamp: 200}

	if res := New(set, true).Validate(candidate, traj, true); res.Decision != Block {
		t.Fatalf("strict decision: got %s, want block", res.Decision)
	}

	// The same warning accompanies an Allow outside strict mode.
	res := New(set, false).Validate(candidate, traj, true)
	if res.Decision != Allow {
		t.Fatalf("non-strict decision: got %s, want allow", res.Decision)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("warning missing from an allowed result")
	}
}

func TestValidateAndAppendGrowsChainOnAllow(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})

	res, hash := g.ValidateAndAppend(trajectory.StateVector{SourceID: "src", Timestamp: 200}, traj, true)
	if res.Decision != Allow {
		t.Fatalf("decision: got %s (%s), want allow", res.Decision, res.Message)
	}
	if hash == "" {
		t.Fatalf("allowed append returned an empty hash")
	}
	if traj.Len() != 2 {
		t.Fatalf("trajectory length: got %d, want 2", traj.Len())
	}
	if !traj.VerifyChain() {
		t.Fatalf("chain invalid after gated append")
	}

	// The appended state becomes the context for the next candidate.
	res, _ = g.ValidateAndAppend(trajectory.StateVector{SourceID: "src", Timestamp: 150}, traj, true)
	if res.Decision != Block {
		t.Fatalf("regression against new head: got %s, want block", res.Decision)
	}
	if traj.Len() != 2 {
		t.Fatalf("trajectory grew on block")
	}
}

func TestValidateAndAppendWithoutTrajectoryBlocks(t *testing.T) {
	g := New(nil, false)

	// There is nothing to append to, so the gate must return a decision, not
	// crash mid-validation.
	res, hash := g.ValidateAndAppend(trajectory.StateVector{SourceID: "src", Timestamp: 200}, nil, true)
	if res.Decision != Block {
		t.Fatalf("decision: got %s, want block", res.Decision)
	}
	if hash != "" {
		t.Fatalf("append without trajectory returned a hash")
	}

	st := g.Statistics()
	if st.Blocked != 1 || st.Total != 1 {
		t.Fatalf("statistics after contextless append: %+v", st)
	}
}

func TestUnreadableBERBlocks(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})

	// A declared error rate that cannot be parsed must fail closed, not
	// vanish from rule evaluation.
	candidate := trajectory.StateVector{
		SourceID:  "src",
		Timestamp: 200,
		Metadata:  map[string]string{"ber": "not-a-number"},
	}
	res, hash := g.ValidateAndAppend(candidate, traj, true)
	if res.Decision != Block {
		t.Fatalf("decision: got %s (%s), want block", res.Decision, res.Message)
	}
	if hash != "" || traj.Len() != 1 {
		t.Fatalf("candidate with unreadable BER was appended")
	}

	found := false
	for _, v := range res.Violations {
		if v.RuleID == "SIGMA_007_BER_ACCEPTABLE" && v.Severity == rules.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a critical BER violation, got %+v", res.Violations)
	}
}

func TestVelocityContextFromHead(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{
		SourceID:  "src",
		Timestamp: 0,
		Location:  &trajectory.LatLon{Lat: 45.4642, Lon: 9.19},
	})

	// Rome ten seconds after Milan.
	res := g.Validate(trajectory.StateVector{
		SourceID:  "src",
		Timestamp: 10,
		Location:  &trajectory.LatLon{Lat: 41.9028, Lon: 12.4964},
	}, traj, true)
	if res.Decision != Block {
		t.Fatalf("teleport decision: got %s, want block", res.Decision)
	}
}

func TestStatistics(t *testing.T) {
	g := New(nil, false)
	traj := newChain(trajectory.StateVector{SourceID: "src", Timestamp: 100})

	g.ValidateAndAppend(trajectory.StateVector{SourceID: "src", Timestamp: 200}, traj, true)  // allow
	g.ValidateAndAppend(trajectory.StateVector{SourceID: "src", Timestamp: 50}, traj, true)   // block
	g.ValidateAndAppend(trajectory.StateVector{SourceID: "src", Timestamp: 300}, traj, false) // block
	g.ValidateAndAppend(trajectory.StateVector{ // quarantine counts as blocked
		SourceID: "src", Timestamp: 300, Metadata: map[string]string{"ber": "0.9"},
	}, traj, true)

	st := g.Statistics()
	if st.Allowed != 1 || st.Blocked != 3 || st.Total != 4 {
		t.Fatalf("statistics: %+v", st)
	}
	if st.BlockRate != 0.75 {
		t.Fatalf("block rate: got %v, want 0.75", st.BlockRate)
	}

	g.ResetStatistics()
	if st := g.Statistics(); st.Total != 0 || st.BlockRate != 0 {
		t.Fatalf("statistics after reset: %+v", st)
	}
}
