package rules

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func violationsByID(vs []Violation) map[string]Violation {
	out := make(map[string]Violation, len(vs))
	for _, v := range vs {
		out[v.RuleID] = v
	}
	return out
}

// baseState satisfies every default rule.
func baseState() State {
	return State{
		SourceID:      s("src-1"),
		Timestamp:     f(200),
		PrevTimestamp: f(100),
		Lat:           f(45),
		Lon:           f(9),
		PrevLat:       f(45),
		PrevLon:       f(9),
		Temperature:   f(21.5),
		EntropyBits:   f(256),
		BER:           f(0.02),
		PrevHash:      s(strings.Repeat("ab", 32)),
	}
}

func TestDefaultSetAcceptsSaneState(t *testing.T) {
	set := DefaultSet()
	if set.Count() != 8 {
		t.Fatalf("default rule count: got %d, want 8", set.Count())
	}
	if vs := set.CheckAll(baseState()); len(vs) != 0 {
		t.Fatalf("sane state violated: %+v", vs)
	}
	if !set.IsValid(baseState()) {
		t.Fatalf("IsValid rejected a sane state")
	}
}

func TestBaselineRules(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*State)
		ruleID   string
		severity Severity
	}{
		{"timestamp regression", func(st *State) { st.Timestamp = f(50) }, "SIGMA_001_TIMESTAMP_MONOTONIC", SeverityCritical},
		{"short prev hash", func(st *State) { st.PrevHash = s("abc123") }, "SIGMA_002_PREV_HASH_VALID", SeverityCritical},
		{"non-hex prev hash", func(st *State) { st.PrevHash = s(strings.Repeat("zz", 32)) }, "SIGMA_002_PREV_HASH_VALID", SeverityCritical},
		{"below absolute zero", func(st *State) { st.Temperature = f(-300) }, "SIGMA_003_TEMPERATURE_PHYSICAL", SeverityCritical},
		{"over max temperature", func(st *State) { st.Temperature = f(6000) }, "SIGMA_003_TEMPERATURE_PHYSICAL", SeverityCritical},
		{"latitude out of range", func(st *State) { st.Lat = f(91) }, "SIGMA_004_LOCATION_VALID", SeverityCritical},
		{"longitude out of range", func(st *State) { st.Lon = f(-181) }, "SIGMA_004_LOCATION_VALID", SeverityCritical},
		{"entropy below floor", func(st *State) { st.EntropyBits = f(64) }, "SIGMA_005_ENTROPY_MINIMUM", SeverityCritical},
		{"missing source id", func(st *State) { st.SourceID = s("") }, "SIGMA_006_PUF_ID_EXISTS", SeverityCritical},
		{"ber above half", func(st *State) { st.BER = f(0.7) }, "SIGMA_007_BER_ACCEPTABLE", SeverityError},
		{"negative ber", func(st *State) { st.BER = f(-0.1) }, "SIGMA_007_BER_ACCEPTABLE", SeverityError},
	}

	set := DefaultSet()
	for _, tc := range cases {
		st := baseState()
		tc.mutate(&st)

		byID := violationsByID(set.CheckAll(st))
		v, ok := byID[tc.ruleID]
		if !ok {
			t.Fatalf("%s: rule %s did not fire", tc.name, tc.ruleID)
		}
		if v.Severity != tc.severity {
			t.Fatalf("%s: severity got %s, want %s", tc.name, v.Severity, tc.severity)
		}
	}
}

func TestOptionalFieldsPass(t *testing.T) {
	// Rules over optional fields must not fire when the field is absent.
	set := DefaultSet()
	st := State{SourceID: s("src-1"), Timestamp: f(10)}
	if vs := set.CheckAll(st); len(vs) != 0 {
		t.Fatalf("minimal state violated: %+v", vs)
	}
}

func TestVelocityRule(t *testing.T) {
	set := DefaultSet()

	// Milan to Rome (~480 km) in one hour is plausible.
	st := baseState()
	st.PrevLat, st.PrevLon = f(45.4642), f(9.19)
	st.Lat, st.Lon = f(41.9028), f(12.4964)
	st.PrevTimestamp, st.Timestamp = f(0), f(3600)
	if byID := violationsByID(set.CheckAll(st)); len(byID) != 0 {
		t.Fatalf("plausible travel violated: %+v", byID)
	}

	// The same displacement in ten seconds is not.
	st.Timestamp = f(10)
	byID := violationsByID(set.CheckAll(st))
	if _, ok := byID["SIGMA_008_VELOCITY_PHYSICAL"]; !ok {
		t.Fatalf("implausible velocity did not fire")
	}

	// Movement with zero elapsed time fails.
	st.Timestamp = f(0)
	byID = violationsByID(set.CheckAll(st))
	if _, ok := byID["SIGMA_008_VELOCITY_PHYSICAL"]; !ok {
		t.Fatalf("zero elapsed time with movement did not fire")
	}
}

func TestNaNBERIsCritical(t *testing.T) {
	// A BER that reaches the rules as NaN is a fault, not a range miss: the
	// predicate errors and the evaluator escalates it.
	set := DefaultSet()
	st := baseState()
	st.BER = f(math.NaN())

	byID := violationsByID(set.CheckAll(st))
	v, ok := byID["SIGMA_007_BER_ACCEPTABLE"]
	if !ok {
		t.Fatalf("NaN BER did not fire")
	}
	if v.Severity != SeverityCritical {
		t.Fatalf("NaN BER severity: got %s, want critical", v.Severity)
	}
}

func TestFaultingPredicateBecomesCritical(t *testing.T) {
	set := NewSet()
	set.MustAdd(Rule{
		ID:       "ERRORS",
		Severity: SeverityWarning,
		Check:    func(State) (bool, error) { return false, errors.New("backend down") },
	})
	set.MustAdd(Rule{
		ID:       "PANICS",
		Severity: SeverityWarning,
		Check:    func(State) (bool, error) { panic("boom") },
	})

	byID := violationsByID(set.CheckAll(State{}))
	for _, id := range []string{"ERRORS", "PANICS"} {
		v, ok := byID[id]
		if !ok {
			t.Fatalf("rule %s did not fire", id)
		}
		if v.Severity != SeverityCritical {
			t.Fatalf("rule %s: fault severity got %s, want critical", id, v.Severity)
		}
	}
	if set.IsValid(State{}) {
		t.Fatalf("IsValid accepted a state with faulting predicates")
	}
}

func TestDuplicateRuleIDRejected(t *testing.T) {
	set := NewSet()
	r := Rule{ID: "DUP", Severity: SeverityWarning, Check: func(State) (bool, error) { return true, nil }}
	if err := set.Add(r); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := set.Add(r); err == nil {
		t.Fatalf("duplicate Add accepted")
	}
	if err := set.Add(Rule{Severity: SeverityWarning}); err == nil {
		t.Fatalf("empty ID accepted")
	}

	got, ok := set.Rule("DUP")
	if !ok || got.ID != "DUP" {
		t.Fatalf("Rule lookup failed")
	}
}
