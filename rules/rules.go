// Package rules defines severity-tagged predicates over a flattened state and
// evaluates candidate states against them, fail-closed.
//
// A predicate that returns an error or panics is converted into a Critical
// violation at the boundary; evaluation never propagates a fault to the
// caller.
package rules

import (
	"fmt"
)

// Severity ranks how a violated rule affects admissibility.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

// State is the flattened view a predicate sees: the candidate vector merged
// with context derived from the trajectory head. Nil means absent.
type State struct {
	SourceID      *string
	Timestamp     *float64
	PrevTimestamp *float64
	Lat           *float64
	Lon           *float64
	PrevLat       *float64
	PrevLon       *float64
	Temperature   *float64
	EntropyBits   *float64
	BER           *float64
	PrevHash      *string
}

// Violation records one violated rule together with the offending state.
type Violation struct {
	RuleID   string
	Severity Severity
	Message  string
	State    State
}

// Predicate reports whether the state satisfies the rule. Returning an error
// marks the state suspect; the evaluator converts it to a Critical violation.
type Predicate func(State) (bool, error)

// Rule is a named, severity-tagged admissibility condition.
type Rule struct {
	ID          string
	Description string
	Severity    Severity
	Check       Predicate
}

// check evaluates one rule fail-closed: predicate faults (error or panic)
// surface as Critical violations, never as evaluator faults.
func (r Rule) check(st State) (v *Violation) {
	defer func() {
		if p := recover(); p != nil {
			v = &Violation{
				RuleID:   r.ID,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("validator panicked: %v", p),
				State:    st,
			}
		}
	}()

	ok, err := r.Check(st)
	if err != nil {
		return &Violation{
			RuleID:   r.ID,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("validator failed: %v", err),
			State:    st,
		}
	}
	if !ok {
		return &Violation{
			RuleID:   r.ID,
			Severity: r.Severity,
			Message:  "violation: " + r.Description,
			State:    st,
		}
	}
	return nil
}

// Set is an ordered collection of rules with unique IDs.
type Set struct {
	rules []Rule
	ids   map[string]int
}

// NewSet constructs an empty rule set.
func NewSet() *Set {
	return &Set{ids: make(map[string]int)}
}

// Add appends a rule. Duplicate IDs are rejected.
func (s *Set) Add(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rules: empty rule id")
	}
	if _, exists := s.ids[r.ID]; exists {
		return fmt.Errorf("rules: rule %s already exists", r.ID)
	}
	s.ids[r.ID] = len(s.rules)
	s.rules = append(s.rules, r)
	return nil
}

// MustAdd is Add for construction-time registration of known-unique rules.
func (s *Set) MustAdd(r Rule) {
	if err := s.Add(r); err != nil {
		panic(err)
	}
}

// Rule returns the rule registered under id.
func (s *Set) Rule(id string) (Rule, bool) {
	i, ok := s.ids[id]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// Count returns the number of registered rules.
func (s *Set) Count() int { return len(s.rules) }

// CheckAll evaluates every rule, in registration order, and returns all
// violations. An empty result means the state satisfies the whole set.
func (s *Set) CheckAll(st State) []Violation {
	var out []Violation
	for _, r := range s.rules {
		if v := r.check(st); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// IsValid reports whether the state has no Critical violations.
func (s *Set) IsValid(st State) bool {
	for _, v := range s.CheckAll(st) {
		if v.Severity == SeverityCritical {
			return false
		}
	}
	return true
}
