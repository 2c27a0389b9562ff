package gate

import "sync"

// AttackEvent records one adversarial probe and its entropy outcome.
type AttackEvent struct {
	EntropyBefore float64 `json:"entropy_before"`
	EntropyAfter  float64 `json:"entropy_after"`
	AttackEnergy  float64 `json:"attack_energy"`
	Alpha         float64 `json:"alpha_r"`
	AntiFragile   bool    `json:"antifragile"`
}

// AntiFragility tracks how the system's entropy responds to attacks.
//
// For each attack, alpha = (entropyAfter - entropyBefore) / attackEnergy. A
// system is anti-fragile when it gains at least as much entropy as an attack
// costs, i.e. average alpha >= 1.
type AntiFragility struct {
	mu     sync.Mutex
	events []AttackEvent
}

// NewAntiFragility constructs an empty metric set.
func NewAntiFragility() *AntiFragility {
	return &AntiFragility{}
}

// RecordAttack records one attack and returns its alpha. Attacks with
// non-positive energy are meaningless and are not recorded.
func (m *AntiFragility) RecordAttack(entropyBefore, entropyAfter, attackEnergy float64) float64 {
	if attackEnergy <= 0 {
		return 0
	}
	alpha := (entropyAfter - entropyBefore) / attackEnergy

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, AttackEvent{
		EntropyBefore: entropyBefore,
		EntropyAfter:  entropyAfter,
		AttackEnergy:  attackEnergy,
		Alpha:         alpha,
		AntiFragile:   alpha >= 1,
	})
	return alpha
}

// AverageAlpha returns the mean alpha over all recorded attacks. With no
// attacks recorded it returns 1: an unattacked system has shown no fragility.
func (m *AntiFragility) AverageAlpha() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return 1
	}
	sum := 0.0
	for _, e := range m.events {
		sum += e.Alpha
	}
	return sum / float64(len(m.events))
}

// AntiFragile reports whether the average alpha meets the >= 1 threshold.
func (m *AntiFragility) AntiFragile() bool {
	return m.AverageAlpha() >= 1
}

// Events returns a copy of all recorded attacks.
func (m *AntiFragility) Events() []AttackEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AttackEvent(nil), m.events...)
}
