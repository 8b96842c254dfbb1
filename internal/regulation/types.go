package regulation

import (
	"time"

	"github.com/danielpatrickdp/affective-core/internal/emotion"
)

// #region rule
// Assignment sets one channel to a fixed value when a rule fires.
type Assignment struct {
	Channel emotion.Channel
	Value   float64
}

// Rule is a threshold rule: it fires when Channel exceeds Threshold and then
// applies its assignments directly to the state.
type Rule struct {
	Name      string
	Priority  int
	Channel   emotion.Channel
	Threshold float64
	Set       []Assignment
}

// Matches reports whether the rule's predicate holds for s.
func (r Rule) Matches(s *emotion.State) bool {
	return s.Get(r.Channel) > r.Threshold
}

// apply writes the assignments, bypassing trigger bookkeeping.
func (r Rule) apply(e *emotion.Engine) {
	for _, a := range r.Set {
		e.SetChannel(a.Channel, a.Value)
	}
}

// defaultRules returns the built-in regulation rules.
func defaultRules() []Rule {
	return []Rule{
		{
			Name: "frustration_cap", Priority: 10,
			Channel: emotion.Frustration, Threshold: 0.8,
			Set: []Assignment{{emotion.Frustration, 0.6}},
		},
		{
			Name: "excitement_cap", Priority: 8,
			Channel: emotion.Excitement, Threshold: 0.9,
			Set: []Assignment{{emotion.Excitement, 0.7}, {emotion.Caution, 0.5}},
		},
		{
			Name: "boredom_recovery", Priority: 7,
			Channel: emotion.Boredom, Threshold: 0.7,
			Set: []Assignment{{emotion.Curiosity, 0.6}, {emotion.Boredom, 0.4}},
		},
		{
			Name: "overconfidence_cap", Priority: 9,
			Channel: emotion.Confidence, Threshold: 0.95,
			Set: []Assignment{{emotion.Confidence, 0.85}, {emotion.Caution, 0.5}},
		},
	}
}

// #endregion rule

// #region conflict
// ConflictEntry records one rule firing.
type ConflictEntry struct {
	RuleName    string             `json:"ruleName"`
	Timestamp   time.Time          `json:"timestamp"`
	StateBefore map[string]float64 `json:"stateBefore"`
}

// #endregion conflict

// #region decision
// Decision is the logical choice produced by the cognitive pipeline.
type Decision struct {
	Action     string         `json:"action"`
	Approach   string         `json:"approach"`
	Parameters map[string]any `json:"parameters"`
}

// Influence describes how emotion relates to a decision.
type Influence struct {
	Conflict   bool   `json:"conflict"`
	Preference string `json:"preference,omitempty"`
}

// #endregion decision

// #region config
// Config holds regulator limits.
type Config struct {
	ConflictLogSize     int     // default 20
	ConflictFrustration float64 // frustration trigger on logic conflicts (default 0.05)
	TemperatureMin      float64 // absolute floor for temperature/creativity params (default 0.1)
	TemperatureMax      float64 // absolute ceiling (default 2.0)
	WideBandLow         float64 // max_tokens/timeout lower multiple of original (default 0.5)
	WideBandHigh        float64 // default 1.5
	NarrowBandLow       float64 // every other numeric param (default 0.7)
	NarrowBandHigh      float64 // default 1.3
}

// DefaultConfig returns the standard regulator limits.
func DefaultConfig() Config {
	return Config{
		ConflictLogSize:     20,
		ConflictFrustration: 0.05,
		TemperatureMin:      0.1,
		TemperatureMax:      2.0,
		WideBandLow:         0.5,
		WideBandHigh:        1.5,
		NarrowBandLow:       0.7,
		NarrowBandHigh:      1.3,
	}
}

// #endregion config
