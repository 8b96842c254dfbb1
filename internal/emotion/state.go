// Package emotion maintains the bounded emotional channels of an agent and
// the engine that decays, triggers and reads them.
package emotion

import (
	"math"
	"time"

	"github.com/danielpatrickdp/affective-core/internal/ring"
)

// #region state
// State is the authoritative set of channel values. Every value stays in [0,1].
type State struct {
	values     [NumChannels]float64
	lastUpdate time.Time
	history    *ring.Buffer[HistoryEntry]
}

// NewState creates a state with every channel at its decay target.
func NewState(now time.Time, historySize int) *State {
	s := &State{
		lastUpdate: now,
		history:    ring.New[HistoryEntry](historySize),
	}
	for c := Channel(0); c < NumChannels; c++ {
		s.values[c] = c.Target()
	}
	return s
}

// #endregion state

// #region access
// Get returns a channel value. Out-of-range channels read as 0.
func (s *State) Get(c Channel) float64 {
	if c < 0 || c >= NumChannels {
		return 0
	}
	return s.values[c]
}

// Set writes a clamped value. NaN and out-of-range channels are ignored.
func (s *State) Set(c Channel, v float64) {
	if c < 0 || c >= NumChannels || math.IsNaN(v) {
		return
	}
	s.values[c] = clamp01(v)
}

// GetByName reads a channel by name; unknown names read as 0.
func (s *State) GetByName(name string) float64 {
	c, ok := ParseChannel(name)
	if !ok {
		return 0
	}
	return s.values[c]
}

// SetByName writes a channel by name and reports whether the name was known.
// Unknown names are ignored.
func (s *State) SetByName(name string, v float64) bool {
	c, ok := ParseChannel(name)
	if !ok {
		return false
	}
	s.Set(c, v)
	return true
}

// LastUpdate returns the time decay was last applied.
func (s *State) LastUpdate() time.Time {
	return s.lastUpdate
}

// Values returns a copy of every channel keyed by name.
func (s *State) Values() map[string]float64 {
	out := make(map[string]float64, NumChannels)
	for c := Channel(0); c < NumChannels; c++ {
		out[c.String()] = s.values[c]
	}
	return out
}

// History returns the recorded channel changes, oldest first.
func (s *State) History() []HistoryEntry {
	return s.history.Items()
}

func (s *State) record(c Channel, reason string, ts time.Time) {
	s.history.Push(HistoryEntry{
		Channel:   c.String(),
		Value:     s.values[c],
		Reason:    reason,
		Timestamp: ts,
	})
}

// #endregion access

// #region helpers
// clamp01 restricts v to [0, 1]. NaN maps to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion helpers
