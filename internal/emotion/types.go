package emotion

import (
	"strings"
	"time"
)

// #region channel
// Channel identifies one bounded emotional dimension.
type Channel int

const (
	Satisfaction Channel = iota
	Frustration
	Curiosity
	Confidence
	Excitement
	Caution
	Boredom
	Empathy
	NumChannels
)

type channelSpec struct {
	name   string
	target float64 // decay target, also the initial value
	decays bool
}

var channelSpecs = [NumChannels]channelSpec{
	Satisfaction: {"satisfaction", 0.5, true},
	Frustration:  {"frustration", 0.0, true},
	Curiosity:    {"curiosity", 0.5, true},
	Confidence:   {"confidence", 0.5, false},
	Excitement:   {"excitement", 0.3, true},
	Caution:      {"caution", 0.5, false},
	Boredom:      {"boredom", 0.0, true},
	Empathy:      {"empathy", 0.5, false},
}

var channelByName = func() map[string]Channel {
	m := make(map[string]Channel, NumChannels)
	for c := Channel(0); c < NumChannels; c++ {
		m[channelSpecs[c].name] = c
	}
	return m
}()

// String returns the channel's wire name.
func (c Channel) String() string {
	if c < 0 || c >= NumChannels {
		return "unknown"
	}
	return channelSpecs[c].name
}

// Target returns the value the channel relaxes toward.
func (c Channel) Target() float64 {
	if c < 0 || c >= NumChannels {
		return 0
	}
	return channelSpecs[c].target
}

// Decays reports whether time decay applies to the channel.
func (c Channel) Decays() bool {
	return c >= 0 && c < NumChannels && channelSpecs[c].decays
}

// ParseChannel resolves a channel by name, case-insensitively.
func ParseChannel(name string) (Channel, bool) {
	c, ok := channelByName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Channels returns every channel in declaration order.
func Channels() []Channel {
	out := make([]Channel, NumChannels)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

// #endregion channel

// #region tone
// Tone is the coarse label derived from the current state.
type Tone string

const (
	TonePositive   Tone = "positive"
	ToneFrustrated Tone = "frustrated"
	ToneCurious    Tone = "curious"
	ToneBored      Tone = "bored"
	ToneCautious   Tone = "cautious"
	ToneNeutral    Tone = "neutral"
)

// #endregion tone

// #region records
// HistoryEntry records one channel change.
type HistoryEntry struct {
	Channel   string    `json:"channel"`
	Value     float64   `json:"value"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// TriggerEvent records one discrete perturbation, single or composite.
type TriggerEvent struct {
	Channels  []string  `json:"channels"`
	Magnitude float64   `json:"magnitude"`
	Reason    string    `json:"reason"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// Checkpoint is the exportable form of the state for external persistence.
type Checkpoint struct {
	Values     map[string]float64 `json:"values"`
	LastUpdate time.Time          `json:"lastUpdate"`
}

// #endregion records

// #region factors
// Factors are the seven bounded multipliers derived from the state.
type Factors struct {
	Creativity    float64 `json:"creativity"`
	Focus         float64 `json:"focus"`
	Speed         float64 `json:"speed"`
	Caution       float64 `json:"caution"`
	Exploration   float64 `json:"exploration"`
	Patience      float64 `json:"patience"`
	ConfidenceMod float64 `json:"confidence_mod"`
}

// Factor names as used by parameter modulation.
const (
	FactorCreativity    = "creativity"
	FactorFocus         = "focus"
	FactorSpeed         = "speed"
	FactorCaution       = "caution"
	FactorExploration   = "exploration"
	FactorPatience      = "patience"
	FactorConfidenceMod = "confidence_mod"
)

// Value returns a factor by name; unknown names yield the neutral 1.0.
func (f Factors) Value(name string) float64 {
	switch name {
	case FactorCreativity:
		return f.Creativity
	case FactorFocus:
		return f.Focus
	case FactorSpeed:
		return f.Speed
	case FactorCaution:
		return f.Caution
	case FactorExploration:
		return f.Exploration
	case FactorPatience:
		return f.Patience
	case FactorConfidenceMod:
		return f.ConfidenceMod
	}
	return 1.0
}

// Map returns the factors keyed by name.
func (f Factors) Map() map[string]float64 {
	return map[string]float64{
		FactorCreativity:    f.Creativity,
		FactorFocus:         f.Focus,
		FactorSpeed:         f.Speed,
		FactorCaution:       f.Caution,
		FactorExploration:   f.Exploration,
		FactorPatience:      f.Patience,
		FactorConfidenceMod: f.ConfidenceMod,
	}
}

// #endregion factors

// #region config
// Config holds decay, trigger and stability parameters.
type Config struct {
	DecayRate          float64 // per-second retention in (0,1]; default 0.995
	MinIntensity       float64 // lower bound for trigger intensity (default 0)
	MaxIntensity       float64 // upper bound for trigger intensity (default 1)
	StabilityThreshold float64 // population variance bound for IsStable (default 0.05)
	HistorySize        int     // channel change history (default 100)
	TriggerHistorySize int     // trigger event history (default 50)
}

// DefaultConfig returns the standard engine parameters.
func DefaultConfig() Config {
	return Config{
		DecayRate:          0.995,
		MinIntensity:       0.0,
		MaxIntensity:       1.0,
		StabilityThreshold: 0.05,
		HistorySize:        100,
		TriggerHistorySize: 50,
	}
}

// Clock supplies the current time. A nil Clock means time.Now.
type Clock func() time.Time

// #endregion config
