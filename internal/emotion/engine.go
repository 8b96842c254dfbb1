package emotion

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/ring"
)

// #region engine
// Engine applies time decay and discrete triggers to a State and derives
// modulation factors, tone and stability from it.
type Engine struct {
	config   Config
	state    *State
	triggers *ring.Buffer[TriggerEvent]
	now      Clock
	logger   *zap.Logger
}

// NewEngine creates an engine over a fresh state. clock and logger may be nil.
func NewEngine(config Config, clock Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		config:   config,
		state:    NewState(clock(), config.HistorySize),
		triggers: ring.New[TriggerEvent](config.TriggerHistorySize),
		now:      clock,
		logger:   logger,
	}
}

// State exposes the underlying state for direct reads.
func (e *Engine) State() *State {
	return e.state
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// #endregion engine

// #region decay
// ApplyDecay relaxes every decaying channel toward its target by
// f = DecayRate^(Δt seconds). Repeated calls with the same now are no-ops.
func (e *Engine) ApplyDecay(now time.Time) {
	elapsed := now.Sub(e.state.lastUpdate).Seconds()
	if elapsed <= 0 {
		return
	}
	f := math.Pow(e.config.DecayRate, elapsed)
	if math.IsNaN(f) {
		f = 1
	}
	f = clampRange(f, 0, 1)
	for c := Channel(0); c < NumChannels; c++ {
		if !c.Decays() {
			continue
		}
		e.state.values[c] = clamp01(e.state.values[c]*f + c.Target()*(1-f))
	}
	e.state.lastUpdate = now
}

// #endregion decay

// #region trigger
// Trigger raises one channel by |intensity| clamped to the configured band.
// Unknown channel names are ignored.
func (e *Engine) Trigger(channel string, intensity float64, reason, eventType string) {
	now := e.now()
	e.ApplyDecay(now)

	c, ok := ParseChannel(channel)
	if !ok {
		e.logger.Debug("ignoring trigger on unknown channel", zap.String("channel", channel))
		return
	}
	mag := e.intensity(intensity)
	e.adjust(c, mag, reason, now)
	e.triggers.Push(TriggerEvent{
		Channels:  []string{c.String()},
		Magnitude: mag,
		Reason:    reason,
		EventType: eventType,
		Timestamp: now,
	})
	e.logger.Debug("emotion trigger",
		zap.String("channel", c.String()),
		zap.Float64("intensity", mag),
		zap.String("event", eventType))
}

func (e *Engine) intensity(v float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	return clampRange(math.Abs(v), e.config.MinIntensity, e.config.MaxIntensity)
}

func (e *Engine) adjust(c Channel, delta float64, reason string, ts time.Time) {
	e.state.values[c] = clamp01(e.state.values[c] + delta)
	e.state.record(c, reason, ts)
}

// #endregion trigger

// #region composite
type channelDelta struct {
	channel Channel
	ratio   float64
}

var (
	successDeltas   = []channelDelta{{Satisfaction, 1.0}, {Confidence, 0.8}, {Frustration, -0.5}}
	failureDeltas   = []channelDelta{{Frustration, 1.0}, {Satisfaction, -0.5}, {Confidence, -0.6}, {Caution, 0.4}}
	praiseDeltas    = []channelDelta{{Satisfaction, 1.0}, {Empathy, 0.6}, {Confidence, 0.5}}
	errorDeltas     = []channelDelta{{Frustration, 0.8}, {Caution, 0.6}, {Confidence, -0.4}}
	curiosityDeltas = []channelDelta{{Curiosity, 1.0}, {Excitement, 0.5}, {Boredom, -0.6}}
	boredomDeltas   = []channelDelta{{Boredom, 1.0}, {Curiosity, -0.5}, {Excitement, -0.4}}
)

// TriggerSuccess: satisfaction +m, confidence +0.8m, frustration -0.5m.
func (e *Engine) TriggerSuccess(magnitude float64) {
	e.composite("success", "task_success", magnitude, successDeltas)
}

// TriggerFailure: frustration +m, satisfaction -0.5m, confidence -0.6m, caution +0.4m.
func (e *Engine) TriggerFailure(magnitude float64) {
	e.composite("failure", "task_failure", magnitude, failureDeltas)
}

// TriggerPraise: satisfaction +m, empathy +0.6m, confidence +0.5m.
func (e *Engine) TriggerPraise(magnitude float64) {
	e.composite("praise", "user_praise", magnitude, praiseDeltas)
}

// TriggerError: frustration +0.8m, caution +0.6m, confidence -0.4m.
func (e *Engine) TriggerError(magnitude float64) {
	e.composite("error", "execution_error", magnitude, errorDeltas)
}

// TriggerCuriosity: curiosity +m, excitement +0.5m, boredom -0.6m.
func (e *Engine) TriggerCuriosity(magnitude float64) {
	e.composite("curiosity", "novel_input", magnitude, curiosityDeltas)
}

// TriggerBoredom: boredom +m, curiosity -0.5m, excitement -0.4m.
func (e *Engine) TriggerBoredom(magnitude float64) {
	e.composite("boredom", "repetitive_input", magnitude, boredomDeltas)
}

func (e *Engine) composite(eventType, reason string, magnitude float64, deltas []channelDelta) {
	now := e.now()
	e.ApplyDecay(now)

	m := e.intensity(magnitude)
	names := make([]string, 0, len(deltas))
	for _, d := range deltas {
		e.adjust(d.channel, d.ratio*m, reason, now)
		names = append(names, d.channel.String())
	}
	e.triggers.Push(TriggerEvent{
		Channels:  names,
		Magnitude: m,
		Reason:    reason,
		EventType: eventType,
		Timestamp: now,
	})
	e.logger.Debug("emotion composite trigger",
		zap.String("event", eventType),
		zap.Float64("magnitude", m))
}

// #endregion composite

// #region direct-write
// SetChannel overwrites a channel without decay or trigger bookkeeping.
// Regulation rules write through here.
func (e *Engine) SetChannel(c Channel, v float64) {
	e.state.Set(c, v)
}

// Triggers returns the trigger history, oldest first.
func (e *Engine) Triggers() []TriggerEvent {
	return e.triggers.Items()
}

// RecentTriggers returns up to n of the newest trigger events.
func (e *Engine) RecentTriggers(n int) []TriggerEvent {
	return e.triggers.Last(n)
}

// #endregion direct-write

// #region reads
// Values applies decay and returns every channel by name.
func (e *Engine) Values() map[string]float64 {
	e.ApplyDecay(e.now())
	return e.state.Values()
}

// ModulationFactors applies decay and returns the seven factors, each
// clamped to [0.5, 1.5] regardless of channel extremes.
func (e *Engine) ModulationFactors() Factors {
	e.ApplyDecay(e.now())
	s := e.state
	band := func(v float64) float64 { return clampRange(v, 0.5, 1.5) }

	return Factors{
		Creativity:    band(1 + 0.5*(s.Get(Curiosity)-0.5) + 0.3*(s.Get(Excitement)-0.3)),
		Focus:         band(1 + 0.4*(s.Get(Confidence)-0.5) - 0.5*s.Get(Frustration)),
		Speed:         band(1 + 0.4*(s.Get(Confidence)-0.5) - 0.3*(s.Get(Caution)-0.5)),
		Caution:       band(1 + 0.6*(s.Get(Caution)-0.5) + 0.3*s.Get(Frustration)),
		Exploration:   band(1 + 0.5*(s.Get(Curiosity)-0.5) + 0.3*s.Get(Boredom)),
		Patience:      band(1 - 0.6*s.Get(Frustration) + 0.2*(s.Get(Satisfaction)-0.5)),
		ConfidenceMod: band(1 + 0.6*(s.Get(Confidence)-0.5)),
	}
}

// EmotionalTone applies decay and walks the tone rules in fixed order.
func (e *Engine) EmotionalTone() Tone {
	e.ApplyDecay(e.now())
	s := e.state
	switch {
	case s.Get(Satisfaction) > 0.7 && s.Get(Frustration) < 0.3:
		return TonePositive
	case s.Get(Frustration) > 0.6:
		return ToneFrustrated
	case s.Get(Curiosity) > 0.7:
		return ToneCurious
	case s.Get(Boredom) > 0.6:
		return ToneBored
	case s.Get(Caution) > 0.7:
		return ToneCautious
	}
	return ToneNeutral
}

// IsStable reports whether the population variance of satisfaction,
// frustration, curiosity and confidence is below the threshold.
func (e *Engine) IsStable() bool {
	return e.Variance() < e.config.StabilityThreshold
}

// Variance applies decay and returns the population variance used by IsStable.
func (e *Engine) Variance() float64 {
	e.ApplyDecay(e.now())
	vals := []float64{
		e.state.Get(Satisfaction),
		e.state.Get(Frustration),
		e.state.Get(Curiosity),
		e.state.Get(Confidence),
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var variance float64
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(vals))
}

// Dominant names the emotion to attach to memories: satisfaction above 0.6,
// else frustration above 0.4, else neutral at 0.5.
func (e *Engine) Dominant() (string, float64) {
	e.ApplyDecay(e.now())
	if v := e.state.Get(Satisfaction); v > 0.6 {
		return Satisfaction.String(), v
	}
	if v := e.state.Get(Frustration); v > 0.4 {
		return Frustration.String(), v
	}
	return "neutral", 0.5
}

// #endregion reads

// #region checkpoint
// Checkpoint exports the channel values and last update time.
func (e *Engine) Checkpoint() Checkpoint {
	return Checkpoint{
		Values:     e.state.Values(),
		LastUpdate: e.state.lastUpdate,
	}
}

// Restore loads a checkpoint. Unknown channel names are skipped, missing
// ones keep their current value.
func (e *Engine) Restore(cp Checkpoint) {
	for name, v := range cp.Values {
		e.state.SetByName(name, v)
	}
	if !cp.LastUpdate.IsZero() {
		e.state.lastUpdate = cp.LastUpdate
	}
}

// #endregion checkpoint
