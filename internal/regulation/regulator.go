// Package regulation keeps the emotional state out of runaway regions and
// bounds how far emotion may move behavioural parameters.
package regulation

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/ring"
)

// #region regulator
// Regulator evaluates priority-ordered rules against an emotion engine.
type Regulator struct {
	engine    *emotion.Engine
	config    Config
	rules     []Rule
	conflicts *ring.Buffer[ConflictEntry]
	now       emotion.Clock
	logger    *zap.Logger
}

// NewRegulator creates a regulator with the default rules installed.
func NewRegulator(engine *emotion.Engine, config Config, clock emotion.Clock, logger *zap.Logger) *Regulator {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Regulator{
		engine:    engine,
		config:    config,
		conflicts: ring.New[ConflictEntry](config.ConflictLogSize),
		now:       clock,
		logger:    logger,
	}
	for _, rule := range defaultRules() {
		r.AddRule(rule)
	}
	return r
}

// AddRule registers a rule, keeping the list sorted by descending priority.
// Rules with equal priority keep registration order.
func (r *Regulator) AddRule(rule Rule) {
	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool {
		return r.rules[i].Priority > r.rules[j].Priority
	})
}

// Rules returns the rules in evaluation order.
func (r *Regulator) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// #endregion regulator

// #region apply
// ApplyRegulation decays the state to the current clock, then evaluates
// every rule once, highest priority first, and returns the names of the
// rules that fired.
func (r *Regulator) ApplyRegulation() []string {
	r.engine.ApplyDecay(r.now())
	state := r.engine.State()
	var fired []string
	for _, rule := range r.rules {
		if !rule.Matches(state) {
			continue
		}
		r.conflicts.Push(ConflictEntry{
			RuleName:    rule.Name,
			Timestamp:   r.now(),
			StateBefore: state.Values(),
		})
		rule.apply(r.engine)
		fired = append(fired, rule.Name)
		r.logger.Info("regulation rule fired",
			zap.String("rule", rule.Name),
			zap.Int("priority", rule.Priority))
	}
	return fired
}

// Conflicts returns the conflict log, oldest first.
func (r *Regulator) Conflicts() []ConflictEntry {
	return r.conflicts.Items()
}

// RecentConflicts returns up to n of the newest conflict entries.
func (r *Regulator) RecentConflicts(n int) []ConflictEntry {
	return r.conflicts.Last(n)
}

// #endregion apply

// #region logic-priority
// EnforceLogicPriority returns decision unchanged. A reported conflict only
// registers a small frustration trigger.
func (r *Regulator) EnforceLogicPriority(decision Decision, influence Influence) Decision {
	if influence.Conflict {
		r.engine.Trigger(emotion.Frustration.String(), r.config.ConflictFrustration,
			"emotional preference overridden by logic", "logic_conflict")
		r.logger.Debug("logic priority enforced",
			zap.String("approach", decision.Approach),
			zap.String("preference", influence.Preference))
	}
	return decision
}

// #endregion logic-priority

// #region modulate
// factorRules maps parameter name substrings to modulation factors, first match wins.
var factorRules = []struct {
	needles []string
	factor  string
}{
	{[]string{"creativity", "temperature"}, emotion.FactorCreativity},
	{[]string{"focus", "attention"}, emotion.FactorFocus},
	{[]string{"speed", "timeout"}, emotion.FactorSpeed},
	{[]string{"caution", "safety"}, emotion.FactorCaution},
	{[]string{"exploration", "diversity"}, emotion.FactorExploration},
	{[]string{"patience", "retry"}, emotion.FactorPatience},
}

// FactorFor returns the modulation factor name applied to a parameter.
func FactorFor(param string) string {
	lower := strings.ToLower(param)
	for _, fr := range factorRules {
		for _, n := range fr.needles {
			if strings.Contains(lower, n) {
				return fr.factor
			}
		}
	}
	return emotion.FactorConfidenceMod
}

// ModulateParameters multiplies every numeric field by its factor and clamps
// the result. Non-numeric fields are copied unchanged.
func (r *Regulator) ModulateParameters(base map[string]any) map[string]any {
	factors := r.engine.ModulationFactors()
	out := make(map[string]any, len(base))
	for name, raw := range base {
		v, ok := toFloat(raw)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			out[name] = raw
			continue
		}
		modulated := r.clampParam(name, v, v*factors.Value(FactorFor(name)))
		out[name] = fromFloat(raw, modulated)
	}
	return out
}

func (r *Regulator) clampParam(name string, original, v float64) float64 {
	lower := strings.ToLower(name)
	var lo, hi float64
	switch {
	case strings.Contains(lower, "temperature") || strings.Contains(lower, "creativity"):
		lo, hi = r.config.TemperatureMin, r.config.TemperatureMax
	case strings.Contains(lower, "max_tokens") || strings.Contains(lower, "timeout"):
		lo, hi = original*r.config.WideBandLow, original*r.config.WideBandHigh
	default:
		lo, hi = original*r.config.NarrowBandLow, original*r.config.NarrowBandHigh
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// fromFloat converts back to the original numeric type; integers are rounded.
func fromFloat(orig any, v float64) any {
	switch orig.(type) {
	case float32:
		return float32(v)
	case int:
		return int(math.Round(v))
	case int32:
		return int32(math.Round(v))
	case int64:
		return int64(math.Round(v))
	}
	return v
}

// #endregion modulate
