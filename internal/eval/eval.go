// Package eval validates core checkpoints before they are persisted, so a
// corrupted core never becomes a session's active version.
package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/memory"
)

// #region eval-harness
// EvalHarness runs the checks.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks channel bounds, tier capacities and affinity range.
func (h *EvalHarness) Run(cp cognitive.Checkpoint) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, format string, args ...any) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf(format, args...))
		}
	}

	// 1. every channel present, finite and inside [0,1]
	for _, c := range emotion.Channels() {
		v, ok := cp.Emotion.Values[c.String()]
		pass := ok && !math.IsNaN(v) && v >= 0 && v <= 1
		check("channel_"+c.String(), v, pass, "%s=%v outside [0,1]", c, v)
	}

	// 2. short and medium tiers within capacity
	kinds := []struct {
		name   string
		counts memory.TierCounts
	}{
		{"episodic", countTiers(cp.Memory.Episodic, func(r memory.Episodic) memory.Tier { return r.Tier })},
		{"semantic", countTiers(cp.Memory.Semantic, func(r memory.Semantic) memory.Tier { return r.Tier })},
		{"affective", countTiers(cp.Memory.Affective, func(r memory.Affective) memory.Tier { return r.Tier })},
	}
	for _, k := range kinds {
		check(k.name+"_short", float64(k.counts.Short), k.counts.Short <= h.config.ShortTermMaxSize,
			"%s short tier holds %d, capacity %d", k.name, k.counts.Short, h.config.ShortTermMaxSize)
		check(k.name+"_medium", float64(k.counts.Medium), k.counts.Medium <= h.config.MediumTermMaxSize,
			"%s medium tier holds %d, capacity %d", k.name, k.counts.Medium, h.config.MediumTermMaxSize)
	}

	// 3. affinities in [0,1]
	for user, a := range cp.Memory.Affinity {
		if math.IsNaN(a) || a < 0 || a > 1 {
			check("affinity_"+user, a, false, "affinity of %s is %v", user, a)
		}
	}
	check("affinity_users", float64(len(cp.Memory.Affinity)), true, "")

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func countTiers[T any](records []T, tier func(T) memory.Tier) memory.TierCounts {
	var c memory.TierCounts
	for _, r := range records {
		switch tier(r) {
		case memory.Short:
			c.Short++
		case memory.Medium:
			c.Medium++
		default:
			c.Long++
		}
	}
	return c
}

// #endregion helpers
