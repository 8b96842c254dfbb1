package regulation

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/affective-core/internal/emotion"
)

func newTestRegulator(t *testing.T) (*Regulator, *emotion.Engine) {
	t.Helper()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }
	eng := emotion.NewEngine(emotion.DefaultConfig(), clock, nil)
	return NewRegulator(eng, DefaultConfig(), clock, nil), eng
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// #region rule-tests
func TestDefaultRulesSortedByPriority(t *testing.T) {
	r, _ := newTestRegulator(t)
	rules := r.Rules()
	want := []string{"frustration_cap", "overconfidence_cap", "excitement_cap", "boredom_recovery"}
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, name := range want {
		if rules[i].Name != name {
			t.Errorf("rule %d: expected %s, got %s", i, name, rules[i].Name)
		}
	}
}

func TestRegulationConvergesInOnePass(t *testing.T) {
	r, eng := newTestRegulator(t)
	eng.SetChannel(emotion.Frustration, 0.95)

	fired := r.ApplyRegulation()

	if got := eng.State().Get(emotion.Frustration); got != 0.6 {
		t.Fatalf("expected frustration 0.6, got %f", got)
	}
	if len(fired) != 1 || fired[0] != "frustration_cap" {
		t.Errorf("expected only frustration_cap to fire, got %v", fired)
	}
	for _, rule := range r.Rules() {
		if rule.Matches(eng.State()) {
			t.Errorf("rule %s still matches after one pass", rule.Name)
		}
	}
}

func TestRegulationAllRulesAtOnce(t *testing.T) {
	r, eng := newTestRegulator(t)
	eng.SetChannel(emotion.Frustration, 1)
	eng.SetChannel(emotion.Excitement, 1)
	eng.SetChannel(emotion.Boredom, 1)
	eng.SetChannel(emotion.Confidence, 1)

	fired := r.ApplyRegulation()
	if len(fired) != 4 {
		t.Fatalf("expected 4 rules to fire, got %v", fired)
	}
	s := eng.State()
	checks := map[emotion.Channel]float64{
		emotion.Frustration: 0.6,
		emotion.Excitement:  0.7,
		emotion.Caution:     0.5,
		emotion.Curiosity:   0.6,
		emotion.Boredom:     0.4,
		emotion.Confidence:  0.85,
	}
	for c, want := range checks {
		if got := s.Get(c); got != want {
			t.Errorf("%s: expected %f, got %f", c, want, got)
		}
	}
	for _, rule := range r.Rules() {
		if rule.Matches(s) {
			t.Errorf("rule %s still matches", rule.Name)
		}
	}
	if len(r.ApplyRegulation()) != 0 {
		t.Error("second pass should be a no-op")
	}
}

func TestRegulationBypassesTriggerBookkeeping(t *testing.T) {
	r, eng := newTestRegulator(t)
	eng.SetChannel(emotion.Boredom, 0.9)
	r.ApplyRegulation()
	if len(eng.Triggers()) != 0 {
		t.Errorf("regulation must not record triggers, got %d", len(eng.Triggers()))
	}
	conflicts := r.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict entry, got %d", len(conflicts))
	}
	if conflicts[0].StateBefore["boredom"] != 0.9 {
		t.Errorf("stateBefore should capture pre-rule value, got %f", conflicts[0].StateBefore["boredom"])
	}
}

func TestConflictLogCapped(t *testing.T) {
	r, eng := newTestRegulator(t)
	for i := 0; i < 30; i++ {
		eng.SetChannel(emotion.Frustration, 0.9)
		r.ApplyRegulation()
	}
	if got := len(r.Conflicts()); got != 20 {
		t.Errorf("conflict log should cap at 20, got %d", got)
	}
	if got := len(r.RecentConflicts(5)); got != 5 {
		t.Errorf("expected 5 recent conflicts, got %d", got)
	}
}

func TestAddRuleOrdering(t *testing.T) {
	r, eng := newTestRegulator(t)
	r.AddRule(Rule{
		Name: "empathy_cap", Priority: 9,
		Channel: emotion.Empathy, Threshold: 0.9,
		Set: []Assignment{{emotion.Empathy, 0.75}},
	})
	rules := r.Rules()
	if rules[1].Name != "overconfidence_cap" || rules[2].Name != "empathy_cap" {
		t.Errorf("equal priority should keep registration order: %s, %s", rules[1].Name, rules[2].Name)
	}
	eng.SetChannel(emotion.Empathy, 0.95)
	r.ApplyRegulation()
	if got := eng.State().Get(emotion.Empathy); got != 0.75 {
		t.Errorf("custom rule should apply, got %f", got)
	}
}

func TestRegulationDecaysBeforeMatching(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	eng := emotion.NewEngine(emotion.DefaultConfig(), clock, nil)
	r := NewRegulator(eng, DefaultConfig(), clock, nil)
	eng.SetChannel(emotion.Frustration, 0.85)

	now = now.Add(time.Minute) // 0.85 * 0.995^60 is about 0.63
	fired := r.ApplyRegulation()

	if len(fired) != 0 || len(r.Conflicts()) != 0 {
		t.Fatalf("relaxed frustration should not fire, got %v", fired)
	}
	want := 0.85 * math.Pow(0.995, 60)
	if got := eng.State().Get(emotion.Frustration); !approx(got, want) {
		t.Errorf("expected decayed frustration %f, got %f", want, got)
	}
}

// #endregion rule-tests

// #region logic-priority-tests
func TestEnforceLogicPriorityReturnsDecisionUnchanged(t *testing.T) {
	r, eng := newTestRegulator(t)
	d := Decision{Action: "process", Approach: "standard", Parameters: map[string]any{"temperature": 0.7}}

	got := r.EnforceLogicPriority(d, Influence{Conflict: false})
	if got.Approach != "standard" || got.Action != "process" {
		t.Fatalf("decision modified: %+v", got)
	}
	if len(eng.Triggers()) != 0 {
		t.Error("no conflict should not trigger")
	}

	before := eng.State().Get(emotion.Frustration)
	got = r.EnforceLogicPriority(d, Influence{Conflict: true, Preference: "creative"})
	if got.Approach != "standard" {
		t.Fatalf("emotional preference must never win, got %s", got.Approach)
	}
	if after := eng.State().Get(emotion.Frustration); !approx(after, before+0.05) {
		t.Errorf("expected frustration +0.05, got %f -> %f", before, after)
	}
	triggers := eng.Triggers()
	if len(triggers) != 1 || triggers[0].EventType != "logic_conflict" {
		t.Errorf("expected logic_conflict trigger, got %+v", triggers)
	}
}

// #endregion logic-priority-tests

// #region modulate-tests
func TestFactorFor(t *testing.T) {
	tests := map[string]string{
		"temperature":      emotion.FactorCreativity,
		"creativity_boost": emotion.FactorCreativity,
		"attention_span":   emotion.FactorFocus,
		"timeout":          emotion.FactorSpeed,
		"safety_margin":    emotion.FactorCaution,
		"diversity":        emotion.FactorExploration,
		"max_retry":        emotion.FactorPatience,
		"max_tokens":       emotion.FactorConfidenceMod,
		"Top_P":            emotion.FactorConfidenceMod,
	}
	for param, want := range tests {
		if got := FactorFor(param); got != want {
			t.Errorf("%s: expected %s, got %s", param, want, got)
		}
	}
}

func TestModulateParametersCreativity(t *testing.T) {
	r, eng := newTestRegulator(t)
	// creativity = 1 + 0.5*(0.9-0.5) = 1.2
	eng.SetChannel(emotion.Curiosity, 0.9)
	if f := eng.ModulationFactors().Creativity; !approx(f, 1.2) {
		t.Fatalf("setup: expected creativity 1.2, got %f", f)
	}

	out := r.ModulateParameters(map[string]any{"temperature": 0.7, "max_tokens": 2000})

	temp, ok := out["temperature"].(float64)
	if !ok || !approx(temp, 0.84) {
		t.Errorf("expected temperature 0.84, got %v", out["temperature"])
	}
	tokens, ok := out["max_tokens"].(int)
	if !ok {
		t.Fatalf("max_tokens should stay an int, got %T", out["max_tokens"])
	}
	if tokens < 1000 || tokens > 3000 {
		t.Errorf("max_tokens %d outside [1000,3000]", tokens)
	}
}

func TestModulateParametersClamps(t *testing.T) {
	r, eng := newTestRegulator(t)
	eng.SetChannel(emotion.Curiosity, 1)
	eng.SetChannel(emotion.Excitement, 1)
	eng.SetChannel(emotion.Caution, 1)
	eng.SetChannel(emotion.Frustration, 1)

	out := r.ModulateParameters(map[string]any{
		"temperature":   1.9,
		"safety_margin": 1.0,
		"timeout":       30,
		"model":         "gpt",
		"stream":        true,
		"nan_param":     math.NaN(),
	})

	if got := out["temperature"].(float64); got != 2.0 {
		t.Errorf("temperature should clamp to 2.0, got %f", got)
	}
	// caution factor 1.5 clamps to 1.3x in the narrow band
	if got := out["safety_margin"].(float64); !approx(got, 1.3) {
		t.Errorf("safety_margin should clamp to 1.3, got %f", got)
	}
	if got := out["timeout"].(int); got < 15 || got > 45 {
		t.Errorf("timeout %d outside [15,45]", got)
	}
	if out["model"] != "gpt" || out["stream"] != true {
		t.Errorf("non-numeric fields must pass through: %v %v", out["model"], out["stream"])
	}
	if v := out["nan_param"].(float64); !math.IsNaN(v) {
		t.Errorf("non-finite values pass through, got %f", v)
	}
}

func TestModulateParametersTemperatureFloor(t *testing.T) {
	r, eng := newTestRegulator(t)
	eng.SetChannel(emotion.Curiosity, 0)
	eng.SetChannel(emotion.Excitement, 0)
	out := r.ModulateParameters(map[string]any{"temperature": 0.1})
	if got := out["temperature"].(float64); got != 0.1 {
		t.Errorf("temperature should floor at 0.1, got %f", got)
	}
}

// #endregion modulate-tests
