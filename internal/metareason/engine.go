// Package metareason scores task confidence, produces self-reflections and
// keeps a reasoning trace and a learning journal.
package metareason

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/ring"
)

// #region engine
// Engine is deterministic: scores depend only on the task, context and response.
type Engine struct {
	config      Config
	reflections *ring.Buffer[Reflection]
	trace       *ring.Buffer[ReasoningStep]
	insights    *ring.Buffer[string]
	stepCount   int
	now         func() time.Time
	logger      *zap.Logger
}

// NewEngine creates an engine. clock and logger may be nil.
func NewEngine(config Config, clock func() time.Time, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		config:      config,
		reflections: ring.New[Reflection](config.ReflectionHistorySize),
		trace:       ring.New[ReasoningStep](config.TraceSize),
		insights:    ring.New[string](config.InsightsSize),
		now:         clock,
		logger:      logger,
	}
}

// #endregion engine

// #region assess
// AssessConfidence starts at the base score, applies the context flag
// bonuses and penalties and clamps to [0,1].
func (e *Engine) AssessConfidence(task string, ctx map[string]any, response string) float64 {
	c := e.config
	score := c.BaseConfidence

	if truthy(ctx[KeySimilarExperience]) {
		score += c.SimilarExperienceBonus
	}
	if truthy(ctx[KeyClearInstructions]) {
		score += c.ClearInstructionsBonus
	}
	if truthy(ctx[KeySufficientContext]) {
		score += c.SufficientContextBonus
	}
	if utf8.RuneCountInString(response) > c.LongResponseChars {
		score += c.LongResponseBonus
	}
	if truthy(ctx[KeyAmbiguousTask]) {
		score -= c.AmbiguousPenalty
	}
	if truthy(ctx[KeyInsufficientContext]) {
		score -= c.InsufficientPenalty
	}
	if truthy(ctx[KeyComplexTask]) {
		score -= c.ComplexPenalty
	}
	if n := errorCount(ctx[KeyPreviousErrors]); n > 0 {
		if n > c.MaxCountedErrors {
			n = c.MaxCountedErrors
		}
		score -= c.PreviousErrorPenalty * float64(n)
	}

	return clamp01(score)
}

// ConfidenceLevel buckets a score.
func (e *Engine) ConfidenceLevel(x float64) ConfidenceLevel {
	return LevelFor(x)
}

// #endregion assess

// #region reflect
// Reflect scores the task and emits type-specific suggestions and insights.
// err may be nil.
func (e *Engine) Reflect(typ ReflectionType, task, response string, ctx map[string]any, err error) Reflection {
	if ctx == nil {
		ctx = map[string]any{}
	}
	conf := e.AssessConfidence(task, ctx, response)
	level := LevelFor(conf)
	low := conf < e.config.LowConfidenceThreshold

	var suggestions, insights []string
	switch typ {
	case QualityCheck:
		suggestions, insights = e.qualityTemplate(response, conf, low)
	case UnderstandingCheck:
		suggestions, insights = e.understandingTemplate(task, ctx, conf, level, low)
	case Optimization:
		suggestions, insights = e.optimizationTemplate(ctx, conf, level)
	case ErrorAnalysis:
		suggestions, insights = e.errorTemplate(ctx, err)
	case Learning:
		suggestions, insights = e.learningTemplate(task, conf, low)
	default:
		insights = []string{fmt.Sprintf("Unrecognised reflection type %q", typ)}
	}

	r := Reflection{
		Type:         typ,
		Confidence:   conf,
		Level:        level,
		ShouldRevise: low,
		Suggestions:  nonNil(suggestions),
		Insights:     nonNil(insights),
		Timestamp:    e.now(),
	}
	e.reflections.Push(r)
	e.logger.Debug("reflection",
		zap.String("type", string(typ)),
		zap.Float64("confidence", conf),
		zap.Bool("shouldRevise", low))
	return r
}

func (e *Engine) qualityTemplate(response string, conf float64, low bool) ([]string, []string) {
	var s []string
	n := utf8.RuneCountInString(strings.TrimSpace(response))
	switch {
	case n == 0:
		s = append(s, "Produce a response before evaluating quality")
	case n <= e.config.LongResponseChars:
		s = append(s, "Expand the response with supporting detail")
	}
	if low {
		s = append(s, "Review the response for accuracy and completeness")
	}
	return s, []string{
		fmt.Sprintf("Response length: %d characters", n),
		fmt.Sprintf("Quality confidence: %.2f", conf),
	}
}

func (e *Engine) understandingTemplate(task string, ctx map[string]any, conf float64, level ConfidenceLevel, low bool) ([]string, []string) {
	var s []string
	if truthy(ctx[KeyAmbiguousTask]) {
		s = append(s, "Ask clarifying questions to resolve ambiguity")
	}
	if truthy(ctx[KeyInsufficientContext]) {
		s = append(s, "Gather more context before proceeding")
	}
	if truthy(ctx[KeyComplexTask]) {
		s = append(s, "Break the task into smaller steps")
	}
	if low && len(s) == 0 {
		s = append(s, "Restate the task to confirm understanding")
	}
	ins := []string{fmt.Sprintf("Task understanding confidence: %.2f (%s)", conf, level)}
	if truthy(ctx[KeySimilarExperience]) {
		ins = append(ins, "Similar past experience is available for "+quote(task))
	}
	return s, ins
}

func (e *Engine) optimizationTemplate(ctx map[string]any, conf float64, level ConfidenceLevel) ([]string, []string) {
	s := []string{"Look for redundant steps in the current approach"}
	if truthy(ctx[KeyComplexTask]) {
		s = append(s, "Decompose the work into independent subtasks")
	}
	if truthy(ctx[KeySimilarExperience]) {
		s = append(s, "Reuse the approach from similar past tasks")
	}
	return s, []string{fmt.Sprintf("Optimization baseline confidence: %.2f (%s)", conf, level)}
}

func (e *Engine) errorTemplate(ctx map[string]any, err error) ([]string, []string) {
	var s, ins []string
	if err == nil {
		ins = append(ins, "No error supplied for analysis")
	} else {
		msg := err.Error()
		ins = append(ins, "Error encountered: "+msg)
		lower := strings.ToLower(msg)
		switch {
		case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
			s = append(s, "Increase the timeout or reduce the workload per attempt")
		case strings.Contains(lower, "permission") || strings.Contains(lower, "denied"):
			s = append(s, "Check credentials and access permissions")
		case strings.Contains(lower, "not found"):
			s = append(s, "Verify resource names and paths")
		default:
			s = append(s, "Inspect the error details and retry with adjusted parameters")
		}
	}
	if errorCount(ctx[KeyPreviousErrors]) >= 2 {
		s = append(s, "Repeated errors: consider an alternative approach")
	}
	return s, ins
}

func (e *Engine) learningTemplate(task string, conf float64, low bool) ([]string, []string) {
	s := []string{"Record the successful pattern for reuse"}
	if low {
		s = []string{"Identify the knowledge gaps behind the low confidence"}
	}
	return s, []string{fmt.Sprintf("Task %s assessed at confidence %.2f", quote(task), conf)}
}

// #endregion reflect

// #region trace
// TraceReasoning appends a step to the reasoning trace.
func (e *Engine) TraceReasoning(action, rationale string, confidence float64, outcome string) ReasoningStep {
	step := ReasoningStep{
		ID:         uuid.New().String(),
		Index:      e.stepCount,
		Action:     action,
		Rationale:  rationale,
		Confidence: clamp01(confidence),
		Outcome:    outcome,
		Timestamp:  e.now(),
	}
	e.stepCount++
	e.trace.Push(step)
	return step
}

// Trace returns the reasoning trace, oldest first.
func (e *Engine) Trace() []ReasoningStep {
	return e.trace.Items()
}

// #endregion trace

// #region learn
// LearnFromExperience appends a formatted insight to the journal. The journal
// is never consulted by later scoring.
func (e *Engine) LearnFromExperience(task string, success bool, reflection Reflection) string {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	entry := fmt.Sprintf("[%s] %s | confidence=%.2f level=%s",
		outcome, quote(task), reflection.Confidence, reflection.Level)
	if len(reflection.Insights) > 0 {
		entry += " | " + strings.Join(reflection.Insights, "; ")
	}
	e.insights.Push(entry)
	return entry
}

// Insights returns the learning journal, oldest first.
func (e *Engine) Insights() []string {
	return e.insights.Items()
}

// Reflections returns the reflection history, oldest first.
func (e *Engine) Reflections() []Reflection {
	return e.reflections.Items()
}

// Summary aggregates reflection, trace and journal state.
func (e *Engine) Summary() Summary {
	refl := e.reflections.Items()
	sum := Summary{
		TotalReflections: len(refl),
		TraceLength:      e.trace.Len(),
		InsightsCount:    e.insights.Len(),
	}
	if len(refl) == 0 {
		return sum
	}
	var total float64
	var revise int
	for _, r := range refl {
		total += r.Confidence
		if r.ShouldRevise {
			revise++
		}
	}
	sum.AverageConfidence = total / float64(len(refl))
	sum.RevisionRate = float64(revise) / float64(len(refl))
	sum.LastLevel = string(refl[len(refl)-1].Level)
	return sum
}

// #endregion learn

// #region helpers
// truthy follows loose truthiness: true bools, non-zero numbers, non-empty strings.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case float64:
		return t != 0 && !math.IsNaN(t)
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func errorCount(v any) int {
	var n float64
	switch t := v.(type) {
	case bool:
		if t {
			n = 1
		}
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case float32:
		n = float64(t)
	case float64:
		n = t
	}
	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func quote(task string) string {
	const maxLen = 80
	if utf8.RuneCountInString(task) > maxLen {
		r := []rune(task)
		task = string(r[:maxLen]) + "..."
	}
	return fmt.Sprintf("%q", task)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// #endregion helpers
