// Package cognitive runs the per-task pipeline over the emotion, regulation,
// meta-reasoning and memory components of one session.
package cognitive

import (
	"maps"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/memory"
	"github.com/danielpatrickdp/affective-core/internal/metareason"
	"github.com/danielpatrickdp/affective-core/internal/regulation"
	"github.com/danielpatrickdp/affective-core/internal/ring"
)

// #region core
// Core owns the components of one session. It is not safe for concurrent
// use; callers serialise access per session.
type Core struct {
	config    Config
	emotion   *emotion.Engine
	regulator *regulation.Regulator
	meta      *metareason.Engine
	memory    *memory.Layers
	history   *ring.Buffer[Snapshot]
	now       emotion.Clock
	logger    *zap.Logger
}

// New wires a core. clock and logger may be nil.
func New(config Config, clock emotion.Clock, logger *zap.Logger) *Core {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	eng := emotion.NewEngine(config.Emotion, clock, logger.Named("emotion"))
	reg := regulation.NewRegulator(eng, config.Regulation, clock, logger.Named("regulation"))
	for _, r := range config.ExtraRules {
		reg.AddRule(r)
	}
	return &Core{
		config:    config,
		emotion:   eng,
		regulator: reg,
		meta:      metareason.NewEngine(config.Meta, clock, logger.Named("meta")),
		memory:    memory.New(config.Memory, clock, logger.Named("memory")),
		history:   ring.New[Snapshot](config.DecisionHistorySize),
		now:       clock,
		logger:    logger,
	}
}

func (c *Core) Emotion() *emotion.Engine { return c.emotion }
func (c *Core) Regulator() *regulation.Regulator { return c.regulator }
func (c *Core) MetaReasoning() *metareason.Engine { return c.meta }
func (c *Core) Memory() *memory.Layers { return c.memory }
func (c *Core) Config() Config { return c.config }

// #endregion core

// #region process
// ProcessTask runs the ten pipeline steps in order and never fails. The
// caller's context map is not modified.
func (c *Core) ProcessTask(task string, context map[string]any, feedback string) TaskResult {
	ctx := maps.Clone(context)
	if ctx == nil {
		ctx = map[string]any{}
	}
	userID, _ := ctx[KeyUserID].(string)

	// 1. memories
	mems := c.retrieve(task, userID)
	ctx[KeyRelevantMemories] = mems
	if _, set := context[metareason.KeySimilarExperience]; !set && len(mems.Episodic) > 0 {
		ctx[metareason.KeySimilarExperience] = true
	}

	// 2-3. confidence and understanding check
	confidence, reflection := c.assess(task, ctx)
	c.trace("assess", string(reflection.Type), confidence, string(reflection.Level))

	// 4. regulation
	if c.config.Features.Regulation {
		c.regulator.ApplyRegulation()
	}

	// 5. factors and tone
	factors := c.emotion.ModulationFactors()
	tone := c.emotion.EmotionalTone()

	// 6. feedback
	kind := c.applyFeedback(task, feedback, userID)

	// 7. decision
	decision := c.decide(factors)
	c.trace("choose_approach", "tone "+string(tone), confidence, decision.Approach)

	// 8. logic wins
	if c.config.Features.Regulation {
		decision = c.regulator.EnforceLogicPriority(decision, regulation.Influence{Conflict: false})
	}

	// 9. record the task
	if c.config.Features.Memory {
		dom, val := c.emotion.Dominant()
		c.memory.StoreEpisodic(task, true, dom, val, "processed", map[string]any{
			"approach":      decision.Approach,
			"confidence":    confidence,
			"emotionalTone": string(tone),
		}, memory.Short)
		if userID != "" {
			c.memory.StoreAffective(userID, "task_processed", dom, val,
				map[string]any{"task": task}, memory.Medium)
		}
	}

	// 10. snapshot
	snap := c.snapshot(task, decision, confidence, kind)
	c.history.Push(snap)

	c.logger.Debug("task processed",
		zap.String("approach", decision.Approach),
		zap.Float64("confidence", confidence),
		zap.String("tone", string(tone)),
		zap.String("feedback", string(kind)),
		zap.Int("episodicHits", len(mems.Episodic)))

	return TaskResult{
		Decision:          decision,
		Confidence:        confidence,
		Reflection:        reflection,
		ModulationFactors: factors,
		RelevantMemories:  mems,
		EmotionalTone:     tone,
	}
}

// trace records one pipeline stage in the reasoning trace.
func (c *Core) trace(action, rationale string, confidence float64, outcome string) {
	if c.config.Features.MetaReasoning {
		c.meta.TraceReasoning(action, rationale, confidence, outcome)
	}
}

func (c *Core) retrieve(task, userID string) RelevantMemories {
	mems := RelevantMemories{
		Episodic:  []memory.Episodic{},
		Semantic:  []memory.Semantic{},
		Affective: []memory.Affective{},
	}
	if !c.config.Features.Memory {
		return mems
	}
	limit := c.config.RetrievalLimit
	mems.Episodic = nonNil(c.memory.RetrieveEpisodic(memory.EpisodicQuery{TaskPattern: task, Limit: limit}))
	mems.Semantic = nonNil(c.memory.RetrieveSemantic(memory.SemanticQuery{Query: task, Limit: limit}))
	if userID != "" {
		mems.Affective = nonNil(c.memory.RetrieveAffective(memory.AffectiveQuery{UserID: userID, Limit: limit}))
	}
	return mems
}

func (c *Core) assess(task string, ctx map[string]any) (float64, metareason.Reflection) {
	if !c.config.Features.MetaReasoning {
		base := c.config.Meta.BaseConfidence
		return base, metareason.Reflection{
			Type:        metareason.UnderstandingCheck,
			Confidence:  base,
			Level:       metareason.LevelFor(base),
			Suggestions: []string{},
			Insights:    []string{},
			Timestamp:   c.now(),
		}
	}
	confidence := c.meta.AssessConfidence(task, ctx, "")
	reflection := c.meta.Reflect(metareason.UnderstandingCheck, task, "", ctx, nil)
	return confidence, reflection
}

func (c *Core) applyFeedback(task, feedback, userID string) FeedbackKind {
	kind := ClassifyFeedback(feedback)
	var event string
	var channel emotion.Channel
	switch kind {
	case FeedbackPraise:
		c.emotion.TriggerPraise(c.config.FeedbackMagnitude)
		event, channel = "feedback_praise", emotion.Satisfaction
	case FeedbackCriticism:
		c.emotion.TriggerFailure(c.config.FeedbackMagnitude)
		event, channel = "feedback_criticism", emotion.Frustration
	default:
		return kind
	}
	if userID != "" && c.config.Features.Memory {
		c.memory.StoreAffective(userID, event, channel.String(), c.emotion.State().Get(channel),
			map[string]any{"feedback": feedback, "task": task}, memory.Short)
	}
	return kind
}

// baseParameters are the unmodulated decision parameters.
func baseParameters() map[string]any {
	return map[string]any{"temperature": 0.7, "max_tokens": 2000, "timeout": 30}
}

func (c *Core) decide(f emotion.Factors) regulation.Decision {
	d := regulation.Decision{Action: "process", Approach: "standard", Parameters: baseParameters()}
	if c.config.Features.Regulation {
		d.Parameters = c.regulator.ModulateParameters(d.Parameters)
	}
	switch {
	case f.Creativity > 1.1:
		d.Approach = "creative"
	case f.Caution > 1.1:
		d.Approach = "cautious"
	case f.Focus < 0.9:
		d.Approach = "focused"
	}
	return d
}

// #endregion process

// #region learn
// LearnFromExperience records an outcome independently of ProcessTask.
func (c *Core) LearnFromExperience(task string, success bool, outcome string) LearnResult {
	if success {
		c.emotion.TriggerSuccess(c.config.LearningMagnitude)
	} else {
		c.emotion.TriggerFailure(c.config.LearningMagnitude)
	}

	var res LearnResult
	if c.config.Features.MetaReasoning {
		res.Reflection = c.meta.Reflect(metareason.Learning, task, outcome, nil, nil)
		res.Insight = c.meta.LearnFromExperience(task, success, res.Reflection)
	} else {
		_, res.Reflection = c.assess(task, nil)
		res.Reflection.Type = metareason.Learning
	}

	if c.config.Features.Memory {
		dom, val := c.emotion.Dominant()
		res.Memory = c.memory.StoreEpisodic(task, success, dom, val, outcome, map[string]any{
			"confidence": res.Reflection.Confidence,
			"learned":    true,
		}, memory.Medium)
	}
	c.logger.Debug("experience recorded", zap.Bool("success", success), zap.String("task", task))
	return res
}

// LearnConcept stores a concept in medium-term semantic memory so later
// tasks mentioning it recall the definition. ok is false when memory is
// disabled.
func (c *Core) LearnConcept(concept, definition string, associations []string) (rec memory.Semantic, ok bool) {
	if !c.config.Features.Memory || concept == "" {
		return memory.Semantic{}, false
	}
	rec = c.memory.StoreSemantic(concept, definition, associations, c.config.Meta.BaseConfidence,
		map[string]any{"source": "user"}, memory.Medium)
	c.logger.Debug("concept learned", zap.String("concept", concept))
	return rec, true
}

// #endregion learn

// #region summary
func (c *Core) snapshot(task string, d regulation.Decision, confidence float64, kind FeedbackKind) Snapshot {
	return Snapshot{
		Timestamp:         c.now(),
		Task:              task,
		Decision:          d,
		Confidence:        confidence,
		Feedback:          kind,
		EmotionalState:    c.emotion.Values(),
		EmotionalTone:     c.emotion.EmotionalTone(),
		ModulationFactors: c.emotion.ModulationFactors(),
		Stable:            c.emotion.IsStable(),
	}
}

// Decisions returns the decision history, oldest first.
func (c *Core) Decisions() []Snapshot {
	return c.history.Items()
}

// GetCognitiveSummary recomputes the read-only view of the core.
func (c *Core) GetCognitiveSummary() Summary {
	s := Summary{
		EmotionalState:    c.emotion.Values(),
		EmotionalTone:     c.emotion.EmotionalTone(),
		IsStable:          c.emotion.IsStable(),
		ModulationFactors: c.emotion.ModulationFactors(),
		MetaReasoning:     c.meta.Summary(),
		Memory:            c.memory.Stats(),
		DecisionCount:     c.history.Len(),
		RecentConflicts:   c.regulator.RecentConflicts(5),
	}
	if last, ok := c.history.Newest(); ok {
		s.LastDecision = &last
	}
	if s.RecentConflicts == nil {
		s.RecentConflicts = []regulation.ConflictEntry{}
	}
	return s
}

// Cleanup drops expired long-term memories and returns how many were removed.
func (c *Core) Cleanup() int {
	return c.memory.CleanupExpired(c.now())
}

// #endregion summary

// #region checkpoint
func (c *Core) Checkpoint() Checkpoint {
	return Checkpoint{Emotion: c.emotion.Checkpoint(), Memory: c.memory.Export()}
}

func (c *Core) RestoreCheckpoint(cp Checkpoint) {
	c.emotion.Restore(cp.Emotion)
	c.memory.Import(cp.Memory)
}

// #endregion checkpoint

// #region feedback
var (
	praiseWords    = []string{"obrigado", "thanks", "ótimo", "excelente", "perfeito"}
	criticismWords = []string{"errado", "wrong", "ruim", "bad", "não funcionou"}
)

// ClassifyFeedback matches feedback against the keyword lists. Praise is
// checked first, so mixed feedback counts as praise.
func ClassifyFeedback(feedback string) FeedbackKind {
	lower := strings.ToLower(strings.TrimSpace(feedback))
	if lower == "" {
		return FeedbackNone
	}
	for _, w := range praiseWords {
		if strings.Contains(lower, w) {
			return FeedbackPraise
		}
	}
	for _, w := range criticismWords {
		if strings.Contains(lower, w) {
			return FeedbackCriticism
		}
	}
	return FeedbackNone
}

// #endregion feedback

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
