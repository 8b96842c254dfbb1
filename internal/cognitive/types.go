package cognitive

import (
	"time"

	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/memory"
	"github.com/danielpatrickdp/affective-core/internal/metareason"
	"github.com/danielpatrickdp/affective-core/internal/regulation"
)

// #region config
// Features switch dependencies off. A disabled dependency still has its
// pipeline step run, which then yields defaults.
type Features struct {
	Memory        bool
	MetaReasoning bool
	Regulation    bool
}

// Config aggregates component configuration for one core.
type Config struct {
	Emotion    emotion.Config
	Regulation regulation.Config
	Meta       metareason.Config
	Memory     memory.Config
	Features   Features

	ExtraRules          []regulation.Rule // installed after the default rules
	FeedbackMagnitude   float64           // default 0.15
	LearningMagnitude   float64           // default 0.2
	RetrievalLimit      int               // memories per kind in step 1 (default 5)
	DecisionHistorySize int               // default 100
}

// DefaultConfig enables every feature with default component settings.
func DefaultConfig() Config {
	return Config{
		Emotion:             emotion.DefaultConfig(),
		Regulation:          regulation.DefaultConfig(),
		Meta:                metareason.DefaultConfig(),
		Memory:              memory.DefaultConfig(),
		Features:            Features{Memory: true, MetaReasoning: true, Regulation: true},
		FeedbackMagnitude:   0.15,
		LearningMagnitude:   0.2,
		RetrievalLimit:      5,
		DecisionHistorySize: 100,
	}
}

// #endregion config

// #region feedback
// FeedbackKind is the classification of a feedback string.
type FeedbackKind string

const (
	FeedbackNone      FeedbackKind = "none"
	FeedbackPraise    FeedbackKind = "praise"
	FeedbackCriticism FeedbackKind = "criticism"
)

// #endregion feedback

// #region results
// RelevantMemories is what step 1 retrieved for a task.
type RelevantMemories struct {
	Episodic  []memory.Episodic  `json:"episodic"`
	Semantic  []memory.Semantic  `json:"semantic"`
	Affective []memory.Affective `json:"affective"`
}

// TaskResult is returned by ProcessTask.
type TaskResult struct {
	Decision          regulation.Decision   `json:"decision"`
	Confidence        float64               `json:"confidence"`
	Reflection        metareason.Reflection `json:"reflection"`
	ModulationFactors emotion.Factors       `json:"modulationFactors"`
	RelevantMemories  RelevantMemories      `json:"relevantMemories"`
	EmotionalTone     emotion.Tone          `json:"emotionalTone"`
}

// LearnResult is returned by LearnFromExperience.
type LearnResult struct {
	Reflection metareason.Reflection `json:"reflection"`
	Insight    string                `json:"insight"`
	Memory     memory.Episodic       `json:"memory"`
}

// Snapshot is a derived projection of the core, recomputed on demand.
type Snapshot struct {
	Timestamp         time.Time           `json:"timestamp"`
	Task              string              `json:"task,omitempty"`
	Decision          regulation.Decision `json:"decision"`
	Confidence        float64             `json:"confidence"`
	Feedback          FeedbackKind        `json:"feedback"`
	EmotionalState    map[string]float64  `json:"emotionalState"`
	EmotionalTone     emotion.Tone        `json:"emotionalTone"`
	ModulationFactors emotion.Factors     `json:"modulationFactors"`
	Stable            bool                `json:"stable"`
}

// Summary is returned by GetCognitiveSummary.
type Summary struct {
	EmotionalState    map[string]float64         `json:"emotionalState"`
	EmotionalTone     emotion.Tone               `json:"emotionalTone"`
	IsStable          bool                       `json:"isStable"`
	ModulationFactors emotion.Factors            `json:"modulationFactors"`
	MetaReasoning     metareason.Summary         `json:"metaReasoning"`
	Memory            memory.Stats               `json:"memory"`
	DecisionCount     int                        `json:"decisionCount"`
	LastDecision      *Snapshot                  `json:"lastDecision,omitempty"`
	RecentConflicts   []regulation.ConflictEntry `json:"recentConflicts"`
}

// Checkpoint is the exportable state of a core.
type Checkpoint struct {
	Emotion emotion.Checkpoint `json:"emotion"`
	Memory  memory.Dump        `json:"memory"`
}

// #endregion results

// Context keys read by the pipeline.
const (
	KeyUserID           = "userId"
	KeyRelevantMemories = "relevantMemories"
)
