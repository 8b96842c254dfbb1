package metareason

import "time"

// #region reflection-type
// ReflectionType selects the reflection template.
type ReflectionType string

const (
	QualityCheck       ReflectionType = "quality_check"
	UnderstandingCheck ReflectionType = "understanding_check"
	Optimization       ReflectionType = "optimization"
	ErrorAnalysis      ReflectionType = "error_analysis"
	Learning           ReflectionType = "learning"
)

// #endregion reflection-type

// #region confidence-level
// ConfidenceLevel is the bucketed form of a confidence score.
type ConfidenceLevel string

const (
	VeryLow  ConfidenceLevel = "very_low"
	Low      ConfidenceLevel = "low"
	Medium   ConfidenceLevel = "medium"
	High     ConfidenceLevel = "high"
	VeryHigh ConfidenceLevel = "very_high"
)

// LevelFor buckets x at 0.3/0.5/0.7/0.9.
func LevelFor(x float64) ConfidenceLevel {
	switch {
	case x < 0.3:
		return VeryLow
	case x < 0.5:
		return Low
	case x < 0.7:
		return Medium
	case x < 0.9:
		return High
	}
	return VeryHigh
}

// #endregion confidence-level

// #region records
// Reflection is the outcome of one self-reflection pass.
type Reflection struct {
	Type         ReflectionType  `json:"type"`
	Confidence   float64         `json:"confidence"`
	Level        ConfidenceLevel `json:"level"`
	ShouldRevise bool            `json:"shouldRevise"`
	Suggestions  []string        `json:"suggestions"`
	Insights     []string        `json:"insights"`
	Timestamp    time.Time       `json:"timestamp"`
}

// ReasoningStep is one entry of the reasoning trace.
type ReasoningStep struct {
	ID         string    `json:"id"`
	Index      int       `json:"index"`
	Action     string    `json:"action"`
	Rationale  string    `json:"rationale"`
	Confidence float64   `json:"confidence"`
	Outcome    string    `json:"outcome,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Summary aggregates engine activity.
type Summary struct {
	TotalReflections  int     `json:"totalReflections"`
	AverageConfidence float64 `json:"averageConfidence"`
	RevisionRate      float64 `json:"revisionRate"`
	TraceLength       int     `json:"traceLength"`
	InsightsCount     int     `json:"insightsCount"`
	LastLevel         string  `json:"lastLevel,omitempty"`
}

// #endregion records

// #region config
// Config holds scoring weights and history sizes.
type Config struct {
	BaseConfidence         float64 // starting score (default 0.5)
	LowConfidenceThreshold float64 // shouldRevise below this (default 0.5)
	ReflectionHistorySize  int     // default 50
	TraceSize              int     // default 100
	InsightsSize           int     // default 100

	SimilarExperienceBonus float64 // +0.2
	ClearInstructionsBonus float64 // +0.15
	SufficientContextBonus float64 // +0.1
	LongResponseBonus      float64 // +0.05 when response exceeds LongResponseChars
	LongResponseChars      int     // 50
	AmbiguousPenalty       float64 // -0.2
	InsufficientPenalty    float64 // -0.15
	ComplexPenalty         float64 // -0.1
	PreviousErrorPenalty   float64 // -0.1 per error
	MaxCountedErrors       int     // 3
}

// DefaultConfig returns the standard scoring table.
func DefaultConfig() Config {
	return Config{
		BaseConfidence:         0.5,
		LowConfidenceThreshold: 0.5,
		ReflectionHistorySize:  50,
		TraceSize:              100,
		InsightsSize:           100,
		SimilarExperienceBonus: 0.2,
		ClearInstructionsBonus: 0.15,
		SufficientContextBonus: 0.1,
		LongResponseBonus:      0.05,
		LongResponseChars:      50,
		AmbiguousPenalty:       0.2,
		InsufficientPenalty:    0.15,
		ComplexPenalty:         0.1,
		PreviousErrorPenalty:   0.1,
		MaxCountedErrors:       3,
	}
}

// #endregion config

// #region context-keys
// Context flag keys read by AssessConfidence.
const (
	KeySimilarExperience   = "hasSimilarExperience"
	KeyClearInstructions   = "clearInstructions"
	KeySufficientContext   = "sufficientContext"
	KeyAmbiguousTask       = "ambiguousTask"
	KeyInsufficientContext = "insufficientContext"
	KeyComplexTask         = "complexTask"
	KeyPreviousErrors      = "previousErrors"
)

// #endregion context-keys
