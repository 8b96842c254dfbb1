package logging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
)

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	DecisionID     string
	SessionID      string
	VersionID      string // checkpoint the decision was taken on, may be empty
	Task           string
	Approach       string // "standard" | "creative" | "cautious" | "exploratory"
	Confidence     float64
	Tone           string
	Feedback       string
	FactorsJSON    string
	ParametersJSON string
	CreatedAt      time.Time
}

// #endregion decision-entry

// #region conversion
// NewDecisionEntry captures a processed task for the decision log.
func NewDecisionEntry(sessionID, versionID, task, feedback string, res cognitive.TaskResult) (DecisionEntry, error) {
	factors, err := json.Marshal(res.ModulationFactors)
	if err != nil {
		return DecisionEntry{}, fmt.Errorf("marshal factors: %w", err)
	}
	params, err := json.Marshal(res.Decision.Parameters)
	if err != nil {
		return DecisionEntry{}, fmt.Errorf("marshal parameters: %w", err)
	}
	return DecisionEntry{
		DecisionID:     uuid.New().String(),
		SessionID:      sessionID,
		VersionID:      versionID,
		Task:           task,
		Approach:       res.Decision.Approach,
		Confidence:     res.Confidence,
		Tone:           string(res.EmotionalTone),
		Feedback:       feedback,
		FactorsJSON:    string(factors),
		ParametersJSON: string(params),
	}, nil
}

// #endregion conversion
