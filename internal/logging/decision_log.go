package logging

import (
	"database/sql"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-decision
// LogDecision writes an entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (decision_id, session_id, version_id, task, approach, confidence, tone, feedback, factors_json, parameters_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.DecisionID,
		entry.SessionID,
		nullIfEmpty(entry.VersionID),
		entry.Task,
		entry.Approach,
		entry.Confidence,
		entry.Tone,
		nullIfEmpty(entry.Feedback),
		nullIfEmpty(entry.FactorsJSON),
		nullIfEmpty(entry.ParametersJSON),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recent
// RecentDecisions returns the newest entries, for one session or for all
// sessions when sessionID is empty.
func RecentDecisions(db *sql.DB, sessionID string, limit int) ([]DecisionEntry, error) {
	const cols = `SELECT decision_id, session_id, version_id, task, approach, confidence, tone, feedback, factors_json, parameters_json, created_at FROM decision_log`
	query := cols + ` ORDER BY id DESC LIMIT ?`
	args := []any{limit}
	if sessionID != "" {
		query = cols + ` WHERE session_id = ? ORDER BY id DESC LIMIT ?`
		args = []any{sessionID, limit}
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var version, feedback, factors, params sql.NullString
		var created string
		if err := rows.Scan(&e.DecisionID, &e.SessionID, &version, &e.Task, &e.Approach,
			&e.Confidence, &e.Tone, &feedback, &factors, &params, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.VersionID = version.String
		e.Feedback = feedback.String
		e.FactorsJSON = factors.String
		e.ParametersJSON = params.String
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
