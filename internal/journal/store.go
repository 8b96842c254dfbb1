// Package journal persists what a session learned: one entry per
// LearnFromExperience call with its insight and learning reflection.
package journal

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/metareason"
)

// #endregion imports

// #region types

// Entry is one learned experience.
type Entry struct {
	ID         int64
	SessionID  string
	Task       string
	Success    bool
	Insight    string
	Reflection metareason.Reflection
	CreatedAt  time.Time
}

// Stats counts a session's entries.
type Stats struct {
	Total     int
	Successes int
}

// #endregion types

// #region store

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists journal entries in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates the journal_entries table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.init(); err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		task TEXT NOT NULL,
		success INTEGER NOT NULL,
		insight TEXT,
		reflection_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Append stores the outcome of a LearnFromExperience call.
func (s *Store) Append(sessionID, task string, success bool, res cognitive.LearnResult) error {
	refl, err := json.Marshal(res.Reflection)
	if err != nil {
		return fmt.Errorf("marshal reflection: %w", err)
	}
	var insight any
	if res.Insight != "" {
		insight = res.Insight
	}
	_, err = s.db.Exec(
		`INSERT INTO journal_entries (session_id, task, success, insight, reflection_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, task, success, insight, string(refl), s.now().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// Latest returns the most recent entry of a session, or nil if none exists.
func (s *Store) Latest(sessionID string) (*Entry, error) {
	entries, err := s.Recent(sessionID, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// Recent returns up to limit entries newest first. An empty sessionID reads
// across sessions.
func (s *Store) Recent(sessionID string, limit int) ([]Entry, error) {
	const cols = `SELECT id, session_id, task, success, insight, reflection_json, created_at FROM journal_entries`
	query := cols + ` ORDER BY id DESC LIMIT ?`
	args := []any{limit}
	if sessionID != "" {
		query = cols + ` WHERE session_id = ? ORDER BY id DESC LIMIT ?`
		args = []any{sessionID, limit}
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var insight sql.NullString
		var refl, created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Task, &e.Success, &insight, &refl, &created); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		if err := json.Unmarshal([]byte(refl), &e.Reflection); err != nil {
			return nil, fmt.Errorf("unmarshal reflection %d: %w", e.ID, err)
		}
		e.Insight = insight.String
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts the entries of a session.
func (s *Store) Stats(sessionID string) (Stats, error) {
	var st Stats
	var successes sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*), SUM(success) FROM journal_entries WHERE session_id = ?`, sessionID,
	).Scan(&st.Total, &successes)
	if err != nil {
		return Stats{}, fmt.Errorf("journal stats: %w", err)
	}
	st.Successes = int(successes.Int64)
	return st, nil
}

// #endregion store
