package logging

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/config"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE decision_log (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id     TEXT NOT NULL UNIQUE,
		session_id      TEXT NOT NULL,
		version_id      TEXT,
		task            TEXT NOT NULL,
		approach        TEXT NOT NULL,
		confidence      REAL NOT NULL,
		tone            TEXT NOT NULL,
		feedback        TEXT,
		factors_json    TEXT,
		parameters_json TEXT,
		created_at      TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func processed(t *testing.T, task string) cognitive.TaskResult {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return cognitive.New(cognitive.DefaultConfig(), clock, nil).ProcessTask(task, nil, "")
}

// #endregion helpers

// #region entry-tests
func TestNewDecisionEntry(t *testing.T) {
	res := processed(t, "summarise the report")
	entry, err := NewDecisionEntry("s1", "v1", "summarise the report", "great", res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.DecisionID == "" {
		t.Error("expected a decision id")
	}
	if entry.Approach != res.Decision.Approach || entry.Tone != string(res.EmotionalTone) {
		t.Errorf("entry does not mirror result: %+v", entry)
	}
	if !strings.Contains(entry.FactorsJSON, `"creativity"`) {
		t.Errorf("factors json missing key: %s", entry.FactorsJSON)
	}
	if !strings.Contains(entry.ParametersJSON, `"temperature"`) {
		t.Errorf("parameters json missing key: %s", entry.ParametersJSON)
	}

	other, _ := NewDecisionEntry("s1", "v1", "x", "", res)
	if other.DecisionID == entry.DecisionID {
		t.Error("decision ids should be unique")
	}
}

// #endregion entry-tests

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry, _ := NewDecisionEntry("s1", "v1", "task one", "thanks", processed(t, "task one"))
	entry.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM decision_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	got, err := RecentDecisions(db, "s1", 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].DecisionID != entry.DecisionID || got[0].Feedback != "thanks" || got[0].VersionID != "v1" {
		t.Errorf("unexpected entry %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", entry.CreatedAt, got[0].CreatedAt)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC().Add(-time.Second)
	err := LogDecision(db, DecisionEntry{DecisionID: "d1", SessionID: "s", Task: "t", Approach: "standard", Tone: "neutral"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := RecentDecisions(db, "", 1)
	if len(got) != 1 || got[0].CreatedAt.Before(before) {
		t.Errorf("expected auto-filled created_at after %v, got %+v", before, got)
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{
		DecisionID: "d2",
		SessionID:  "s",
		Task:       "t",
		Approach:   "cautious",
		Tone:       "negative",
		CreatedAt:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var version, feedback, factors, params sql.NullString
	db.QueryRow("SELECT version_id, feedback, factors_json, parameters_json FROM decision_log").Scan(
		&version, &feedback, &factors, &params,
	)
	if version.Valid || feedback.Valid || factors.Valid || params.Valid {
		t.Errorf("expected NULLs for empty strings: %v %v %v %v", version, feedback, factors, params)
	}
}

func TestLogDecision_DuplicateID(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{DecisionID: "dup", SessionID: "s", Task: "t", Approach: "standard", Tone: "neutral"}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := LogDecision(db, entry); err == nil {
		t.Fatal("expected unique constraint failure")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogDecision(db, DecisionEntry{DecisionID: "d"}); err == nil {
		t.Fatal("expected error on closed db")
	}
	if _, err := RecentDecisions(db, "", 1); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region recent-tests
func TestRecentDecisions_FilterAndOrder(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for _, e := range []DecisionEntry{
		{DecisionID: "a1", SessionID: "a", Task: "first", Approach: "standard", Tone: "neutral"},
		{DecisionID: "b1", SessionID: "b", Task: "other", Approach: "standard", Tone: "neutral"},
		{DecisionID: "a2", SessionID: "a", Task: "second", Approach: "creative", Tone: "positive"},
	} {
		if err := LogDecision(db, e); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}

	got, err := RecentDecisions(db, "a", 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 2 || got[0].DecisionID != "a2" || got[1].DecisionID != "a1" {
		t.Errorf("expected [a2 a1], got %+v", got)
	}

	all, _ := RecentDecisions(db, "", 2)
	if len(all) != 2 || all[0].DecisionID != "a2" || all[1].DecisionID != "b1" {
		t.Errorf("expected [a2 b1], got %+v", all)
	}
}

// #endregion recent-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests

// #region logger-tests
func TestNew(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}

	dev, err := New(config.LogConfig{Level: "debug", Development: true})
	if err != nil || !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Errorf("development logger at debug: err=%v", err)
	}

	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

// #endregion logger-tests
