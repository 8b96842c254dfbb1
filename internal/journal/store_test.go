package journal

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/metareason"
)

// #region helpers
func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func learned(t *testing.T, task string, success bool) cognitive.LearnResult {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return cognitive.New(cognitive.DefaultConfig(), clock, nil).LearnFromExperience(task, success, "done")
}

// #endregion helpers

// #region store-tests
func TestAppendAndLatest(t *testing.T) {
	s := setupStore(t)
	at := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	if e, err := s.Latest("alpha"); err != nil || e != nil {
		t.Fatalf("empty journal: entry=%v err=%v", e, err)
	}

	res := learned(t, "deploy the app", true)
	if err := s.Append("alpha", "deploy the app", true, res); err != nil {
		t.Fatalf("Append: %v", err)
	}

	e, err := s.Latest("alpha")
	if err != nil || e == nil {
		t.Fatalf("Latest: entry=%v err=%v", e, err)
	}
	if e.Task != "deploy the app" || !e.Success || e.Insight != res.Insight {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Reflection.Type != metareason.Learning {
		t.Errorf("expected learning reflection, got %q", e.Reflection.Type)
	}
	if !e.CreatedAt.Equal(at) {
		t.Errorf("expected created_at %v, got %v", at, e.CreatedAt)
	}
}

func TestRecentOrderAndFilter(t *testing.T) {
	s := setupStore(t)
	s.Append("alpha", "one", true, learned(t, "one", true))
	s.Append("beta", "other", false, learned(t, "other", false))
	s.Append("alpha", "two", false, learned(t, "two", false))

	got, err := s.Recent("alpha", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Task != "two" || got[1].Task != "one" {
		t.Errorf("expected [two one], got %+v", got)
	}
	if all, _ := s.Recent("", 10); len(all) != 3 {
		t.Errorf("expected 3 entries across sessions, got %d", len(all))
	}
}

func TestStats(t *testing.T) {
	s := setupStore(t)
	if st, err := s.Stats("alpha"); err != nil || st != (Stats{}) {
		t.Fatalf("empty stats: %+v err=%v", st, err)
	}
	s.Append("alpha", "one", true, learned(t, "one", true))
	s.Append("alpha", "two", false, learned(t, "two", false))
	s.Append("alpha", "three", true, learned(t, "three", true))

	st, err := s.Stats("alpha")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 3 || st.Successes != 2 {
		t.Errorf("expected 3/2, got %+v", st)
	}
}

func TestClosedDB(t *testing.T) {
	s := setupStore(t)
	s.db.Close()
	if err := s.Append("alpha", "x", true, cognitive.LearnResult{}); err == nil {
		t.Error("Append on closed db should fail")
	}
	if _, err := s.Recent("alpha", 1); err == nil {
		t.Error("Recent on closed db should fail")
	}
	if _, err := s.Stats("alpha"); err == nil {
		t.Error("Stats on closed db should fail")
	}
}

// #endregion store-tests
