package memory

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLayers(cfg Config) (*Layers, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	return New(cfg, clk.Now, nil), clk
}

func tasks(recs []Episodic) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Task
	}
	return out
}

// #region tier-tests
func TestTierPromotion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShortTermMaxSize = 2
	l, clk := newTestLayers(cfg)

	for _, task := range []string{"first", "second", "third"} {
		l.StoreEpisodic(task, true, "neutral", 0.5, "", nil, Short)
		clk.Advance(time.Second)
	}

	s := l.Stats()
	if s.Episodic.Short != 2 || s.Episodic.Medium != 1 || s.Episodic.Long != 0 {
		t.Fatalf("unexpected counts %+v", s.Episodic)
	}
	d := l.Export()
	want := []string{"first", "second", "third"}
	if diff := cmp.Diff(want, tasks(d.Episodic)); diff != "" {
		t.Errorf("export order (-want +got):\n%s", diff)
	}
	if d.Episodic[0].Tier != Medium {
		t.Errorf("oldest record should be MEDIUM, got %s", d.Episodic[0].Tier)
	}
}

func TestMediumOverflowToLong(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShortTermMaxSize = 1
	cfg.MediumTermMaxSize = 1
	l, clk := newTestLayers(cfg)
	for i := 0; i < 4; i++ {
		l.StoreAffective("u", "evt", "neutral", 0.5, nil, Short)
		clk.Advance(time.Second)
	}
	s := l.Stats().Affective
	if s.Short != 1 || s.Medium != 1 || s.Long != 2 {
		t.Errorf("unexpected counts %+v", s)
	}
}

func TestLongTierUncapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShortTermMaxSize = 1
	l, _ := newTestLayers(cfg)
	for i := 0; i < 250; i++ {
		l.StoreEpisodic("t", true, "", 0, "", nil, Long)
	}
	if got := l.Stats().Episodic.Long; got != 250 {
		t.Errorf("expected 250 long records, got %d", got)
	}
}

// #endregion tier-tests

// #region semantic-tests
func TestSemanticDedup(t *testing.T) {
	l, clk := newTestLayers(DefaultConfig())
	l.StoreSemantic("X", "first", []string{"a", "b"}, 0.4, map[string]any{"k": 1}, Long)
	clk.Advance(time.Minute)
	got := l.StoreSemantic("X", "second", []string{"b", "c"}, 0.3, map[string]any{"j": 2}, Long)

	if l.Stats().Semantic.Total() != 1 {
		t.Fatalf("expected one record, got %+v", l.Stats().Semantic)
	}
	if got.UsageCount != 2 {
		t.Errorf("expected usageCount 2, got %d", got.UsageCount)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got.Associations); diff != "" {
		t.Errorf("associations (-want +got):\n%s", diff)
	}
	if got.Definition != "second" || got.Confidence != 0.4 {
		t.Errorf("unexpected merge %+v", got)
	}
	if got.Metadata["k"] != 1 || got.Metadata["j"] != 2 {
		t.Errorf("metadata should merge, got %v", got.Metadata)
	}
	if !got.LastUsed.Equal(clk.Now()) {
		t.Errorf("lastUsed not bumped")
	}
}

func TestRetrieveSemantic(t *testing.T) {
	l, _ := newTestLayers(DefaultConfig())
	l.StoreSemantic("goroutine", "lightweight thread", []string{"concurrency"}, 0.6, nil, Long)
	l.StoreSemantic("channel", "typed conduit", []string{"concurrency", "goroutine"}, 0.9, nil, Long)
	l.StoreSemantic("slice", "dynamic array view", nil, 0.5, nil, Long)
	l.StoreSemantic("slice", "dynamic array view", nil, 0.5, nil, Long)

	all := l.RetrieveSemantic(SemanticQuery{})
	if len(all) != 3 || all[0].Concept != "slice" || all[1].Concept != "channel" {
		t.Errorf("expected usage then confidence order, got %v", concepts(all))
	}

	exact := l.RetrieveSemantic(SemanticQuery{Concept: "goroutine"})
	if len(exact) != 1 || exact[0].Concept != "goroutine" {
		t.Errorf("exact lookup should not scan, got %v", concepts(exact))
	}

	both := l.RetrieveSemantic(SemanticQuery{Concept: "slice", Query: "GOROUTINE"})
	if diff := cmp.Diff([]string{"slice", "channel", "goroutine"}, concepts(both)); diff != "" {
		t.Errorf("union (-want +got):\n%s", diff)
	}

	if got := l.RetrieveSemantic(SemanticQuery{Query: "concurrency", Limit: 1}); len(got) != 1 {
		t.Errorf("limit not applied, got %d", len(got))
	}

	// returned records are copies
	all[0].Associations = append(all[0].Associations, "mutated")
	if again := l.RetrieveSemantic(SemanticQuery{Concept: "slice"}); len(again[0].Associations) != 0 {
		t.Errorf("store mutated through returned value: %v", again[0].Associations)
	}
}

func concepts(recs []Semantic) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Concept
	}
	return out
}

// #endregion semantic-tests

// #region retrieve-tests
func TestRetrieveEpisodicNewestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShortTermMaxSize = 2
	l, clk := newTestLayers(cfg)
	l.StoreEpisodic("build parser", true, "satisfaction", 0.7, "", nil, Short)
	clk.Advance(time.Second)
	l.StoreEpisodic("Build lexer", false, "frustration", 0.5, "", nil, Short)
	clk.Advance(time.Second)
	l.StoreEpisodic("write docs", true, "neutral", 0.5, "", nil, Short)
	clk.Advance(time.Second)
	l.StoreEpisodic("build cli", true, "neutral", 0.5, "", nil, Long)

	got := l.RetrieveEpisodic(EpisodicQuery{TaskPattern: "BUILD"})
	if diff := cmp.Diff([]string{"build cli", "Build lexer", "build parser"}, tasks(got)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}

	ok := true
	got = l.RetrieveEpisodic(EpisodicQuery{TaskPattern: "build", Success: &ok, Limit: 1})
	if diff := cmp.Diff([]string{"build cli"}, tasks(got)); diff != "" {
		t.Errorf("filtered (-want +got):\n%s", diff)
	}

	got = l.RetrieveEpisodic(EpisodicQuery{Emotion: "frustration"})
	if len(got) != 1 || got[0].Task != "Build lexer" {
		t.Errorf("emotion filter failed: %v", tasks(got))
	}

	if got := l.RetrieveEpisodic(EpisodicQuery{}); len(got) != 4 {
		t.Errorf("empty pattern should match everything, got %d", len(got))
	}
}

func TestRetrieveTiesKeepLaterInsertionFirst(t *testing.T) {
	l, _ := newTestLayers(DefaultConfig())
	l.StoreAffective("u1", "a", "empathy", 0.2, nil, Short)
	l.StoreAffective("u1", "b", "empathy", 0.2, nil, Short)
	l.StoreAffective("u2", "c", "frustration", 0.2, nil, Medium)

	got := l.RetrieveAffective(AffectiveQuery{UserID: "u1"})
	if len(got) != 2 || got[0].Event != "b" || got[1].Event != "a" {
		t.Errorf("unexpected order %+v", got)
	}
	if got := l.RetrieveAffective(AffectiveQuery{Emotion: "frustration"}); len(got) != 1 || got[0].Tier != Medium {
		t.Errorf("emotion filter failed: %+v", got)
	}
}

// #endregion retrieve-tests

// #region affinity-tests
func TestAffinity(t *testing.T) {
	l, _ := newTestLayers(DefaultConfig())
	if got := l.Affinity("nobody"); got != 0.5 {
		t.Errorf("default affinity should be 0.5, got %f", got)
	}
	l.StoreAffective("u", "praise", "satisfaction", 1, nil, Short)
	if got := l.Affinity("u"); got != 0.6 {
		t.Errorf("expected 0.6, got %f", got)
	}
	l.StoreAffective("u", "meh", "curiosity", 1, nil, Short)
	if got := l.Affinity("u"); got != 0.6 {
		t.Errorf("neutral emotions must not move affinity, got %f", got)
	}
	l.StoreAffective("", "anon", "frustration", 1, nil, Short)
	if len(l.Affinities()) != 1 {
		t.Errorf("anonymous events must not create users: %v", l.Affinities())
	}
}

func TestAffinityBounds(t *testing.T) {
	l, _ := newTestLayers(DefaultConfig())
	r := rand.New(rand.NewSource(7))
	emotions := []string{"satisfaction", "excitement", "empathy", "frustration", "boredom", "curiosity"}
	for i := 0; i < 2000; i++ {
		l.StoreAffective("u", "e", emotions[r.Intn(len(emotions))], r.Float64()*3-1, nil, Short)
		if v := l.Affinity("u"); v < 0 || v > 1 {
			t.Fatalf("affinity %f out of bounds at step %d", v, i)
		}
	}
}

// #endregion affinity-tests

// #region maintenance-tests
func TestCleanupExpired(t *testing.T) {
	l, clk := newTestLayers(DefaultConfig())
	start := clk.Now()
	l.StoreEpisodic("old long", true, "", 0, "", nil, Long)
	l.StoreEpisodic("old short", true, "", 0, "", nil, Short)
	l.StoreSemantic("stale", "", nil, 0.5, nil, Long)
	l.StoreSemantic("fresh", "", nil, 0.5, nil, Long)

	clk.Advance(20 * 24 * time.Hour)
	l.StoreSemantic("fresh", "touched", nil, 0.5, nil, Long)
	l.StoreAffective("u", "new", "empathy", 0.1, nil, Long)

	removed := l.CleanupExpired(start.Add(31 * 24 * time.Hour))
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
	if got := l.RetrieveEpisodic(EpisodicQuery{}); len(got) != 1 || got[0].Task != "old short" {
		t.Errorf("short tier must never expire, got %v", tasks(got))
	}
	if got := l.RetrieveSemantic(SemanticQuery{Concept: "stale"}); len(got) != 0 {
		t.Errorf("expired concept still indexed")
	}
	if got := l.RetrieveSemantic(SemanticQuery{Concept: "fresh"}); len(got) != 1 {
		t.Errorf("recently used concept expired")
	}
	if l.Stats().Affective.Long != 1 {
		t.Errorf("fresh affective record removed")
	}
}

func TestExportImport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShortTermMaxSize = 2
	l, clk := newTestLayers(cfg)
	for _, task := range []string{"a", "b", "c"} {
		l.StoreEpisodic(task, true, "neutral", 0.5, "", map[string]any{"n": task}, Short)
		clk.Advance(time.Second)
	}
	l.StoreSemantic("X", "def", []string{"y"}, 0.7, nil, Medium)
	l.StoreAffective("u", "praise", "satisfaction", 1, nil, Medium)

	raw, err := json.Marshal(l.Export())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var d Dump
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored, _ := newTestLayers(cfg)
	restored.Import(d)
	if diff := cmp.Diff(l.Stats(), restored.Stats()); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
	if got := restored.Affinity("u"); got != 0.6 {
		t.Errorf("affinity not restored, got %f", got)
	}
	restored.StoreSemantic("X", "def2", nil, 0.1, nil, Long)
	if got := restored.RetrieveSemantic(SemanticQuery{Concept: "X"}); got[0].UsageCount != 2 || got[0].Tier != Medium {
		t.Errorf("index not rebuilt: %+v", got[0])
	}
}

// #endregion maintenance-tests
