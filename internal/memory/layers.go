// Package memory holds episodic, semantic and affective records across
// three retention tiers with overflow promotion and long-term expiry.
package memory

import (
	"maps"
	"math"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/ring"
)

// #region tiers
// tierSet is one kind of record across the three tiers. short and medium are
// bounded; whatever they evict moves one tier down. long grows until expiry.
type tierSet[T any] struct {
	short   *ring.Buffer[T]
	medium  *ring.Buffer[T]
	long    []T
	setTier func(T, Tier) T
}

func newTierSet[T any](shortSize, mediumSize int, setTier func(T, Tier) T) tierSet[T] {
	return tierSet[T]{
		short:   ring.New[T](shortSize),
		medium:  ring.New[T](mediumSize),
		setTier: setTier,
	}
}

// add appends v to tier and returns how many records were promoted.
func (s *tierSet[T]) add(v T, tier Tier) int {
	promoted := 0
	switch tier {
	case Short:
		old, ok := s.short.Push(s.setTier(v, Short))
		if !ok {
			return 0
		}
		promoted++
		v = old
		fallthrough
	case Medium:
		old, ok := s.medium.Push(s.setTier(v, Medium))
		if !ok {
			return promoted
		}
		promoted++
		s.long = append(s.long, s.setTier(old, Long))
	default:
		s.long = append(s.long, s.setTier(v, Long))
	}
	return promoted
}

// all returns every record in insertion order: long, then medium, then short.
func (s *tierSet[T]) all() []T {
	out := make([]T, 0, len(s.long)+s.medium.Len()+s.short.Len())
	out = append(out, s.long...)
	out = append(out, s.medium.Items()...)
	return append(out, s.short.Items()...)
}

func (s *tierSet[T]) counts() TierCounts {
	return TierCounts{Short: s.short.Len(), Medium: s.medium.Len(), Long: len(s.long)}
}

func (s *tierSet[T]) reset() {
	s.short.Reset()
	s.medium.Reset()
	s.long = nil
}

// expire drops long-tier records for which dead reports true.
func (s *tierSet[T]) expire(dead func(T) bool) []T {
	var removed []T
	kept := s.long[:0]
	for _, v := range s.long {
		if dead(v) {
			removed = append(removed, v)
			continue
		}
		kept = append(kept, v)
	}
	clear(s.long[len(kept):])
	s.long = kept
	return removed
}

// #endregion tiers

// #region layers
// Layers is the memory store for one session. It is not safe for concurrent use.
type Layers struct {
	config    Config
	episodic  tierSet[Episodic]
	semantic  tierSet[*Semantic]
	affective tierSet[Affective]
	concepts  map[string]*Semantic
	affinity  map[string]float64
	now       func() time.Time
	entropy   *rand.Rand
	logger    *zap.Logger
}

// New creates an empty store. clock and logger may be nil.
func New(config Config, clock func() time.Time, logger *zap.Logger) *Layers {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layers{
		config: config,
		episodic: newTierSet(config.ShortTermMaxSize, config.MediumTermMaxSize,
			func(e Episodic, t Tier) Episodic { e.Tier = t; return e }),
		semantic: newTierSet(config.ShortTermMaxSize, config.MediumTermMaxSize,
			func(s *Semantic, t Tier) *Semantic { s.Tier = t; return s }),
		affective: newTierSet(config.ShortTermMaxSize, config.MediumTermMaxSize,
			func(a Affective, t Tier) Affective { a.Tier = t; return a }),
		concepts: make(map[string]*Semantic),
		affinity: make(map[string]float64),
		now:      clock,
		entropy:  rand.New(rand.NewSource(clock().UnixNano())),
		logger:   logger,
	}
}

func (l *Layers) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), l.entropy).String()
}

// Config returns the store configuration.
func (l *Layers) Config() Config {
	return l.config
}

// #endregion layers

// #region store
// StoreEpisodic appends a task outcome to tier.
func (l *Layers) StoreEpisodic(task string, success bool, emotion string, emotionValue float64, outcome string, metadata map[string]any, tier Tier) Episodic {
	now := l.now()
	rec := Episodic{
		ID:           l.newID(now),
		Task:         task,
		Success:      success,
		Emotion:      emotion,
		EmotionValue: clamp01(emotionValue),
		Outcome:      outcome,
		Metadata:     cloneMap(metadata),
		Timestamp:    now,
	}
	if n := l.episodic.add(rec, tier); n > 0 {
		l.logger.Debug("episodic promoted", zap.Int("records", n))
	}
	rec.Tier = tier
	return rec
}

// StoreSemantic upserts a concept. An existing concept is merged in place:
// usage bumped, definition replaced, associations unioned, confidence maxed
// and metadata merged.
func (l *Layers) StoreSemantic(concept, definition string, associations []string, confidence float64, metadata map[string]any, tier Tier) Semantic {
	now := l.now()
	confidence = clamp01(confidence)
	if rec, ok := l.concepts[concept]; ok {
		rec.UsageCount++
		rec.LastUsed = now
		rec.Definition = definition
		rec.Associations = union(rec.Associations, associations)
		rec.Confidence = math.Max(rec.Confidence, confidence)
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		maps.Copy(rec.Metadata, metadata)
		return rec.clone()
	}
	rec := &Semantic{
		ID:           l.newID(now),
		Concept:      concept,
		Definition:   definition,
		Associations: union(nil, associations),
		UsageCount:   1,
		LastUsed:     now,
		Confidence:   confidence,
		Metadata:     cloneMap(metadata),
		Timestamp:    now,
	}
	l.concepts[concept] = rec
	l.semantic.add(rec, tier)
	return rec.clone()
}

// StoreAffective appends an emotional event and updates the user's affinity.
func (l *Layers) StoreAffective(userID, event, emotion string, emotionValue float64, context map[string]any, tier Tier) Affective {
	now := l.now()
	rec := Affective{
		ID:           l.newID(now),
		UserID:       userID,
		Event:        event,
		Emotion:      emotion,
		EmotionValue: clamp01(emotionValue),
		Context:      cloneMap(context),
		Timestamp:    now,
	}
	l.affective.add(rec, tier)
	if userID != "" {
		l.updateAffinity(userID, strings.ToLower(emotion), rec.EmotionValue)
	}
	rec.Tier = tier
	return rec
}

func (l *Layers) updateAffinity(userID, emotion string, value float64) {
	delta := 0.0
	switch {
	case positiveEmotions[emotion]:
		delta = value * l.config.AffinityStep
	case negativeEmotions[emotion]:
		delta = -value * l.config.AffinityStep
	default:
		return
	}
	l.affinity[userID] = clamp01(l.Affinity(userID) + delta)
}

// Affinity returns the user's affinity, or the default for unseen users.
func (l *Layers) Affinity(userID string) float64 {
	if v, ok := l.affinity[userID]; ok {
		return v
	}
	return l.config.DefaultAffinity
}

// Affinities returns a copy of every tracked affinity.
func (l *Layers) Affinities() map[string]float64 {
	return maps.Clone(l.affinity)
}

// #endregion store

// #region retrieve
// RetrieveEpisodic scans every tier, newest first.
func (l *Layers) RetrieveEpisodic(q EpisodicQuery) []Episodic {
	pattern := strings.ToLower(q.TaskPattern)
	var out []Episodic
	for _, e := range newestFirst(l.episodic.all(), func(e Episodic) time.Time { return e.Timestamp }) {
		if !strings.Contains(strings.ToLower(e.Task), pattern) {
			continue
		}
		if q.Success != nil && e.Success != *q.Success {
			continue
		}
		if q.Emotion != "" && e.Emotion != q.Emotion {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// RetrieveAffective scans every tier, newest first.
func (l *Layers) RetrieveAffective(q AffectiveQuery) []Affective {
	var out []Affective
	for _, a := range newestFirst(l.affective.all(), func(a Affective) time.Time { return a.Timestamp }) {
		if q.UserID != "" && a.UserID != q.UserID {
			continue
		}
		if q.Emotion != "" && a.Emotion != q.Emotion {
			continue
		}
		out = append(out, a)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// RetrieveSemantic unions an exact concept lookup with a substring scan over
// concept, definition and associations, ordered by usage then confidence.
func (l *Layers) RetrieveSemantic(q SemanticQuery) []Semantic {
	seen := map[*Semantic]bool{}
	var hits []*Semantic
	if q.Concept != "" {
		if rec, ok := l.concepts[q.Concept]; ok {
			seen[rec] = true
			hits = append(hits, rec)
		}
	}
	if q.Query != "" || q.Concept == "" {
		pattern := strings.ToLower(q.Query)
		for _, rec := range l.semantic.all() {
			if !seen[rec] && rec.matches(pattern) {
				seen[rec] = true
				hits = append(hits, rec)
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].UsageCount != hits[j].UsageCount {
			return hits[i].UsageCount > hits[j].UsageCount
		}
		return hits[i].Confidence > hits[j].Confidence
	})
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]Semantic, len(hits))
	for i, rec := range hits {
		out[i] = rec.clone()
	}
	return out
}

func (s *Semantic) matches(pattern string) bool {
	if strings.Contains(strings.ToLower(s.Concept), pattern) ||
		strings.Contains(strings.ToLower(s.Definition), pattern) {
		return true
	}
	for _, a := range s.Associations {
		if strings.Contains(strings.ToLower(a), pattern) {
			return true
		}
	}
	return false
}

func (s *Semantic) clone() Semantic {
	c := *s
	c.Associations = slices.Clone(s.Associations)
	c.Metadata = cloneMap(s.Metadata)
	return c
}

// newestFirst reverses insertion order then stable-sorts by timestamp
// descending, so equal timestamps keep the later insertion first.
func newestFirst[T any](items []T, ts func(T) time.Time) []T {
	slices.Reverse(items)
	sort.SliceStable(items, func(i, j int) bool {
		return ts(items[i]).After(ts(items[j]))
	})
	return items
}

// #endregion retrieve

// #region maintenance
// CleanupExpired removes long-tier records older than the TTL and returns the
// number removed. Semantic records age by LastUsed.
func (l *Layers) CleanupExpired(now time.Time) int {
	ttl := l.config.LongTermTTL
	expired := func(t time.Time) bool { return now.Sub(t) > ttl }

	removed := len(l.episodic.expire(func(e Episodic) bool { return expired(e.Timestamp) }))
	removed += len(l.affective.expire(func(a Affective) bool { return expired(a.Timestamp) }))
	for _, rec := range l.semantic.expire(func(s *Semantic) bool { return expired(s.LastUsed) }) {
		if l.concepts[rec.Concept] == rec {
			delete(l.concepts, rec.Concept)
		}
		removed++
	}
	if removed > 0 {
		l.logger.Info("expired long-term memories", zap.Int("removed", removed))
	}
	return removed
}

// Stats counts records per kind and tier.
func (l *Layers) Stats() Stats {
	return Stats{
		Episodic:  l.episodic.counts(),
		Semantic:  l.semantic.counts(),
		Affective: l.affective.counts(),
		Concepts:  len(l.concepts),
		Users:     len(l.affinity),
	}
}

// Export copies every record, oldest first.
func (l *Layers) Export() Dump {
	d := Dump{
		Episodic:  l.episodic.all(),
		Affective: l.affective.all(),
		Affinity:  maps.Clone(l.affinity),
	}
	for _, rec := range l.semantic.all() {
		d.Semantic = append(d.Semantic, rec.clone())
	}
	return d
}

// Import replaces the store content with d. Records keep their recorded tier.
func (l *Layers) Import(d Dump) {
	l.episodic.reset()
	l.semantic.reset()
	l.affective.reset()
	l.concepts = make(map[string]*Semantic)
	l.affinity = make(map[string]float64, len(d.Affinity))

	for _, e := range d.Episodic {
		l.episodic.add(e, e.Tier)
	}
	for _, a := range d.Affective {
		l.affective.add(a, a.Tier)
	}
	for _, s := range d.Semantic {
		rec := s.clone()
		l.concepts[rec.Concept] = &rec
		l.semantic.add(&rec, rec.Tier)
	}
	for u, v := range d.Affinity {
		l.affinity[u] = clamp01(v)
	}
}

// #endregion maintenance

// #region helpers
func union(base, extra []string) []string {
	out := slices.Clone(base)
	for _, s := range extra {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
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

// #endregion helpers
