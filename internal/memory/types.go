package memory

import (
	"strings"
	"time"
)

// #region tier
// Tier is a retention class. Overflow moves records to the next coarser tier.
type Tier int

const (
	Short Tier = iota
	Medium
	Long
)

var tierNames = [...]string{"SHORT", "MEDIUM", "LONG"}

func (t Tier) String() string {
	if t < Short || t > Long {
		return "UNKNOWN"
	}
	return tierNames[t]
}

// ParseTier accepts SHORT, MEDIUM or LONG in any case.
func ParseTier(s string) (Tier, bool) {
	for i, n := range tierNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return Tier(i), true
		}
	}
	return Short, false
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	if v, ok := ParseTier(string(b)); ok {
		*t = v
	}
	return nil
}

// #endregion tier

// #region records
// Episodic records one task outcome.
type Episodic struct {
	ID           string         `json:"id"`
	Task         string         `json:"task"`
	Success      bool           `json:"success"`
	Emotion      string         `json:"emotion"`
	EmotionValue float64        `json:"emotionValue"`
	Outcome      string         `json:"outcome,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	Timestamp    time.Time      `json:"timestamp"`
	Tier         Tier           `json:"tier"`
}

// Semantic is a concept definition, unique by Concept.
type Semantic struct {
	ID           string         `json:"id"`
	Concept      string         `json:"concept"`
	Definition   string         `json:"definition"`
	Associations []string       `json:"associations"`
	UsageCount   int            `json:"usageCount"`
	LastUsed     time.Time      `json:"lastUsed"`
	Confidence   float64        `json:"confidence"`
	Metadata     map[string]any `json:"metadata"`
	Timestamp    time.Time      `json:"timestamp"`
	Tier         Tier           `json:"tier"`
}

// Affective records an emotional event, optionally tied to a user.
type Affective struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId,omitempty"`
	Event        string         `json:"event"`
	Emotion      string         `json:"emotion"`
	EmotionValue float64        `json:"emotionValue"`
	Context      map[string]any `json:"context"`
	Timestamp    time.Time      `json:"timestamp"`
	Tier         Tier           `json:"tier"`
}

// #endregion records

// #region queries
// EpisodicQuery filters RetrieveEpisodic. Zero values match everything;
// Limit <= 0 means no limit.
type EpisodicQuery struct {
	TaskPattern string
	Success     *bool
	Emotion     string
	Limit       int
}

// AffectiveQuery filters RetrieveAffective.
type AffectiveQuery struct {
	UserID  string
	Emotion string
	Limit   int
}

// SemanticQuery selects semantic records. Concept is an exact key lookup;
// Query is a substring scan. With neither set every record matches.
type SemanticQuery struct {
	Concept string
	Query   string
	Limit   int
}

// #endregion queries

// #region stats
// TierCounts holds per-tier record counts for one kind.
type TierCounts struct {
	Short  int `json:"short"`
	Medium int `json:"medium"`
	Long   int `json:"long"`
}

func (c TierCounts) Total() int { return c.Short + c.Medium + c.Long }

// Stats summarises the store.
type Stats struct {
	Episodic  TierCounts `json:"episodic"`
	Semantic  TierCounts `json:"semantic"`
	Affective TierCounts `json:"affective"`
	Concepts  int        `json:"concepts"`
	Users     int        `json:"users"`
}

// Dump is the full serialisable content, used for checkpoints.
type Dump struct {
	Episodic  []Episodic         `json:"episodic"`
	Semantic  []Semantic         `json:"semantic"`
	Affective []Affective        `json:"affective"`
	Affinity  map[string]float64 `json:"affinity"`
}

// #endregion stats

// #region config
// Config sets tier sizes, long-term TTL and affinity arithmetic.
type Config struct {
	ShortTermMaxSize  int
	MediumTermMaxSize int
	LongTermTTL       time.Duration
	AffinityStep      float64 // affinity delta per unit of emotion value
	DefaultAffinity   float64
}

func DefaultConfig() Config {
	return Config{
		ShortTermMaxSize:  20,
		MediumTermMaxSize: 100,
		LongTermTTL:       30 * 24 * time.Hour,
		AffinityStep:      0.1,
		DefaultAffinity:   0.5,
	}
}

// #endregion config

// Emotions that raise or lower user affinity.
var (
	positiveEmotions = map[string]bool{"satisfaction": true, "excitement": true, "empathy": true}
	negativeEmotions = map[string]bool{"frustration": true, "boredom": true}
)
