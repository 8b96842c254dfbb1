// Package config loads affective-core configuration.
// Sources, highest priority first:
// 1. Environment variables (AFFECTIVE_*)
// 2. YAML file (path argument, else AFFECTIVE_CONFIG, else ./affective.yaml)
// 3. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/regulation"
)

// DefaultPath is read when no path is given and AFFECTIVE_CONFIG is unset.
const DefaultPath = "affective.yaml"

// #region types
// Config holds all affective-core configuration.
type Config struct {
	Log           LogConfig        `yaml:"log"`
	Storage       StorageConfig    `yaml:"storage"`
	Server        ServerConfig     `yaml:"server"`
	Session       SessionConfig    `yaml:"session"`
	Emotion       EmotionConfig    `yaml:"emotion"`
	Regulation    RegulationConfig `yaml:"regulation"`
	MetaReasoning MetaConfig       `yaml:"meta_reasoning"`
	Memory        MemoryConfig     `yaml:"memory"`
	Cognitive     CognitiveConfig  `yaml:"cognitive"`
}

type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level"`
	// Development switches to the console encoder with stack traces on warn.
	Development bool `yaml:"development"`
}

type StorageConfig struct {
	// DBPath is the SQLite file holding checkpoints, the decision log and the
	// journal. Empty disables persistence.
	DBPath string `yaml:"db_path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type SessionConfig struct {
	// MaxSessions bounds the live cores; the least recently used is
	// checkpointed and dropped beyond it.
	MaxSessions int `yaml:"max_sessions"`
	// SaveEvery checkpoints a session after this many calls. Zero saves only
	// on eviction and shutdown.
	SaveEvery int `yaml:"save_every"`
}

type EmotionConfig struct {
	DecayRate          float64 `yaml:"decay_rate"`
	MinIntensity       float64 `yaml:"min_intensity"`
	MaxIntensity       float64 `yaml:"max_intensity"`
	StabilityThreshold float64 `yaml:"stability_threshold"`
	HistorySize        int     `yaml:"history_size"`
	TriggerHistorySize int     `yaml:"trigger_history_size"`
}

type RegulationConfig struct {
	ConflictLogSize     int          `yaml:"conflict_log_size"`
	ConflictFrustration float64      `yaml:"conflict_frustration"`
	ExtraRules          []RuleConfig `yaml:"extra_rules"`
}

// RuleConfig declares an additional threshold rule.
type RuleConfig struct {
	Name      string             `yaml:"name"`
	Priority  int                `yaml:"priority"`
	Channel   string             `yaml:"channel"`
	Threshold float64            `yaml:"threshold"`
	Set       []AssignmentConfig `yaml:"set"`
}

type AssignmentConfig struct {
	Channel string  `yaml:"channel"`
	Value   float64 `yaml:"value"`
}

type MetaConfig struct {
	BaseConfidence         float64 `yaml:"base_confidence"`
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold"`
	ReflectionHistorySize  int     `yaml:"reflection_history_size"`
	TraceSize              int     `yaml:"trace_size"`
	InsightsSize           int     `yaml:"insights_size"`
}

type MemoryConfig struct {
	ShortTermMaxSize  int           `yaml:"short_term_max_size"`
	MediumTermMaxSize int           `yaml:"medium_term_max_size"`
	LongTermTTL       time.Duration `yaml:"long_term_ttl"`
}

type CognitiveConfig struct {
	FeedbackMagnitude   float64        `yaml:"feedback_magnitude"`
	LearningMagnitude   float64        `yaml:"learning_magnitude"`
	RetrievalLimit      int            `yaml:"retrieval_limit"`
	DecisionHistorySize int            `yaml:"decision_history_size"`
	Features            FeaturesConfig `yaml:"features"`
}

type FeaturesConfig struct {
	Memory        bool `yaml:"memory"`
	MetaReasoning bool `yaml:"meta_reasoning"`
	Regulation    bool `yaml:"regulation"`
}

// #endregion types

// #region defaults
// Default returns the built-in configuration, matching the component defaults.
func Default() *Config {
	core := cognitive.DefaultConfig()
	return &Config{
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{DBPath: "affective.db"},
		Server:  ServerConfig{Addr: "127.0.0.1:50061"},
		Session: SessionConfig{MaxSessions: 256, SaveEvery: 10},
		Emotion: EmotionConfig{
			DecayRate:          core.Emotion.DecayRate,
			MinIntensity:       core.Emotion.MinIntensity,
			MaxIntensity:       core.Emotion.MaxIntensity,
			StabilityThreshold: core.Emotion.StabilityThreshold,
			HistorySize:        core.Emotion.HistorySize,
			TriggerHistorySize: core.Emotion.TriggerHistorySize,
		},
		Regulation: RegulationConfig{
			ConflictLogSize:     core.Regulation.ConflictLogSize,
			ConflictFrustration: core.Regulation.ConflictFrustration,
		},
		MetaReasoning: MetaConfig{
			BaseConfidence:         core.Meta.BaseConfidence,
			LowConfidenceThreshold: core.Meta.LowConfidenceThreshold,
			ReflectionHistorySize:  core.Meta.ReflectionHistorySize,
			TraceSize:              core.Meta.TraceSize,
			InsightsSize:           core.Meta.InsightsSize,
		},
		Memory: MemoryConfig{
			ShortTermMaxSize:  core.Memory.ShortTermMaxSize,
			MediumTermMaxSize: core.Memory.MediumTermMaxSize,
			LongTermTTL:       core.Memory.LongTermTTL,
		},
		Cognitive: CognitiveConfig{
			FeedbackMagnitude:   core.FeedbackMagnitude,
			LearningMagnitude:   core.LearningMagnitude,
			RetrievalLimit:      core.RetrievalLimit,
			DecisionHistorySize: core.DecisionHistorySize,
			Features:            FeaturesConfig{Memory: true, MetaReasoning: true, Regulation: true},
		},
	}
}

// #endregion defaults

// #region load
// Load builds the configuration from defaults, the YAML file and the
// environment, then validates it. A missing file at the default location is
// not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if v := strings.TrimSpace(os.Getenv("AFFECTIVE_CONFIG")); v != "" {
			path, explicit = v, true
		} else {
			path = DefaultPath
		}
	}
	if err := loadFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes path over cfg; keys absent from the file keep their value.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv applies AFFECTIVE_* overrides.
func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("AFFECTIVE_LOG_LEVEL", &cfg.Log.Level)
	flag("AFFECTIVE_LOG_DEVELOPMENT", &cfg.Log.Development)
	str("AFFECTIVE_DB_PATH", &cfg.Storage.DBPath)
	str("AFFECTIVE_SERVER_ADDR", &cfg.Server.Addr)
	integer("AFFECTIVE_MAX_SESSIONS", &cfg.Session.MaxSessions)
	integer("AFFECTIVE_SAVE_EVERY", &cfg.Session.SaveEvery)
	num("AFFECTIVE_DECAY_RATE", &cfg.Emotion.DecayRate)
	num("AFFECTIVE_FEEDBACK_MAGNITUDE", &cfg.Cognitive.FeedbackMagnitude)
	integer("AFFECTIVE_SHORT_TERM_MAX_SIZE", &cfg.Memory.ShortTermMaxSize)
	integer("AFFECTIVE_MEDIUM_TERM_MAX_SIZE", &cfg.Memory.MediumTermMaxSize)
	if v := os.Getenv("AFFECTIVE_LONG_TERM_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse AFFECTIVE_LONG_TERM_TTL: %w", err))
		} else {
			cfg.Memory.LongTermTTL = d
		}
	}
	flag("AFFECTIVE_FEATURE_MEMORY", &cfg.Cognitive.Features.Memory)
	flag("AFFECTIVE_FEATURE_META_REASONING", &cfg.Cognitive.Features.MetaReasoning)
	flag("AFFECTIVE_FEATURE_REGULATION", &cfg.Cognitive.Features.Regulation)

	return errors.Join(errs...)
}

// #endregion load

// #region validate
// Validate checks ranges and rule declarations.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %w", err)
	}
	if c.Session.MaxSessions < 1 {
		bad("session.max_sessions must be at least 1, got %d", c.Session.MaxSessions)
	}
	if c.Session.SaveEvery < 0 {
		bad("session.save_every must not be negative, got %d", c.Session.SaveEvery)
	}
	if r := c.Emotion.DecayRate; !(r > 0 && r <= 1) {
		bad("emotion.decay_rate must be in (0,1], got %v", r)
	}
	if lo, hi := c.Emotion.MinIntensity, c.Emotion.MaxIntensity; lo < 0 || hi > 1 || lo > hi {
		bad("emotion intensity band [%v,%v] must lie within [0,1]", lo, hi)
	}
	for name, n := range map[string]int{
		"emotion.history_size":                   c.Emotion.HistorySize,
		"emotion.trigger_history_size":           c.Emotion.TriggerHistorySize,
		"regulation.conflict_log_size":           c.Regulation.ConflictLogSize,
		"meta_reasoning.reflection_history_size": c.MetaReasoning.ReflectionHistorySize,
		"meta_reasoning.trace_size":              c.MetaReasoning.TraceSize,
		"meta_reasoning.insights_size":           c.MetaReasoning.InsightsSize,
		"memory.short_term_max_size":             c.Memory.ShortTermMaxSize,
		"memory.medium_term_max_size":            c.Memory.MediumTermMaxSize,
		"cognitive.decision_history_size":        c.Cognitive.DecisionHistorySize,
		"cognitive.retrieval_limit":              c.Cognitive.RetrievalLimit,
	} {
		if n < 1 {
			bad("%s must be at least 1, got %d", name, n)
		}
	}
	if c.Memory.LongTermTTL <= 0 {
		bad("memory.long_term_ttl must be positive, got %s", c.Memory.LongTermTTL)
	}
	if _, err := c.rules(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// rules converts the declared extra rules.
func (c *Config) rules() ([]regulation.Rule, error) {
	var out []regulation.Rule
	for i, rc := range c.Regulation.ExtraRules {
		ch, ok := emotion.ParseChannel(rc.Channel)
		if !ok {
			return nil, fmt.Errorf("regulation.extra_rules[%d]: unknown channel %q", i, rc.Channel)
		}
		if rc.Name == "" {
			return nil, fmt.Errorf("regulation.extra_rules[%d]: name is required", i)
		}
		rule := regulation.Rule{Name: rc.Name, Priority: rc.Priority, Channel: ch, Threshold: rc.Threshold}
		for _, a := range rc.Set {
			target, ok := emotion.ParseChannel(a.Channel)
			if !ok {
				return nil, fmt.Errorf("regulation.extra_rules[%d] %s: unknown channel %q", i, rc.Name, a.Channel)
			}
			if a.Value < 0 || a.Value > 1 {
				return nil, fmt.Errorf("regulation.extra_rules[%d] %s: value %v outside [0,1]", i, rc.Name, a.Value)
			}
			rule.Set = append(rule.Set, regulation.Assignment{Channel: target, Value: a.Value})
		}
		out = append(out, rule)
	}
	return out, nil
}

// #endregion validate

// #region convert
// ToCognitive converts the configuration for cognitive.New. Call Validate first;
// invalid extra rules are dropped here.
func (c *Config) ToCognitive() cognitive.Config {
	out := cognitive.DefaultConfig()
	out.Emotion = emotion.Config{
		DecayRate:          c.Emotion.DecayRate,
		MinIntensity:       c.Emotion.MinIntensity,
		MaxIntensity:       c.Emotion.MaxIntensity,
		StabilityThreshold: c.Emotion.StabilityThreshold,
		HistorySize:        c.Emotion.HistorySize,
		TriggerHistorySize: c.Emotion.TriggerHistorySize,
	}
	out.Regulation.ConflictLogSize = c.Regulation.ConflictLogSize
	out.Regulation.ConflictFrustration = c.Regulation.ConflictFrustration
	out.Meta.BaseConfidence = c.MetaReasoning.BaseConfidence
	out.Meta.LowConfidenceThreshold = c.MetaReasoning.LowConfidenceThreshold
	out.Meta.ReflectionHistorySize = c.MetaReasoning.ReflectionHistorySize
	out.Meta.TraceSize = c.MetaReasoning.TraceSize
	out.Meta.InsightsSize = c.MetaReasoning.InsightsSize
	out.Memory.ShortTermMaxSize = c.Memory.ShortTermMaxSize
	out.Memory.MediumTermMaxSize = c.Memory.MediumTermMaxSize
	out.Memory.LongTermTTL = c.Memory.LongTermTTL
	out.FeedbackMagnitude = c.Cognitive.FeedbackMagnitude
	out.LearningMagnitude = c.Cognitive.LearningMagnitude
	out.RetrievalLimit = c.Cognitive.RetrievalLimit
	out.DecisionHistorySize = c.Cognitive.DecisionHistorySize
	out.Features = cognitive.Features{
		Memory:        c.Cognitive.Features.Memory,
		MetaReasoning: c.Cognitive.Features.MetaReasoning,
		Regulation:    c.Cognitive.Features.Regulation,
	}
	out.ExtraRules, _ = c.rules()
	return out
}

// #endregion convert
