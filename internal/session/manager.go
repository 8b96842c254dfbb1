// Package session keeps one cognitive core per session id. Calls on the same
// session are serialized; the least recently used sessions are checkpointed
// through a Persister and dropped once the live set is full.
package session

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/eval"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("session manager closed")

// #region persister
// Persister stores and restores core checkpoints. state.Store implements it.
type Persister interface {
	SaveCore(sessionID string, cp cognitive.Checkpoint, summary *cognitive.Summary) (string, error)
	LoadCore(sessionID string) (cognitive.Checkpoint, bool, error)
}

// #endregion persister

// #region types
// Options configures a Manager.
type Options struct {
	MaxSessions int // default 256
	SaveEvery   int // 0 saves only on eviction, Flush and Close
	Core        cognitive.Config
	Clock       emotion.Clock
	Persister   Persister         // nil keeps sessions in memory only
	Eval        *eval.EvalHarness // checkpoints failing it are not saved
	Logger      *zap.Logger
}

type session struct {
	id      string
	mu      sync.Mutex
	core    *cognitive.Core
	calls   int
	dirty   bool
	evicted bool
	version string
}

// Manager owns the live sessions.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	cache  *lru.Cache[string, *session]
	closed bool
}

// #endregion types

// #region constructor
// NewManager builds a manager with an empty live set.
func NewManager(opts Options) (*Manager, error) {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 256
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Manager{opts: opts, logger: opts.Logger.Named("session")}
	cache, err := lru.NewWithEvict(opts.MaxSessions, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// #endregion constructor

// #region with
// With runs fn on the session's core while holding the session lock. A
// session not in the live set is restored from the Persister, or created
// fresh when it was never saved.
func (m *Manager) With(id string, fn func(*cognitive.Core) error) error {
	if id == "" {
		return errors.New("session id is required")
	}
	for {
		s, err := m.acquire(id)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.evicted {
			// saved and dropped between lookup and lock; reload
			s.mu.Unlock()
			continue
		}
		err = fn(s.core)
		s.calls++
		s.dirty = true
		if m.opts.SaveEvery > 0 && s.calls%m.opts.SaveEvery == 0 {
			m.save(s)
		}
		s.mu.Unlock()
		return err
	}
}

func (m *Manager) acquire(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if s, ok := m.cache.Get(id); ok {
		return s, nil
	}

	s := &session{id: id, core: cognitive.New(m.opts.Core, m.opts.Clock, m.logger.With(zap.String("session", id)))}
	if p := m.opts.Persister; p != nil {
		cp, found, err := p.LoadCore(id)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		if found {
			s.core.RestoreCheckpoint(cp)
			m.logger.Debug("restored session", zap.String("session", id))
		}
	}
	m.cache.Add(id, s)
	return s, nil
}

// #endregion with

// #region persistence
// save checkpoints a dirty session. Caller holds s.mu. Failures and
// rejected checkpoints are logged and leave the session dirty.
func (m *Manager) save(s *session) {
	if m.opts.Persister == nil || !s.dirty {
		return
	}
	cp := s.core.Checkpoint()
	if m.opts.Eval != nil {
		if res := m.opts.Eval.Run(cp); !res.Passed {
			m.logger.Error("checkpoint rejected", zap.String("session", s.id), zap.String("reason", res.Reason))
			return
		}
	}
	sum := s.core.GetCognitiveSummary()
	version, err := m.opts.Persister.SaveCore(s.id, cp, &sum)
	if err != nil {
		m.logger.Error("checkpoint failed", zap.String("session", s.id), zap.Error(err))
		return
	}
	s.dirty = false
	s.version = version
	m.logger.Debug("checkpointed", zap.String("session", s.id), zap.String("version", version))
}

func (m *Manager) onEvict(id string, s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.save(s)
	s.evicted = true
	m.logger.Info("session evicted", zap.String("session", id), zap.Bool("persisted", m.opts.Persister != nil))
}

// Flush checkpoints every dirty live session.
func (m *Manager) Flush() error {
	m.mu.Lock()
	live := m.cache.Values()
	m.mu.Unlock()

	var errs []error
	for _, s := range live {
		s.mu.Lock()
		m.save(s)
		if s.dirty && m.opts.Persister != nil {
			errs = append(errs, fmt.Errorf("flush session %s", s.id))
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Close flushes the live sessions and rejects further calls.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Flush()
}

// #endregion persistence

// #region introspection
// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// IDs lists live sessions, least recently used first.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Keys()
}

// Version is the checkpoint last written for a live session, or "" when it
// has not been saved since it was loaded.
func (m *Manager) Version(id string) string {
	m.mu.Lock()
	s, ok := m.cache.Peek(id)
	m.mu.Unlock()
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// #endregion introspection
