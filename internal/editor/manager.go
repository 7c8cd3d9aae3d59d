package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/metrics"
)

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 2 * time.Hour

// Manager tracks open sessions and evicts idle ones.
type Manager struct {
	deps    Deps
	ttl     time.Duration
	metrics *metrics.Manager
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. A non-positive ttl uses
// DefaultSessionTTL; m may be nil.
func NewManager(deps Deps, ttl time.Duration, m *metrics.Manager, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Metrics == nil {
		deps.Metrics = m
	}
	return &Manager{
		deps:     deps,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for the owner on an empty board.
func (m *Manager) Open(ownerID string) (*Session, error) {
	s, err := NewSession(ownerID, m.deps)
	if err != nil {
		return nil, err
	}
	s.now = m.now
	s.touch()

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetEditorSessions(n)
	m.logger.Debug("editor session opened", "session_id", s.ID(), "owner_id", ownerID, "open_sessions", n)
	return s, nil
}

// Get returns the owner's session. Sessions of other owners are reported as
// not found.
func (m *Manager) Get(ownerID, sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok || s.OwnerID() != ownerID {
		return nil, domainerrors.NotFoundf("editor session %s not found", sessionID)
	}
	s.touch()
	return s, nil
}

// Close ends the owner's session. Unsaved changes are dropped.
func (m *Manager) Close(ownerID, sessionID string) error {
	if _, err := m.Get(ownerID, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetEditorSessions(n)
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle closes sessions untouched for longer than the TTL and returns how
// many were closed.
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	evicted := 0
	var dropped []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(m.sessions, id)
			dropped = append(dropped, s)
			evicted++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range dropped {
		if boardID, pending := s.pendingChanges(); pending {
			m.logger.Warn("evicted editor session with unsaved changes",
				"session_id", s.ID(),
				"owner_id", s.OwnerID(),
				"board_id", boardID,
				"idle_since", s.LastUsed(),
			)
		}
	}

	if evicted > 0 {
		m.metrics.SetEditorSessions(n)
		m.logger.Info("evicted idle editor sessions", "evicted", evicted, "open_sessions", n)
	}
	return evicted
}

// Start runs the idle-session janitor until ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	interval := max(m.ttl/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}
