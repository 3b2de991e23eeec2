package server

import (
	"errors"
	"sync"
	"time"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
)

// ErrTooManySessions indicates the configured session cap is reached.
var ErrTooManySessions = errors.New("server: too many sessions")

// Manager tracks live sessions and enforces the session cap.
type Manager struct {
	newSim func() (*fdtd.Simulation, error)

	mu       sync.Mutex
	sessions map[string]*Session
	max      int
}

// NewManager builds a manager that creates one simulation per session via
// newSim. A max of zero means no cap.
func NewManager(max int, newSim func() (*fdtd.Simulation, error)) *Manager {
	return &Manager{
		newSim:   newSim,
		sessions: make(map[string]*Session),
		max:      max,
	}
}

// Create builds a fresh simulation and registers a session around it.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.mu.Unlock()

	// Simulation construction can be slow (backend probing), so it runs
	// outside the lock and the cap is re-checked on registration.
	sim, err := m.newSim()
	if err != nil {
		return nil, err
	}
	sess, err := NewSession(sim)
	if err != nil {
		sim.Close()
		return nil, err
	}

	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		sess.Close()
		return nil, ErrTooManySessions
	}
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	return sess, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Remove drops a session and releases its simulation. Removing an unknown
// id is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		sess.Close()
	}
}

// ReapExpired removes every session silent for longer than timeout and
// returns their ids.
func (m *Manager) ReapExpired(timeout time.Duration) []string {
	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.Expired(timeout) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, sess := range expired {
		sess.Close()
		ids = append(ids, sess.ID)
	}
	return ids
}

// CloseAll drops every session. Used at server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
