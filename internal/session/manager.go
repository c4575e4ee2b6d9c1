package session

import (
	"context"
	"sync"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/labstack/gommon/log"
)

// Manager keeps live sessions by id and evicts idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	defaults Options
	now      func() time.Time
}

// NewManager returns a manager evicting sessions idle longer than ttl.
// ttl <= 0 disables eviction.
func NewManager(ttl time.Duration, defaults Options) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		defaults: defaults,
		now:      time.Now,
	}
}

// Create starts a session over t using the manager defaults.
func (m *Manager) Create(t *table.Table) *Session {
	s := New(t, m.defaults)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	log.Infof("[Sessions] Created %s for %s (%d rows)", s.ID(), t.Name(), t.Len())
	return s
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes a session. It reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	log.Infof("[Sessions] Deleted %s", id)
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		log.Infof("[Sessions] Evicted %d idle sessions", n)
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
