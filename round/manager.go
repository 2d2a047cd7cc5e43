package round

import (
	"sync"

	"github.com/winzone/casino-server/monitor"
)

// Manager holds one scheduler per scheduled game and keeps the running
// round count gauge current.
type Manager struct {
	mu         sync.RWMutex
	schedulers map[string]*Scheduler
	metrics    *monitor.Monitor
}

func NewManager(metrics *monitor.Monitor) *Manager {
	return &Manager{
		schedulers: make(map[string]*Scheduler),
		metrics:    metrics,
	}
}

func (m *Manager) Add(s *Scheduler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedulers[s.Game()] = s
	if m.metrics != nil {
		m.metrics.SetActiveRounds(len(m.schedulers))
	}
}

func (m *Manager) Get(game string) (*Scheduler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedulers[game]
	return s, ok
}

func (m *Manager) StartAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.schedulers {
		s.Start()
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.schedulers {
		s.Stop()
	}
	m.schedulers = make(map[string]*Scheduler)
	if m.metrics != nil {
		m.metrics.SetActiveRounds(0)
	}
}
