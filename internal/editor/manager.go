package editor

import (
	"context"
	"sync"
	"time"

	"cablenet/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager hands out one workspace per operator and evicts idle ones.
type Manager struct {
	routes    RouteStore
	locations LocationStore
	opts      Options
	logr      *zap.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	workspaces map[uuid.UUID]*Workspace
}

func NewManager(routes RouteStore, locations LocationStore, opts Options, logr *zap.Logger, m *metrics.Metrics) *Manager {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Manager{
		routes:     routes,
		locations:  locations,
		opts:       opts.withDefaults(),
		logr:       logr,
		metrics:    m,
		workspaces: make(map[uuid.UUID]*Workspace),
	}
}

// Get returns the operator's workspace, creating it on first use.
func (m *Manager) Get(userID uuid.UUID) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[userID]
	if !ok {
		w = NewWorkspace(userID, m.routes, m.locations, m.opts, m.logr, m.metrics)
		m.workspaces[userID] = w
		m.metrics.SetEditorWorkspaces(len(m.workspaces))
	}
	return w
}

// Lookup returns the workspace only if it already exists.
func (m *Manager) Lookup(userID uuid.UUID) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[userID]
	return w, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Sweep drops workspaces unused since before now minus the idle timeout.
// Their sessions are discarded. It returns how many were dropped.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var stale []*Workspace
	for id, w := range m.workspaces {
		if w.idleSince().Before(cutoff) {
			stale = append(stale, w)
			delete(m.workspaces, id)
		}
	}
	m.metrics.SetEditorWorkspaces(len(m.workspaces))
	m.mu.Unlock()

	for _, w := range stale {
		w.close()
		m.logr.Debug("editor workspace evicted", zap.String("user_id", w.userID.String()))
	}
	return len(stale)
}

// Run sweeps on a ticker until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	every := m.opts.IdleTimeout / 2
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logr.Info("evicted idle editor workspaces", zap.Int("count", n))
			}
		}
	}
}
