package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"

	"tactical-grid/game"
	"tactical-grid/store"
)

// SetStore enables persistence. Snapshots are taken every interval once
// StartPeriodicSnapshots is called.
func (m *Manager) SetStore(s store.Snapshotter, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = s
	m.interval = interval
}

// RestoreSessions loads every stored snapshot as a session with no clients. Snapshots that
// fail to decode are skipped. It returns the number of sessions restored.
func (m *Manager) RestoreSessions(ctx context.Context) int {
	m.mu.Lock()
	st := m.store
	m.mu.Unlock()
	if st == nil {
		return 0
	}

	snapshots, err := st.LoadAllSnapshots(ctx)
	if err != nil {
		m.log.Warn("failed to load snapshots", "error", err)
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	restored := 0
	for id, data := range snapshots {
		state, err := game.DecodeState(data)
		if err != nil {
			m.log.Warn("skipping corrupt snapshot", "session", id, "error", err)
			continue
		}
		if _, exists := m.sessions[id]; exists {
			continue
		}
		m.sessions[id] = &Session{ID: id, Clients: make(map[*websocket.Conn]bool), State: state}
		restored++
	}
	m.log.Info("sessions restored", "count", restored)
	return restored
}

// SnapshotAll saves the state of every session. It stops early once ctx is done.
func (m *Manager) SnapshotAll(ctx context.Context) {
	m.mu.Lock()
	st := m.store
	if st == nil {
		m.mu.Unlock()
		return
	}
	pending := make(map[string][]byte, len(m.sessions))
	for id, s := range m.sessions {
		data, err := json.Marshal(s.State)
		if err != nil {
			m.log.Error("failed to marshal session", "session", id, "error", err)
			continue
		}
		pending[id] = data
	}
	m.mu.Unlock()

	saved := 0
	for id, data := range pending {
		if err := ctx.Err(); err != nil {
			m.log.Warn("snapshot interrupted", "saved", saved, "total", len(pending), "error", err)
			return
		}
		if err := st.SaveSnapshot(ctx, id, data); err != nil {
			m.log.Warn("failed to save snapshot", "session", id, "error", err)
			continue
		}
		saved++
	}
}

// StartPeriodicSnapshots snapshots every interval until StopPeriodicSnapshots is called or
// ctx is done.
func (m *Manager) StartPeriodicSnapshots(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil || m.interval <= 0 || m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.stopped = make(chan struct{})
	go m.snapshotLoop(ctx, m.interval, m.stop, m.stopped)
}

func (m *Manager) snapshotLoop(ctx context.Context, interval time.Duration, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.SnapshotAll(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// StopPeriodicSnapshots ends the snapshot loop and takes one last snapshot bounded by ctx.
func (m *Manager) StopPeriodicSnapshots(ctx context.Context) {
	m.mu.Lock()
	stop, stopped := m.stop, m.stopped
	m.stop, m.stopped = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	m.SnapshotAll(ctx)
}
