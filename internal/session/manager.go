package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/voxqueue/internal/config"
	"github.com/MrWong99/voxqueue/internal/journal"
	"github.com/MrWong99/voxqueue/internal/observe"
	"github.com/MrWong99/voxqueue/pkg/audio"
)

// DeviceOpener opens the playback and capture devices of a call. The host
// integration implements it; tests plug in mocks.
type DeviceOpener interface {
	Devices(callID string) (audio.Player, audio.Capture, error)
}

// ManagerConfig holds the dependencies shared by all sessions.
type ManagerConfig struct {
	// Audio returns the current audio settings. Called once per session
	// at open time, so a config watcher can swap values between calls.
	Audio func() config.AudioConfig

	// Devices opens per-call devices. Required.
	Devices DeviceOpener

	// Journal receives lifecycle events for every session. May be nil.
	Journal *journal.Journal

	// Metrics is shared across sessions. Nil selects the default.
	Metrics *observe.Metrics
}

// Manager tracks the live call sessions. All exported methods are safe for
// concurrent use.
type Manager struct {
	cfg     ManagerConfig
	metrics *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Audio == nil {
		cfg.Audio = func() config.AudioConfig { return config.AudioConfig{} }
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Manager{
		cfg:      cfg,
		metrics:  cfg.Metrics,
		sessions: make(map[string]*Session),
	}
}

// Open creates the session for callID. Opening an already-open call returns
// the existing session.
func (m *Manager) Open(callID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[callID]; ok {
		return s, nil
	}

	player, capture, err := m.cfg.Devices.Devices(callID)
	if err != nil {
		return nil, fmt.Errorf("session: open devices for %s: %w", callID, err)
	}

	s := New(Config{
		CallID:  callID,
		Audio:   m.cfg.Audio(),
		Player:  player,
		Capture: capture,
		Journal: m.cfg.Journal,
		Metrics: m.metrics,
	})
	m.sessions[callID] = s
	m.metrics.ActiveSessions.Add(context.Background(), 1)
	slog.Info("session opened", "call", callID)
	return s, nil
}

// Get returns the session for callID, or nil when the call is unknown.
func (m *Manager) Get(callID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[callID]
}

// Command implements the control server's Commander: it routes one command
// line to the call's session, opening it on first use.
func (m *Manager) Command(callID, line string) (int64, error) {
	s, err := m.Open(callID)
	if err != nil {
		return 0, err
	}
	return s.Command(line)
}

// CloseSession tears down one call's session. Unknown calls are a no-op.
func (m *Manager) CloseSession(callID string) {
	m.mu.Lock()
	s, ok := m.sessions[callID]
	delete(m.sessions, callID)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	m.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("session closed", "call", callID)
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.CloseSession(id)
	}
}

// Len is the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
