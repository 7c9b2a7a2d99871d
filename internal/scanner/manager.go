package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ManagerConfig carries the shared collaborators every session needs
type ManagerConfig struct {
	Recognizer  Recognizer
	Sink        Sink
	Corpus      func() *Corpus
	OpenSource  func(ctx context.Context, cameraURL string) (FrameSource, error)
	CameraURL   string
	Interval    time.Duration
	ResumeAfter time.Duration
	Issuers     []string
}

// Manager owns the active scan sessions. One camera is exclusively owned by
// one session, but different terminals run their own sessions concurrently.
// Session lifetimes are bound to the manager, never to the caller's context:
// an HTTP request context dies as soon as the response is written, long
// before the operator is done scanning.
type Manager struct {
	cfg      ManagerConfig
	base     context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(cfg ManagerConfig) *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// StartSession creates and starts a session for the given mode. An empty
// cameraURL falls back to the configured default camera. ctx only gates
// whether the start happens at all; the running session outlives it.
func (m *Manager) StartSession(ctx context.Context, mode Mode, cameraURL string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mode != ModeOrder && mode != ModeBarcode {
		return nil, fmt.Errorf("unknown scan mode %q", mode)
	}
	if cameraURL == "" {
		cameraURL = m.cfg.CameraURL
	}
	if cameraURL == "" {
		return nil, fmt.Errorf("no camera configured")
	}

	open := func(ctx context.Context) (FrameSource, error) {
		return m.cfg.OpenSource(ctx, cameraURL)
	}

	session := NewSession(uuid.NewString(), Config{
		Mode:        mode,
		Interval:    m.cfg.Interval,
		ResumeAfter: m.cfg.ResumeAfter,
		Issuers:     m.cfg.Issuers,
	}, open, m.cfg.Recognizer, m.cfg.Corpus, m.cfg.Sink)

	if err := session.Start(m.base); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session, nil
}

// Get returns a session by id
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// Continue resumes a waiting session
func (m *Manager) Continue(id string) error {
	session, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("scan session %s not found", id)
	}
	return session.Continue()
}

// Stop tears a session down and forgets it
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("scan session %s not found", id)
	}
	session.Stop()
	return nil
}

// StopAll tears down every active session, used on shutdown
func (m *Manager) StopAll() {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		session.Stop()
	}
}
