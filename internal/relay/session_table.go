package relay

import "sync"

// SessionTable pairs a session token with the connection identity of the
// printer currently registered for it. One instance is constructed at process
// start; tests build their own. The table is in-memory only: after a relay
// restart every printer has to re-register.
type SessionTable struct {
	mu       sync.RWMutex
	printers map[string]string // sessionId -> connectionId
}

// NewSessionTable creates an empty table
func NewSessionTable() *SessionTable {
	return &SessionTable{printers: make(map[string]string)}
}

// Register binds a connection as the printer for a session, silently
// replacing any earlier binding. Idempotent.
func (t *SessionTable) Register(sessionID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printers[sessionID] = connID
}

// Lookup returns the connection bound to a session
func (t *SessionTable) Lookup(sessionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	connID, ok := t.printers[sessionID]
	return connID, ok
}

// RemoveConnection drops the single session entry bound to the closed
// connection. Session ids map 1:1 to live printer connections, so at most
// one entry is removed.
func (t *SessionTable) RemoveConnection(connID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for sessionID, bound := range t.printers {
		if bound == connID {
			delete(t.printers, sessionID)
			return sessionID, true
		}
	}
	return "", false
}

// Len returns the number of registered printers
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.printers)
}
