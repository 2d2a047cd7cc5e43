// session/session.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/winzone/casino-server/network"
)

// Session is one WebSocket connection bound to a single game namespace.
// UserID is zero until the client authenticates. Send is called both
// from the connection's read loop and from broadcast goroutines, so the
// mutable fields are guarded by the session mutex.
type Session struct {
	ID        string
	Conn      network.Connection
	UserID    int64
	Game      string
	CreatedAt time.Time

	lastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id, game string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		Game:       game,
		CreatedAt:  now,
		lastActive: now,
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

// Touch marks the session active now.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// SendEvent marshals v and sends it under msgID.
func (s *Session) SendEvent(msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Send(msgID, data)
}

// SendError surfaces a rejection reason to the client.
func (s *Session) SendError(reason string) error {
	return s.SendEvent(network.MsgTypeError, map[string]string{"reason": reason})
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) SetUserID(userID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.UserID = userID
}

func (s *Session) GetUserID() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID
}

func (s *Session) Authenticated() bool {
	return s.GetUserID() != 0
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager is the registry of all live sessions.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) GetByUserID(userID int64) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.GetUserID() == userID {
			result = append(result, session)
		}
	}
	return result
}

// GetByGame returns all sessions attached to one game namespace.
func (m *Manager) GetByGame(game string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.Game == game {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
