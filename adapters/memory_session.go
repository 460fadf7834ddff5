package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

// MemorySessionRepository is an in-memory implementation of SessionRepository
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*entities.Session
}

type sessionKey struct {
	userID    string
	sessionID string
}

var _ repositories.SessionRepository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[sessionKey]*entities.Session),
	}
}

// Get implements SessionRepository interface
func (m *MemorySessionRepository) Get(ctx context.Context, userID, sessionID string) (*entities.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionKey{userID, sessionID}]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return copySession(session), nil
}

// Save implements SessionRepository interface
func (m *MemorySessionRepository) Save(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionKey{session.UserID, session.ID}] = copySession(session)
	return nil
}

// Delete implements SessionRepository interface
func (m *MemorySessionRepository) Delete(ctx context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{userID, sessionID}
	if _, exists := m.sessions[key]; !exists {
		return repositories.ErrNotFound
	}
	delete(m.sessions, key)
	return nil
}

// ExpireSessions implements SessionRepository interface
func (m *MemorySessionRepository) ExpireSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, session := range m.sessions {
		if now.After(session.ExpiresAt) || session.Status != entities.SessionStatusActive {
			delete(m.sessions, key)
			expired++
		}
	}
	return expired, nil
}

// copySession returns a copy so callers cannot mutate stored state
func copySession(session *entities.Session) *entities.Session {
	sessionCopy := *session
	sessionCopy.Messages = append([]entities.SessionMessage(nil), session.Messages...)
	return &sessionCopy
}
