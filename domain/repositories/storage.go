package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/voicejournal/domain/entities"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// JournalRepository defines data access methods for journal entries
type JournalRepository interface {
	Create(ctx context.Context, entry *entities.JournalEntry) error
	CountByUserID(ctx context.Context, userID string) (int, error)
	// ListByUserID returns the newest entries first. A limit of 0 returns them all.
	ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.JournalEntry, error)
	// Get, Update and Delete return ErrNotFound when no entry has the ID
	Get(ctx context.Context, id string) (*entities.JournalEntry, error)
	Update(ctx context.Context, entry *entities.JournalEntry) error
	Delete(ctx context.Context, id string) error
}

// SessionRepository defines data access methods for agent sessions
type SessionRepository interface {
	// Get returns ErrNotFound when the session does not exist
	Get(ctx context.Context, userID, sessionID string) (*entities.Session, error)
	// Save creates or replaces the session
	Save(ctx context.Context, session *entities.Session) error
	Delete(ctx context.Context, userID, sessionID string) error
	// ExpireSessions removes sessions whose expiry has passed and reports how many
	ExpireSessions(ctx context.Context) (int, error)
}
