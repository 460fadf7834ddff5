package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

// MemoryJournalRepository is an in-memory implementation of JournalRepository
type MemoryJournalRepository struct {
	mu     sync.RWMutex
	byUser map[string][]*entities.JournalEntry // user_id -> entries in insertion order
	byID   map[string]*entities.JournalEntry
}

var _ repositories.JournalRepository = (*MemoryJournalRepository)(nil)

// NewMemoryJournalRepository creates a new in-memory journal repository
func NewMemoryJournalRepository() *MemoryJournalRepository {
	return &MemoryJournalRepository{
		byUser: make(map[string][]*entities.JournalEntry),
		byID:   make(map[string]*entities.JournalEntry),
	}
}

// Create implements JournalRepository interface
func (m *MemoryJournalRepository) Create(ctx context.Context, entry *entities.JournalEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[entry.ID]; exists {
		return errors.New("entry already exists")
	}
	stored := copyEntry(entry)
	m.byUser[entry.UserID] = append(m.byUser[entry.UserID], stored)
	m.byID[entry.ID] = stored
	return nil
}

// Get implements JournalRepository interface
func (m *MemoryJournalRepository) Get(ctx context.Context, id string) (*entities.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyEntry(stored), nil
}

// Update implements JournalRepository interface. Owner and creation time never change.
func (m *MemoryJournalRepository) Update(ctx context.Context, entry *entities.JournalEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[entry.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	userID, createdAt := stored.UserID, stored.CreatedAt
	*stored = *copyEntry(entry)
	stored.UserID, stored.CreatedAt = userID, createdAt
	return nil
}

// Delete implements JournalRepository interface
func (m *MemoryJournalRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	delete(m.byID, id)

	entries := m.byUser[stored.UserID]
	for i, entry := range entries {
		if entry == stored {
			m.byUser[stored.UserID] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

// CountByUserID implements JournalRepository interface
func (m *MemoryJournalRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("user ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byUser[userID]), nil
}

// ListByUserID implements JournalRepository interface
func (m *MemoryJournalRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.JournalEntry, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.byUser[userID]
	result := make([]*entities.JournalEntry, len(entries))
	for i, entry := range entries {
		result[len(entries)-1-i] = copyEntry(entry)
	}

	// Newest first, latest insertion wins ties
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyEntry(entry *entities.JournalEntry) *entities.JournalEntry {
	entryCopy := *entry
	if entry.Tags != nil {
		entryCopy.Tags = append([]string(nil), entry.Tags...)
	}
	if entry.UpdatedAt != nil {
		updatedAt := *entry.UpdatedAt
		entryCopy.UpdatedAt = &updatedAt
	}
	return &entryCopy
}
