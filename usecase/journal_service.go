package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

// EntryInput is a journal entry written directly rather than dictated to the agent
type EntryInput struct {
	UserID          string
	SessionID       string
	Transcript      string
	LanguageCode    string
	Mood            string
	Tags            []string
	DurationSeconds float64
}

// EntryChanges lists the fields of an entry to replace. Nil fields are kept.
type EntryChanges struct {
	Transcript *string
	Mood       *string
	Tags       *[]string
}

// JournalService manages journal entries outside of a conversation
type JournalService struct {
	journals        repositories.JournalRepository
	memory          repositories.MemoryService
	defaultLanguage string
	logger          *zap.Logger

	now func() time.Time
}

// NewJournalService creates a new journal service
func NewJournalService(
	journals repositories.JournalRepository,
	memory repositories.MemoryService,
	defaultLanguage string,
	logger *zap.Logger,
) *JournalService {
	return &JournalService{
		journals:        journals,
		memory:          memory,
		defaultLanguage: defaultLanguage,
		logger:          logger,
		now:             time.Now,
	}
}

// CreateEntry stores the entry and remembers it as a long-term memory.
// A failed memory write does not fail the entry.
func (s *JournalService) CreateEntry(ctx context.Context, input EntryInput) (*entities.JournalEntry, error) {
	entry := &entities.JournalEntry{
		ID:              uuid.New().String(),
		UserID:          input.UserID,
		SessionID:       input.SessionID,
		Content:         strings.TrimSpace(input.Transcript),
		LanguageCode:    input.LanguageCode,
		Source:          entities.EntrySourceManual,
		Mood:            input.Mood,
		Tags:            input.Tags,
		DurationSeconds: input.DurationSeconds,
		CreatedAt:       s.now().UTC(),
	}
	if entry.UserID == "" {
		entry.UserID = entities.DefaultUserID
	}
	if entry.SessionID == "" {
		entry.SessionID = entities.NewSessionID()
	}
	if entry.LanguageCode == "" {
		entry.LanguageCode = s.defaultLanguage
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}

	if err := s.journals.Create(ctx, entry); err != nil {
		return nil, err
	}

	err := s.memory.CreateLongTermMemory(ctx, repositories.LongTermMemory{
		ID:         entry.ID,
		Text:       entry.Content,
		UserID:     entry.UserID,
		SessionID:  entry.SessionID,
		MemoryType: repositories.MemoryTypeEpisodic,
		Topics:     append([]string{"journal", "manual_entry"}, entry.Tags...),
	})
	if err != nil {
		s.logger.Warn("Failed to store long-term memory", zap.String("entryID", entry.ID), zap.Error(err))
	}

	s.logger.Info("Journal entry created",
		zap.String("entryID", entry.ID),
		zap.String("userID", entry.UserID))
	return entry, nil
}

// GetEntry returns repositories.ErrNotFound for an unknown ID
func (s *JournalService) GetEntry(ctx context.Context, id string) (*entities.JournalEntry, error) {
	return s.journals.Get(ctx, id)
}

// UpdateEntry applies changes and stamps the update time
func (s *JournalService) UpdateEntry(ctx context.Context, id string, changes EntryChanges) (*entities.JournalEntry, error) {
	entry, err := s.journals.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if changes.Transcript != nil {
		entry.Content = strings.TrimSpace(*changes.Transcript)
	}
	if changes.Mood != nil {
		entry.Mood = *changes.Mood
	}
	if changes.Tags != nil {
		entry.Tags = *changes.Tags
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	updatedAt := s.now().UTC()
	entry.UpdatedAt = &updatedAt

	if err := s.journals.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteEntry returns repositories.ErrNotFound for an unknown ID
func (s *JournalService) DeleteEntry(ctx context.Context, id string) error {
	if err := s.journals.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Journal entry deleted", zap.String("entryID", id))
	return nil
}

// Analytics summarizes every entry of the user
func (s *JournalService) Analytics(ctx context.Context, userID string) (*Analytics, error) {
	entries, err := s.journals.ListByUserID(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return ComputeAnalytics(entries, s.now()), nil
}
