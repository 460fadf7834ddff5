package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
)

const (
	// Agent replies that do not involve the model
	ReplyEntrySaved    = "Got it! I've saved your note. Anything else?"
	ReplyEntryTooShort = "I didn't catch what you wanted to log. What would you like to note down?"
	ReplyEntryFailed   = "Sorry, I had trouble saving that. Could you try again?"

	chatSystemPrompt = `You are a voice journal assistant. Be brief and natural.
- Max 2-3 sentences
- Use journal entries as context
- Maintain conversation flow`

	chatMaxTokens         = 120
	contextTurns          = 3
	memorySearchLimit     = 5
	memoryDistance        = 0.8
	memorySnippetLength   = 150
	backgroundSaveTimeout = 10 * time.Second
)

// AgentInput is one utterance addressed to the agent
type AgentInput struct {
	UserID       string
	SessionID    string
	Text         string
	LanguageCode string
	Source       string
}

// AgentReply is the agent's answer to one utterance
type AgentReply struct {
	Text       string
	SessionID  string
	Mode       entities.Mode
	Intent     Intent
	EntryCount int
}

// AgentService decides how to answer an utterance: store it as a journal
// entry or answer it from the user's journal and conversation so far
type AgentService struct {
	llm      repositories.LargeLanguageModel
	memory   repositories.MemoryService
	journals repositories.JournalRepository
	sessions repositories.SessionRepository
	router   *IntentRouter
	logger   *zap.Logger

	sessionLocks keyedMutex
	background   sync.WaitGroup
}

// NewAgentService creates a new agent service
func NewAgentService(
	llm repositories.LargeLanguageModel,
	memory repositories.MemoryService,
	journals repositories.JournalRepository,
	sessions repositories.SessionRepository,
	logger *zap.Logger,
) *AgentService {
	return &AgentService{
		llm:      llm,
		memory:   memory,
		journals: journals,
		sessions: sessions,
		router:   NewIntentRouter(),
		logger:   logger,
	}
}

// ProcessInput routes the utterance by intent and returns the reply with the
// session's resulting mode and the user's entry count
func (s *AgentService) ProcessInput(ctx context.Context, input AgentInput) (*AgentReply, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: empty utterance", ErrInvalidTurn)
	}
	if input.UserID == "" {
		input.UserID = entities.DefaultUserID
	}
	if input.SessionID == "" {
		input.SessionID = entities.NewSessionID()
	}

	intent := s.router.Detect(input.Text)
	s.logger.Info("Processing input",
		zap.String("userID", input.UserID),
		zap.String("sessionID", input.SessionID),
		zap.String("intent", string(intent)))

	reply := &AgentReply{
		SessionID: input.SessionID,
		Intent:    intent,
	}

	switch intent {
	case IntentLog:
		reply.Mode = entities.ModeLog
		reply.Text = s.handleLog(ctx, input)
	default:
		reply.Mode = entities.ModeChat
		text, err := s.handleChat(ctx, input, intent == IntentCalendar)
		if err != nil {
			return nil, err
		}
		reply.Text = text
	}

	s.recordExchange(ctx, input, reply)

	count, err := s.journals.CountByUserID(ctx, input.UserID)
	if err != nil {
		s.logger.Warn("Failed to count journal entries", zap.String("userID", input.UserID), zap.Error(err))
	}
	reply.EntryCount = count

	return reply, nil
}

func (s *AgentService) handleLog(ctx context.Context, input AgentInput) string {
	content := ExtractEntry(input.Text)
	if len(content) < entities.MinEntryLength {
		return ReplyEntryTooShort
	}

	source := input.Source
	if source == "" {
		source = entities.EntrySourceText
	}
	entry := &entities.JournalEntry{
		ID:           uuid.New().String(),
		UserID:       input.UserID,
		SessionID:    input.SessionID,
		Content:      content,
		LanguageCode: input.LanguageCode,
		Source:       source,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.journals.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to store journal entry", zap.String("userID", input.UserID), zap.Error(err))
		return ReplyEntryFailed
	}

	s.inBackground(ctx, func(ctx context.Context) {
		err := s.memory.CreateLongTermMemory(ctx, repositories.LongTermMemory{
			ID:         entry.ID,
			Text:       content,
			UserID:     input.UserID,
			SessionID:  input.SessionID,
			MemoryType: repositories.MemoryTypeEpisodic,
			Topics:     []string{"journal", source + "_entry"},
		})
		if err != nil {
			s.logger.Warn("Failed to store long-term memory", zap.String("entryID", entry.ID), zap.Error(err))
		}
	})

	return ReplyEntrySaved
}

func (s *AgentService) handleChat(ctx context.Context, input AgentInput, calendar bool) (string, error) {
	var (
		history  []repositories.ChatMessage
		memories []repositories.MemoryRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		messages, err := s.memory.GetWorkingMemory(gctx, input.SessionID, input.UserID)
		if err != nil {
			s.logger.Warn("Failed to fetch working memory", zap.String("sessionID", input.SessionID), zap.Error(err))
			return nil
		}
		if n := contextTurns * 2; len(messages) > n {
			messages = messages[len(messages)-n:]
		}
		history = messages
		return nil
	})
	g.Go(func() error {
		if calendar {
			return nil
		}
		records, err := s.memory.SearchLongTermMemory(gctx, repositories.MemoryQuery{
			Text:              input.Text,
			UserID:            input.UserID,
			Limit:             memorySearchLimit,
			DistanceThreshold: memoryDistance,
		})
		if err != nil {
			s.logger.Warn("Failed to search long-term memory", zap.String("userID", input.UserID), zap.Error(err))
			return nil
		}
		memories = records
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	s.logger.Debug("Fetched chat context",
		zap.Int("historyMessages", len(history)),
		zap.Int("memories", len(memories)))

	message, err := s.llm.GenerateReply(ctx, repositories.ReplyRequest{
		System:    chatSystemPrompt,
		Prompt:    BuildChatPrompt(input.Text, history, memories),
		MaxTokens: chatMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReplyGeneration, err)
	}
	reply := strings.TrimSpace(message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrReplyGeneration)
	}

	s.inBackground(ctx, func(ctx context.Context) {
		err := s.memory.AppendWorkingMemory(ctx, input.SessionID, input.UserID, []repositories.ChatMessage{
			{Role: repositories.UserRole, Content: input.Text},
			{Role: repositories.AssistantRole, Content: reply},
		})
		if err != nil {
			s.logger.Warn("Failed to save conversation turn", zap.String("sessionID", input.SessionID), zap.Error(err))
		}
	})

	return reply, nil
}

// BuildChatPrompt assembles the compact prompt of recent conversation,
// matching journal memories and the user's query
func BuildChatPrompt(query string, history []repositories.ChatMessage, memories []repositories.MemoryRecord) string {
	var parts []string

	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, message := range history {
			speaker := "User"
			if message.Role == repositories.AssistantRole {
				speaker = "Assistant"
			}
			lines = append(lines, speaker+": "+message.Content)
		}
		parts = append(parts, "Chat history:\n"+strings.Join(lines, "\n"))
	}

	if len(memories) > 0 {
		lines := make([]string, 0, len(memories))
		for _, memory := range memories {
			date := "Recent"
			if !memory.CreatedAt.IsZero() {
				date = memory.CreatedAt.Format("Jan 02")
			}
			text := memory.Text
			if runes := []rune(text); len(runes) > memorySnippetLength {
				text = string(runes[:memorySnippetLength]) + "..."
			}
			lines = append(lines, fmt.Sprintf("• %s: %s", date, text))
		}
		parts = append(parts, "Journal:\n"+strings.Join(lines, "\n"))
	}

	parts = append(parts, "User: "+query)
	return strings.Join(parts, "\n\n")
}

// recordExchange appends the exchange to the stored session and switches its mode
func (s *AgentService) recordExchange(ctx context.Context, input AgentInput, reply *AgentReply) {
	defer s.sessionLocks.Lock(sessionKey(input.UserID, input.SessionID))()

	session, err := s.loadSession(ctx, input.UserID, input.SessionID)
	if err != nil {
		s.logger.Warn("Failed to load session", zap.String("sessionID", input.SessionID), zap.Error(err))
		return
	}

	session.AddMessage(entities.MessageRoleUser, input.Text)
	session.AddMessage(entities.MessageRoleAssistant, reply.Text)
	session.SetMode(reply.Mode)

	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("Failed to save session", zap.String("sessionID", input.SessionID), zap.Error(err))
	}
}

// loadSession returns the stored session or a fresh one when none exists
func (s *AgentService) loadSession(ctx context.Context, userID, sessionID string) (*entities.Session, error) {
	session, err := s.sessions.Get(ctx, userID, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return entities.NewSession(userID, sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	if session.Status != entities.SessionStatusActive {
		return entities.NewSession(userID, sessionID), nil
	}
	return session, nil
}

// Mode returns the session's current mode
func (s *AgentService) Mode(ctx context.Context, userID, sessionID string) (entities.Mode, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	return session.Mode, nil
}

// SetMode switches the session's mode, creating the session when needed
func (s *AgentService) SetMode(ctx context.Context, userID, sessionID string, mode entities.Mode) error {
	defer s.sessionLocks.Lock(sessionKey(userID, sessionID))()

	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	session.SetMode(mode)
	return s.sessions.Save(ctx, session)
}

// SessionHistory returns the bounded message history of a session
func (s *AgentService) SessionHistory(ctx context.Context, userID, sessionID string) ([]entities.SessionMessage, error) {
	session, err := s.sessions.Get(ctx, userID, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return []entities.SessionMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// EndSession forgets the session's working memory and stored state
func (s *AgentService) EndSession(ctx context.Context, userID, sessionID string) error {
	if err := s.memory.DeleteWorkingMemory(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to delete working memory", zap.String("sessionID", sessionID), zap.Error(err))
	}

	defer s.sessionLocks.Lock(sessionKey(userID, sessionID))()

	err := s.sessions.Delete(ctx, userID, sessionID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	return nil
}

// Entries lists the user's newest journal entries and their total count
func (s *AgentService) Entries(ctx context.Context, userID string, limit int) ([]*entities.JournalEntry, int, error) {
	entries, err := s.journals.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.journals.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// MemoryHealthy reports whether the memory server answers
func (s *AgentService) MemoryHealthy(ctx context.Context) bool {
	return s.memory.HealthCheck(ctx)
}

// StoreTranscript keeps a transcript as a long-term memory of the user
func (s *AgentService) StoreTranscript(ctx context.Context, userID, sessionID, transcript string) error {
	return s.memory.CreateLongTermMemory(ctx, repositories.LongTermMemory{
		ID:         uuid.New().String(),
		Text:       transcript,
		UserID:     userID,
		SessionID:  sessionID,
		MemoryType: repositories.MemoryTypeEpisodic,
		Topics:     []string{"journal", "voice_entry"},
	})
}

// Wait blocks until background memory writes have finished
func (s *AgentService) Wait() {
	s.background.Wait()
}

// inBackground runs fn detached from the request's cancellation
func (s *AgentService) inBackground(ctx context.Context, fn func(ctx context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundSaveTimeout)
		defer cancel()
		fn(ctx)
	}()
}
