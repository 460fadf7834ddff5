package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Mode is the agent mode a session is in
type Mode string

const (
	ModeLog  Mode = "log"
	ModeChat Mode = "chat"
)

// ParseMode converts a raw mode string, rejecting anything but log and chat
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeLog:
		return ModeLog, nil
	case ModeChat:
		return ModeChat, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be 'log' or 'chat'", raw)
	}
}

const (
	// MaxSessionMessages bounds the history kept per session
	MaxSessionMessages = 20

	// SessionTTL is how long a session stays alive after its last activity
	SessionTTL = 24 * time.Hour

	// DefaultUserID is used when a turn does not name its user
	DefaultUserID = "default_user"
)

// NewSessionID issues a server-side session identifier
func NewSessionID() string {
	return "session_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// SessionMessage represents a message within a session
type SessionMessage struct {
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Role      MessageRole `json:"role" bson:"role"`
	Content   string      `json:"content" bson:"content"`
}

// Session holds the agent state of one conversation
type Session struct {
	ID            string           `json:"session_id" bson:"session_id"`
	UserID        string           `json:"user_id" bson:"user_id"`
	Mode          Mode             `json:"mode" bson:"mode"`
	CreatedAt     time.Time        `json:"created_at" bson:"created_at"`
	LastActiveAt  time.Time        `json:"last_active_at" bson:"last_active_at"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty" bson:"last_message_at,omitempty"`
	ExpiresAt     time.Time        `json:"expires_at" bson:"expires_at"`
	Status        SessionStatus    `json:"status" bson:"status"`
	Messages      []SessionMessage `json:"messages" bson:"messages"`
}

// NewSession creates a new chat-mode session
func NewSession(userID, sessionID string) *Session {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	now := time.Now()
	return &Session{
		ID:           sessionID,
		UserID:       userID,
		Mode:         ModeChat,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(SessionTTL),
		Status:       SessionStatusActive,
		Messages:     make([]SessionMessage, 0),
	}
}

// AddMessage appends a message, dropping the oldest ones beyond MaxSessionMessages
func (s *Session) AddMessage(role MessageRole, content string) {
	now := time.Now()
	s.Messages = append(s.Messages, SessionMessage{
		Timestamp: now,
		Role:      role,
		Content:   content,
	})
	if overflow := len(s.Messages) - MaxSessionMessages; overflow > 0 {
		s.Messages = append([]SessionMessage(nil), s.Messages[overflow:]...)
	}
	s.LastMessageAt = &now
	s.UpdateLastActive()
}

// RecentMessages returns at most n of the latest messages
func (s *Session) RecentMessages(n int) []SessionMessage {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// SetMode switches the agent mode
func (s *Session) SetMode(mode Mode) {
	s.Mode = mode
	s.UpdateLastActive()
}

// UpdateLastActive updates the last active timestamp and extends expiration
func (s *Session) UpdateLastActive() {
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(SessionTTL)
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// Terminate marks the session as terminated
func (s *Session) Terminate() {
	s.Status = SessionStatusTerminated
	s.UpdateLastActive()
}

// Expire marks the session as expired
func (s *Session) Expire() {
	s.Status = SessionStatusExpired
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session_id is required")
	}

	if s.UserID == "" {
		return errors.New("user_id is required")
	}

	if s.Mode != ModeLog && s.Mode != ModeChat {
		return errors.New("invalid session mode")
	}

	if s.Status != SessionStatusActive && s.Status != SessionStatusExpired && s.Status != SessionStatusTerminated {
		return errors.New("invalid session status")
	}

	return nil
}
