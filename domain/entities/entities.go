package entities

import (
	"errors"
	"strings"
	"time"
)

// JournalEntry is a note the user logged, by talking to the agent or directly
type JournalEntry struct {
	ID              string     `json:"id" bson:"_id"`
	UserID          string     `json:"user_id" bson:"user_id"`
	SessionID       string     `json:"session_id" bson:"session_id"`
	Content         string     `json:"content" bson:"content"`
	LanguageCode    string     `json:"language_code,omitempty" bson:"language_code,omitempty"`
	Source          string     `json:"source" bson:"source"`
	Mood            string     `json:"mood,omitempty" bson:"mood,omitempty"`
	Tags            []string   `json:"tags,omitempty" bson:"tags,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty" bson:"duration_seconds,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// Journal entry sources
const (
	EntrySourceText   = "text"
	EntrySourceVoice  = "voice"
	EntrySourceManual = "manual"
)

// MinEntryLength is the shortest content accepted as a journal entry
const MinEntryLength = 5

// Validate validates the journal entry
func (e *JournalEntry) Validate() error {
	if e.UserID == "" {
		return errors.New("user_id is required")
	}
	if len(strings.TrimSpace(e.Content)) < MinEntryLength {
		return errors.New("content is too short")
	}
	return nil
}

// ConversationTurn is one user utterance submitted for a reply.
// Audio holds the raw recording when the turn was spoken.
type ConversationTurn struct {
	Text         string
	Audio        []byte
	UserID       string
	SessionID    string
	LanguageCode string
}

// HasAudio reports whether the turn must be transcribed before it can be answered
func (t *ConversationTurn) HasAudio() bool {
	return strings.TrimSpace(t.Text) == "" && len(t.Audio) > 0
}

// Validate validates the turn
func (t *ConversationTurn) Validate() error {
	if strings.TrimSpace(t.Text) == "" && len(t.Audio) == 0 {
		return errors.New("either text or audio is required")
	}
	if t.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}
