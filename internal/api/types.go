package api

import (
	"github.com/satriahrh/voicejournal/domain/entities"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports the server and memory server status
type HealthResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	MemoryServer bool   `json:"memory_server"`
}

// ModeResponse reports the agent mode of a session
type ModeResponse struct {
	Mode      entities.Mode `json:"mode"`
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id"`
}

// SessionHistoryResponse lists a session's recent messages
type SessionHistoryResponse struct {
	SessionID string                    `json:"session_id"`
	Messages  []entities.SessionMessage `json:"messages"`
	Count     int                       `json:"count"`
}

// SessionEndedResponse confirms a session was ended
type SessionEndedResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// TranscribeRequest carries a complete recording to transcribe
type TranscribeRequest struct {
	AudioBase64   string `json:"audio_base64"`
	LanguageCode  string `json:"language_code,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	StoreInMemory *bool  `json:"store_in_memory,omitempty"`
}

// TranscribeResponse is the transcription result
type TranscribeResponse struct {
	Transcript     string `json:"transcript"`
	LanguageCode   string `json:"language_code"`
	SessionID      string `json:"session_id"`
	StoredInMemory bool   `json:"stored_in_memory"`
}

// EntriesResponse lists journal entries, newest first
type EntriesResponse struct {
	Entries []*entities.JournalEntry `json:"entries"`
	Total   int                      `json:"total"`
}

// CreateEntryRequest is a journal entry written without the agent
type CreateEntryRequest struct {
	Transcript      string   `json:"transcript"`
	LanguageCode    string   `json:"language_code,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	Mood            string   `json:"mood,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
	UserID          string   `json:"user_id,omitempty"`
}

// UpdateEntryRequest replaces the fields it names
type UpdateEntryRequest struct {
	Transcript *string   `json:"transcript,omitempty"`
	Mood       *string   `json:"mood,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
}

// EntryDeletedResponse confirms an entry was deleted
type EntryDeletedResponse struct {
	Status  string `json:"status"`
	EntryID string `json:"entry_id"`
}

// SynthesizeRequest asks for speech of a text
type SynthesizeRequest struct {
	Text string `json:"text"`
}

// SynthesizeResponse carries the complete speech
type SynthesizeResponse struct {
	AudioBase64 string `json:"audio_base64"`
}
