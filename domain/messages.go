package domain

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/satriahrh/voicejournal/domain/entities"
)

// TurnRequest is the payload a client sends to open a turn
type TurnRequest struct {
	Text         string `json:"text,omitempty"`
	AudioBase64  string `json:"audio_base64,omitempty"`
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	LanguageCode string `json:"language_code,omitempty"`
}

// ToTurn decodes the request into a validated turn
func (r TurnRequest) ToTurn() (*entities.ConversationTurn, error) {
	turn := &entities.ConversationTurn{
		Text:         strings.TrimSpace(r.Text),
		UserID:       r.UserID,
		SessionID:    r.SessionID,
		LanguageCode: r.LanguageCode,
	}
	if turn.UserID == "" {
		turn.UserID = entities.DefaultUserID
	}

	if r.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(r.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid audio_base64: %w", err)
		}
		turn.Audio = audio
	}

	if err := turn.Validate(); err != nil {
		return nil, err
	}
	return turn, nil
}

// TurnResponse is the non-streaming reply to a turn
type TurnResponse struct {
	Response        string `json:"response"`
	SessionID       string `json:"session_id"`
	Mode            string `json:"mode"`
	EntryCount      int    `json:"entry_count"`
	Intent          string `json:"intent,omitempty"`
	TranscribedText string `json:"transcribed_text,omitempty"`
	AudioBase64     string `json:"audio_base64,omitempty"`
}

// TurnError is sent over a websocket when a turn fails before any record was produced
type TurnError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TurnErrorType is the type field of a TurnError
const TurnErrorType = "turn_error"
