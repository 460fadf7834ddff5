package frame

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRecord is returned by Classify for any line that is not a valid record
var ErrMalformedRecord = errors.New("malformed record")

var doneLine = []byte(`{"type":"done"}`)

type metadataWire struct {
	Type string `json:"type"`
	Metadata
}

// EncodeMetadata renders m as a single JSON line without the trailing newline
func EncodeMetadata(m Metadata) ([]byte, error) {
	if !ValidMode(m.Mode) {
		return nil, fmt.Errorf("invalid mode %q", m.Mode)
	}
	if m.EntryCount < 0 {
		return nil, fmt.Errorf("entry count must not be negative, got %d", m.EntryCount)
	}

	// json.Marshal escapes control characters, so the line never contains '\n'
	line, err := json.Marshal(metadataWire{Type: string(RecordTypeMetadata), Metadata: m})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return line, nil
}

// EncodeAudioChunk renders chunk as an audio line without the trailing newline
func EncodeAudioChunk(chunk []byte) []byte {
	line := make([]byte, len(AudioPrefix)+base64.StdEncoding.EncodedLen(len(chunk)))
	copy(line, AudioPrefix)
	base64.StdEncoding.Encode(line[len(AudioPrefix):], chunk)
	return line
}

// EncodeDone renders the terminal line without the trailing newline
func EncodeDone() []byte {
	line := make([]byte, len(doneLine))
	copy(line, doneLine)
	return line
}

// Classify decodes one line (without its newline) into a Record.
// Every failure wraps ErrMalformedRecord.
func Classify(line []byte) (Record, error) {
	line = bytes.TrimSuffix(line, []byte("\r"))

	if bytes.HasPrefix(line, []byte(AudioPrefix)) {
		encoded := line[len(AudioPrefix):]
		payload := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
		n, err := base64.StdEncoding.Decode(payload, encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid audio payload: %v", ErrMalformedRecord, err)
		}
		return Audio{Payload: payload[:n]}, nil
	}

	var envelope struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, fmt.Errorf("%w: not a JSON record: %v", ErrMalformedRecord, err)
	}
	if envelope.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedRecord)
	}

	switch RecordType(*envelope.Type) {
	case RecordTypeMetadata:
		return decodeMetadata(line)
	case RecordTypeDone:
		return Done{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown record type %q", ErrMalformedRecord, *envelope.Type)
	}
}

// decodeMetadata requires every field a consumer relies on to be present
func decodeMetadata(line []byte) (Record, error) {
	var raw struct {
		Response        *string `json:"response"`
		SessionID       *string `json:"session_id"`
		Mode            *string `json:"mode"`
		EntryCount      *int    `json:"entry_count"`
		Intent          string  `json:"intent"`
		TranscribedText string  `json:"transcribed_text"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid metadata: %v", ErrMalformedRecord, err)
	}

	switch {
	case raw.Response == nil:
		return nil, fmt.Errorf("%w: metadata missing response", ErrMalformedRecord)
	case raw.SessionID == nil:
		return nil, fmt.Errorf("%w: metadata missing session_id", ErrMalformedRecord)
	case raw.Mode == nil || !ValidMode(*raw.Mode):
		return nil, fmt.Errorf("%w: metadata has invalid mode", ErrMalformedRecord)
	case raw.EntryCount == nil || *raw.EntryCount < 0:
		return nil, fmt.Errorf("%w: metadata has invalid entry_count", ErrMalformedRecord)
	}

	return Metadata{
		Response:        *raw.Response,
		SessionID:       *raw.SessionID,
		Mode:            *raw.Mode,
		EntryCount:      *raw.EntryCount,
		Intent:          raw.Intent,
		TranscribedText: raw.TranscribedText,
	}, nil
}
