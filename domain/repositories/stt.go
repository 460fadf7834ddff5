package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeAudio converts a complete recording to text
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (Transcript, error)
}

// AudioConfig represents audio configuration for speech recognition.
// An empty Encoding is detected from the recording.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// Transcript is the result of a transcription
type Transcript struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
}
