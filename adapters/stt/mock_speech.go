package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

// MockSpeechToText is an offline SpeechToText used for development and tests
type MockSpeechToText struct {
	logger     *zap.Logger
	transcript string
	err        error
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// SetTranscript fixes the text returned for every recording
func (s *MockSpeechToText) SetTranscript(transcript string) {
	s.transcript = transcript
}

// SetError makes every transcription fail with err
func (s *MockSpeechToText) SetError(err error) {
	s.err = err
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (repositories.Transcript, error) {
	encoding := config.Encoding
	if encoding == "" {
		encoding = DetectEncoding(audioData)
	}

	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.String("encoding", encoding))

	if s.err != nil {
		return repositories.Transcript{}, s.err
	}
	if len(audioData) == 0 {
		return repositories.Transcript{}, fmt.Errorf("no audio data received")
	}

	language := config.Language
	if language == "" {
		language = defaultLanguage
	}

	if s.transcript != "" {
		return repositories.Transcript{Text: s.transcript, LanguageCode: language}, nil
	}

	// Mock different responses based on audio size
	var text string
	switch {
	case len(audioData) > 10000:
		text = "Today I went for a long walk and thought about my plans for the week."
	case len(audioData) > 1000:
		text = "Log my note: remember to call mom tomorrow"
	default:
		text = "Hello"
	}
	return repositories.Transcript{Text: text, LanguageCode: language}, nil
}
