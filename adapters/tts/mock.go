package tts

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

// MockTextToSpeech produces deterministic fake audio, one chunk per word
type MockTextToSpeech struct {
	logger   *zap.Logger
	startErr error
	maxChunk int
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{logger: logger, maxChunk: -1}
}

// FailToStart makes every synthesis fail before producing audio
func (m *MockTextToSpeech) FailToStart(err error) {
	m.startErr = err
}

// StopAfter closes the stream after n chunks, simulating a synthesis that dies midway
func (m *MockTextToSpeech) StopAfter(n int) {
	m.maxChunk = n
}

// ConvertTextToSpeech implements repositories.TextToSpeech
func (m *MockTextToSpeech) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	chunks := MockAudioChunks(text)
	if m.maxChunk >= 0 && len(chunks) > m.maxChunk {
		chunks = chunks[:m.maxChunk]
	}

	m.logger.Debug("Mock synthesis", zap.Int("chunks", len(chunks)))

	audioChan := make(chan []byte)
	go func() {
		defer close(audioChan)
		for _, chunk := range chunks {
			select {
			case audioChan <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioChan, nil
}

// MockAudioChunks returns the chunks the mock produces for text
func MockAudioChunks(text string) [][]byte {
	words := strings.Fields(text)
	chunks := make([][]byte, 0, len(words))
	for _, word := range words {
		sum := sha256.Sum256([]byte(word))
		chunks = append(chunks, sum[:])
	}
	return chunks
}
