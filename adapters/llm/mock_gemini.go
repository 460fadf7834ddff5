package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

// MockLLM is an offline LargeLanguageModel used for development and tests
type MockLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []repositories.ReplyRequest
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// NewMockLLM creates a mock that echoes the prompt back
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// SetReply fixes the reply text returned by every call
func (m *MockLLM) SetReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
}

// SetError makes every call fail with err
func (m *MockLLM) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns the requests received so far
func (m *MockLLM) Requests() []repositories.ReplyRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repositories.ReplyRequest(nil), m.requests...)
}

// GenerateReply implements repositories.LargeLanguageModel
func (m *MockLLM) GenerateReply(ctx context.Context, request repositories.ReplyRequest) (repositories.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, request)
	if m.err != nil {
		return repositories.ChatMessage{}, m.err
	}

	reply := m.reply
	if reply == "" {
		reply = fmt.Sprintf("Thanks for sharing that. You said: %q. How did it make you feel?", lastLine(request.Prompt))
	}
	return repositories.ChatMessage{Role: repositories.AssistantRole, Content: reply}, nil
}

func lastLine(prompt string) string {
	for i := len(prompt) - 1; i >= 0; i-- {
		if prompt[i] == '\n' {
			return prompt[i+1:]
		}
	}
	return prompt
}
