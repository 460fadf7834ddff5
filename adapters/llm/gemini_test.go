package llm

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

func TestValidateGeminiConfig(t *testing.T) {
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{}))
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k", Temperature: 3}))
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k", MaxOutputTokens: -1}))
	assert.NoError(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k"}))
}

func TestToGeminiContents(t *testing.T) {
	contents := toGeminiContents([]repositories.ChatMessage{
		{Role: repositories.UserRole, Content: "hello"},
		{Role: repositories.AssistantRole, Content: "hi there"},
	})

	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "hi there", contents[1].Parts[0].Text)
}

func TestReplyText(t *testing.T) {
	assert.Empty(t, replyText(nil))
	assert.Empty(t, replyText(&genai.GenerateContentResponse{}))

	response := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Hello, "}, {Text: "friend."}}},
		}},
	}
	assert.Equal(t, "Hello, friend.", replyText(response))
}

func TestMockLLM(t *testing.T) {
	mock := NewMockLLM()

	reply, err := mock.GenerateReply(context.Background(), repositories.ReplyRequest{Prompt: "context\nhow was my day"})
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "how was my day")
	assert.Equal(t, repositories.AssistantRole, reply.Role)

	mock.SetError(errors.New("quota exceeded"))
	_, err = mock.GenerateReply(context.Background(), repositories.ReplyRequest{Prompt: "hi"})
	assert.EqualError(t, err, "quota exceeded")
	assert.Len(t, mock.Requests(), 2)
}

// Requires a real API key (skipped if GEMINI_API_KEY is not set)
func TestGeminiLLM_Integration(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("Skipping Gemini integration test - GEMINI_API_KEY not set")
	}

	ctx := context.Background()
	gemini, err := NewGeminiLLM(ctx, NewGeminiConfigFromEnv(), zaptest.NewLogger(t))
	require.NoError(t, err)

	reply, err := gemini.GenerateReply(ctx, repositories.ReplyRequest{
		System: "Reply in one short sentence.",
		Prompt: "Say hello.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Content)
}
