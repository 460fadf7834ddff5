package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// GenerateReply returns the model's reply to request. Failures are returned,
	// never replaced with canned text.
	GenerateReply(ctx context.Context, request ReplyRequest) (ChatMessage, error)
}

// ReplyRequest is a single prompt for the model
type ReplyRequest struct {
	System    string
	History   []ChatMessage
	Prompt    string
	MaxTokens int
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender
type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)
