package repositories

import (
	"context"
	"time"
)

// MemoryService is the agent memory server holding working memory per
// session and long-term searchable memories per user
type MemoryService interface {
	HealthCheck(ctx context.Context) bool
	CreateLongTermMemory(ctx context.Context, memory LongTermMemory) error
	SearchLongTermMemory(ctx context.Context, query MemoryQuery) ([]MemoryRecord, error)
	GetWorkingMemory(ctx context.Context, sessionID, userID string) ([]ChatMessage, error)
	AppendWorkingMemory(ctx context.Context, sessionID, userID string, messages []ChatMessage) error
	DeleteWorkingMemory(ctx context.Context, sessionID string) error
}

// Memory types understood by the memory server
const (
	MemoryTypeEpisodic = "episodic"
	MemoryTypeSemantic = "semantic"
)

// LongTermMemory is a memory to persist for later search
type LongTermMemory struct {
	ID         string
	Text       string
	UserID     string
	SessionID  string
	MemoryType string
	Topics     []string
}

// MemoryQuery is a semantic search over a user's long-term memories
type MemoryQuery struct {
	Text              string
	UserID            string
	Limit             int
	DistanceThreshold float64
}

// MemoryRecord is a search hit
type MemoryRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Distance  float64   `json:"dist"`
	Topics    []string  `json:"topics,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
