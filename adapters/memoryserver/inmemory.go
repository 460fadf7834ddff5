package memoryserver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

// InMemoryService is a process-local MemoryService for development without a
// memory server. Search ranks memories by shared words instead of embeddings.
type InMemoryService struct {
	mu       sync.RWMutex
	memories map[string][]repositories.MemoryRecord // user_id -> memories
	working  map[string][]repositories.ChatMessage  // session_id -> messages
}

var _ repositories.MemoryService = (*InMemoryService)(nil)

// NewInMemoryService creates an empty in-memory memory service
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		memories: make(map[string][]repositories.MemoryRecord),
		working:  make(map[string][]repositories.ChatMessage),
	}
}

// HealthCheck always succeeds
func (s *InMemoryService) HealthCheck(ctx context.Context) bool {
	return true
}

// CreateLongTermMemory implements repositories.MemoryService
func (s *InMemoryService) CreateLongTermMemory(ctx context.Context, memory repositories.LongTermMemory) error {
	id := memory.ID
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.memories[memory.UserID] {
		if existing.Text == memory.Text {
			return nil
		}
	}
	s.memories[memory.UserID] = append(s.memories[memory.UserID], repositories.MemoryRecord{
		ID:        id,
		Text:      memory.Text,
		Topics:    memory.Topics,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// SearchLongTermMemory implements repositories.MemoryService
func (s *InMemoryService) SearchLongTermMemory(ctx context.Context, query repositories.MemoryQuery) ([]repositories.MemoryRecord, error) {
	queryWords := words(query.Text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []repositories.MemoryRecord
	for _, memory := range s.memories[query.UserID] {
		memory.Distance = distance(queryWords, words(memory.Text))
		if query.DistanceThreshold > 0 && memory.Distance > query.DistanceThreshold {
			continue
		}
		hits = append(hits, memory)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if query.Limit > 0 && len(hits) > query.Limit {
		hits = hits[:query.Limit]
	}
	return hits, nil
}

// GetWorkingMemory implements repositories.MemoryService
func (s *InMemoryService) GetWorkingMemory(ctx context.Context, sessionID, userID string) ([]repositories.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]repositories.ChatMessage{}, s.working[sessionID]...), nil
}

// AppendWorkingMemory implements repositories.MemoryService
func (s *InMemoryService) AppendWorkingMemory(ctx context.Context, sessionID, userID string, messages []repositories.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working[sessionID] = append(s.working[sessionID], messages...)
	return nil
}

// DeleteWorkingMemory implements repositories.MemoryService
func (s *InMemoryService) DeleteWorkingMemory(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.working, sessionID)
	return nil
}

func words(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		set[word] = struct{}{}
	}
	return set
}

// distance is one minus the share of query words found in the memory
func distance(query, memory map[string]struct{}) float64 {
	if len(query) == 0 {
		return 1
	}
	shared := 0
	for word := range query {
		if _, ok := memory[word]; ok {
			shared++
		}
	}
	return 1 - float64(shared)/float64(len(query))
}
