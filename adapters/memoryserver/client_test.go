package memoryserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

// fakeMemoryServer records long-term memories and working memory like the real server's REST API
type fakeMemoryServer struct {
	mu       sync.Mutex
	created  []createMemoryRequest
	searches []searchRequest
	working  map[string]workingMemory
}

func newFakeMemoryServer(t *testing.T) (*fakeMemoryServer, *httptest.Server) {
	fake := &fakeMemoryServer{working: make(map[string]workingMemory)}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"now":1}`))
	})
	mux.HandleFunc("/v1/long-term-memory/", func(w http.ResponseWriter, r *http.Request) {
		var req createMemoryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fake.mu.Lock()
		fake.created = append(fake.created, req)
		fake.mu.Unlock()
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/long-term-memory/search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fake.mu.Lock()
		fake.searches = append(fake.searches, req)
		fake.mu.Unlock()
		w.Write([]byte(`{"memories":[{"id":"m1","text":"Went hiking with Sam","dist":0.21,"topics":["journal"],"created_at":"2026-01-02T10:00:00Z"}],"total":1}`))
	})
	mux.HandleFunc("/v1/working-memory/", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Path[len("/v1/working-memory/"):]
		assert.Equal(t, "voice-journal", r.URL.Query().Get("namespace"))

		fake.mu.Lock()
		defer fake.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			memory, ok := fake.working[sessionID]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(memory)
		case http.MethodPut:
			var memory workingMemory
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&memory))
			fake.working[sessionID] = memory
			json.NewEncoder(w).Encode(memory)
		case http.MethodDelete:
			delete(fake.working, sessionID)
			w.Write([]byte(`{"status":"ok"}`))
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return fake, server
}

func TestClient_HealthCheck(t *testing.T) {
	_, server := newFakeMemoryServer(t)
	client := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t))
	assert.True(t, client.HealthCheck(context.Background()))

	down := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	assert.False(t, down.HealthCheck(context.Background()))
}

func TestClient_LongTermMemory(t *testing.T) {
	fake, server := newFakeMemoryServer(t)
	client := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t))
	ctx := context.Background()

	err := client.CreateLongTermMemory(ctx, repositories.LongTermMemory{
		Text:   "Went hiking with Sam",
		UserID: "alice",
		Topics: []string{"journal", "voice_entry"},
	})
	require.NoError(t, err)

	require.Len(t, fake.created, 1)
	assert.True(t, fake.created[0].Deduplicate)
	record := fake.created[0].Memories[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, repositories.MemoryTypeEpisodic, record.MemoryType)
	assert.Equal(t, "voice-journal", record.Namespace)

	memories, err := client.SearchLongTermMemory(ctx, repositories.MemoryQuery{
		Text:              "hiking",
		UserID:            "alice",
		Limit:             5,
		DistanceThreshold: 0.8,
	})
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "Went hiking with Sam", memories[0].Text)
	assert.InDelta(t, 0.21, memories[0].Distance, 1e-9)

	require.Len(t, fake.searches, 1)
	assert.Equal(t, "alice", fake.searches[0].UserID.Eq)
	assert.Equal(t, 5, fake.searches[0].Limit)
}

func TestClient_WorkingMemory(t *testing.T) {
	_, server := newFakeMemoryServer(t)
	client := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t))
	ctx := context.Background()

	messages, err := client.GetWorkingMemory(ctx, "session_1", "alice")
	require.NoError(t, err)
	assert.Empty(t, messages)

	require.NoError(t, client.AppendWorkingMemory(ctx, "session_1", "alice", []repositories.ChatMessage{
		{Role: repositories.UserRole, Content: "How was my week?"},
		{Role: repositories.AssistantRole, Content: "Busy but good."},
	}))
	require.NoError(t, client.AppendWorkingMemory(ctx, "session_1", "alice", []repositories.ChatMessage{
		{Role: repositories.UserRole, Content: "Thanks"},
	}))

	messages, err = client.GetWorkingMemory(ctx, "session_1", "alice")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, repositories.AssistantRole, messages[1].Role)
	assert.Equal(t, "Thanks", messages[2].Content)

	require.NoError(t, client.DeleteWorkingMemory(ctx, "session_1"))
	messages, err = client.GetWorkingMemory(ctx, "session_1", "alice")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestInMemoryService(t *testing.T) {
	service := NewInMemoryService()
	ctx := context.Background()

	require.NoError(t, service.CreateLongTermMemory(ctx, repositories.LongTermMemory{Text: "Went hiking with Sam", UserID: "alice"}))
	require.NoError(t, service.CreateLongTermMemory(ctx, repositories.LongTermMemory{Text: "Went hiking with Sam", UserID: "alice"}))
	require.NoError(t, service.CreateLongTermMemory(ctx, repositories.LongTermMemory{Text: "Baked bread", UserID: "alice"}))

	hits, err := service.SearchLongTermMemory(ctx, repositories.MemoryQuery{Text: "when did I go hiking", UserID: "alice", Limit: 5, DistanceThreshold: 0.9})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Went hiking with Sam", hits[0].Text)

	hits, err = service.SearchLongTermMemory(ctx, repositories.MemoryQuery{Text: "hiking", UserID: "bob"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, service.AppendWorkingMemory(ctx, "s", "alice", []repositories.ChatMessage{{Role: repositories.UserRole, Content: "hi"}}))
	messages, err := service.GetWorkingMemory(ctx, "s", "alice")
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	require.NoError(t, service.DeleteWorkingMemory(ctx, "s"))
	messages, _ = service.GetWorkingMemory(ctx, "s", "alice")
	assert.Empty(t, messages)
}
