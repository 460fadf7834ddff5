package memoryserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

const (
	defaultBaseURL   = "http://localhost:8001"
	defaultNamespace = "voice-journal"
	defaultTimeout   = 10 * time.Second
)

// Config holds configuration for the agent memory server client
type Config struct {
	BaseURL   string
	Namespace string
	Timeout   time.Duration
}

// Client talks to the agent memory server REST API
type Client struct {
	baseURL    string
	namespace  string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.MemoryService = (*Client)(nil)

// NewClient creates a memory server client
func NewClient(config Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	namespace := config.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		namespace:  namespace,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type memoryRecord struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	MemoryType string    `json:"memory_type,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Namespace  string    `json:"namespace,omitempty"`
	Topics     []string  `json:"topics,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type createMemoryRequest struct {
	Memories    []memoryRecord `json:"memories"`
	Deduplicate bool           `json:"deduplicate"`
}

type eqFilter struct {
	Eq string `json:"eq"`
}

type searchRequest struct {
	Text              string    `json:"text"`
	UserID            *eqFilter `json:"user_id,omitempty"`
	Namespace         *eqFilter `json:"namespace,omitempty"`
	Limit             int       `json:"limit"`
	DistanceThreshold float64   `json:"distance_threshold,omitempty"`
}

type searchResponse struct {
	Memories []repositories.MemoryRecord `json:"memories"`
	Total    int                         `json:"total"`
}

type workingMemoryMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type workingMemory struct {
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id,omitempty"`
	Namespace string                 `json:"namespace,omitempty"`
	Messages  []workingMemoryMessage `json:"messages"`
}

// HealthCheck reports whether the memory server answers
func (c *Client) HealthCheck(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// CreateLongTermMemory stores memory in the searchable long-term index
func (c *Client) CreateLongTermMemory(ctx context.Context, memory repositories.LongTermMemory) error {
	id := memory.ID
	if id == "" {
		id = uuid.New().String()
	}
	memoryType := memory.MemoryType
	if memoryType == "" {
		memoryType = repositories.MemoryTypeEpisodic
	}

	body := createMemoryRequest{
		Memories: []memoryRecord{{
			ID:         id,
			Text:       memory.Text,
			MemoryType: memoryType,
			UserID:     memory.UserID,
			SessionID:  memory.SessionID,
			Namespace:  c.namespace,
			Topics:     memory.Topics,
			CreatedAt:  time.Now().UTC(),
		}},
		Deduplicate: true,
	}

	if err := c.doJSON(ctx, http.MethodPost, "/v1/long-term-memory/", body, nil); err != nil {
		return err
	}

	c.logger.Debug("Stored long-term memory",
		zap.String("memoryID", id),
		zap.String("userID", memory.UserID))
	return nil
}

// SearchLongTermMemory runs a semantic search over the user's memories
func (c *Client) SearchLongTermMemory(ctx context.Context, query repositories.MemoryQuery) ([]repositories.MemoryRecord, error) {
	body := searchRequest{
		Text:              query.Text,
		Namespace:         &eqFilter{Eq: c.namespace},
		Limit:             query.Limit,
		DistanceThreshold: query.DistanceThreshold,
	}
	if query.UserID != "" {
		body.UserID = &eqFilter{Eq: query.UserID}
	}

	var result searchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/long-term-memory/search", body, &result); err != nil {
		return nil, err
	}
	return result.Memories, nil
}

// GetWorkingMemory returns the session's messages; an unknown session has none
func (c *Client) GetWorkingMemory(ctx context.Context, sessionID, userID string) ([]repositories.ChatMessage, error) {
	memory, err := c.getWorkingMemory(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	messages := make([]repositories.ChatMessage, 0, len(memory.Messages))
	for _, msg := range memory.Messages {
		messages = append(messages, repositories.ChatMessage{
			Role:    repositories.Role(msg.Role),
			Content: msg.Content,
		})
	}
	return messages, nil
}

// AppendWorkingMemory adds messages to the end of the session's working memory
func (c *Client) AppendWorkingMemory(ctx context.Context, sessionID, userID string, messages []repositories.ChatMessage) error {
	memory, err := c.getWorkingMemory(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, msg := range messages {
		memory.Messages = append(memory.Messages, workingMemoryMessage{
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: &now,
		})
	}

	path := "/v1/working-memory/" + url.PathEscape(sessionID) + "?" + c.query(userID).Encode()
	return c.doJSON(ctx, http.MethodPut, path, memory, nil)
}

// DeleteWorkingMemory ends a session on the memory server
func (c *Client) DeleteWorkingMemory(ctx context.Context, sessionID string) error {
	path := "/v1/working-memory/" + url.PathEscape(sessionID) + "?" + c.query("").Encode()
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return statusError(resp)
	}
	return nil
}

func (c *Client) getWorkingMemory(ctx context.Context, sessionID, userID string) (*workingMemory, error) {
	path := "/v1/working-memory/" + url.PathEscape(sessionID) + "?" + c.query(userID).Encode()
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	empty := &workingMemory{SessionID: sessionID, UserID: userID, Namespace: c.namespace}
	if resp.StatusCode == http.StatusNotFound {
		return empty, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(empty); err != nil {
		return nil, fmt.Errorf("failed to decode working memory: %w", err)
	}
	empty.SessionID = sessionID
	if empty.UserID == "" {
		empty.UserID = userID
	}
	empty.Namespace = c.namespace
	return empty, nil
}

func (c *Client) query(userID string) url.Values {
	values := url.Values{}
	values.Set("namespace", c.namespace)
	if userID != "" {
		values.Set("user_id", userID)
	}
	return values
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, method, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memory server %s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("memory server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
