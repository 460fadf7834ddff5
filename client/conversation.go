package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain"
	"github.com/satriahrh/voicejournal/internal/frame"
)

// FailureReply is shown as the assistant message when a turn fails before its metadata arrived
const FailureReply = "Sorry, I could not process that. Please try again."

// voiceMessagePlaceholder stands in for the user message of a turn sent as audio only
const voiceMessagePlaceholder = "[voice message]"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation history
type Message struct {
	Role    string
	Content string
	At      time.Time
}

// TurnInput is what the user submits for one turn. Audio is only sent when Text is empty.
type TurnInput struct {
	Text         string
	Audio        []byte
	LanguageCode string
}

// TurnResult describes a turn whose stream completed. Playback may still be running.
type TurnResult struct {
	Metadata frame.Metadata
	Stats    Stats
	Playback *PlaybackSession
}

// NewSessionID issues a client-side session identifier
func NewSessionID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// ConversationOption configures a Conversation
type ConversationOption func(*Conversation)

// WithMetadataHandler registers fn to be called when a turn's metadata arrives
func WithMetadataHandler(fn func(frame.Metadata)) ConversationOption {
	return func(c *Conversation) {
		c.onMetadata = fn
	}
}

// WithPlaybackOptions applies opts to every playback session the conversation creates
func WithPlaybackOptions(opts ...PlaybackOption) ConversationOption {
	return func(c *Conversation) {
		c.playbackOpts = append(c.playbackOpts, opts...)
	}
}

// Conversation is the client view of one conversation. At most one turn is
// in flight: sending a new turn cancels the previous one and resets its playback.
type Conversation struct {
	transport    Transport
	sinks        SinkFactory
	userID       string
	logger       *zap.Logger
	onMetadata   func(frame.Metadata)
	playbackOpts []PlaybackOption

	mu         sync.Mutex
	sessionID  string
	messages   []Message
	mode       string
	entryCount int
	playback   *PlaybackSession
	cancelTurn context.CancelFunc
	turnSeq    uint64
}

// NewConversation starts a conversation with a fresh session identifier
func NewConversation(transport Transport, sinks SinkFactory, userID string, logger *zap.Logger, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		transport: transport,
		sinks:     sinks,
		userID:    userID,
		logger:    logger,
		sessionID: NewSessionID(),
		mode:      frame.ModeChat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send submits a turn and consumes its stream until the done record. Audio
// keeps playing after Send returns; wait on the result's Playback to follow it.
func (c *Conversation) Send(ctx context.Context, input TurnInput) (*TurnResult, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" && len(input.Audio) == 0 {
		return nil, errors.New("either text or audio is required")
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.supersedeLocked()
	c.turnSeq++
	seq := c.turnSeq
	c.cancelTurn = cancel

	playback := NewPlaybackSession(c.sinks, c.logger, c.playbackOpts...)
	c.playback = playback

	request := domain.TurnRequest{
		Text:         text,
		UserID:       c.userID,
		SessionID:    c.sessionID,
		LanguageCode: input.LanguageCode,
	}
	userMessage := text
	if text == "" {
		request.AudioBase64 = base64.StdEncoding.EncodeToString(input.Audio)
		userMessage = voiceMessagePlaceholder
	}
	c.appendLocked(RoleUser, userMessage)
	c.mu.Unlock()

	c.logger.Debug("Sending turn",
		zap.String("sessionID", request.SessionID),
		zap.Bool("voice", request.AudioBase64 != ""))

	body, err := c.transport.OpenTurn(turnCtx, request)
	if err != nil {
		playback.Reset()
		c.failTurn(seq, false, err)
		return nil, err
	}
	defer body.Close()

	handler := &turnHandler{conversation: c, seq: seq, playback: playback}
	stats, err := NewConsumer(handler, c.logger).Consume(turnCtx, body)
	if err != nil {
		playback.Reset()
		c.failTurn(seq, handler.sawMetadata, err)
		return nil, err
	}

	c.logger.Debug("Turn stream completed",
		zap.Int("records", stats.Records),
		zap.Int("dropped", stats.Dropped),
		zap.Int("audioChunks", stats.AudioChunks))

	return &TurnResult{
		Metadata: handler.metadata,
		Stats:    stats,
		Playback: playback,
	}, nil
}

// StartNew abandons the current turn and begins a new session with an empty history
func (c *Conversation) StartNew() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	c.turnSeq++
	c.sessionID = NewSessionID()
	c.messages = nil
	c.mode = frame.ModeChat
	return c.sessionID
}

// Close abandons the in-flight turn and stops its playback
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.turnSeq++
}

// SessionID returns the session identifier sent with the next turn
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Messages returns a copy of the history
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Mode returns the mode reported by the last metadata record
func (c *Conversation) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// EntryCount returns the journal entry count reported by the last metadata record
func (c *Conversation) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryCount
}

// Playback returns the playback session of the latest turn, nil before the first turn
func (c *Conversation) Playback() *PlaybackSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playback
}

func (c *Conversation) supersedeLocked() {
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	if c.playback != nil {
		c.playback.Reset()
	}
}

func (c *Conversation) appendLocked(role, content string) {
	c.messages = append(c.messages, Message{Role: role, Content: content, At: time.Now()})
}

// failTurn records a failed turn unless it was superseded or cancelled
func (c *Conversation) failTurn(seq uint64, sawMetadata bool, err error) {
	if errors.Is(err, context.Canceled) {
		c.logger.Debug("Turn cancelled", zap.Error(err))
		return
	}
	c.logger.Warn("Turn failed", zap.Error(err), zap.Bool("sawMetadata", sawMetadata))

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.turnSeq || sawMetadata {
		return
	}
	c.appendLocked(RoleAssistant, FailureReply)
}

// turnHandler applies one turn's records to the conversation
type turnHandler struct {
	conversation *Conversation
	seq          uint64
	playback     *PlaybackSession

	sawMetadata bool
	metadata    frame.Metadata
}

func (h *turnHandler) HandleMetadata(metadata frame.Metadata) {
	h.sawMetadata = true
	h.metadata = metadata

	c := h.conversation
	c.mu.Lock()
	if h.seq != c.turnSeq {
		c.mu.Unlock()
		return
	}
	c.appendLocked(RoleAssistant, metadata.Response)
	if frame.ValidMode(metadata.Mode) {
		c.mode = metadata.Mode
	}
	c.entryCount = metadata.EntryCount
	if metadata.SessionID != "" && metadata.SessionID != c.sessionID {
		c.logger.Info("Adopting server session",
			zap.String("previous", c.sessionID),
			zap.String("sessionID", metadata.SessionID))
		c.sessionID = metadata.SessionID
	}
	c.mu.Unlock()

	if c.onMetadata != nil {
		c.onMetadata(metadata)
	}
}

func (h *turnHandler) HandleAudio(chunk []byte) {
	if err := h.playback.Append(chunk); err != nil {
		h.conversation.logger.Debug("Audio chunk not played", zap.Error(err))
	}
}

func (h *turnHandler) HandleDone() {
	h.playback.Finish()
}
