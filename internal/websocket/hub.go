package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain"
	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/internal/frame"
	"github.com/satriahrh/voicejournal/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Turn requests may carry a base64 recording.
	maxMessageSize = 8 * 1024 * 1024

	// Upper bound for one turn, synthesis included.
	turnTimeout = 2 * time.Minute
)

// turnFailedMessage is what a client sees when its turn could not be answered
const turnFailedMessage = "Sorry, I could not process that. Please try again."

// TurnStreamer answers a turn by writing its record stream
type TurnStreamer interface {
	Prepare(ctx context.Context, turn *entities.ConversationTurn) (*usecase.PreparedTurn, error)
	Stream(ctx context.Context, turn *usecase.PreparedTurn, w usecase.RecordWriter) error
}

// Hub maintains the set of connected clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Closed when Run returns
	done chan struct{}

	turns    TurnStreamer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub. An empty allowedOrigins accepts every origin.
func NewHub(turns TurnStreamer, allowedOrigins []string, logger *zap.Logger) *Hub {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = struct{}{}
	}

	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		turns:      turns,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.id)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound text messages.
	send chan outbound

	id     string
	logger *zap.Logger

	// ctx lives as long as the connection
	ctx    context.Context
	cancel context.CancelFunc

	mutex      sync.Mutex
	cancelTurn context.CancelFunc

	// generation of the current turn; records of older turns are never written
	turn atomic.Uint64
}

// outbound is a queued message. Messages with turn 0 belong to no turn.
type outbound struct {
	turn    uint64
	payload []byte
}

// HandleWebSocket upgrades the request and serves turns over the connection
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan outbound, 256),
		id:     uuid.New().String(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps turn requests from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processTurnRequest(message)
		default:
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if message.turn != 0 && message.turn != c.turn.Load() {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message.payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// processTurnRequest starts a turn, superseding the one in flight. Records of
// the superseded turn that have not reached the wire yet are discarded, so on a
// reused connection the new stream starts at the next metadata record.
func (c *Client) processTurnRequest(message []byte) {
	var request domain.TurnRequest
	if err := json.Unmarshal(message, &request); err != nil {
		c.logger.Warn("Failed to parse turn request", zap.String("clientID", c.id), zap.Error(err))
		c.sendTurnError(c.ctx, 0, "invalid turn request")
		return
	}

	turn, err := request.ToTurn()
	if err != nil {
		c.logger.Warn("Rejected turn request", zap.String("clientID", c.id), zap.Error(err))
		c.sendTurnError(c.ctx, 0, err.Error())
		return
	}

	c.mutex.Lock()
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.logger.Info("Superseded in-flight turn", zap.String("clientID", c.id))
	}
	generation := c.turn.Add(1)
	ctx, cancel := context.WithTimeout(c.ctx, turnTimeout)
	c.cancelTurn = cancel
	c.mutex.Unlock()

	go c.runTurn(ctx, cancel, generation, turn)
}

func (c *Client) runTurn(ctx context.Context, cancel context.CancelFunc, generation uint64, turn *entities.ConversationTurn) {
	defer cancel()

	prepared, err := c.hub.turns.Prepare(ctx, turn)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("Turn failed",
			zap.String("clientID", c.id),
			zap.String("sessionID", turn.SessionID),
			zap.Error(err))
		message := turnFailedMessage
		if errors.Is(err, usecase.ErrInvalidTurn) || errors.Is(err, usecase.ErrTranscription) {
			message = err.Error()
		}
		c.sendTurnError(ctx, generation, message)
		return
	}

	sender := &recordSender{client: c, ctx: ctx, turn: generation}
	if err := c.hub.turns.Stream(ctx, prepared, sender); err != nil {
		c.logger.Warn("Turn stream aborted",
			zap.String("clientID", c.id),
			zap.String("sessionID", prepared.Metadata.SessionID),
			zap.Error(err))
	}
}

func (c *Client) sendTurnError(ctx context.Context, turn uint64, message string) {
	payload, _ := json.Marshal(domain.TurnError{Type: domain.TurnErrorType, Message: message})
	c.enqueue(ctx, turn, payload)
}

// enqueue hands a message to the write pump unless ctx ends first
func (c *Client) enqueue(ctx context.Context, turn uint64, payload []byte) error {
	if turn != 0 && turn != c.turn.Load() {
		return context.Canceled
	}
	select {
	case c.send <- outbound{turn: turn, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordSender writes each record of a turn as one text message
type recordSender struct {
	client *Client
	ctx    context.Context
	turn   uint64
}

func (s *recordSender) WriteMetadata(metadata frame.Metadata) error {
	line, err := frame.EncodeMetadata(metadata)
	if err != nil {
		return err
	}
	return s.client.enqueue(s.ctx, s.turn, line)
}

func (s *recordSender) WriteAudio(chunk []byte) error {
	return s.client.enqueue(s.ctx, s.turn, frame.EncodeAudioChunk(chunk))
}

func (s *recordSender) WriteDone() error {
	return s.client.enqueue(s.ctx, s.turn, frame.EncodeDone())
}
