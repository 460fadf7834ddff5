package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/voicejournal/domain"
)

// ErrTurnRejected means the server refused the turn before streaming any record
var ErrTurnRejected = errors.New("turn rejected")

// Transport opens the record stream answering one turn. The stream must stop
// producing data once ctx is cancelled.
type Transport interface {
	OpenTurn(ctx context.Context, request domain.TurnRequest) (io.ReadCloser, error)
}

// HTTPTransport posts turns to the streaming chat endpoint
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for the server at baseURL
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{},
	}
}

// OpenTurn implements Transport
func (t *HTTPTransport) OpenTurn(ctx context.Context, request domain.TurnRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/api/agent/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open turn stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errorBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &errorBody) != nil || errorBody.Message == "" {
			errorBody.Message = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrTurnRejected, resp.StatusCode, errorBody.Message)
	}
	return resp.Body, nil
}

// WebSocketTransport opens one websocket connection per turn. Each text
// message received is one record.
type WebSocketTransport struct {
	URL    string
	Dialer *websocket.Dialer
}

var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport creates a transport for the websocket endpoint at url
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{
		URL:    url,
		Dialer: websocket.DefaultDialer,
	}
}

// OpenTurn implements Transport. A turn_error reply is returned as ErrTurnRejected.
func (t *WebSocketTransport) OpenTurn(ctx context.Context, request domain.TurnRequest) (io.ReadCloser, error) {
	conn, _, err := t.Dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", t.URL, err)
	}

	if err := conn.WriteJSON(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send turn request: %w", err)
	}

	reader := newMessageReader(ctx, conn)
	first, err := reader.nextMessage()
	if err != nil {
		reader.Close()
		return nil, err
	}

	var turnError domain.TurnError
	if json.Unmarshal(first, &turnError) == nil && turnError.Type == domain.TurnErrorType {
		reader.Close()
		return nil, fmt.Errorf("%w: %s", ErrTurnRejected, turnError.Message)
	}

	reader.pending = append(first, '\n')
	return reader, nil
}

// messageReader exposes websocket text messages as newline-terminated lines
type messageReader struct {
	conn    *websocket.Conn
	pending []byte

	stop      chan struct{}
	closeOnce sync.Once
}

func newMessageReader(ctx context.Context, conn *websocket.Conn) *messageReader {
	r := &messageReader{conn: conn, stop: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks a pending ReadMessage
			conn.SetReadDeadline(time.Now())
			conn.Close()
		case <-r.stop:
		}
	}()
	return r
}

func (r *messageReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		message, err := r.nextMessage()
		if err != nil {
			return 0, err
		}
		r.pending = append(message, '\n')
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *messageReader) nextMessage() ([]byte, error) {
	for {
		messageType, message, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return message, nil
		}
	}
}

func (r *messageReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stop)
		r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = r.conn.Close()
	})
	return err
}
