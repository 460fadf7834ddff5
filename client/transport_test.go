package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/voicejournal/domain"
	"github.com/satriahrh/voicejournal/internal/frame"
)

func TestHTTPTransport_RejectedTurnCarriesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agent/chat/stream", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_request","message":"either text or audio is required"}`))
	}))
	defer server.Close()

	_, err := NewHTTPTransport(server.URL+"/").OpenTurn(context.Background(), domain.TurnRequest{UserID: "alice"})
	require.ErrorIs(t, err, ErrTurnRejected)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "either text or audio is required")
}

func TestWebSocketTransport_StopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	released := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var request domain.TurnRequest
		if conn.ReadJSON(&request) != nil {
			return
		}
		line, _ := frame.EncodeMetadata(frame.Metadata{Response: "Hi " + request.UserID, SessionID: "s", Mode: frame.ModeChat})
		_ = conn.WriteMessage(websocket.TextMessage, line)
		<-released
	}))
	defer server.Close()
	defer close(released)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	body, err := NewWebSocketTransport(url).OpenTurn(ctx, domain.TurnRequest{Text: "hello", UserID: "alice"})
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 256)
	n, err := body.Read(buf)
	require.NoError(t, err)
	record, err := frame.Classify([]byte(strings.TrimSuffix(string(buf[:n]), "\n")))
	require.NoError(t, err)
	assert.Equal(t, "Hi alice", record.(frame.Metadata).Response)
	assert.True(t, strings.HasSuffix(string(buf[:n]), "\n"))

	readErr := make(chan error, 1)
	go func() {
		_, err := body.Read(buf)
		readErr <- err
	}()
	cancel()

	select {
	case err := <-readErr:
		assert.Error(t, err)
		assert.NotErrorIs(t, err, io.EOF)
	case <-time.After(5 * time.Second):
		t.Fatal("read did not return after cancellation")
	}
}
