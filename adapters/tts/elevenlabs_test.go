package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabsTTS(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	t.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	t.Setenv("ELEVEN_LABS_CHUNK_SIZE", "2048")

	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}

	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}

	if tts.chunkSize != 2048 {
		t.Errorf("Expected chunk size 2048, got %d", tts.chunkSize)
	}

	if tts.outputFormat != defaultOutputFormat {
		t.Errorf("Expected output format '%s', got '%s'", defaultOutputFormat, tts.outputFormat)
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	assert.Error(t, ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", Stability: 1.5}))
	assert.Error(t, ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", Clarity: -0.1}))
	assert.Error(t, ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", ChunkSize: -1}))
	assert.NoError(t, ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k"}))
}

func TestElevenLabsTTS_StreamsChunksInOrder(t *testing.T) {
	audio := bytes.Repeat([]byte("0123456789"), 100)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1/stream", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("xi-api-key"))

		var req ElevenLabsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello there", req.Text)

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		VoiceID:    "voice-1",
		ChunkSize:  256,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	chunks, err := tts.ConvertTextToSpeech(context.Background(), "Hello there")
	require.NoError(t, err)

	var received []byte
	count := 0
	for chunk := range chunks {
		received = append(received, chunk...)
		count++
	}

	assert.Equal(t, audio, received)
	assert.GreaterOrEqual(t, count, 4)
}

func TestElevenLabsTTS_ForwardsPartialReadsWithoutWaitingForFullChunk(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("first-bytes"))
		w.(http.Flusher).Flush()
		<-release
		w.Write([]byte("rest"))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		ChunkSize:  4096,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	chunks, err := tts.ConvertTextToSpeech(context.Background(), "Hello there")
	require.NoError(t, err)

	var first []byte
	timeout := time.After(5 * time.Second)
	for len(first) < len("first-bytes") {
		select {
		case chunk := <-chunks:
			first = append(first, chunk...)
		case <-timeout:
			close(release)
			t.Fatal("flushed bytes were held back until the chunk filled")
		}
	}
	assert.Equal(t, []byte("first-bytes"), first)

	close(release)
	var rest []byte
	for chunk := range chunks {
		rest = append(rest, chunk...)
	}
	assert.Equal(t, []byte("rest"), rest)
}

func TestElevenLabsTTS_ReportsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = tts.ConvertTextToSpeech(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = tts.ConvertTextToSpeech(context.Background(), "   ")
	assert.Error(t, err)
}

func TestMockTextToSpeech(t *testing.T) {
	mock := NewMockTextToSpeech(zaptest.NewLogger(t))

	chunks, err := mock.ConvertTextToSpeech(context.Background(), "one two three")
	require.NoError(t, err)

	var got [][]byte
	for chunk := range chunks {
		got = append(got, chunk)
	}
	assert.Equal(t, MockAudioChunks("one two three"), got)

	mock.StopAfter(1)
	chunks, err = mock.ConvertTextToSpeech(context.Background(), "one two three")
	require.NoError(t, err)
	got = nil
	for chunk := range chunks {
		got = append(got, chunk)
	}
	assert.Len(t, got, 1)

	mock.FailToStart(errors.New("voice unavailable"))
	_, err = mock.ConvertTextToSpeech(context.Background(), "hello")
	assert.EqualError(t, err, "voice unavailable")
}
