package client

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	require.NoError(t, sink.Write(context.Background(), []byte("ID3")))
	require.NoError(t, sink.Write(context.Background(), []byte{0xff, 0xfb}))
	require.NoError(t, sink.EndOfStream())
	require.NoError(t, sink.Close())

	assert.Equal(t, []byte{'I', 'D', '3', 0xff, 0xfb}, buf.Bytes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Write(ctx, []byte("late")), context.Canceled)
}

func TestFileSinkFactory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "replies")
	factory := FileSinkFactory(dir, ".mp3", zaptest.NewLogger(t))

	p := NewPlaybackSession(factory, zaptest.NewLogger(t))
	require.NoError(t, p.Append([]byte("hello ")))
	require.NoError(t, p.Append([]byte("world")))
	p.Finish()
	require.NoError(t, waitDone(t, p))

	first, err := os.ReadFile(filepath.Join(dir, "reply-001.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(first))

	sink, err := factory(context.Background())
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	_, err = os.Stat(filepath.Join(dir, "reply-002.mp3"))
	assert.NoError(t, err)
}

func TestFFPlaySinkFactoryMissingBinary(t *testing.T) {
	factory := FFPlaySinkFactory(FFPlayConfig{Path: filepath.Join(t.TempDir(), "no-such-ffplay")}, zaptest.NewLogger(t))

	_, err := factory(context.Background())
	assert.Error(t, err)
}
