package client

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

type fakeSink struct {
	mu     sync.Mutex
	chunks [][]byte
	ended  bool
	closed bool

	// gate, when set, admits one Write per value received
	gate   chan struct{}
	failAt int
}

func (s *fakeSink) Write(ctx context.Context, chunk []byte) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.chunks)+1 == s.failAt {
		return errors.New("device unplugged")
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	return nil
}

func (s *fakeSink) EndOfStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

// sinkFactory hands out a single fakeSink and counts how often it was asked for one
type sinkFactory struct {
	sink  *fakeSink
	err   error
	mu    sync.Mutex
	calls int
}

func (f *sinkFactory) create(ctx context.Context) (Sink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sink, nil
}

func (f *sinkFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type transitionLog struct {
	mu          sync.Mutex
	transitions [][2]PlaybackState
}

func (l *transitionLog) observe(from, to PlaybackState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, [2]PlaybackState{from, to})
}

func (l *transitionLog) all() [][2]PlaybackState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][2]PlaybackState(nil), l.transitions...)
}

func waitDone(t *testing.T, p *PlaybackSession) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "playback did not finish")
	return err
}

func TestPlaybackSession_PlaysChunksInOrder(t *testing.T) {
	factory := &sinkFactory{sink: &fakeSink{}}
	log := &transitionLog{}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t), WithStateObserver(log.observe))
	assert.Equal(t, Idle, p.State())

	chunks := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, chunk := range chunks {
		require.NoError(t, p.Append(chunk))
	}
	p.Finish()

	require.NoError(t, waitDone(t, p))
	assert.Equal(t, Finished, p.State())
	assert.Equal(t, chunks, factory.sink.written())
	assert.Equal(t, 3, p.Consumed())
	assert.True(t, factory.sink.ended)
	assert.True(t, factory.sink.closed)
	assert.Equal(t, 1, factory.callCount())

	assert.Equal(t, [][2]PlaybackState{
		{Idle, AwaitingSource},
		{AwaitingSource, Streaming},
		{Streaming, Draining},
		{Draining, Finished},
	}, log.all())
}

func TestPlaybackSession_FinishWithoutAudio(t *testing.T) {
	factory := &sinkFactory{sink: &fakeSink{}}
	log := &transitionLog{}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t), WithStateObserver(log.observe))

	p.Finish()

	assert.Equal(t, Finished, p.State())
	require.NoError(t, waitDone(t, p))
	assert.Zero(t, factory.callCount())
	assert.Equal(t, [][2]PlaybackState{{Idle, Draining}, {Draining, Finished}}, log.all())
	assert.ErrorIs(t, p.Append([]byte("late")), ErrPlaybackClosed)
}

func TestPlaybackSession_FinishedOnlyAfterEveryChunkConsumed(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{})}
	factory := &sinkFactory{sink: sink}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t))

	require.NoError(t, p.Append([]byte("a")))
	require.NoError(t, p.Append([]byte("b")))
	p.Finish()

	assert.Eventually(t, func() bool { return p.State() == Draining }, time.Second, 5*time.Millisecond)

	sink.gate <- struct{}{}
	assert.NotEqual(t, Finished, p.State())
	select {
	case <-p.Done():
		t.Fatal("done before the last chunk was consumed")
	default:
	}

	sink.gate <- struct{}{}
	require.NoError(t, waitDone(t, p))
	assert.Equal(t, Finished, p.State())
	assert.Equal(t, 2, p.Consumed())
}

func TestPlaybackSession_AppendAfterFinish(t *testing.T) {
	factory := &sinkFactory{sink: &fakeSink{}}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t))

	require.NoError(t, p.Append([]byte("a")))
	p.Finish()
	assert.ErrorIs(t, p.Append([]byte("b")), ErrPlaybackClosed)

	require.NoError(t, waitDone(t, p))
	assert.Equal(t, [][]byte{[]byte("a")}, factory.sink.written())
}

func TestPlaybackSession_ResetStopsPlayback(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{})}
	factory := &sinkFactory{sink: sink}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t))

	require.NoError(t, p.Append([]byte("a")))
	require.NoError(t, p.Append([]byte("b")))
	assert.Eventually(t, func() bool { return p.State() == Streaming }, time.Second, 5*time.Millisecond)

	p.Reset()
	assert.Equal(t, Reset, p.State())
	require.NoError(t, waitDone(t, p))

	assert.Empty(t, sink.written())
	assert.False(t, sink.ended)
	assert.True(t, sink.closed)
	assert.ErrorIs(t, p.Append([]byte("c")), ErrPlaybackClosed)

	p.Finish()
	assert.Equal(t, Reset, p.State())
}

func TestPlaybackSession_ResetWhileIdle(t *testing.T) {
	factory := &sinkFactory{sink: &fakeSink{}}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t))

	p.Reset()
	assert.Equal(t, Reset, p.State())
	require.NoError(t, waitDone(t, p))
	assert.Zero(t, factory.callCount())
}

func TestPlaybackSession_ResetAfterFinishedIsNoop(t *testing.T) {
	factory := &sinkFactory{sink: &fakeSink{}}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t))

	require.NoError(t, p.Append([]byte("a")))
	p.Finish()
	require.NoError(t, waitDone(t, p))

	p.Reset()
	assert.Equal(t, Finished, p.State())
}

func TestPlaybackSession_SinkWriteFailure(t *testing.T) {
	factory := &sinkFactory{sink: &fakeSink{failAt: 2}}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t))

	for _, chunk := range []string{"a", "b", "c"} {
		require.NoError(t, p.Append([]byte(chunk)))
	}
	p.Finish()

	err := waitDone(t, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
	assert.Equal(t, Reset, p.State())
	assert.Equal(t, 1, p.Consumed())
	assert.True(t, factory.sink.closed)
}

func TestPlaybackSession_SinkStartFailure(t *testing.T) {
	factory := &sinkFactory{err: errors.New("no audio device")}
	p := NewPlaybackSession(factory.create, zaptest.NewLogger(t))

	require.NoError(t, p.Append([]byte("a")))

	err := waitDone(t, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio device")
	assert.Equal(t, Reset, p.State())
	assert.ErrorIs(t, p.Append([]byte("b")), ErrPlaybackClosed)
}

func TestPlaybackSession_OrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chunks := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 1, 16), 1, 20).Draw(t, "chunks")
		pauses := rapid.SliceOfN(rapid.Bool(), len(chunks), len(chunks)).Draw(t, "pauses")

		factory := &sinkFactory{sink: &fakeSink{}}
		p := NewPlaybackSession(factory.create, zap.NewNop())
		for i, chunk := range chunks {
			if err := p.Append(chunk); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
			if pauses[i] {
				time.Sleep(time.Millisecond)
			}
		}
		p.Finish()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
		if p.State() != Finished {
			t.Fatalf("expected finished, got %s", p.State())
		}

		written := factory.sink.written()
		if len(written) != len(chunks) {
			t.Fatalf("expected %d chunks, got %d", len(chunks), len(written))
		}
		for i := range chunks {
			if !bytes.Equal(written[i], chunks[i]) {
				t.Fatalf("chunk %d out of order", i)
			}
		}
	})
}
