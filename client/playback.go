package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// PlaybackState is the lifecycle state of one turn's audio playback
type PlaybackState int

const (
	// Idle: no audio has arrived for the turn
	Idle PlaybackState = iota
	// AwaitingSource: chunks are queued while the sink starts
	AwaitingSource
	// Streaming: the sink is ready and consumes chunks as they arrive
	Streaming
	// Draining: done was observed and the sink consumes what is left
	Draining
	// Finished: every chunk was consumed and the sink was told the stream ended
	Finished
	// Reset: the session was abandoned before finishing
	Reset
)

func (s PlaybackState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSource:
		return "awaiting_source"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("PlaybackState(%d)", int(s))
	}
}

// terminal reports whether no further transition can happen
func (s PlaybackState) terminal() bool {
	return s == Finished || s == Reset
}

// Sink plays encoded audio. Write returns once the sink has consumed the
// chunk and must return when ctx is cancelled. EndOfStream is called once,
// after the last chunk was consumed. Close releases the sink.
type Sink interface {
	Write(ctx context.Context, chunk []byte) error
	EndOfStream() error
	Close() error
}

// SinkFactory creates a sink and returns once it is ready to accept audio
type SinkFactory func(ctx context.Context) (Sink, error)

// ErrPlaybackClosed is returned by Append once the session no longer accepts audio
var ErrPlaybackClosed = errors.New("playback session closed")

// PlaybackOption configures a PlaybackSession
type PlaybackOption func(*PlaybackSession)

// WithStateObserver registers fn to be called on every state transition.
// fn runs with the session locked and must not call back into the session.
func WithStateObserver(fn func(from, to PlaybackState)) PlaybackOption {
	return func(p *PlaybackSession) {
		p.observer = fn
	}
}

// PlaybackSession feeds one turn's audio chunks to a sink in arrival order.
// The sink is only created when the first chunk arrives, and a single drain
// goroutine submits queued chunks one at a time.
type PlaybackSession struct {
	factory  SinkFactory
	logger   *zap.Logger
	observer func(from, to PlaybackState)

	mu           sync.Mutex
	state        PlaybackState
	queue        [][]byte
	sourceReady  bool
	allSubmitted bool
	appended     int
	consumed     int
	err          error

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// NewPlaybackSession creates an idle session that will play through sinks made by factory
func NewPlaybackSession(factory SinkFactory, logger *zap.Logger, opts ...PlaybackOption) *PlaybackSession {
	ctx, cancel := context.WithCancel(context.Background())
	p := &PlaybackSession{
		factory: factory,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Append queues a chunk behind every chunk appended before it. The first
// chunk starts the sink.
func (p *PlaybackSession) Append(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.terminal() || p.allSubmitted {
		return ErrPlaybackClosed
	}

	p.queue = append(p.queue, chunk)
	p.appended++

	if p.state == Idle {
		p.setState(AwaitingSource)
		go p.drain()
	}
	p.signal()
	return nil
}

// Finish records that no more chunks will arrive. With nothing appended the
// session finishes at once and no sink is ever created.
func (p *PlaybackSession) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.terminal() || p.allSubmitted {
		return
	}
	p.allSubmitted = true

	switch p.state {
	case Idle:
		p.setState(Draining)
		p.setState(Finished)
		p.closeDone()
	case Streaming:
		p.setState(Draining)
		p.signal()
	}
}

// Reset abandons the session: queued chunks are discarded and the sink is
// stopped. It does nothing once the session finished.
func (p *PlaybackSession) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked(nil)
}

func (p *PlaybackSession) resetLocked(err error) {
	if p.state.terminal() {
		return
	}

	wasIdle := p.state == Idle
	p.err = err
	p.queue = nil
	p.setState(Reset)
	p.cancel()

	// Without a drain goroutine nobody else closes done
	if wasIdle {
		p.closeDone()
	}
}

// State returns the current state
func (p *PlaybackSession) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the sink failure that reset the session, if any
func (p *PlaybackSession) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Consumed returns how many chunks the sink has consumed
func (p *PlaybackSession) Consumed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consumed
}

// Done is closed once the session reached Finished or Reset and released its sink
func (p *PlaybackSession) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the session is done or ctx ends
func (p *PlaybackSession) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain owns the sink for the whole life of the session
func (p *PlaybackSession) drain() {
	defer p.closeDone()

	sink, err := p.factory(p.ctx)
	if err != nil {
		p.fail(fmt.Errorf("failed to start sink: %w", err))
		return
	}
	defer func() {
		if err := sink.Close(); err != nil {
			p.logger.Debug("Failed to close sink", zap.Error(err))
		}
	}()

	p.mu.Lock()
	if p.state == Reset {
		p.mu.Unlock()
		return
	}
	p.sourceReady = true
	p.setState(Streaming)
	if p.allSubmitted {
		p.setState(Draining)
	}
	p.mu.Unlock()

	for {
		chunk, ok := p.next()
		if !ok {
			return
		}

		if chunk != nil {
			if err := sink.Write(p.ctx, chunk); err != nil {
				p.fail(fmt.Errorf("sink write failed: %w", err))
				return
			}
			p.mu.Lock()
			p.consumed++
			p.mu.Unlock()
			continue
		}

		// Queue drained after done
		if err := sink.EndOfStream(); err != nil {
			p.fail(fmt.Errorf("sink end of stream failed: %w", err))
			return
		}
		p.mu.Lock()
		if p.state == Draining {
			p.setState(Finished)
		}
		p.mu.Unlock()
		return
	}
}

// next blocks until there is a chunk to submit. A nil chunk with ok means the
// queue is empty and done was observed. ok is false once the session was reset.
func (p *PlaybackSession) next() (chunk []byte, ok bool) {
	for {
		p.mu.Lock()
		if p.state == Reset {
			p.mu.Unlock()
			return nil, false
		}
		if len(p.queue) > 0 {
			chunk = p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			p.mu.Unlock()
			if chunk == nil {
				chunk = []byte{}
			}
			return chunk, true
		}
		if p.allSubmitted {
			p.mu.Unlock()
			return nil, true
		}
		p.mu.Unlock()

		select {
		case <-p.wake:
		case <-p.ctx.Done():
		}
	}
}

func (p *PlaybackSession) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.terminal() {
		return
	}
	p.logger.Error("Playback failed", zap.Error(err))
	p.resetLocked(err)
}

// signal wakes the drain goroutine without blocking
func (p *PlaybackSession) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *PlaybackSession) setState(to PlaybackState) {
	from := p.state
	if from == to {
		return
	}
	p.state = to
	p.logger.Debug("Playback state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	if p.observer != nil {
		p.observer(from, to)
	}
}

func (p *PlaybackSession) closeDone() {
	p.doneOnce.Do(func() {
		close(p.done)
	})
}
