// Package client consumes turn streams produced by the journal server: it
// reassembles records, drives playback of the reply audio and keeps the
// conversation state of one conversation view.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/internal/frame"
)

// ErrIncompleteStream means the stream ended before its done record
var ErrIncompleteStream = errors.New("stream ended before done record")

const (
	defaultReadSize = 32 * 1024
	logLinePrefix   = 64
)

// LineAssembler reassembles newline-delimited lines from arbitrarily split reads
type LineAssembler struct {
	pending []byte
}

// Feed appends data and returns every line it completed, without the newline.
// A trailing fragment is held back until a later Feed completes it.
func (a *LineAssembler) Feed(data []byte) [][]byte {
	a.pending = append(a.pending, data...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(a.pending, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, a.pending[:i])
		lines = append(lines, line)
		a.pending = a.pending[i+1:]
	}

	// Release the consumed prefix of the backing array
	if len(a.pending) == 0 {
		a.pending = nil
	}
	return lines
}

// Flush returns the held-back fragment, if any, and empties the assembler
func (a *LineAssembler) Flush() []byte {
	rest := a.pending
	a.pending = nil
	return rest
}

// Pending returns the number of bytes held back
func (a *LineAssembler) Pending() int {
	return len(a.pending)
}

// Handler receives the records of one stream in arrival order
type Handler interface {
	HandleMetadata(metadata frame.Metadata)
	HandleAudio(chunk []byte)
	HandleDone()
}

// Stats summarizes one consumed stream
type Stats struct {
	Records     int
	Dropped     int
	AudioChunks int
	AudioBytes  int
}

// Consumer turns a raw byte stream into dispatched records
type Consumer struct {
	handler  Handler
	logger   *zap.Logger
	readSize int
}

// NewConsumer creates a consumer dispatching to handler
func NewConsumer(handler Handler, logger *zap.Logger) *Consumer {
	return &Consumer{
		handler:  handler,
		logger:   logger,
		readSize: defaultReadSize,
	}
}

// consumeState tracks one stream
type consumeState struct {
	stats       Stats
	sawMetadata bool
	sawDone     bool
}

// Consume reads r until the done record and dispatches every record to the
// handler. It returns as soon as done is seen. EOF or a read error before
// that is ErrIncompleteStream. Cancelling ctx only takes effect between reads,
// so r should be tied to ctx the way an HTTP response body is.
func (c *Consumer) Consume(ctx context.Context, r io.Reader) (Stats, error) {
	var (
		assembler LineAssembler
		state     consumeState
		buf       = make([]byte, c.readSize)
	)

	for {
		if err := ctx.Err(); err != nil {
			return state.stats, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, line := range assembler.Feed(buf[:n]) {
				c.dispatch(&state, line)
			}
			if state.sawDone {
				return state.stats, nil
			}
		}

		if readErr == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return state.stats, err
		}

		// The last record may lack its newline
		if rest := assembler.Flush(); len(rest) > 0 {
			c.dispatch(&state, rest)
			if state.sawDone {
				return state.stats, nil
			}
		}

		if readErr == io.EOF {
			return state.stats, ErrIncompleteStream
		}
		return state.stats, fmt.Errorf("%w: %w", ErrIncompleteStream, readErr)
	}
}

func (c *Consumer) dispatch(state *consumeState, line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	if state.sawDone {
		c.drop(state, line, "record after done")
		return
	}

	record, err := frame.Classify(line)
	if err != nil {
		c.drop(state, line, err.Error())
		return
	}

	switch r := record.(type) {
	case frame.Metadata:
		if state.sawMetadata {
			c.drop(state, line, "duplicate metadata record")
			return
		}
		state.sawMetadata = true
		state.stats.Records++
		c.handler.HandleMetadata(r)

	case frame.Audio:
		state.stats.Records++
		state.stats.AudioChunks++
		state.stats.AudioBytes += len(r.Payload)
		c.handler.HandleAudio(r.Payload)

	case frame.Done:
		state.sawDone = true
		state.stats.Records++
		c.handler.HandleDone()
	}
}

func (c *Consumer) drop(state *consumeState, line []byte, reason string) {
	state.stats.Dropped++

	prefix := line
	if len(prefix) > logLinePrefix {
		prefix = prefix[:logLinePrefix]
	}
	c.logger.Warn("Dropped malformed record",
		zap.ByteString("line", prefix),
		zap.Int("lineLength", len(line)),
		zap.String("reason", reason))
}
