package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// WriterSink writes audio to an io.Writer, closing it when the writer is an io.Closer
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Sink = (*WriterSink)(nil)

// NewWriterSink wraps w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write implements Sink
func (s *WriterSink) Write(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(chunk)
	return err
}

// EndOfStream syncs the writer when it is a file
func (s *WriterSink) EndOfStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(*os.File); ok {
		return f.Sync()
	}
	return nil
}

// Close implements Sink
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FileSinkFactory writes each turn's reply audio to its own numbered file in dir
func FileSinkFactory(dir, extension string, logger *zap.Logger) SinkFactory {
	var counter atomic.Int64
	return func(ctx context.Context) (Sink, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("reply-%03d%s", counter.Add(1), extension))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		logger.Info("Writing reply audio", zap.String("path", path))
		return NewWriterSink(f), nil
	}
}

// FFPlayConfig configures playback through ffplay
type FFPlayConfig struct {
	Path     string
	LogLevel string
	Volume   int
}

// FFPlaySinkFactory plays each turn through a fresh ffplay process reading
// encoded audio from stdin
func FFPlaySinkFactory(config FFPlayConfig, logger *zap.Logger) SinkFactory {
	if config.Path == "" {
		config.Path = "ffplay"
	}
	if config.LogLevel == "" {
		config.LogLevel = "error"
	}
	if config.Volume <= 0 {
		config.Volume = 80
	}

	return func(ctx context.Context) (Sink, error) {
		args := []string{
			"-hide_banner",
			"-loglevel", config.LogLevel,
			"-nostats",
			"-nodisp",
			"-autoexit",
			"-volume", fmt.Sprintf("%d", config.Volume),
			"-i", "-",
		}
		cmd := exec.CommandContext(ctx, config.Path, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		cmd.Stdout = io.Discard
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			_ = stdin.Close()
			return nil, fmt.Errorf("failed to start ffplay: %w", err)
		}

		logger.Debug("ffplay started", zap.Int("pid", cmd.Process.Pid))
		return &ffplaySink{cmd: cmd, stdin: stdin}, nil
	}
}

type ffplaySink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	waitOnce sync.Once
	waitErr  error
}

func (s *ffplaySink) Write(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.stdin.Write(chunk)
	return err
}

// EndOfStream closes stdin and waits for ffplay to play out what it buffered
func (s *ffplaySink) EndOfStream() error {
	if err := s.stdin.Close(); err != nil {
		return err
	}
	return s.wait()
}

func (s *ffplaySink) Close() error {
	_ = s.stdin.Close()
	if s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Kill()
	}
	s.wait()
	return nil
}

func (s *ffplaySink) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}
