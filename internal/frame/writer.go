package frame

import (
	"io"
	"net/http"
	"sync"
)

// Writer writes newline-terminated records and flushes after each one so a
// consumer can act on a record as soon as it is produced
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	mu      sync.Mutex
}

// NewWriter wraps w. If w implements http.Flusher every record is flushed.
func NewWriter(w io.Writer) *Writer {
	fw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

// WriteMetadata writes the metadata record
func (fw *Writer) WriteMetadata(m Metadata) error {
	line, err := EncodeMetadata(m)
	if err != nil {
		return err
	}
	return fw.writeLine(line)
}

// WriteAudio writes one audio record
func (fw *Writer) WriteAudio(chunk []byte) error {
	return fw.writeLine(EncodeAudioChunk(chunk))
}

// WriteDone writes the terminal record
func (fw *Writer) WriteDone() error {
	return fw.writeLine(EncodeDone())
}

func (fw *Writer) writeLine(line []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := fw.w.Write(buf); err != nil {
		return err
	}
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return nil
}
