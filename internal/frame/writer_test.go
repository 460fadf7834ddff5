package frame

import (
	"bufio"
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterWritesOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteMetadata(Metadata{Response: "Hi", SessionID: "session_1", Mode: ModeChat}))
	require.NoError(t, w.WriteAudio([]byte{0x01, 0x02, 0x03}))
	require.NoError(t, w.WriteAudio(nil))
	require.NoError(t, w.WriteDone())

	var records []Record
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		record, err := Classify(scanner.Bytes())
		require.NoError(t, err)
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 4)
	assert.Equal(t, RecordTypeMetadata, records[0].RecordType())
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, records[1].(Audio).Payload)
	assert.Empty(t, records[2].(Audio).Payload)
	assert.Equal(t, Done{}, records[3])
}

func TestWriterFlushesEachRecord(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	require.NoError(t, w.WriteAudio([]byte("abc")))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "AUDIO:YWJj\n", rec.Body.String())
}

func TestWriterRejectsInvalidMetadata(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteMetadata(Metadata{Mode: "unknown"})
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriterPropagatesWriteErrors(t *testing.T) {
	w := NewWriter(failingWriter{})
	assert.EqualError(t, w.WriteDone(), "connection reset")
}
