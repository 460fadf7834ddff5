// Package frame implements the newline-delimited record protocol used to
// stream a conversational turn: one metadata record, any number of audio
// records, then a single done record.
package frame

// RecordType identifies the kind of a record on the wire
type RecordType string

const (
	RecordTypeMetadata RecordType = "metadata"
	RecordTypeAudio    RecordType = "audio"
	RecordTypeDone     RecordType = "done"
)

// Mode values carried by a metadata record
const (
	ModeLog  = "log"
	ModeChat = "chat"
)

// AudioPrefix starts every audio line
const AudioPrefix = "AUDIO:"

// Record is a decoded protocol record
type Record interface {
	RecordType() RecordType
}

// Metadata carries the reply text and session information of a turn.
// It is always the first record of a stream.
type Metadata struct {
	Response   string `json:"response"`
	SessionID  string `json:"session_id"`
	Mode       string `json:"mode"`
	EntryCount int    `json:"entry_count"`

	// Optional turn details, ignored by consumers that do not need them
	Intent          string `json:"intent,omitempty"`
	TranscribedText string `json:"transcribed_text,omitempty"`
}

// Audio carries one chunk of encoded audio
type Audio struct {
	Payload []byte
}

// Done terminates a stream
type Done struct{}

func (Metadata) RecordType() RecordType { return RecordTypeMetadata }
func (Audio) RecordType() RecordType    { return RecordTypeAudio }
func (Done) RecordType() RecordType     { return RecordTypeDone }

// ValidMode reports whether mode is one of the modes a metadata record may carry
func ValidMode(mode string) bool {
	return mode == ModeLog || mode == ModeChat
}
