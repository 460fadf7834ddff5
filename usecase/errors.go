package usecase

import "errors"

var (
	// ErrInvalidTurn means the turn request itself was unusable
	ErrInvalidTurn = errors.New("invalid turn")
	// ErrTranscription means the recorded audio could not be turned into text
	ErrTranscription = errors.New("transcription failed")
	// ErrReplyGeneration means the model produced no reply
	ErrReplyGeneration = errors.New("reply generation failed")
	// ErrSynthesis means no speech could be produced for the text
	ErrSynthesis = errors.New("synthesis failed")
	// ErrInvalidEntry means a journal entry was rejected before it was stored
	ErrInvalidEntry = errors.New("invalid entry")
)
