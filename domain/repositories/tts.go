package repositories

import "context"

// TextToSpeech produces encoded audio for text. The returned channel yields
// chunks in playback order and is closed when synthesis ends, successfully or not.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
