package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/domain"
	"github.com/satriahrh/voicejournal/domain/entities"
	"github.com/satriahrh/voicejournal/domain/repositories"
	"github.com/satriahrh/voicejournal/internal/frame"
)

// RecordWriter receives the records of one turn stream in order
type RecordWriter interface {
	WriteMetadata(metadata frame.Metadata) error
	WriteAudio(chunk []byte) error
	WriteDone() error
}

var _ RecordWriter = (*frame.Writer)(nil)

// PreparedTurn is a turn whose reply text is known and whose audio is not yet synthesized
type PreparedTurn struct {
	Metadata frame.Metadata
}

// TurnService turns a user utterance into a reply stream: metadata first,
// then the synthesized audio chunks, then done
type TurnService struct {
	agent           *AgentService
	speechToText    repositories.SpeechToText
	textToSpeech    repositories.TextToSpeech
	defaultLanguage string
	logger          *zap.Logger
}

// NewTurnService creates a new turn service
func NewTurnService(
	agent *AgentService,
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	defaultLanguage string,
	logger *zap.Logger,
) *TurnService {
	return &TurnService{
		agent:           agent,
		speechToText:    stt,
		textToSpeech:    tts,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// Prepare transcribes the turn when needed and runs the agent on it. Errors
// returned here happen before any record exists and fail the whole request.
func (s *TurnService) Prepare(ctx context.Context, turn *entities.ConversationTurn) (*PreparedTurn, error) {
	if err := turn.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}

	input := AgentInput{
		UserID:       turn.UserID,
		SessionID:    turn.SessionID,
		Text:         strings.TrimSpace(turn.Text),
		LanguageCode: turn.LanguageCode,
		Source:       entities.EntrySourceText,
	}

	var transcribed string
	if turn.HasAudio() {
		transcript, err := s.Transcribe(ctx, turn.Audio, turn.LanguageCode)
		if err != nil {
			return nil, err
		}
		transcribed = transcript.Text
		input.Text = transcript.Text
		input.LanguageCode = transcript.LanguageCode
		input.Source = entities.EntrySourceVoice
	}

	reply, err := s.agent.ProcessInput(ctx, input)
	if err != nil {
		s.logger.Error("Turn failed",
			zap.String("sessionID", turn.SessionID),
			zap.Error(err))
		return nil, err
	}

	return &PreparedTurn{
		Metadata: frame.Metadata{
			Response:        reply.Text,
			SessionID:       reply.SessionID,
			Mode:            string(reply.Mode),
			EntryCount:      reply.EntryCount,
			Intent:          string(reply.Intent),
			TranscribedText: transcribed,
		},
	}, nil
}

// Transcribe converts a recording to text, failing with ErrTranscription
// when nothing intelligible comes back
func (s *TurnService) Transcribe(ctx context.Context, audio []byte, languageCode string) (repositories.Transcript, error) {
	if languageCode == "" {
		languageCode = s.defaultLanguage
	}

	transcript, err := s.speechToText.TranscribeAudio(ctx, audio, repositories.AudioConfig{Language: languageCode})
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	transcript.Text = strings.TrimSpace(transcript.Text)
	if transcript.Text == "" {
		return repositories.Transcript{}, fmt.Errorf("%w: no speech detected", ErrTranscription)
	}
	if transcript.LanguageCode == "" {
		transcript.LanguageCode = languageCode
	}

	s.logger.Info("Transcription completed",
		zap.Int("audioSize", len(audio)),
		zap.String("languageCode", transcript.LanguageCode))
	return transcript, nil
}

// Stream writes the metadata record before synthesis starts, then every
// audio chunk in production order, then done. A synthesis failure leaves a
// text-only stream that still ends with done. Write errors abort the stream.
func (s *TurnService) Stream(ctx context.Context, turn *PreparedTurn, w RecordWriter) error {
	if err := w.WriteMetadata(turn.Metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	s.logger.Info("Metadata emitted",
		zap.String("sessionID", turn.Metadata.SessionID),
		zap.String("mode", turn.Metadata.Mode),
		zap.Int("entryCount", turn.Metadata.EntryCount))

	synthCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := s.textToSpeech.ConvertTextToSpeech(synthCtx, turn.Metadata.Response)
	if err != nil {
		s.logger.Warn("Synthesis degraded to text only",
			zap.String("sessionID", turn.Metadata.SessionID),
			zap.Error(err))
		return s.writeDone(w)
	}

	chunkCount := 0
	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		if err := w.WriteAudio(chunk); err != nil {
			return fmt.Errorf("failed to write audio chunk %d: %w", chunkCount, err)
		}
		chunkCount++
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug("Synthesis finished",
		zap.String("sessionID", turn.Metadata.SessionID),
		zap.Int("chunks", chunkCount))
	return s.writeDone(w)
}

func (s *TurnService) writeDone(w RecordWriter) error {
	if err := w.WriteDone(); err != nil {
		return fmt.Errorf("failed to write done: %w", err)
	}
	return nil
}

// Respond synthesizes the whole reply and returns it in one response.
// Audio is omitted when synthesis fails.
func (s *TurnService) Respond(ctx context.Context, turn *PreparedTurn) (*domain.TurnResponse, error) {
	collector := &audioCollector{}
	if err := s.Stream(ctx, turn, collector); err != nil {
		return nil, err
	}

	response := &domain.TurnResponse{
		Response:        turn.Metadata.Response,
		SessionID:       turn.Metadata.SessionID,
		Mode:            turn.Metadata.Mode,
		EntryCount:      turn.Metadata.EntryCount,
		Intent:          turn.Metadata.Intent,
		TranscribedText: turn.Metadata.TranscribedText,
	}
	if collector.audio.Len() > 0 {
		response.AudioBase64 = base64.StdEncoding.EncodeToString(collector.audio.Bytes())
	}
	return response, nil
}

// Synthesize returns the complete speech for text
func (s *TurnService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidTurn)
	}

	chunks, err := s.textToSpeech.ConvertTextToSpeech(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	collector := &audioCollector{}
	for chunk := range chunks {
		collector.WriteAudio(chunk)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if collector.audio.Len() == 0 {
		return nil, fmt.Errorf("%w: no audio produced", ErrSynthesis)
	}
	return collector.audio.Bytes(), nil
}

// audioCollector is a RecordWriter that concatenates the audio of a stream
type audioCollector struct {
	audio bytes.Buffer
}

func (c *audioCollector) WriteMetadata(frame.Metadata) error { return nil }
func (c *audioCollector) WriteAudio(chunk []byte) error {
	_, err := c.audio.Write(chunk)
	return err
}
func (c *audioCollector) WriteDone() error { return nil }
