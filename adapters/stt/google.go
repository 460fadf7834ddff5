package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/voicejournal/domain/repositories"
)

const defaultLanguage = "en-IN"

// ErrNoSpeech is returned when the recording contains no recognisable speech
var ErrNoSpeech = errors.New("no speech detected in audio")

// GoogleConfig holds configuration for the Google Cloud Speech adapter
type GoogleConfig struct {
	// CredentialsFile is optional; application default credentials are used when empty
	CredentialsFile string
	// DefaultLanguage is used when a request does not name a language
	DefaultLanguage string
	// AlternativeLanguages lets the recogniser pick between several languages
	AlternativeLanguages []string
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client               *speech.Client
	defaultLanguage      string
	alternativeLanguages []string
	logger               *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the speech client once for the life of the adapter
func NewGoogleSpeechToText(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	language := config.DefaultLanguage
	if language == "" {
		language = defaultLanguage
	}

	return &GoogleSpeechToText{
		client:               client,
		defaultLanguage:      language,
		alternativeLanguages: config.AlternativeLanguages,
		logger:               logger,
	}, nil
}

// TranscribeAudio converts audio data to text using Google Cloud Speech-to-Text (non-streaming)
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (repositories.Transcript, error) {
	if len(audioData) == 0 {
		return repositories.Transcript{}, fmt.Errorf("no audio data received")
	}

	encodingName := config.Encoding
	if encodingName == "" {
		encodingName = DetectEncoding(audioData)
	}
	encoding, err := getAudioEncoding(encodingName)
	if err != nil {
		return repositories.Transcript{}, err
	}

	language := config.Language
	if language == "" {
		language = g.defaultLanguage
	}

	request := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(defaultSampleRate(encodingName, config.SampleRate)),
			LanguageCode:               language,
			AlternativeLanguageCodes:   g.alternativeLanguages,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	}

	g.logger.Debug("Transcribing audio",
		zap.Int("audioSize", len(audioData)),
		zap.String("encoding", encodingName),
		zap.String("language", language))

	response, err := g.client.Recognize(ctx, request)
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("failed to recognize audio: %w", err)
	}

	var parts []string
	detectedLanguage := language
	for _, result := range response.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		if result.LanguageCode != "" {
			detectedLanguage = result.LanguageCode
		}
	}

	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return repositories.Transcript{}, ErrNoSpeech
	}

	return repositories.Transcript{Text: text, LanguageCode: detectedLanguage}, nil
}

// Close releases the underlying client
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}
