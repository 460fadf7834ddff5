package stt

import (
	"bytes"
	"fmt"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

// Encoding names understood by getAudioEncoding
const (
	EncodingLinear16 = "LINEAR16"
	EncodingWebmOpus = "WEBM_OPUS"
	EncodingOggOpus  = "OGG_OPUS"
	EncodingMP3      = "MP3"
)

// DetectEncoding guesses the container of a recording from its magic bytes.
// Unrecognised data is assumed to be browser MediaRecorder output (webm/opus).
func DetectEncoding(audio []byte) string {
	switch {
	case len(audio) >= 12 && bytes.Equal(audio[:4], []byte("RIFF")) && bytes.Equal(audio[8:12], []byte("WAVE")):
		return EncodingLinear16
	case bytes.HasPrefix(audio, []byte{0x1a, 0x45, 0xdf, 0xa3}):
		return EncodingWebmOpus
	case bytes.HasPrefix(audio, []byte("OggS")):
		return EncodingOggOpus
	case bytes.HasPrefix(audio, []byte("ID3")), bytes.HasPrefix(audio, []byte{0xff, 0xfb}):
		return EncodingMP3
	default:
		return EncodingWebmOpus
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", EncodingLinear16:
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case EncodingOggOpus:
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case EncodingWebmOpus:
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// defaultSampleRate fills in the rate for codecs whose container does not carry it
func defaultSampleRate(encoding string, sampleRate int) int {
	if sampleRate > 0 {
		return sampleRate
	}
	switch encoding {
	case EncodingWebmOpus, EncodingOggOpus:
		return 48000
	default:
		// LINEAR16 in a WAV container carries its own rate
		return 0
	}
}
