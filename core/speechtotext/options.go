package speechtotext

import "github.com/koscakluka/ema-turns/core/audio"

type TranscriptionOptions struct {
	EncodingInfo audio.EncodingInfo
	Language     string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}
