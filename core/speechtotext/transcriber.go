package speechtotext

import "context"

// Transcriber turns a finished recording into text. Audio defaults to mono
// linear16 at audio.DefaultSampleRate.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts ...TranscriptionOption) (string, error)
}

type TranscriberFunc func(ctx context.Context, audio []byte, opts ...TranscriptionOption) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte, opts ...TranscriptionOption) (string, error) {
	return f(ctx, audio, opts...)
}

// TranscriptionError is returned when a provider could not transcribe the
// audio.
type TranscriptionError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *TranscriptionError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}
