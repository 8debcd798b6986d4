package texttospeech

import "errors"

var (
	ErrEmptyText  = errors.New("nothing to synthesize")
	ErrEmptyAudio = errors.New("provider returned no audio")
)

// SynthesisError is returned by providers when a chunk could not be
// synthesized.
type SynthesisError struct {
	Provider string
	Text     string
	Message  string
	Cause    error

	// Retryable is set for transient provider failures (rate limits,
	// dropped connections).
	Retryable bool
}

func NewSynthesisError(provider, text, message string, cause error, retryable bool) *SynthesisError {
	return &SynthesisError{
		Provider:  provider,
		Text:      text,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}
