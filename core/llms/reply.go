package llms

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned when the model answered with nothing usable.
var ErrEmptyReply = errors.New("llm returned an empty reply")

// ReplyGenerator produces the assistant's answer to the conversation so far.
// The last turn is the user's finished utterance.
type ReplyGenerator interface {
	Reply(ctx context.Context, turns []Turn) (string, error)
}

type ReplyGeneratorFunc func(ctx context.Context, turns []Turn) (string, error)

func (f ReplyGeneratorFunc) Reply(ctx context.Context, turns []Turn) (string, error) {
	return f(ctx, turns)
}

// GenerationError wraps a failed call to a model provider.
type GenerationError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *GenerationError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
