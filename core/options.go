package orchestration

import (
	"time"

	"github.com/koscakluka/ema-turns/core/llms"
	"github.com/koscakluka/ema-turns/core/speechtotext"
	"github.com/koscakluka/ema-turns/core/synthesis"
	"github.com/koscakluka/ema-turns/core/texttospeech"
	"github.com/koscakluka/ema-turns/core/turndetection"
)

type CoordinatorOption func(*Coordinator)

func WithTurnDetector(detector *turndetection.Detector) CoordinatorOption {
	return func(c *Coordinator) {
		c.detector = detector
	}
}

// WithLLM sets the collaborator that writes the assistant's replies.
func WithLLM(client llms.ReplyGenerator) CoordinatorOption {
	return func(c *Coordinator) {
		c.llm.set(client)
	}
}

// WithTextToSpeech enables spoken replies. Without it turns complete with
// text only.
func WithTextToSpeech(client texttospeech.Synthesizer) CoordinatorOption {
	return func(c *Coordinator) {
		c.synthesizer = client
	}
}

// WithSpeechToText enables SubmitAudio.
func WithSpeechToText(client speechtotext.Transcriber) CoordinatorOption {
	return func(c *Coordinator) {
		c.transcriber = client
	}
}

// WithSynthesisWorkers bounds concurrent synthesis calls per reply.
func WithSynthesisWorkers(workers int) CoordinatorOption {
	return func(c *Coordinator) {
		if workers > 0 {
			c.synthesisWorkers = workers
		}
	}
}

// WithMaxHistoryTurns caps committed history of sessions created through
// the coordinator, in user/assistant pairs.
func WithMaxHistoryTurns(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxHistoryTurns = n
		}
	}
}

// WithTurnTimeout bounds reply generation and synthesis of a turn. Zero
// means no deadline.
func WithTurnTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if timeout >= 0 {
			c.turnTimeout = timeout
		}
	}
}

func defaultCoordinator() *Coordinator {
	return &Coordinator{
		synthesisWorkers: synthesis.DefaultWorkers,
		maxHistoryTurns:  DefaultMaxHistoryTurns,
	}
}
