package orchestration

import (
	"fmt"

	"github.com/koscakluka/ema-turns/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newSessionEventEmitter fans events out to the session handlers. A
// panicking handler is logged and does not take the turn down with it.
func newSessionEventEmitter(opts sessionHandlers) eventEmitter {
	if opts.onEvent == nil && opts.onSpeechChunk == nil {
		return noopEventEmitter
	}

	return func(event events.Event) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("session event handler panicked",
					"kind", string(event.Kind()),
					"error", fmt.Sprint(recovered))
			}
		}()

		if chunk, ok := event.(events.AssistantSpeechChunk); ok && opts.onSpeechChunk != nil {
			opts.onSpeechChunk(chunk)
		}
		if opts.onEvent != nil {
			opts.onEvent(event)
		}
	}
}
