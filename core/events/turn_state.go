package events

const (
	// KindTurnBuffered identifies a fragment that did not complete the turn.
	KindTurnBuffered Kind = "turn_state.buffered"
	// KindTurnBusy identifies a fragment dropped because a turn is in flight.
	KindTurnBusy Kind = "turn_state.busy"
	// KindTurnStarted identifies the start of turn processing.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnCompleted identifies a successfully completed turn.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnFailed identifies a failed turn.
	KindTurnFailed Kind = "turn_state.failed"
)

// ConversationEvent is the outcome of handing a fragment to the
// coordinator.
type ConversationEvent interface {
	Event
	conversationEvent()
}

// TurnBuffered reports the buffered utterance and its end-of-utterance
// probability.
type TurnBuffered struct {
	Base
	Text        string
	Probability float64
}

// NewTurnBuffered creates a turn buffered event.
func NewTurnBuffered(text string, probability float64) TurnBuffered {
	return TurnBuffered{Base: NewBase(KindTurnBuffered), Text: text, Probability: probability}
}

func (TurnBuffered) conversationEvent() {}

// TurnBusy reports a dropped fragment.
type TurnBusy struct {
	Base
	Fragment string
}

// NewTurnBusy creates a turn busy event.
func NewTurnBusy(fragment string) TurnBusy {
	return TurnBusy{Base: NewBase(KindTurnBusy), Fragment: fragment}
}

func (TurnBusy) conversationEvent() {}

// TurnStarted marks a complete utterance entering reply generation.
type TurnStarted struct {
	Base
	TurnID      string
	Text        string
	Probability float64
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(turnID, text string, probability float64) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), TurnID: turnID, Text: text, Probability: probability}
}

// TurnCompleted carries the committed user text, the reply and its ordered
// speech chunks.
type TurnCompleted struct {
	Base
	TurnID      string
	FinalText   string
	Probability float64
	ReplyText   string
	AudioChunks []AssistantSpeechChunk
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(turnID, finalText string, probability float64, replyText string, chunks []AssistantSpeechChunk) TurnCompleted {
	return TurnCompleted{
		Base:        NewBase(KindTurnCompleted),
		TurnID:      turnID,
		FinalText:   finalText,
		Probability: probability,
		ReplyText:   replyText,
		AudioChunks: chunks,
	}
}

func (TurnCompleted) conversationEvent() {}

// SkippedChunks counts chunks delivered without audio.
func (e TurnCompleted) SkippedChunks() int {
	skipped := 0
	for _, chunk := range e.AudioChunks {
		if chunk.Skipped() {
			skipped++
		}
	}
	return skipped
}

// TurnFailed carries a human readable reason and the underlying error, if
// any.
type TurnFailed struct {
	Base
	TurnID string
	Reason string
	Err    error
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(turnID, reason string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), TurnID: turnID, Reason: reason, Err: err}
}

func (TurnFailed) conversationEvent() {}
