package events

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-turns/core/texttospeech"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "user transcript final", event: NewUserTranscriptFinal("text"), expected: KindUserTranscriptFinal},
		{name: "assistant response final", event: NewAssistantResponseFinal("turn", "text"), expected: KindAssistantResponseFinal},
		{name: "assistant speech chunk", event: NewAssistantSpeechChunk("turn", 0, "text", texttospeech.Waveform{}, nil), expected: KindAssistantSpeechChunk},
		{name: "turn buffered", event: NewTurnBuffered("text", 0.2), expected: KindTurnBuffered},
		{name: "turn busy", event: NewTurnBusy("text"), expected: KindTurnBusy},
		{name: "turn started", event: NewTurnStarted("turn", "text", 0.7), expected: KindTurnStarted},
		{name: "turn completed", event: NewTurnCompleted("turn", "text", 0.7, "reply", nil), expected: KindTurnCompleted},
		{name: "turn failed", event: NewTurnFailed("turn", "reason", nil), expected: KindTurnFailed},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestFragmentOutcomesAreConversationEvents(t *testing.T) {
	outcomes := []ConversationEvent{
		NewTurnBuffered("text", 0.1),
		NewTurnBusy("text"),
		NewTurnCompleted("turn", "text", 0.9, "reply", nil),
		NewTurnFailed("turn", "reason", nil),
	}
	seen := map[Kind]bool{}
	for _, outcome := range outcomes {
		if seen[outcome.Kind()] {
			t.Fatalf("expected distinct kinds, %q repeated", outcome.Kind())
		}
		seen[outcome.Kind()] = true
	}
}

func TestSpeechChunkSkipped(t *testing.T) {
	withAudio := NewAssistantSpeechChunk("turn", 0, "Hi.", texttospeech.Waveform{SampleRate: 24000, Samples: []float32{0.1}}, nil)
	if withAudio.Skipped() {
		t.Fatalf("expected chunk with audio not to be skipped")
	}

	failed := NewAssistantSpeechChunk("turn", 1, "Hi.", texttospeech.Waveform{}, errors.New("boom"))
	if !failed.Skipped() {
		t.Fatalf("expected failed chunk to be skipped")
	}

	completed := NewTurnCompleted("turn", "text", 0.9, "Hi. Hi.", []AssistantSpeechChunk{withAudio, failed})
	if got := completed.SkippedChunks(); got != 1 {
		t.Fatalf("expected 1 skipped chunk, got %d", got)
	}
}
