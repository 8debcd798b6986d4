package events

import "github.com/koscakluka/ema-turns/core/texttospeech"

// KindAssistantSpeechChunk identifies one ordered synthesized sentence.
const KindAssistantSpeechChunk Kind = "assistant_speech.chunk"

// AssistantSpeechChunk carries the audio for one sentence of the reply.
type AssistantSpeechChunk struct {
	Base
	TurnID   string
	Index    int
	Text     string
	Waveform texttospeech.Waveform
	Err      error
}

// NewAssistantSpeechChunk creates an assistant speech chunk event.
func NewAssistantSpeechChunk(turnID string, index int, text string, waveform texttospeech.Waveform, err error) AssistantSpeechChunk {
	return AssistantSpeechChunk{
		Base:     NewBase(KindAssistantSpeechChunk),
		TurnID:   turnID,
		Index:    index,
		Text:     text,
		Waveform: waveform,
		Err:      err,
	}
}

// Skipped reports a chunk that carries no audio.
func (c AssistantSpeechChunk) Skipped() bool {
	return c.Err != nil || c.Waveform.IsEmpty()
}
