package wsapi

const (
	typeTranscript        = "transcript"
	typeProcessing        = "processing"
	typeAssistantText     = "assistant_text"
	typeAudioChunk        = "audio_chunk"
	typeAssistantResponse = "assistant_response"
	typeError             = "error"
)

// clientMessage is a text frame sent by the client. Audio arrives as binary
// frames of mono PCM16 at 16 kHz.
type clientMessage struct {
	Type       string  `json:"type,omitempty"`
	Transcript *string `json:"transcript"`
}

type transcriptMessage struct {
	Type       string  `json:"type"`
	Transcript string  `json:"transcript"`
	EOUScore   float64 `json:"eou_score"`
	IsComplete bool    `json:"is_complete"`
}

type processingMessage struct {
	Type         string `json:"type"`
	IsProcessing bool   `json:"is_processing"`
}

type assistantTextMessage struct {
	Type     string `json:"type"`
	Response string `json:"response"`
}

// audioChunkMessage carries one sentence of the reply as a base64 WAV. A
// skipped chunk has no audio.
type audioChunkMessage struct {
	Type       string `json:"type"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate"`
	Skipped    bool   `json:"skipped"`
}

type assistantResponseMessage struct {
	Type     string `json:"type"`
	Response string `json:"response"`
	Audio    string `json:"audio"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorMessage(message string) errorMessage {
	return errorMessage{Type: typeError, Message: message}
}
