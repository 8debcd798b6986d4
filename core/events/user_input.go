package events

// KindUserTranscriptFinal identifies the final transcript for a recording.
const KindUserTranscriptFinal Kind = "user_input.transcript_final"

// UserTranscriptFinal carries the final transcript for a recording.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}
