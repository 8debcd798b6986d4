package events

// KindAssistantResponseFinal identifies the complete reply text.
const KindAssistantResponseFinal Kind = "assistant_response.final"

// AssistantResponseFinal carries the generated reply before synthesis.
type AssistantResponseFinal struct {
	Base
	TurnID string
	Text   string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(turnID, text string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), TurnID: turnID, Text: text}
}
