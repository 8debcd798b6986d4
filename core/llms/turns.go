package llms

import "strings"

type TurnRole string

const (
	TurnRoleSystem    TurnRole = "system"
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is a single contribution to the conversation.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

func UserTurn(content string) Turn {
	return Turn{Role: TurnRoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: TurnRoleAssistant, Content: content}
}

func (t Turn) IsEmpty() bool {
	return strings.TrimSpace(t.Content) == ""
}

// LastTurns returns at most n of the most recent turns. The result shares
// no memory with turns.
func LastTurns(turns []Turn, n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	last := make([]Turn, len(turns))
	copy(last, turns)
	return last
}
