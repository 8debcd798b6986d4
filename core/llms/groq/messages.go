package groq

import (
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-turns/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(instructions string, turns []llms.Turn) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}

	converted := []message{}
	if err := copier.Copy(&converted, turns); err != nil {
		logger.Warn("failed to convert turns to messages", "error", err)
		return messages
	}
	for _, msg := range converted {
		if msg.Content == "" {
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}
