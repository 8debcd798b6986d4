package turndetection

import (
	"errors"
	"strings"
	"unicode"

	"github.com/koscakluka/ema-turns/core/llms"
)

const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>"
)

// ErrEmptyContext is returned when no message survives normalization.
var ErrEmptyContext = errors.New("no user or assistant content to score")

// normalizeText removes ASCII punctuation except apostrophes, lowercases and
// collapses whitespace.
func normalizeText(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsPunct(r) && r != '\'' {
			return -1
		}
		// IsPunct leaves out the ASCII symbols ($+<=>^`|~).
		if r < unicode.MaxASCII && unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, text)

	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// FormatContext renders turns in the chat markup the classifier was trained
// on. Only user and assistant turns are kept, and the closing tag of the
// last message is left off so the classifier can predict it.
func FormatContext(turns []llms.Turn) (string, error) {
	var formatted strings.Builder
	for _, turn := range turns {
		if turn.Role != llms.TurnRoleUser && turn.Role != llms.TurnRoleAssistant {
			continue
		}

		content := normalizeText(turn.Content)
		if content == "" {
			continue
		}

		formatted.WriteString(imStart)
		formatted.WriteString(string(turn.Role))
		formatted.WriteString("\n")
		formatted.WriteString(content)
		formatted.WriteString(imEnd)
		formatted.WriteString("\n")
	}

	text := formatted.String()
	ix := strings.LastIndex(text, imEnd)
	if ix < 0 {
		return "", ErrEmptyContext
	}
	return text[:ix], nil
}
