package turndetection

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits text into tokens. Concatenating the returned pieces must
// give back the input exactly.
type Tokenizer interface {
	Split(text string) []string
}

// WhitespaceTokenizer approximates tokens by words, each word carrying the
// whitespace in front of it.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Split(text string) []string {
	var pieces []string
	start := 0
	inWord := false
	for i, r := range text {
		isSpace := unicode.IsSpace(r)
		if isSpace && inWord {
			pieces = append(pieces, text[start:i])
			start = i
		}
		inWord = !isSpace
	}

	if start < len(text) {
		rest := text[start:]
		if strings.TrimSpace(rest) == "" && len(pieces) > 0 {
			pieces[len(pieces)-1] += rest
		} else {
			pieces = append(pieces, rest)
		}
	}
	return pieces
}

// truncateFromStart keeps the last maxTokens tokens of text.
func truncateFromStart(tokenizer Tokenizer, text string, maxTokens int) string {
	if maxTokens <= 0 || tokenizer == nil {
		return text
	}

	pieces := tokenizer.Split(text)
	if len(pieces) <= maxTokens {
		return text
	}

	truncated := strings.Join(pieces[len(pieces)-maxTokens:], "")
	// Byte level tokenizers may cut a rune in half.
	for len(truncated) > 0 && !utf8.RuneStart(truncated[0]) {
		truncated = truncated[1:]
	}
	return strings.TrimLeftFunc(truncated, unicode.IsSpace)
}
