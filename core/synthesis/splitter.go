package synthesis

import (
	"strings"
	"unicode"
)

// Chunk is one sentence of a reply scheduled for synthesis.
type Chunk struct {
	Index int
	Text  string
}

// SplitSentences cuts text after '.', '!' or '?' when whitespace follows.
// Text after the last terminator forms the final chunk. Blank chunks are
// dropped and the remaining chunks are numbered from 0 without gaps.
func SplitSentences(text string) []Chunk {
	chunks := []Chunk{}
	add := func(sentence string) {
		if sentence = strings.TrimSpace(sentence); sentence != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: sentence})
		}
	}

	start := 0
	var previous rune
	for i, r := range text {
		if unicode.IsSpace(r) && isTerminator(previous) {
			add(text[start:i])
			start = i
		}
		previous = r
	}
	add(text[start:])

	return chunks
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
