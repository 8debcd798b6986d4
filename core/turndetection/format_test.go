package turndetection

import (
	"errors"
	"strings"
	"testing"

	"github.com/koscakluka/ema-turns/core/llms"
)

func TestNormalizeTextKeepsApostrophes(t *testing.T) {
	got := normalizeText("  Well, I'm   NOT sure... (maybe?) $5 + tax!  ")
	expected := "well i'm not sure maybe 5 tax"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestFormatContextRendersChatMarkupWithOpenLastMessage(t *testing.T) {
	got, err := FormatContext([]llms.Turn{
		{Role: llms.TurnRoleSystem, Content: "you are helpful"},
		llms.AssistantTurn("How can I help?"),
		llms.UserTurn("..."),
		llms.UserTurn("I think I'm done."),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "<|im_start|>assistant\nhow can i help<|im_end|>\n" +
		"<|im_start|>user\ni think i'm done"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestFormatContextFailsWhenNothingSurvives(t *testing.T) {
	_, err := FormatContext([]llms.Turn{
		{Role: llms.TurnRoleSystem, Content: "system only"},
		llms.UserTurn("?!"),
	})
	if !errors.Is(err, ErrEmptyContext) {
		t.Fatalf("expected ErrEmptyContext, got %v", err)
	}
}

func TestWhitespaceTokenizerRoundTrips(t *testing.T) {
	text := "  hello   there\nfriend  "
	pieces := WhitespaceTokenizer{}.Split(text)
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d: %q", len(pieces), pieces)
	}
	if joined := strings.Join(pieces, ""); joined != text {
		t.Fatalf("expected pieces to join back to %q, got %q", text, joined)
	}
}

func TestTruncateFromStartKeepsMostRecentTokens(t *testing.T) {
	got := truncateFromStart(WhitespaceTokenizer{}, "one two three four five", 2)
	if got != "four five" {
		t.Fatalf("expected %q, got %q", "four five", got)
	}

	if got := truncateFromStart(WhitespaceTokenizer{}, "short text", 10); got != "short text" {
		t.Fatalf("expected text under the limit to be unchanged, got %q", got)
	}
	if got := truncateFromStart(WhitespaceTokenizer{}, "a b c", 0); got != "a b c" {
		t.Fatalf("expected zero limit to disable truncation, got %q", got)
	}
}

type byteTokenizer struct{}

func (byteTokenizer) Split(text string) []string {
	pieces := make([]string, len(text))
	for i := range len(text) {
		pieces[i] = text[i : i+1]
	}
	return pieces
}

func TestTruncateFromStartDropsPartialRunes(t *testing.T) {
	// "é" is two bytes, keeping the last 3 bytes cuts it in half.
	got := truncateFromStart(byteTokenizer{}, "xéab", 3)
	if got != "ab" {
		t.Fatalf("expected %q, got %q", "ab", got)
	}
}
