package llms

import "testing"

func TestLastTurnsKeepsMostRecent(t *testing.T) {
	turns := []Turn{UserTurn("a"), AssistantTurn("b"), UserTurn("c")}

	last := LastTurns(turns, 2)
	if len(last) != 2 || last[0].Content != "b" || last[1].Content != "c" {
		t.Fatalf("expected [b c], got %v", last)
	}

	last[0].Content = "changed"
	if turns[1].Content != "b" {
		t.Fatalf("expected LastTurns to copy, original was modified")
	}
}

func TestLastTurnsHandlesShortAndEmptyWindows(t *testing.T) {
	turns := []Turn{UserTurn("a")}

	if got := LastTurns(turns, 5); len(got) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(got))
	}
	if got := LastTurns(turns, 0); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}
