package orchestration

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/koscakluka/ema-turns/core/events"
	"github.com/koscakluka/ema-turns/core/llms"
	"github.com/koscakluka/ema-turns/core/turndetection"
	"pgregory.net/rapid"
)

func TestUtteranceBufferJoinsTrimmedFragmentsInOrder(t *testing.T) {
	buffer := newUtteranceBuffer()

	if got := buffer.Append("  hello "); got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
	if got := buffer.Append("   "); got != "hello" {
		t.Fatalf("expected blank fragment to be ignored, got %q", got)
	}
	if got := buffer.Append("world\n"); got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
	if fragments := buffer.Fragments(); !slices.Equal(fragments, []string{"hello", "world"}) {
		t.Fatalf("unexpected fragments %v", fragments)
	}

	buffer.Reset()
	if got := buffer.String(); got != "" {
		t.Fatalf("expected empty buffer after reset, got %q", got)
	}
}

func TestTurnHistoryEvictsOldestPairs(t *testing.T) {
	history := newTurnHistory(2)
	for _, text := range []string{"a", "b", "c"} {
		history.Commit(llms.UserTurn(text), llms.AssistantTurn(strings.ToUpper(text)))
	}

	expected := []llms.Turn{
		llms.UserTurn("b"), llms.AssistantTurn("B"),
		llms.UserTurn("c"), llms.AssistantTurn("C"),
	}
	if got := history.Snapshot(); !slices.Equal(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if history.Len() != 4 {
		t.Fatalf("expected 4 turns, got %d", history.Len())
	}
}

func TestSessionSeedIsCapped(t *testing.T) {
	session := NewSession(context.Background(),
		WithSessionID("fixed"),
		WithSessionHistoryTurns(1),
		WithInitialHistory(
			llms.UserTurn("old"), llms.AssistantTurn("OLD"),
			llms.UserTurn(""),
			llms.UserTurn("new"), llms.AssistantTurn("NEW"),
		),
	)
	defer session.Close()

	if session.ID() != "fixed" {
		t.Fatalf("expected session id %q, got %q", "fixed", session.ID())
	}
	expected := []llms.Turn{llms.UserTurn("new"), llms.AssistantTurn("NEW")}
	if got := session.History(); !slices.Equal(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestSessionGuardIsSingleFlight(t *testing.T) {
	session := NewSession(context.Background())
	defer session.Close()

	if !session.tryAcquire() {
		t.Fatalf("expected idle session to be acquired")
	}
	if session.tryAcquire() {
		t.Fatalf("expected second acquire to fail")
	}
	if !session.IsBusy() {
		t.Fatalf("expected session to be busy")
	}
	session.release()
	if session.IsBusy() || !session.tryAcquire() {
		t.Fatalf("expected released session to be acquirable")
	}
}

func TestSessionCloseEndsDone(t *testing.T) {
	session := NewSession(context.Background())
	session.Close()

	select {
	case <-session.Done():
	default:
		t.Fatalf("expected Done to be closed after Close")
	}
}

func TestBufferedFragmentsNeverTouchHistory(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.Float64Range(0.1, 1).Draw(rt, "threshold")
		scores := rapid.SliceOfN(rapid.Float64Range(0, threshold-0.01), 1, 20).Draw(rt, "scores")
		fragments := rapid.SliceOfN(rapid.StringMatching(`[ a-z]{0,12}`), len(scores), len(scores)).Draw(rt, "fragments")

		call := 0
		scorer := turndetection.ScorerFunc(func(context.Context, string) (float64, error) {
			score := scores[call%len(scores)]
			call++
			return score, nil
		})
		c, err := NewCoordinator(
			WithTurnDetector(turndetection.NewDetector(scorer, turndetection.WithThreshold(threshold))),
			WithLLM(llms.ReplyGeneratorFunc(func(context.Context, []llms.Turn) (string, error) {
				rt.Fatalf("reply generation must not run for incomplete utterances")
				return "", nil
			})),
		)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		seed := []llms.Turn{llms.UserTurn("hi"), llms.AssistantTurn("hello")}
		session := c.NewSession(context.Background(), WithInitialHistory(seed...))
		defer session.Close()

		var admitted []string
		for _, fragment := range fragments {
			event := c.HandleFragment(context.Background(), session, fragment)
			if strings.TrimSpace(fragment) == "" {
				if event != nil {
					rt.Fatalf("expected no event for blank fragment, got %T", event)
				}
			} else {
				admitted = append(admitted, strings.TrimSpace(fragment))
				buffered, ok := event.(events.TurnBuffered)
				if !ok {
					rt.Fatalf("expected TurnBuffered, got %T", event)
				}
				if buffered.Text != strings.Join(admitted, " ") {
					rt.Fatalf("expected buffered text %q, got %q", strings.Join(admitted, " "), buffered.Text)
				}
			}

			if history := session.History(); !slices.Equal(history, seed) {
				rt.Fatalf("expected history %v, got %v", seed, history)
			}
		}
	})
}
