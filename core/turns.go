package orchestration

import (
	"slices"

	"github.com/koscakluka/ema-turns/core/llms"
)

const DefaultMaxHistoryTurns = 2

// turnHistory keeps the committed conversation, capped at maxPairs
// user/assistant pairs. It is not safe for concurrent use, Session guards it.
type turnHistory struct {
	turns    []llms.Turn
	maxPairs int
}

func newTurnHistory(maxPairs int, seed ...llms.Turn) turnHistory {
	history := turnHistory{maxPairs: maxPairs}
	for _, turn := range seed {
		if !turn.IsEmpty() {
			history.turns = append(history.turns, turn)
		}
	}
	history.truncate()
	return history
}

// Commit appends a completed exchange and evicts the oldest pairs beyond the
// cap.
func (t *turnHistory) Commit(user, assistant llms.Turn) {
	t.turns = append(t.turns, user, assistant)
	t.truncate()
}

func (t *turnHistory) truncate() {
	if t.maxPairs <= 0 {
		return
	}
	if limit := t.maxPairs * 2; len(t.turns) > limit {
		t.turns = slices.Clone(t.turns[len(t.turns)-limit:])
	}
}

// Snapshot returns a copy of the stored turns, oldest first.
func (t *turnHistory) Snapshot() []llms.Turn {
	return append([]llms.Turn{}, t.turns...)
}

func (t *turnHistory) Len() int {
	return len(t.turns)
}
