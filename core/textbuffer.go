package orchestration

import (
	"strings"
	"sync"
)

// utteranceBuffer aggregates transcript fragments of the user's current
// utterance in arrival order.
type utteranceBuffer struct {
	mu        sync.Mutex
	fragments []string
}

func newUtteranceBuffer() *utteranceBuffer {
	return &utteranceBuffer{}
}

// Append stores the trimmed fragment and returns the whole utterance so far.
// Blank fragments are ignored.
func (b *utteranceBuffer) Append(fragment string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fragment = strings.TrimSpace(fragment); fragment != "" {
		b.fragments = append(b.fragments, fragment)
	}
	return strings.Join(b.fragments, " ")
}

func (b *utteranceBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.Join(b.fragments, " ")
}

func (b *utteranceBuffer) Fragments() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string{}, b.fragments...)
}

func (b *utteranceBuffer) Reset() {
	b.mu.Lock()
	b.fragments = nil
	b.mu.Unlock()
}
