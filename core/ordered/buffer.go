// Package ordered releases values produced out of order strictly by index.
package ordered

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrDuplicateIndex  = errors.New("index already buffered")
	ErrAlreadyReleased = errors.New("index already released")
)

// Buffer holds values for indices 0..total-1 until every smaller index has
// been released. Put is safe from any number of goroutines, Drain has a
// single consumer.
type Buffer[T any] struct {
	mu      sync.Mutex
	pending map[int]T
	next    int
	total   int

	updateSignal chan struct{}
}

func NewBuffer[T any](total int) *Buffer[T] {
	return &Buffer[T]{
		pending:      make(map[int]T),
		total:        max(total, 0),
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *Buffer[T]) Put(index int, value T) error {
	b.mu.Lock()
	switch {
	case index < 0 || index >= b.total:
		b.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, b.total)
	case index < b.next:
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrAlreadyReleased, index)
	}
	if _, ok := b.pending[index]; ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDuplicateIndex, index)
	}
	b.pending[index] = value
	b.mu.Unlock()

	b.signalUpdate()
	return nil
}

// Drain yields values in index order, waiting for each missing index. It
// stops after the last index or when ctx is done, check Done to tell the two
// apart.
func (b *Buffer[T]) Drain(ctx context.Context) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for {
			b.mu.Lock()
			if b.next >= b.total {
				b.mu.Unlock()
				return
			}

			if value, ok := b.pending[b.next]; ok {
				index := b.next
				delete(b.pending, index)
				b.next++
				b.mu.Unlock()
				if !yield(index, value) {
					return
				}
				continue
			}
			b.mu.Unlock()

			select {
			case <-b.updateSignal:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Next is the index the buffer is waiting for.
func (b *Buffer[T]) Next() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Pending counts values received but not yet released.
func (b *Buffer[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Done reports whether every index has been released.
func (b *Buffer[T]) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next >= b.total
}

func (b *Buffer[T]) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
