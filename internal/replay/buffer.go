// Package replay stores past transitions for off-policy Q-learning.
package replay

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// ErrEmpty is returned when sampling from an empty buffer.
var ErrEmpty = errors.New("replay: buffer is empty")

// Transition is one environment step.
//
// Observation and Next hold one flat channel-first frame per modality.
type Transition struct {
	Observation [][]float32
	Action      int
	Reward      float32
	Next        [][]float32
	Terminal    bool
}

// Buffer is a fixed-capacity ring of transitions. Once full, the oldest
// transition is overwritten. Safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	items []Transition
	next  int
	full  bool
}

// New creates a buffer holding at most capacity transitions.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("replay: capacity must be positive (got %d)", capacity)
	}
	return &Buffer{items: make([]Transition, capacity)}, nil
}

// Add stores t, evicting the oldest transition when the buffer is full.
func (b *Buffer) Add(t Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.next] = t
	b.next++
	if b.next == len(b.items) {
		b.next = 0
		b.full = true
	}
}

// Len returns the number of stored transitions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.len()
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.items)
}

func (b *Buffer) len() int {
	if b.full {
		return len(b.items)
	}
	return b.next
}

// Sample draws n transitions uniformly with replacement.
func (b *Buffer) Sample(n int, rng *rand.Rand) ([]Transition, error) {
	if n <= 0 {
		return nil, fmt.Errorf("replay: sample size must be positive (got %d)", n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.len()
	if size == 0 {
		return nil, ErrEmpty
	}

	batch := make([]Transition, n)
	for i := range batch {
		batch[i] = b.items[rng.Intn(size)]
	}
	return batch, nil
}
