package stream

import (
	"errors"
	"sync"

	"github.com/slyt3/Covenant/internal/escrow"
)

var errBufferFull = errors.New("event buffer is full")

// buffer is a thread-safe, fixed-size ring of pending events.
// Zero-allocation on push/pop.
type buffer struct {
	mu       sync.Mutex
	data     []escrow.Event
	capacity int
	head     int
	tail     int
	count    int
}

func newBuffer(capacity int) *buffer {
	return &buffer{
		data:     make([]escrow.Event, capacity),
		capacity: capacity,
	}
}

// push adds an event, or returns errBufferFull at capacity. The caller
// handles backpressure.
func (b *buffer) push(ev escrow.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		return errBufferFull
	}
	b.data[b.tail] = ev
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	return nil
}

// pop removes and returns the oldest event; ok is false when empty.
func (b *buffer) pop() (escrow.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return escrow.Event{}, false
	}
	ev := b.data[b.head]
	b.data[b.head] = escrow.Event{}
	b.head = (b.head + 1) % b.capacity
	b.count--
	return ev, true
}

func (b *buffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
