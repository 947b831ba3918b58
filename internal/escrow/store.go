package escrow

import (
	"fmt"
	"sync"
)

// Store is the canonical append-only collection of task records, keyed
// by a monotonically increasing id starting at 1. Id 0 is the "no task"
// sentinel and is never assigned. Records are never deleted.
//
// The write lock is the engine's single-writer discipline: every
// mutating call on a task runs inside Mutate, so conflicting calls are
// serialized in lock-acquisition order and the loser observes the
// winner's status.
type Store struct {
	mu     sync.RWMutex
	lastID uint64
	tasks  map[uint64]*Task
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{tasks: make(map[uint64]*Task)}
}

// Create assigns the next id to t and appends it. The id sequence
// increases by exactly 1 per creation and ids are never reused.
func (s *Store) Create(t *Task) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	t.ID = s.lastID
	s.tasks[t.ID] = t
	return t.ID
}

// Mutate runs fn on the task record under the write lock. If fn returns
// an error the record must be left unchanged by fn; Mutate itself never
// modifies anything.
func (s *Store) Mutate(id uint64, fn func(t *Task) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	return fn(t)
}

// Get returns a copy of the task record.
func (s *Store) Get(id uint64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	return *t, nil
}

// Count returns the last assigned task id.
func (s *Store) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID
}
