package template

import "sync"

// SequenceStore backs sequence("name") expressions with named monotonic
// counters. One store is shared per running service so counters survive
// definition edits.
type SequenceStore struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewSequenceStore creates an empty store.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{values: make(map[string]int64)}
}

// Next returns the sequence's current value and advances it. A sequence seen
// for the first time begins at start.
func (s *SequenceStore) Next(name string, start int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[name]; !ok {
		s.values[name] = start
	}
	val := s.values[name]
	s.values[name]++
	return val
}

// Reset removes a sequence so the next use restarts from its start value.
func (s *SequenceStore) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, name)
}
