// Package keylock provides mutual exclusion keyed by an arbitrary string,
// typically an instance id.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Set hands out one mutex per key. Entries are reference counted and dropped
// once no goroutine holds or waits on them, so the set does not grow with
// every id ever seen.
type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Set {
	return &Set{entries: map[string]*entry{}}
}

// Lock blocks until the key's mutex is held and returns the matching unlock.
func (s *Set) Lock(key string) (unlock func()) {
	s.mu.Lock()
	if s.entries == nil {
		s.entries = map[string]*entry{}
	}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			s.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(s.entries, key)
			}
			s.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
