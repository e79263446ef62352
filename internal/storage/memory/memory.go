// Package memory is a catalog.Store that keeps sealed state in process memory.
package memory

import (
	"context"
	"sync"

	"bookshelf/internal/catalog"
	"bookshelf/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	sealed []byte
	events []catalog.Event

	// FailNext makes the next Commit return this error and then clears it.
	FailNext error
}

func New() *Store {
	return &Store{}
}

// Load returns the last committed state, or false if nothing was committed.
func (s *Store) Load(ctx context.Context) (catalog.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed == nil {
		return catalog.State{}, false, nil
	}
	st, err := storage.Unseal(s.sealed)
	if err != nil {
		return catalog.State{}, false, err
	}
	return st, true, nil
}

func (s *Store) Commit(ctx context.Context, state catalog.State, event catalog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailNext; err != nil {
		s.FailNext = nil
		return err
	}
	sealed, err := storage.Seal(state)
	if err != nil {
		return err
	}
	s.sealed = sealed
	s.events = append(s.events, event)
	return nil
}

// Events returns the events committed so far, oldest first.
func (s *Store) Events() []catalog.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Event, len(s.events))
	copy(out, s.events)
	return out
}
