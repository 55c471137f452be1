package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps events in a slice.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, events ...Event) error {
	for _, e := range events {
		if err := e.validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0)
	for _, e := range slices.Backward(s.events) {
		if !c.matches(e) {
			continue
		}
		out = append(out, e)
		if len(out) == c.limit() {
			break
		}
	}
	return out, nil
}
