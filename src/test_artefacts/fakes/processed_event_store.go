package fakes

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type ProcessedEventStore struct {
	mu        sync.Mutex
	processed map[uuid.UUID]bool
	err       error
}

func NewProcessedEventStore() *ProcessedEventStore {
	return &ProcessedEventStore{processed: make(map[uuid.UUID]bool)}
}

// FailWith simulates the store being down.
func (s *ProcessedEventStore) FailWith(err error) *ProcessedEventStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

func (s *ProcessedEventStore) IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.processed[eventID], nil
}

func (s *ProcessedEventStore) MarkProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.processed[eventID] {
		return false, nil
	}
	s.processed[eventID] = true
	return true, nil
}
