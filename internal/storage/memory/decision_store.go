package memory

import (
	"context"
	"sync"

	"marketbond/internal/domain"
	"marketbond/internal/storage"
)

// DecisionStore is an in-memory append-only decision sink.
type DecisionStore struct {
	mu   sync.RWMutex
	data []*domain.Decision
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{}
}

// Append records a batch of decisions.
func (s *DecisionStore) Append(_ context.Context, decisions []*domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range decisions {
		if d == nil {
			return storage.ErrInvalidInput
		}
		dc := *d
		s.data = append(s.data, &dc)
	}
	return nil
}

// All returns a snapshot of every recorded decision in append order.
func (s *DecisionStore) All() []*domain.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Decision, len(s.data))
	for i, d := range s.data {
		dc := *d
		out[i] = &dc
	}
	return out
}

// Verify interface compliance at compile time.
var _ storage.DecisionStore = (*DecisionStore)(nil)
