package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketbond/internal/domain"
	"marketbond/internal/storage"
)

// BondStore is an in-memory implementation of storage.BondStore.
type BondStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bond // keyed by pair id
}

// NewBondStore creates a new in-memory bond store.
func NewBondStore() *BondStore {
	return &BondStore{
		data: make(map[string]*domain.Bond),
	}
}

// Upsert inserts the bond or updates the stored version, keyed by pair id.
// Stored scores are replaced only when the new tier is strictly better; an
// equal or worse tier only refreshes LastValidated. CreatedAt and Status of
// an existing bond are preserved.
func (s *BondStore) Upsert(_ context.Context, b *domain.Bond) error {
	if b == nil || b.PairID == "" {
		return storage.ErrInvalidInput
	}
	if b.Tier != 1 && b.Tier != 2 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.data[b.PairID]
	if exists && b.Tier >= prev.Tier {
		prev.LastValidated = b.LastValidated
		return nil
	}

	stored := cloneBond(b)
	if exists {
		stored.CreatedAt = prev.CreatedAt
		stored.Status = prev.Status
	}
	s.data[b.PairID] = stored
	return nil
}

// GetByPairID retrieves a bond by pair id. Returns ErrNotFound if not exists.
func (s *BondStore) GetByPairID(_ context.Context, pairID string) (*domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[pairID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneBond(b), nil
}

// List retrieves active bonds with tier <= maxTier, ordered by tier ASC then
// pair id ASC. maxTier <= 0 means all tiers.
func (s *BondStore) List(_ context.Context, maxTier int) ([]*domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bond
	for _, b := range s.data {
		if b.Status != domain.BondActive {
			continue
		}
		if maxTier > 0 && b.Tier > maxTier {
			continue
		}
		result = append(result, cloneBond(b))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Tier != result[j].Tier {
			return result[i].Tier < result[j].Tier
		}
		return result[i].PairID < result[j].PairID
	})
	return result, nil
}

// SetStatus moves a bond to the given status.
func (s *BondStore) SetStatus(_ context.Context, pairID string, status domain.BondStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.data[pairID]
	if !exists {
		return storage.ErrNotFound
	}
	b.Status = status
	return nil
}

// MarkValidated moves a bond to status validated and refreshes LastValidated.
func (s *BondStore) MarkValidated(_ context.Context, pairID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.data[pairID]
	if !exists {
		return storage.ErrNotFound
	}
	b.Status = domain.BondValidated
	b.LastValidated = at
	return nil
}

func cloneBond(b *domain.Bond) *domain.Bond {
	out := *b
	if b.OutcomeMapping != nil {
		out.OutcomeMapping = make(map[string]string, len(b.OutcomeMapping))
		for k, v := range b.OutcomeMapping {
			out.OutcomeMapping[k] = v
		}
	}
	return &out
}

// Verify interface compliance at compile time.
var _ storage.BondStore = (*BondStore)(nil)
