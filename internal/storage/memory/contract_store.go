package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"marketbond/internal/domain"
	"marketbond/internal/embedding"
	"marketbond/internal/storage"
)

// ContractStore is an in-memory implementation of storage.ContractStore.
// Nearest-neighbor queries are an exact scan; fine for tests and the
// in-process pipeline, replaced by pgvector in production.
type ContractStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Contract // keyed by contract id
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		data: make(map[string]*domain.Contract),
	}
}

// Upsert inserts the contract or replaces the stored version, keyed by ID.
// Status only moves forward; CreatedAt of an existing row is preserved.
func (s *ContractStore) Upsert(_ context.Context, c *domain.Contract) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneContract(c)
	if prev, exists := s.data[c.ID]; exists {
		stored.CreatedAt = prev.CreatedAt
		if statusRank(stored.Status) < statusRank(prev.Status) {
			stored.Status = prev.Status
		}
	}
	s.data[c.ID] = stored
	return nil
}

// GetByID retrieves a contract by its platform-native ID.
func (s *ContractStore) GetByID(_ context.Context, id string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneContract(c), nil
}

// GetByConditionID retrieves a Polymarket contract by its condition id.
func (s *ContractStore) GetByConditionID(_ context.Context, conditionID string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.data {
		if c.ConditionID == conditionID && c.Platform == domain.PlatformPolymarket {
			return cloneContract(c), nil
		}
	}
	return nil, storage.ErrNotFound
}

// List retrieves contracts matching the filter, ordered by ID ASC.
func (s *ContractStore) List(_ context.Context, f storage.ContractFilter) ([]*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Contract
	for _, c := range s.data {
		if f.Platform != "" && c.Platform != f.Platform {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.EventType != "" && c.EventType != f.EventType {
			continue
		}
		result = append(result, cloneContract(c))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// NearestByEmbedding retrieves up to limit contracts nearest to the probe
// embedding by cosine similarity, most similar first, ties by ID ASC.
// Contracts without an embedding are invisible.
func (s *ContractStore) NearestByEmbedding(_ context.Context, probe []float32, platform domain.Platform, status domain.Status, limit int) ([]storage.Neighbor, error) {
	if len(probe) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []storage.Neighbor
	for _, c := range s.data {
		if c.Platform != platform || c.Status != status || len(c.Embedding) == 0 {
			continue
		}
		result = append(result, storage.Neighbor{
			Contract:   cloneContract(c),
			Similarity: embedding.Cosine(probe, c.Embedding),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Similarity != result[j].Similarity {
			return result[i].Similarity > result[j].Similarity
		}
		return result[i].Contract.ID < result[j].Contract.ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdatePrices applies quote updates in place. Updates for unknown contracts
// or outcome labels are skipped.
func (s *ContractStore) UpdatePrices(_ context.Context, updates []storage.PriceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		c, exists := s.data[u.ContractID]
		if !exists {
			continue
		}
		o := outcomeByLabel(c, u.OutcomeLabel)
		if o == nil {
			continue
		}
		if u.Bid != nil {
			v := *u.Bid
			o.Bid = &v
		}
		if u.Ask != nil {
			v := *u.Ask
			o.Ask = &v
		}
		if u.Mid != nil {
			v := *u.Mid
			o.Mid = &v
		}
		if u.ObservedAt.After(c.UpdatedAt) {
			c.UpdatedAt = u.ObservedAt
		}
	}
	return nil
}

// UpdateStatus advances the contract's lifecycle status.
// A backward transition is a no-op.
func (s *ContractStore) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if statusRank(status) > statusRank(c.Status) {
		c.Status = status
	}
	return nil
}

func statusRank(s domain.Status) int {
	switch s {
	case domain.StatusActive:
		return 0
	case domain.StatusClosed:
		return 1
	case domain.StatusResolved:
		return 2
	}
	return -1
}

func outcomeByLabel(c *domain.Contract, label string) *domain.Outcome {
	for i := range c.Outcome.Outcomes {
		if strings.EqualFold(c.Outcome.Outcomes[i].Label, label) {
			return &c.Outcome.Outcomes[i]
		}
	}
	return nil
}

// cloneContract deep-copies the fields that callers or the store may mutate
// after the call, so a returned contract never aliases stored state.
func cloneContract(c *domain.Contract) *domain.Contract {
	out := *c
	out.TokenIDs = append([]string(nil), c.TokenIDs...)
	out.Embedding = append([]float32(nil), c.Embedding...)
	out.Entities = domain.EntitySet{
		Tickers:       append([]string(nil), c.Entities.Tickers...),
		People:        append([]string(nil), c.Entities.People...),
		Organizations: append([]string(nil), c.Entities.Organizations...),
		Countries:     append([]string(nil), c.Entities.Countries...),
		Misc:          append([]string(nil), c.Entities.Misc...),
	}
	out.Outcome.Brackets = append([]domain.Bracket(nil), c.Outcome.Brackets...)
	out.Outcome.Outcomes = make([]domain.Outcome, len(c.Outcome.Outcomes))
	for i, o := range c.Outcome.Outcomes {
		oc := o
		oc.Bid = clonePtr(o.Bid)
		oc.Ask = clonePtr(o.Ask)
		oc.Mid = clonePtr(o.Mid)
		out.Outcome.Outcomes[i] = oc
	}
	out.FeeRate = clonePtr(c.FeeRate)
	return &out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Verify interface compliance at compile time.
var _ storage.ContractStore = (*ContractStore)(nil)
