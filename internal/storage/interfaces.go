package storage

import (
	"context"
	"time"

	"marketbond/internal/domain"
)

// ContractFilter narrows contract queries. Zero values match everything.
type ContractFilter struct {
	Platform  domain.Platform
	Status    domain.Status
	EventType string
}

// PriceUpdate carries fresh quotes for one outcome of a contract.
// Nil pointers leave the stored value untouched.
type PriceUpdate struct {
	ContractID   string
	OutcomeLabel string
	Bid          *float64
	Ask          *float64
	Mid          *float64
	ObservedAt   time.Time
}

// Neighbor is a contract returned by a vector search together with its
// cosine similarity to the probe embedding.
type Neighbor struct {
	Contract   *domain.Contract
	Similarity float64
}

// ContractStore provides access to normalized contracts and their embeddings.
type ContractStore interface {
	// Upsert inserts the contract or replaces the stored version, keyed by ID.
	// Status may only move forward (active -> closed -> resolved); an upsert
	// that would move it backward keeps the stored status.
	Upsert(ctx context.Context, c *domain.Contract) error

	// GetByID retrieves a contract by its platform-native ID.
	// Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Contract, error)

	// GetByConditionID retrieves a Polymarket contract by its condition id.
	// Returns ErrNotFound if not exists.
	GetByConditionID(ctx context.Context, conditionID string) (*domain.Contract, error)

	// List retrieves contracts matching the filter, ordered by ID ASC.
	List(ctx context.Context, f ContractFilter) ([]*domain.Contract, error)

	// NearestByEmbedding retrieves up to limit contracts of the given platform
	// and status nearest to the probe embedding by cosine similarity,
	// most similar first. Ties break by contract ID ASC.
	NearestByEmbedding(ctx context.Context, embedding []float32, platform domain.Platform, status domain.Status, limit int) ([]Neighbor, error)

	// UpdatePrices applies quote updates to stored outcomes. Updates for
	// unknown contracts or outcome labels are skipped, not errors.
	UpdatePrices(ctx context.Context, updates []PriceUpdate) error

	// UpdateStatus advances the contract's lifecycle status. A backward
	// transition is a no-op. Returns ErrNotFound if the contract does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

// BondStore provides access to the bond registry.
type BondStore interface {
	// Upsert inserts the bond or updates the stored version, keyed by pair id.
	// An existing bond's scores are replaced only when the new tier strictly
	// improves (numerically decreases); an upsert with an equal or worse tier
	// refreshes LastValidated but keeps the stored tier and scores.
	Upsert(ctx context.Context, b *domain.Bond) error

	// GetByPairID retrieves a bond by pair id. Returns ErrNotFound if not exists.
	GetByPairID(ctx context.Context, pairID string) (*domain.Bond, error)

	// List retrieves bonds with status active and tier <= maxTier,
	// ordered by tier ASC then pair id ASC. maxTier <= 0 means all tiers.
	List(ctx context.Context, maxTier int) ([]*domain.Bond, error)

	// SetStatus moves a bond to the given status.
	// Returns ErrNotFound if the bond does not exist.
	SetStatus(ctx context.Context, pairID string, status domain.BondStatus) error

	// MarkValidated moves a bond to status validated and refreshes
	// LastValidated. Returns ErrNotFound if the bond does not exist.
	MarkValidated(ctx context.Context, pairID string, at time.Time) error
}

// DecisionStore records scorer decisions for offline threshold tuning.
// Writes are append-only and best-effort; readers are external tooling.
type DecisionStore interface {
	// Append records a batch of decisions.
	Append(ctx context.Context, decisions []*domain.Decision) error
}
