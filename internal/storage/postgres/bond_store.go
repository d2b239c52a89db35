package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"marketbond/internal/domain"
	"marketbond/internal/storage"
)

// BondStore implements storage.BondStore using PostgreSQL.
type BondStore struct {
	pool *Pool
}

// NewBondStore creates a new BondStore.
func NewBondStore(pool *Pool) *BondStore {
	return &BondStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BondStore = (*BondStore)(nil)

const bondColumns = `
	pair_id, kalshi_id, polymarket_id, tier, p_match, similarity,
	outcome_mapping, features, status, created_at, last_validated
`

// Upsert inserts the bond or updates the stored version, keyed by pair id.
// Stored scores are replaced only when the new tier is strictly better
// (numerically lower); an equal or worse tier only refreshes last_validated.
// Status and created_at of an existing row are preserved.
func (s *BondStore) Upsert(ctx context.Context, b *domain.Bond) error {
	if b == nil || b.PairID == "" {
		return storage.ErrInvalidInput
	}
	if b.Tier != 1 && b.Tier != 2 {
		return storage.ErrInvalidInput
	}

	mapping, err := json.Marshal(b.OutcomeMapping)
	if err != nil {
		return fmt.Errorf("marshal outcome mapping: %w", err)
	}
	features, err := json.Marshal(b.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	query := `
		INSERT INTO bonds (
			pair_id, kalshi_id, polymarket_id, tier, p_match, similarity,
			outcome_mapping, features, status, created_at, last_validated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (pair_id) DO UPDATE SET
			tier = CASE WHEN EXCLUDED.tier < bonds.tier THEN EXCLUDED.tier ELSE bonds.tier END,
			p_match = CASE WHEN EXCLUDED.tier < bonds.tier THEN EXCLUDED.p_match ELSE bonds.p_match END,
			similarity = CASE WHEN EXCLUDED.tier < bonds.tier THEN EXCLUDED.similarity ELSE bonds.similarity END,
			outcome_mapping = CASE WHEN EXCLUDED.tier < bonds.tier THEN EXCLUDED.outcome_mapping ELSE bonds.outcome_mapping END,
			features = CASE WHEN EXCLUDED.tier < bonds.tier THEN EXCLUDED.features ELSE bonds.features END,
			last_validated = EXCLUDED.last_validated
	`

	_, err = s.pool.Exec(ctx, query,
		b.PairID,
		b.KalshiID,
		b.PolymarketID,
		b.Tier,
		b.PMatch,
		b.Similarity,
		mapping,
		features,
		string(b.Status),
		b.CreatedAt,
		b.LastValidated,
	)
	if err != nil {
		return fmt.Errorf("upsert bond %s: %w", b.PairID, err)
	}
	return nil
}

// GetByPairID retrieves a bond by pair id. Returns ErrNotFound if not exists.
func (s *BondStore) GetByPairID(ctx context.Context, pairID string) (*domain.Bond, error) {
	query := `SELECT ` + bondColumns + ` FROM bonds WHERE pair_id = $1`

	row := s.pool.QueryRow(ctx, query, pairID)
	b, err := scanBond(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get bond by pair id: %w", err)
	}
	return b, nil
}

// List retrieves active bonds with tier <= maxTier, ordered by tier ASC then
// pair id ASC. maxTier <= 0 means all tiers.
func (s *BondStore) List(ctx context.Context, maxTier int) ([]*domain.Bond, error) {
	query := `
		SELECT ` + bondColumns + `
		FROM bonds
		WHERE status = 'active' AND ($1 <= 0 OR tier <= $1)
		ORDER BY tier ASC, pair_id ASC
	`

	rows, err := s.pool.Query(ctx, query, maxTier)
	if err != nil {
		return nil, fmt.Errorf("list bonds: %w", err)
	}
	defer rows.Close()

	var bonds []*domain.Bond
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bond row: %w", err)
		}
		bonds = append(bonds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bond rows: %w", err)
	}
	return bonds, nil
}

// SetStatus moves a bond to the given status.
func (s *BondStore) SetStatus(ctx context.Context, pairID string, status domain.BondStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bonds SET status = $2 WHERE pair_id = $1`,
		pairID, string(status),
	)
	if err != nil {
		return fmt.Errorf("set bond status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkValidated moves a bond to status validated and refreshes last_validated.
func (s *BondStore) MarkValidated(ctx context.Context, pairID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bonds SET status = 'validated', last_validated = $2 WHERE pair_id = $1`,
		pairID, at,
	)
	if err != nil {
		return fmt.Errorf("mark bond validated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanBond scans a single row into a Bond.
func scanBond(row pgx.Row) (*domain.Bond, error) {
	var (
		b        domain.Bond
		status   string
		mapping  []byte
		features []byte
	)

	err := row.Scan(
		&b.PairID,
		&b.KalshiID,
		&b.PolymarketID,
		&b.Tier,
		&b.PMatch,
		&b.Similarity,
		&mapping,
		&features,
		&status,
		&b.CreatedAt,
		&b.LastValidated,
	)
	if err != nil {
		return nil, err
	}

	b.Status = domain.BondStatus(status)
	if err := json.Unmarshal(mapping, &b.OutcomeMapping); err != nil {
		return nil, fmt.Errorf("unmarshal outcome mapping: %w", err)
	}
	if err := json.Unmarshal(features, &b.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.LastValidated = b.LastValidated.UTC()
	return &b, nil
}
