package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"marketbond/internal/domain"
	"marketbond/internal/storage"
)

// ContractStore implements storage.ContractStore using PostgreSQL.
type ContractStore struct {
	pool *Pool
}

// NewContractStore creates a new ContractStore.
func NewContractStore(pool *Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ContractStore = (*ContractStore)(nil)

const contractColumns = `
	id, platform, condition_id, token_ids, status,
	raw_title, raw_description, clean_title, clean_description,
	category, event_type, geo_scope, resolution_source, sport_type, parlay,
	entities, resolution, window_start, window_end, granularity,
	outcome, embedding, volume, liquidity, fee_rate, created_at, updated_at
`

// Upsert inserts the contract or replaces the stored version, keyed by ID.
// Status only moves forward; created_at of an existing row is preserved.
func (s *ContractStore) Upsert(ctx context.Context, c *domain.Contract) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	entities, err := json.Marshal(c.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	outcome, err := json.Marshal(c.Outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome schema: %w", err)
	}

	var embedding any
	if len(c.Embedding) > 0 {
		embedding = pgvector.NewVector(c.Embedding)
	}

	query := `
		INSERT INTO contracts (
			id, platform, condition_id, token_ids, status,
			raw_title, raw_description, clean_title, clean_description,
			category, event_type, geo_scope, resolution_source, sport_type, parlay,
			entities, resolution, window_start, window_end, granularity,
			outcome, embedding, volume, liquidity, fee_rate, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		ON CONFLICT (id) DO UPDATE SET
			condition_id = EXCLUDED.condition_id,
			token_ids = EXCLUDED.token_ids,
			status = CASE
				WHEN array_position(` + statusOrder + `, EXCLUDED.status)
				   > array_position(` + statusOrder + `, contracts.status)
				THEN EXCLUDED.status ELSE contracts.status END,
			raw_title = EXCLUDED.raw_title,
			raw_description = EXCLUDED.raw_description,
			clean_title = EXCLUDED.clean_title,
			clean_description = EXCLUDED.clean_description,
			category = EXCLUDED.category,
			event_type = EXCLUDED.event_type,
			geo_scope = EXCLUDED.geo_scope,
			resolution_source = EXCLUDED.resolution_source,
			sport_type = EXCLUDED.sport_type,
			parlay = EXCLUDED.parlay,
			entities = EXCLUDED.entities,
			resolution = EXCLUDED.resolution,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			granularity = EXCLUDED.granularity,
			outcome = EXCLUDED.outcome,
			embedding = EXCLUDED.embedding,
			volume = EXCLUDED.volume,
			liquidity = EXCLUDED.liquidity,
			fee_rate = EXCLUDED.fee_rate,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		c.ID,
		string(c.Platform),
		c.ConditionID,
		c.TokenIDs,
		string(c.Status),
		c.RawTitle,
		c.RawDescription,
		c.CleanTitle,
		c.CleanDescription,
		c.Category,
		c.EventType,
		c.GeoScope,
		c.ResolutionSource,
		c.SportType,
		c.Parlay,
		entities,
		c.TimeWindow.Resolution,
		c.TimeWindow.Start,
		c.TimeWindow.End,
		string(c.TimeWindow.Granularity),
		outcome,
		embedding,
		c.Volume,
		c.Liquidity,
		c.FeeRate,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert contract %s: %w", c.ID, err)
	}
	return nil
}

// GetByID retrieves a contract by its platform-native ID.
func (s *ContractStore) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	c, err := scanContract(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract by id: %w", err)
	}
	return c, nil
}

// GetByConditionID retrieves a Polymarket contract by its condition id.
func (s *ContractStore) GetByConditionID(ctx context.Context, conditionID string) (*domain.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE condition_id = $1 AND platform = 'polymarket'
	`

	row := s.pool.QueryRow(ctx, query, conditionID)
	c, err := scanContract(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract by condition id: %w", err)
	}
	return c, nil
}

// List retrieves contracts matching the filter, ordered by ID ASC.
func (s *ContractStore) List(ctx context.Context, f storage.ContractFilter) ([]*domain.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE ($1 = '' OR platform = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR event_type = $3)
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(f.Platform), string(f.Status), f.EventType)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	return scanContracts(rows)
}

// NearestByEmbedding retrieves up to limit contracts of the given platform
// and status nearest to the probe embedding, most similar first. The <=>
// operator is pgvector cosine distance; ties break by contract id.
func (s *ContractStore) NearestByEmbedding(ctx context.Context, probe []float32, platform domain.Platform, status domain.Status, limit int) ([]storage.Neighbor, error) {
	if len(probe) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + contractColumns + `, 1 - (embedding <=> $1) AS similarity
		FROM contracts
		WHERE platform = $2 AND status = $3 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1 ASC, id ASC
		LIMIT $4
	`

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(probe), string(platform), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("nearest contracts: %w", err)
	}
	defer rows.Close()

	var neighbors []storage.Neighbor
	for rows.Next() {
		c, similarity, err := scanContractRow(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scan neighbor row: %w", err)
		}
		neighbors = append(neighbors, storage.Neighbor{Contract: c, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbor rows: %w", err)
	}
	return neighbors, nil
}

// UpdatePrices applies quote updates to stored outcome schemas. Each
// contract is read, patched, and written back inside its own transaction;
// unknown contracts and outcome labels are skipped.
func (s *ContractStore) UpdatePrices(ctx context.Context, updates []storage.PriceUpdate) error {
	byContract := make(map[string][]storage.PriceUpdate)
	var order []string
	for _, u := range updates {
		if _, seen := byContract[u.ContractID]; !seen {
			order = append(order, u.ContractID)
		}
		byContract[u.ContractID] = append(byContract[u.ContractID], u)
	}

	for _, id := range order {
		if err := s.updateContractPrices(ctx, id, byContract[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ContractStore) updateContractPrices(ctx context.Context, id string, updates []storage.PriceUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin price update: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT outcome FROM contracts WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return nil // unknown contract, skip
		}
		return fmt.Errorf("lock contract %s: %w", id, err)
	}

	var schema domain.OutcomeSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("unmarshal outcome schema %s: %w", id, err)
	}

	observedAt := updates[0].ObservedAt
	for _, u := range updates {
		o := schema.OutcomeByLabel(u.OutcomeLabel)
		if o == nil {
			continue
		}
		if u.Bid != nil {
			o.Bid = u.Bid
		}
		if u.Ask != nil {
			o.Ask = u.Ask
		}
		if u.Mid != nil {
			o.Mid = u.Mid
		}
		if u.ObservedAt.After(observedAt) {
			observedAt = u.ObservedAt
		}
	}

	patched, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal outcome schema %s: %w", id, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE contracts
		SET outcome = $2, updated_at = GREATEST(updated_at, $3)
		WHERE id = $1
	`, id, patched, observedAt)
	if err != nil {
		return fmt.Errorf("write prices %s: %w", id, err)
	}
	return tx.Commit(ctx)
}

// UpdateStatus advances the contract's lifecycle status. A backward
// transition is a no-op.
func (s *ContractStore) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	query := `
		UPDATE contracts
		SET status = CASE
			WHEN array_position(` + statusOrder + `, $2)
			   > array_position(` + statusOrder + `, status)
			THEN $2 ELSE status END
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanContract scans a single row into a Contract.
func scanContract(row pgx.Row) (*domain.Contract, error) {
	c, _, err := scanContractRow(row, false)
	return c, err
}

// scanContractRow scans one contract row, optionally with a trailing
// similarity column.
func scanContractRow(row pgx.Row, withSimilarity bool) (*domain.Contract, float64, error) {
	var (
		c          domain.Contract
		platform   string
		status     string
		granular   string
		entities   []byte
		outcome    []byte
		vec        *pgvector.Vector
		similarity float64
	)

	dest := []any{
		&c.ID, &platform, &c.ConditionID, &c.TokenIDs, &status,
		&c.RawTitle, &c.RawDescription, &c.CleanTitle, &c.CleanDescription,
		&c.Category, &c.EventType, &c.GeoScope, &c.ResolutionSource, &c.SportType, &c.Parlay,
		&entities, &c.TimeWindow.Resolution, &c.TimeWindow.Start, &c.TimeWindow.End, &granular,
		&outcome, &vec, &c.Volume, &c.Liquidity, &c.FeeRate, &c.CreatedAt, &c.UpdatedAt,
	}
	if withSimilarity {
		dest = append(dest, &similarity)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	c.Platform = domain.Platform(platform)
	c.Status = domain.Status(status)
	c.TimeWindow.Granularity = domain.Granularity(granular)
	if err := json.Unmarshal(entities, &c.Entities); err != nil {
		return nil, 0, fmt.Errorf("unmarshal entities: %w", err)
	}
	if err := json.Unmarshal(outcome, &c.Outcome); err != nil {
		return nil, 0, fmt.Errorf("unmarshal outcome schema: %w", err)
	}
	if vec != nil {
		c.Embedding = vec.Slice()
	}
	c.TimeWindow.Resolution = c.TimeWindow.Resolution.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, similarity, nil
}

// scanContracts scans multiple rows into a slice of Contract.
func scanContracts(rows pgx.Rows) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	for rows.Next() {
		c, _, err := scanContractRow(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan contract row: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract rows: %w", err)
	}
	return contracts, nil
}
