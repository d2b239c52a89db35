package clickhouse

import (
	"context"
	"fmt"
	"time"

	"marketbond/internal/domain"
	"marketbond/internal/storage"
)

// DecisionStore implements storage.DecisionStore using ClickHouse.
type DecisionStore struct {
	conn *Conn
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(conn *Conn) *DecisionStore {
	return &DecisionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

// Append records a batch of scorer decisions.
func (s *DecisionStore) Append(ctx context.Context, decisions []*domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decisions (
			kalshi_id, polymarket_id, accepted, tier, reason,
			similarity, p_match,
			f_text, f_entity, f_time, f_outcome, f_resolution, time_delta_days,
			at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range decisions {
		if d == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			d.KalshiID, d.PolymarketID, boolToUint8(d.Accepted), uint8(d.Tier), d.Reason,
			d.Similarity, d.PMatch,
			d.Features.Text, d.Features.Entity, d.Features.Time,
			d.Features.Outcome, d.Features.Resolution, d.Features.TimeDeltaDays,
			d.At,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Recent retrieves the latest limit decisions, newest first. Used by tests
// and tuning tooling; the hot path only appends.
func (s *DecisionStore) Recent(ctx context.Context, limit int) ([]*domain.Decision, error) {
	query := `
		SELECT kalshi_id, polymarket_id, accepted, tier, reason,
		       similarity, p_match,
		       f_text, f_entity, f_time, f_outcome, f_resolution, time_delta_days,
		       at
		FROM decisions
		ORDER BY at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		var (
			d        domain.Decision
			accepted uint8
			tier     uint8
			at       time.Time
		)
		err := rows.Scan(
			&d.KalshiID, &d.PolymarketID, &accepted, &tier, &d.Reason,
			&d.Similarity, &d.PMatch,
			&d.Features.Text, &d.Features.Entity, &d.Features.Time,
			&d.Features.Outcome, &d.Features.Resolution, &d.Features.TimeDeltaDays,
			&at,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		d.Accepted = accepted != 0
		d.Tier = int(tier)
		d.At = at.UTC()
		decisions = append(decisions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}
	return decisions, nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
