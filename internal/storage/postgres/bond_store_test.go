package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbond/internal/domain"
	"marketbond/internal/storage"
	pgstore "marketbond/internal/storage/postgres"
)

func testBond(pairID string, tier int) *domain.Bond {
	return &domain.Bond{
		PairID:         pairID,
		KalshiID:       "KX-1",
		PolymarketID:   "0xabc",
		Tier:           tier,
		PMatch:         0.96,
		Similarity:     0.85,
		OutcomeMapping: map[string]string{"Yes": "Yes", "No": "No"},
		Features: domain.FeatureBreakdown{
			Text: 0.92, Entity: 0.8, Time: 1.0, Outcome: 1.0, Resolution: 1.0,
		},
		Status:        domain.BondActive,
		CreatedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		LastValidated: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBondStore_Postgres_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := pgstore.NewBondStore(pool)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testBond("pair-1", 2)))

	got, err := s.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Tier)
	assert.Equal(t, "Yes", got.OutcomeMapping["Yes"])
	assert.Equal(t, 0.92, got.Features.Text)

	_, err = s.GetByPairID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.Upsert(ctx, testBond("pair-x", 3)), storage.ErrInvalidInput,
		"tier 3 must never be persisted")
}

func TestBondStore_Postgres_TierOnlyImproves(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := pgstore.NewBondStore(pool)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testBond("pair-1", 1)))

	worse := testBond("pair-1", 2)
	worse.Similarity = 0.72
	worse.LastValidated = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, worse))

	got, err := s.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Tier, "bond must not be demoted")
	assert.Equal(t, 0.85, got.Similarity)
	assert.Equal(t, worse.LastValidated, got.LastValidated, "last_validated must refresh")
}

func TestBondStore_Postgres_EqualTierKeepsStoredScores(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := pgstore.NewBondStore(pool)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testBond("pair-1", 2)))

	again := testBond("pair-1", 2)
	again.Similarity = 0.91
	again.PMatch = 0.99
	again.LastValidated = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, again))

	got, err := s.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, 0.85, got.Similarity, "equal-tier upsert must keep stored scores")
	assert.Equal(t, 0.96, got.PMatch)
	assert.Equal(t, again.LastValidated, got.LastValidated, "last_validated must refresh")
}

func TestBondStore_Postgres_UpgradeKeepsCreatedAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := pgstore.NewBondStore(pool)
	ctx := context.Background()

	first := testBond("pair-1", 2)
	require.NoError(t, s.Upsert(ctx, first))

	upgrade := testBond("pair-1", 1)
	upgrade.CreatedAt = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, upgrade))

	got, err := s.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Tier)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
}

func TestBondStore_Postgres_ListAndSetStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := pgstore.NewBondStore(pool)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testBond("pair-b", 2)))
	require.NoError(t, s.Upsert(ctx, testBond("pair-a", 2)))
	require.NoError(t, s.Upsert(ctx, testBond("pair-c", 1)))
	require.NoError(t, s.Upsert(ctx, testBond("pair-d", 1)))
	require.NoError(t, s.SetStatus(ctx, "pair-d", domain.BondRetired))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "pair-c", all[0].PairID) // tier ASC, then pair id ASC
	assert.Equal(t, "pair-a", all[1].PairID)
	assert.Equal(t, "pair-b", all[2].PairID)

	tier1, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tier1, 1)
	assert.Equal(t, "pair-c", tier1[0].PairID)

	assert.ErrorIs(t, s.SetStatus(ctx, "missing", domain.BondPaused), storage.ErrNotFound)
}

func TestBondStore_Postgres_MarkValidated(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := pgstore.NewBondStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, s.MarkValidated(ctx, "missing", time.Now()), storage.ErrNotFound)

	require.NoError(t, s.Upsert(ctx, testBond("pair-1", 1)))
	at := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkValidated(ctx, "pair-1", at))

	got, err := s.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BondValidated, got.Status)
	assert.Equal(t, at, got.LastValidated)

	active, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, active, "validated bonds leave the active listing")
}
