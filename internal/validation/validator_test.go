package validation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/exchange"
	"marketbond/internal/exchange/stub"
	"marketbond/internal/storage/memory"
)

func activeBond(pairID string, tier int) *domain.Bond {
	now := time.Now().UTC()
	return &domain.Bond{
		PairID:         pairID,
		KalshiID:       "KX-BTC",
		PolymarketID:   "0xbtc",
		Tier:           tier,
		PMatch:         0.97,
		Similarity:     0.88,
		OutcomeMapping: map[string]string{"Yes": "Yes", "No": "No"},
		Status:         domain.BondActive,
		CreatedAt:      now.Add(-time.Hour),
		LastValidated:  now.Add(-time.Hour),
	}
}

func settledKalshi(ticker, result string) exchange.KalshiMarket {
	return exchange.KalshiMarket{
		Ticker: ticker,
		Title:  "Will Bitcoin reach $100,000 by December 31?",
		Status: "settled",
		Result: result,
	}
}

func closedPoly(conditionID, winner string) exchange.SimplifiedMarket {
	return exchange.SimplifiedMarket{
		ConditionID: conditionID,
		Closed:      true,
		Tokens: []exchange.SimplifiedToken{
			{TokenID: "111", Outcome: "Yes", Winner: winner == "Yes"},
			{TokenID: "222", Outcome: "No", Winner: winner == "No"},
		},
	}
}

func newTestValidator(t *testing.T) (*Validator, *memory.BondStore, *stub.KalshiClient, *stub.PolymarketClient) {
	t.Helper()
	bonds := memory.NewBondStore()
	kalshi := stub.NewKalshiClient()
	polymarket := stub.NewPolymarketClient()
	v := New(config.Default(), bonds, kalshi, polymarket, zerolog.Nop())
	return v, bonds, kalshi, polymarket
}

func TestRunOnce_MatchingResolutionValidatesBond(t *testing.T) {
	v, bonds, kalshi, polymarket := newTestValidator(t)
	ctx := context.Background()

	require.NoError(t, bonds.Upsert(ctx, activeBond("pair-1", 1)))
	kalshi.Markets["KX-BTC"] = settledKalshi("KX-BTC", "yes")
	polymarket.Simplified = []exchange.SimplifiedMarket{closedPoly("0xbtc", "Yes")}

	stats, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Bonds)
	assert.Equal(t, 1, stats.Validated)
	assert.Equal(t, 1, stats.Matches)
	assert.Zero(t, stats.Mismatches)

	bond, err := bonds.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BondValidated, bond.Status)
	assert.True(t, bond.LastValidated.After(bond.CreatedAt), "validation must refresh LastValidated")

	report := v.Report()
	tr := report.Tiers[1]
	assert.Equal(t, 1, tr.Matches)
	assert.Equal(t, 1.0, tr.Accuracy)
	assert.True(t, tr.MeetsTarget)
	assert.Equal(t, 1.0, report.OverallAccuracy)
}

func TestRunOnce_SplitResolutionIsMismatch(t *testing.T) {
	v, bonds, kalshi, polymarket := newTestValidator(t)
	ctx := context.Background()

	require.NoError(t, bonds.Upsert(ctx, activeBond("pair-1", 1)))
	kalshi.Markets["KX-BTC"] = settledKalshi("KX-BTC", "yes")
	polymarket.Simplified = []exchange.SimplifiedMarket{closedPoly("0xbtc", "No")}

	stats, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Validated)
	assert.Equal(t, 1, stats.Mismatches)

	// A mismatch is still a completed validation; the bond leaves the
	// active set either way.
	bond, err := bonds.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BondValidated, bond.Status)

	tr := v.Report().Tiers[1]
	assert.Equal(t, 1, tr.Mismatches)
	assert.Zero(t, tr.Accuracy)
	assert.False(t, tr.MeetsTarget)
}

func TestRunOnce_UnresolvedMarketStaysPending(t *testing.T) {
	v, bonds, kalshi, polymarket := newTestValidator(t)
	ctx := context.Background()

	require.NoError(t, bonds.Upsert(ctx, activeBond("pair-1", 2)))
	open := settledKalshi("KX-BTC", "")
	open.Status = "open"
	kalshi.Markets["KX-BTC"] = open
	polymarket.Simplified = []exchange.SimplifiedMarket{closedPoly("0xbtc", "Yes")}

	stats, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Zero(t, stats.Validated)

	bond, err := bonds.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BondActive, bond.Status)
}

func TestRunOnce_LookbackSkipsOldBonds(t *testing.T) {
	v, bonds, kalshi, polymarket := newTestValidator(t)
	ctx := context.Background()

	old := activeBond("pair-1", 2)
	old.CreatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, bonds.Upsert(ctx, old))
	kalshi.Markets["KX-BTC"] = settledKalshi("KX-BTC", "yes")
	polymarket.Simplified = []exchange.SimplifiedMarket{closedPoly("0xbtc", "Yes")}

	stats, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Bonds, "bonds past the lookback window are left alone")

	bond, err := bonds.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BondActive, bond.Status)
}

func TestRunOnce_OutcomeMappingFollowsInvertedMarkets(t *testing.T) {
	v, bonds, kalshi, polymarket := newTestValidator(t)
	ctx := context.Background()

	// The polymarket side asks the negated question, so its No is the
	// kalshi Yes. A split on raw labels is still a correct match.
	inverted := activeBond("pair-1", 2)
	inverted.OutcomeMapping = map[string]string{"Yes": "No", "No": "Yes"}
	require.NoError(t, bonds.Upsert(ctx, inverted))
	kalshi.Markets["KX-BTC"] = settledKalshi("KX-BTC", "yes")
	polymarket.Simplified = []exchange.SimplifiedMarket{closedPoly("0xbtc", "No")}

	stats, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matches)
	assert.Zero(t, stats.Mismatches)
}

func TestRunOnce_KalshiLookupFailureSkipsBond(t *testing.T) {
	v, bonds, kalshi, polymarket := newTestValidator(t)
	ctx := context.Background()

	require.NoError(t, bonds.Upsert(ctx, activeBond("pair-1", 1)))
	kalshi.Err = exchange.ErrUpstreamUnavailable
	polymarket.Simplified = []exchange.SimplifiedMarket{closedPoly("0xbtc", "Yes")}

	stats, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, stats.Validated)

	bond, err := bonds.GetByPairID(ctx, "pair-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BondActive, bond.Status)
}
