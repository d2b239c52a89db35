// Package validation re-checks bonds after their referenced markets resolve.
// A bond whose kalshi and polymarket markets both settled is compared against
// the actual outcomes: identical resolution confirms the match, a split
// resolution is a matcher error. The per-tier tallies are the builder's
// measured accuracy on real resolutions.
package validation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/exchange"
	"marketbond/internal/observability"
	"marketbond/internal/storage"
)

// Per-tier accuracy targets. Tier 1 trades automatically, so its target is
// near certainty; tier 2 is the cautious tier.
const (
	Tier1TargetAccuracy = 0.995
	Tier2TargetAccuracy = 0.95
)

// PassStats summarizes one validation pass.
type PassStats struct {
	Bonds      int // active bonds inside the lookback window
	Validated  int // bonds whose markets both resolved
	Matches    int
	Mismatches int
	Pending    int // at least one market still unresolved
	Errors     int // lookups or commits that failed
}

// TierReport summarizes validation outcomes for one tier.
type TierReport struct {
	Validated      int
	Matches        int
	Mismatches     int
	Accuracy       float64
	TargetAccuracy float64
	MeetsTarget    bool
}

// Report is the accumulated validation outcome since startup.
type Report struct {
	Tiers           map[int]TierReport
	OverallAccuracy float64
	GeneratedAt     time.Time
}

type tally struct {
	matches    int
	mismatches int
}

// Validator owns the post-resolution check. Resolution state comes straight
// from the exchanges, not the contract store: a settled kalshi market drops
// out of the active-markets feed, so its stored contract never advances.
type Validator struct {
	cfg        config.Config
	bonds      storage.BondStore
	kalshi     exchange.KalshiClient
	polymarket exchange.PolymarketClient
	log        zerolog.Logger

	mu      sync.Mutex
	tallies map[int]*tally
}

// New creates a Validator.
func New(cfg config.Config, bonds storage.BondStore,
	kalshi exchange.KalshiClient, polymarket exchange.PolymarketClient, log zerolog.Logger) *Validator {
	return &Validator{
		cfg:        cfg,
		bonds:      bonds,
		kalshi:     kalshi,
		polymarket: polymarket,
		log:        log.With().Str("component", "validation").Logger(),
		tallies:    make(map[int]*tally),
	}
}

// Run validates on the configured interval until the context is canceled.
func (v *Validator) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.cfg.ValidationInterval)
	defer ticker.Stop()

	for {
		if _, err := v.RunOnce(ctx); err != nil && ctx.Err() == nil {
			v.log.Warn().Err(err).Msg("validation pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce walks the active bonds created inside the lookback window and
// validates every pair whose two markets have both resolved upstream. A
// failed lookup skips the bond, not the pass.
func (v *Validator) RunOnce(ctx context.Context) (PassStats, error) {
	var stats PassStats
	now := time.Now().UTC()

	bonds, err := v.bonds.List(ctx, 0)
	if err != nil {
		return stats, fmt.Errorf("list bonds: %w", err)
	}

	// One simplified-markets read covers every polymarket side in the pass.
	simplified, err := v.polymarket.GetSimplifiedMarkets(ctx)
	if err != nil {
		return stats, fmt.Errorf("simplified markets: %w", err)
	}
	byCondition := make(map[string]exchange.SimplifiedMarket, len(simplified))
	for _, m := range simplified {
		byCondition[m.ConditionID] = m
	}

	cutoff := now.Add(-v.cfg.ValidationLookback)
	for _, bond := range bonds {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if bond.CreatedAt.Before(cutoff) {
			continue
		}
		stats.Bonds++

		kalshiYes, kalshiResolved, err := v.kalshiResolution(ctx, bond.KalshiID)
		if err != nil {
			stats.Errors++
			v.log.Warn().Err(err).Str("pair_id", bond.PairID).Msg("kalshi resolution lookup failed")
			continue
		}
		polyWinner, polyResolved := polymarketResolution(byCondition[bond.PolymarketID])
		if !kalshiResolved || !polyResolved {
			stats.Pending++
			continue
		}

		match := resolvedIdentically(bond, kalshiYes, polyWinner)
		if err := v.bonds.MarkValidated(ctx, bond.PairID, now); err != nil {
			stats.Errors++
			v.log.Warn().Err(err).Str("pair_id", bond.PairID).Msg("validation commit failed")
			continue
		}
		stats.Validated++
		if match {
			stats.Matches++
		} else {
			stats.Mismatches++
		}
		v.record(bond, match, kalshiYes, polyWinner)
	}

	v.publishAccuracy()

	v.log.Info().
		Int("bonds", stats.Bonds).
		Int("validated", stats.Validated).
		Int("matches", stats.Matches).
		Int("mismatches", stats.Mismatches).
		Int("pending", stats.Pending).
		Int("errors", stats.Errors).
		Msg("validation pass complete")

	return stats, nil
}

// kalshiResolution reports whether the ticker has settled and, if so,
// whether the yes side won.
func (v *Validator) kalshiResolution(ctx context.Context, ticker string) (yesWon, resolved bool, err error) {
	m, err := v.kalshi.GetMarket(ctx, ticker)
	if err != nil {
		return false, false, err
	}
	if m.Status != "settled" || m.Result == "" {
		return false, false, nil
	}
	return strings.EqualFold(m.Result, "yes"), true, nil
}

// polymarketResolution extracts the winning outcome label from a simplified
// market entry. A market that is open, unknown, or closed without a flagged
// winner is unresolved.
func polymarketResolution(m exchange.SimplifiedMarket) (winner string, resolved bool) {
	if !m.Closed {
		return "", false
	}
	for _, tok := range m.Tokens {
		if tok.Winner {
			return tok.Outcome, true
		}
	}
	return "", false
}

// resolvedIdentically checks whether the polymarket winner is the outcome the
// bond's mapping pairs with the settled kalshi side.
func resolvedIdentically(bond *domain.Bond, kalshiYes bool, polyWinner string) bool {
	kalshiLabel := "No"
	if kalshiYes {
		kalshiLabel = "Yes"
	}
	expected := bond.OutcomeMapping[kalshiLabel]
	if expected == "" {
		expected = kalshiLabel
	}
	return strings.EqualFold(strings.TrimSpace(polyWinner), strings.TrimSpace(expected))
}

func (v *Validator) record(bond *domain.Bond, match, kalshiYes bool, polyWinner string) {
	result := "match"
	if !match {
		result = "mismatch"
	}
	observability.RecordBondValidated(strconv.Itoa(bond.Tier), result)

	v.mu.Lock()
	t := v.tallies[bond.Tier]
	if t == nil {
		t = &tally{}
		v.tallies[bond.Tier] = t
	}
	if match {
		t.matches++
	} else {
		t.mismatches++
	}
	v.mu.Unlock()

	if match {
		v.log.Debug().Str("pair_id", bond.PairID).Int("tier", bond.Tier).Msg("bond validated")
		return
	}

	// A split resolution on tier 1 means the auto-trade tier bonded two
	// different events; surface the full feature breakdown.
	ev := v.log.Warn()
	if bond.Tier == 1 {
		ev = v.log.Error()
	}
	ev.
		Str("pair_id", bond.PairID).
		Str("kalshi_id", bond.KalshiID).
		Str("polymarket_id", bond.PolymarketID).
		Int("tier", bond.Tier).
		Bool("kalshi_yes", kalshiYes).
		Str("polymarket_winner", polyWinner).
		Float64("p_match", bond.PMatch).
		Float64("similarity", bond.Similarity).
		Float64("f_text", bond.Features.Text).
		Float64("f_entity", bond.Features.Entity).
		Float64("f_time", bond.Features.Time).
		Float64("f_outcome", bond.Features.Outcome).
		Float64("f_resolution", bond.Features.Resolution).
		Msg("bond resolved differently across exchanges")
}

func (v *Validator) publishAccuracy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for tier, t := range v.tallies {
		total := t.matches + t.mismatches
		if total == 0 {
			continue
		}
		observability.DefaultMetrics.ValidationAccuracy.
			WithLabelValues(strconv.Itoa(tier)).
			Set(float64(t.matches) / float64(total))
	}
}

// Report summarizes the outcomes accumulated since startup.
func (v *Validator) Report() Report {
	v.mu.Lock()
	defer v.mu.Unlock()

	r := Report{Tiers: make(map[int]TierReport), GeneratedAt: time.Now().UTC()}
	matches, total := 0, 0
	for tier, t := range v.tallies {
		n := t.matches + t.mismatches
		tr := TierReport{
			Validated:      n,
			Matches:        t.matches,
			Mismatches:     t.mismatches,
			TargetAccuracy: targetAccuracy(tier),
		}
		if n > 0 {
			tr.Accuracy = float64(t.matches) / float64(n)
		}
		tr.MeetsTarget = tr.Accuracy >= tr.TargetAccuracy
		r.Tiers[tier] = tr
		matches += t.matches
		total += n
	}
	if total > 0 {
		r.OverallAccuracy = float64(matches) / float64(total)
	}
	return r
}

func targetAccuracy(tier int) float64 {
	if tier == 1 {
		return Tier1TargetAccuracy
	}
	return Tier2TargetAccuracy
}
