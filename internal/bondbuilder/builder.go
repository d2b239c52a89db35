// Package bondbuilder discovers equivalent contracts across exchanges and
// maintains the bond registry. Each Kalshi probe is matched against its
// nearest Polymarket neighbors in embedding space; surviving pairs are
// scored, tiered, and persisted as bonds.
package bondbuilder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/idhash"
	"marketbond/internal/observability"
	"marketbond/internal/similarity"
	"marketbond/internal/storage"
	"marketbond/internal/tier"
)

// reasonBelowThreshold marks pairs that passed every hard constraint but
// missed the tier-2 score thresholds.
const reasonBelowThreshold = "below_threshold"

// RunStats summarizes one full pass over the probe set.
type RunStats struct {
	Probes  int // probes with embeddings actually scanned
	Scored  int // candidate pairs scored
	Vetoed  int // pairs rejected by a hard constraint
	Bonded  int // bond upserts (tier 1 or 2)
	Retired int // bonds retired this pass
	Skipped int // probes skipped due to retrieval or store errors
}

// Builder runs the bond discovery pass. Scoring within a probe is
// parallelized across a bounded worker pool; bond writes stay serialized so
// the store only ever sees one writer.
type Builder struct {
	cfg       config.Config
	contracts storage.ContractStore
	bonds     storage.BondStore
	decisions storage.DecisionStore
	scorer    *similarity.Scorer
	tiers     *tier.Assigner
	log       zerolog.Logger
}

// New creates a Builder. The decision store may be nil, in which case
// decisions are only logged.
func New(cfg config.Config, contracts storage.ContractStore, bonds storage.BondStore, decisions storage.DecisionStore, log zerolog.Logger) *Builder {
	return &Builder{
		cfg:       cfg,
		contracts: contracts,
		bonds:     bonds,
		decisions: decisions,
		scorer:    similarity.NewScorer(cfg),
		tiers:     tier.NewAssigner(cfg),
		log:       log.With().Str("component", "bondbuilder").Logger(),
	}
}

// Run performs one full discovery pass: every active Kalshi contract with an
// embedding is used as a probe against active Polymarket contracts. A probe
// that fails retrieval is skipped, not fatal; the pass continues.
func (b *Builder) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	probes, err := b.contracts.List(ctx, storage.ContractFilter{
		Platform: domain.PlatformKalshi,
		Status:   domain.StatusActive,
	})
	if err != nil {
		return stats, fmt.Errorf("list probes: %w", err)
	}

	for _, probe := range probes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if len(probe.Embedding) == 0 {
			continue
		}
		stats.Probes++
		observability.DefaultMetrics.ProbesScanned.Inc()

		if err := b.processProbe(ctx, probe, &stats); err != nil {
			stats.Skipped++
			b.log.Warn().Err(err).Str("probe", probe.ID).Msg("probe skipped")
		}
	}

	if err := b.retireInactive(ctx, &stats); err != nil {
		return stats, err
	}

	b.log.Info().
		Int("probes", stats.Probes).
		Int("scored", stats.Scored).
		Int("vetoed", stats.Vetoed).
		Int("bonded", stats.Bonded).
		Int("retired", stats.Retired).
		Int("skipped", stats.Skipped).
		Msg("discovery pass complete")

	return stats, nil
}

func (b *Builder) processProbe(ctx context.Context, probe *domain.Contract, stats *RunStats) error {
	neighbors, err := b.contracts.NearestByEmbedding(ctx, probe.Embedding,
		domain.PlatformPolymarket, domain.StatusActive, b.cfg.CandidateLimit)
	if err != nil {
		return fmt.Errorf("candidate retrieval: %w", err)
	}
	if len(neighbors) == 0 {
		return nil
	}

	results, err := b.scoreParallel(ctx, probe, neighbors)
	if err != nil {
		b.log.Warn().Err(err).Str("probe", probe.ID).
			Msg("parallel scoring failed, retrying sequentially")
		results = b.scoreSequential(probe, neighbors)
	}

	now := time.Now().UTC()
	batch := make([]*domain.Decision, 0, len(results))

	for i, r := range results {
		cand := neighbors[i].Contract
		stats.Scored++
		observability.DefaultMetrics.CandidatesScored.Inc()

		t := b.tiers.Assign(r.Similarity, r.PMatch, r.Features, r.HardViolated)
		accepted := t <= 2
		reason := r.VetoReason
		if !accepted && reason == "" {
			reason = reasonBelowThreshold
		}

		batch = append(batch, &domain.Decision{
			KalshiID:     probe.ID,
			PolymarketID: cand.ID,
			Accepted:     accepted,
			Tier:         t,
			Reason:       reason,
			Similarity:   r.Similarity,
			PMatch:       r.PMatch,
			Features:     r.Features,
			At:           now,
		})

		pairID := idhash.ComputePairID(probe.ID, cand.ID)

		if r.HardViolated {
			stats.Vetoed++
			observability.RecordVeto(r.VetoReason)
			if b.retirePair(ctx, pairID, reason) {
				stats.Retired++
			}
			continue
		}
		if !accepted {
			// Near misses carry the full breakdown so thresholds can be
			// tuned offline.
			b.log.Debug().
				Str("kalshi_id", probe.ID).
				Str("polymarket_id", cand.ID).
				Float64("similarity", r.Similarity).
				Float64("p_match", r.PMatch).
				Float64("f_text", r.Features.Text).
				Float64("f_entity", r.Features.Entity).
				Float64("f_time", r.Features.Time).
				Float64("f_outcome", r.Features.Outcome).
				Float64("f_resolution", r.Features.Resolution).
				Float64("time_delta_days", r.Features.TimeDeltaDays).
				Msg("near miss")
			if b.retirePair(ctx, pairID, reason) {
				stats.Retired++
			}
			continue
		}

		prevTier := 0
		switch existing, err := b.bonds.GetByPairID(ctx, pairID); {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return fmt.Errorf("lookup bond %s: %w", pairID, err)
		default:
			prevTier = existing.Tier
		}

		bond := &domain.Bond{
			PairID:         pairID,
			KalshiID:       probe.ID,
			PolymarketID:   cand.ID,
			Tier:           t,
			PMatch:         r.PMatch,
			Similarity:     r.Similarity,
			OutcomeMapping: similarity.OutcomeMapping(probe, cand),
			Features:       r.Features,
			Status:         domain.BondActive,
			CreatedAt:      now,
			LastValidated:  now,
		}
		if err := b.bonds.Upsert(ctx, bond); err != nil {
			return fmt.Errorf("upsert bond %s: %w", bond.PairID, err)
		}
		stats.Bonded++
		observability.RecordBondUpserted(strconv.Itoa(t))

		// Re-observations at the same tier are routine; only a new bond or
		// a tier improvement is worth an info line.
		ev, msg := b.log.Debug(), "bond revalidated"
		if prevTier == 0 || t < prevTier {
			ev, msg = b.log.Info(), "bond upserted"
		}
		ev.
			Str("pair_id", bond.PairID).
			Str("kalshi_id", probe.ID).
			Str("polymarket_id", cand.ID).
			Int("tier", t).
			Float64("similarity", r.Similarity).
			Float64("p_match", r.PMatch).
			Msg(msg)
	}

	if b.decisions != nil && len(batch) > 0 {
		// Decision logging is best-effort; a sink outage must not stall
		// discovery.
		if err := b.decisions.Append(ctx, batch); err != nil {
			b.log.Warn().Err(err).Str("probe", probe.ID).Msg("decision append failed")
		} else {
			observability.DefaultMetrics.DecisionsLogged.Add(float64(len(batch)))
		}
	}

	return nil
}

// retirePair retires the bond for a pair whose re-score no longer clears
// tier 2. A pair that was never bonded is a no-op.
func (b *Builder) retirePair(ctx context.Context, pairID, reason string) bool {
	bond, err := b.bonds.GetByPairID(ctx, pairID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.log.Warn().Err(err).Str("pair_id", pairID).Msg("bond lookup failed")
		}
		return false
	}
	if bond.Status != domain.BondActive {
		return false
	}
	if err := b.bonds.SetStatus(ctx, pairID, domain.BondRetired); err != nil {
		b.log.Warn().Err(err).Str("pair_id", pairID).Msg("bond retire failed")
		return false
	}
	observability.RecordBondRetired("rescore")
	b.log.Info().Str("pair_id", pairID).Str("reason", reason).Msg("bond retired")
	return true
}

// retireInactive retires bonds whose contracts are gone or no longer active.
func (b *Builder) retireInactive(ctx context.Context, stats *RunStats) error {
	bonds, err := b.bonds.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("list bonds: %w", err)
	}

	for _, bond := range bonds {
		retire := false
		for _, id := range []string{bond.KalshiID, bond.PolymarketID} {
			c, err := b.contracts.GetByID(ctx, id)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				retire = true
			case err != nil:
				return fmt.Errorf("load bonded contract %s: %w", id, err)
			case c.Status != domain.StatusActive:
				retire = true
			}
		}
		if !retire {
			continue
		}
		if err := b.bonds.SetStatus(ctx, bond.PairID, domain.BondRetired); err != nil {
			return fmt.Errorf("retire bond %s: %w", bond.PairID, err)
		}
		stats.Retired++
		observability.RecordBondRetired("contract_inactive")
		b.log.Info().Str("pair_id", bond.PairID).Msg("bond retired, contract no longer active")
	}
	return nil
}

// scoreParallel fans candidate scoring out over a bounded pool. Results land
// at the candidate's index, so output order matches input order regardless
// of completion order.
func (b *Builder) scoreParallel(ctx context.Context, probe *domain.Contract, neighbors []storage.Neighbor) ([]similarity.Result, error) {
	results := make([]similarity.Result, len(neighbors))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.ScoreWorkers)
	for i, n := range neighbors {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("score %s: %v", n.Contract.ID, p)
				}
			}()
			results[i] = b.scorer.Score(probe, n.Contract)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Builder) scoreSequential(probe *domain.Contract, neighbors []storage.Neighbor) []similarity.Result {
	results := make([]similarity.Result, len(neighbors))
	for i, n := range neighbors {
		results[i] = b.scorer.Score(probe, n.Contract)
	}
	return results
}
