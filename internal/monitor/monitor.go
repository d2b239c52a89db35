// Package monitor scans bonded pairs for arbitrage. It tracks cross-exchange
// opportunities in an in-memory map keyed by pair id, emits per-cycle
// intra-exchange mispricings, and publishes a priority hint consumed by the
// price updater on its next cycle.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/observability"
	"marketbond/internal/storage"
)

// Warning labels recorded on opportunities.
const (
	WarnPriceStale      = "price stale"
	WarnSyntheticSpread = "synthetic spread"
	WarnThinLiquidity   = "thin liquidity"
)

// syntheticSpread is the relative half-spread applied around the mid when a
// book side is missing.
const syntheticSpread = 0.005

// ScanResult is one scan's ranked output. Cross opportunities are sorted by
// estimated profit descending, intra by profit-per-unit descending.
type ScanResult struct {
	Cross []domain.CrossOpportunity
	Intra []domain.IntraOpportunity
}

// Stats is a snapshot of the monitor's tracked state.
type Stats struct {
	TrackedCross   int
	ByTier         map[int]int
	TotalProfitUSD float64
	BestEdge       float64
	LastScan       time.Time
}

// BookSource provides fresh cached order-book snapshots by outcome token.
// Satisfied by the price updater's streamed-book cache.
type BookSource interface {
	CachedBook(tokenID string, now time.Time) *domain.OrderBook
}

// Monitor owns the opportunity map. Only Scan mutates it; external readers
// go through Snapshot and MonitoringStats, which copy under the lock.
type Monitor struct {
	cfg       config.Config
	contracts storage.ContractStore
	bonds     storage.BondStore
	priority  *atomic.Pointer[domain.PriorityList]
	books     BookSource
	log       zerolog.Logger

	mu       sync.Mutex
	tracked  map[string]*domain.CrossOpportunity
	lastScan time.Time
}

// New creates a Monitor. The priority pointer is shared with the price
// updater; nil disables hint publication.
func New(cfg config.Config, contracts storage.ContractStore, bonds storage.BondStore,
	priority *atomic.Pointer[domain.PriorityList], log zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		contracts: contracts,
		bonds:     bonds,
		priority:  priority,
		log:       log.With().Str("component", "monitor").Logger(),
		tracked:   make(map[string]*domain.CrossOpportunity),
	}
}

// UseBooks attaches a live book source. Set before Run; scans then size the
// polymarket leg from real depth instead of the scalar liquidity field.
func (m *Monitor) UseBooks(src BookSource) {
	m.books = src
}

// Run scans on the configured interval until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if _, err := m.Scan(ctx, 0, 0); err != nil {
			m.log.Warn().Err(err).Msg("scan failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan runs one full pass over active bonds. tierFilter <= 0 scans all tiers;
// minProfit <= 0 uses the configured minimum.
func (m *Monitor) Scan(ctx context.Context, tierFilter int, minProfit float64) (ScanResult, error) {
	if minProfit <= 0 {
		minProfit = m.cfg.MinProfit
	}
	now := time.Now().UTC()

	bonds, err := m.bonds.List(ctx, tierFilter)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list bonds: %w", err)
	}

	var result ScanResult
	seen := make(map[string]bool) // contract ids already intra-scanned

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bond := range bonds {
		if err := ctx.Err(); err != nil {
			return ScanResult{}, err
		}

		kc, err := m.contracts.GetByID(ctx, bond.KalshiID)
		if err != nil {
			m.log.Warn().Err(err).Str("pair_id", bond.PairID).Msg("kalshi contract missing")
			continue
		}
		pc, err := m.contracts.GetByID(ctx, bond.PolymarketID)
		if err != nil {
			m.log.Warn().Err(err).Str("pair_id", bond.PairID).Msg("polymarket contract missing")
			continue
		}

		m.evaluateCross(bond, kc, pc, now, minProfit)

		for _, c := range []*domain.Contract{kc, pc} {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			if op, ok := intraOpportunity(c, now); ok {
				result.Intra = append(result.Intra, op)
				observability.DefaultMetrics.IntraOpportunitiesFound.Inc()
			}
		}
	}

	m.evictLocked(now)

	for _, op := range m.tracked {
		result.Cross = append(result.Cross, *op)
	}
	sort.Slice(result.Cross, func(i, j int) bool {
		return result.Cross[i].EstimatedProfitUSD > result.Cross[j].EstimatedProfitUSD
	})
	sort.Slice(result.Intra, func(i, j int) bool {
		return result.Intra[i].ProfitPerUnit > result.Intra[j].ProfitPerUnit
	})

	m.publishPriorityLocked(result.Cross, now)
	m.lastScan = now

	observability.DefaultMetrics.ScansTotal.Inc()
	observability.DefaultMetrics.CrossOpportunitiesOpen.Set(float64(len(m.tracked)))
	observability.DefaultMetrics.LastSuccessfulScan.SetToCurrentTime()

	m.log.Debug().
		Int("bonds", len(bonds)).
		Int("cross", len(result.Cross)).
		Int("intra", len(result.Intra)).
		Msg("scan complete")

	return result, nil
}

// evaluateCross computes both trade directions for one bond and upserts the
// tracked opportunity when the better edge clears minProfit.
func (m *Monitor) evaluateCross(bond *domain.Bond, kc, pc *domain.Contract, now time.Time, minProfit float64) {
	if !kc.PriceFresh(now, m.cfg.StalenessThreshold) || !pc.PriceFresh(now, m.cfg.StalenessThreshold) {
		m.log.Warn().Str("pair_id", bond.PairID).Str("warning", WarnPriceStale).Msg("cross check rejected")
		observability.DefaultMetrics.StaleContractsSeen.Inc()
		return
	}

	var warnings []string

	kq, ok := quoteFor(kc, "Yes")
	if !ok {
		return
	}
	pLabel := bond.OutcomeMapping["Yes"]
	if pLabel == "" {
		pLabel = "Yes"
	}
	pq, ok := quoteFor(pc, pLabel)
	if !ok {
		return
	}
	if kq.synthetic || pq.synthetic {
		warnings = append(warnings, WarnSyntheticSpread)
	}

	feeK := m.cfg.FeeRateKalshi
	if kc.FeeRate != nil {
		feeK = *kc.FeeRate
	}
	feeP := m.cfg.FeeRatePolymarket
	if pc.FeeRate != nil {
		feeP = *pc.FeeRate
	}
	gas := m.cfg.GasHintPerTrade

	edge1 := pq.bid - kq.ask - feeK*kq.ask - feeP*pq.bid - gas // buy kalshi, sell polymarket
	edge2 := kq.bid - pq.ask - feeP*pq.ask - feeK*kq.bid - gas // buy polymarket, sell kalshi

	edge := edge1
	direction := domain.DirectionBuyKalshi
	if edge2 > edge1 {
		edge = edge2
		direction = domain.DirectionBuyPolymarket
	}
	if edge < minProfit {
		return
	}

	liquidity := minPositive(kc.Liquidity, pc.Liquidity)
	if depth := m.polyDepthUSD(pc, pLabel, pq, direction, now); depth > 0 {
		liquidity = minPositive(kc.Liquidity, depth)
	}
	if liquidity < m.cfg.MinLiquidityUSD {
		warnings = append(warnings, WarnThinLiquidity)
	}
	recommended := 0.5 * 0.1 * liquidity
	if recommended > m.cfg.RecommendedCap {
		recommended = m.cfg.RecommendedCap
	}

	op := &domain.CrossOpportunity{
		Kind:               domain.KindCrossExchange,
		PairID:             bond.PairID,
		KalshiID:           bond.KalshiID,
		PolymarketID:       bond.PolymarketID,
		Tier:               bond.Tier,
		Direction:          direction,
		Edge:               edge,
		KalshiBid:          kq.bid,
		KalshiAsk:          kq.ask,
		KalshiMid:          kq.mid,
		PolymarketBid:      pq.bid,
		PolymarketAsk:      pq.ask,
		PolymarketMid:      pq.mid,
		AvailableLiquidity: liquidity,
		RecommendedSize:    recommended,
		EstimatedProfitUSD: recommended * edge,
		Warnings:           warnings,
		FirstDetected:      now,
		LastUpdated:        now,
		UpdateCount:        1,
	}

	if prev, ok := m.tracked[bond.PairID]; ok {
		op.FirstDetected = prev.FirstDetected
		op.UpdateCount = prev.UpdateCount + 1
	} else {
		observability.DefaultMetrics.CrossOpportunitiesFound.Inc()
		m.log.Info().
			Str("pair_id", bond.PairID).
			Str("direction", string(direction)).
			Float64("edge", edge).
			Float64("estimated_profit_usd", op.EstimatedProfitUSD).
			Msg("cross opportunity detected")
	}
	m.tracked[bond.PairID] = op
}

// polyDepthUSD estimates the executable notional on the polymarket leg from
// a fresh cached book: size at or better than the quoted price on the side
// the trade hits, in USD. Zero when no fresh book is available.
func (m *Monitor) polyDepthUSD(pc *domain.Contract, label string, q quote, dir domain.Direction, now time.Time) float64 {
	if m.books == nil {
		return 0
	}
	o := pc.Outcome.OutcomeByLabel(label)
	if o == nil || o.TokenID == "" {
		return 0
	}
	book := m.books.CachedBook(o.TokenID, now)
	if book == nil {
		return 0
	}
	if dir == domain.DirectionBuyKalshi {
		return book.DepthAt(q.bid, "bid") * q.bid
	}
	return book.DepthAt(q.ask, "ask") * q.ask
}

// quote is one outcome's executable prices. synthetic marks sides derived
// from the mid via the fallback spread.
type quote struct {
	bid, ask, mid float64
	synthetic     bool
}

// quoteFor extracts bid/ask/mid for the labeled outcome. A missing side is
// synthesized from the mid with a ±0.5% spread; no mid at all rejects the
// quote.
func quoteFor(c *domain.Contract, label string) (quote, bool) {
	o := c.Outcome.OutcomeByLabel(label)
	if o == nil || o.Mid == nil || *o.Mid <= 0 {
		return quote{}, false
	}

	q := quote{mid: *o.Mid}
	if o.Bid != nil && *o.Bid > 0 {
		q.bid = *o.Bid
	} else {
		q.bid = q.mid * (1 - syntheticSpread)
		q.synthetic = true
	}
	if o.Ask != nil && *o.Ask > 0 {
		q.ask = *o.Ask
	} else {
		q.ask = q.mid * (1 + syntheticSpread)
		q.synthetic = true
	}
	return q, true
}

// intraOpportunity checks a single contract for yes + no < 1. Both prices
// must be present and positive.
func intraOpportunity(c *domain.Contract, now time.Time) (domain.IntraOpportunity, bool) {
	yes, no, ok := c.Outcome.YesNoPrices()
	if !ok || yes <= 0 || no <= 0 {
		return domain.IntraOpportunity{}, false
	}
	sum := yes + no
	if sum >= 1 {
		return domain.IntraOpportunity{}, false
	}

	return domain.IntraOpportunity{
		Kind:          domain.KindIntraExchange,
		Platform:      c.Platform,
		ContractID:    c.ID,
		Title:         c.RawTitle,
		YesPrice:      yes,
		NoPrice:       no,
		PriceSum:      sum,
		Gap:           1 - sum,
		ProfitPerUnit: (1 - sum) / sum,
		DetectedAt:    now,
	}, true
}

// evictLocked drops tracked opportunities past the TTL, then enforces the
// map cap by shedding the lowest estimated profit. Caller holds m.mu.
func (m *Monitor) evictLocked(now time.Time) {
	for id, op := range m.tracked {
		if now.Sub(op.LastUpdated) > m.cfg.StaleOpportunity {
			delete(m.tracked, id)
			observability.DefaultMetrics.OpportunitiesEvicted.WithLabelValues("ttl").Inc()
		}
	}

	if len(m.tracked) <= m.cfg.MaxOpportunities {
		return
	}
	ops := make([]*domain.CrossOpportunity, 0, len(m.tracked))
	for _, op := range m.tracked {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].EstimatedProfitUSD < ops[j].EstimatedProfitUSD
	})
	for _, op := range ops[:len(ops)-m.cfg.MaxOpportunities] {
		delete(m.tracked, op.PairID)
		observability.DefaultMetrics.OpportunitiesEvicted.WithLabelValues("cap").Inc()
	}
}

// publishPriorityLocked hands the top opportunities' contract ids to the
// price updater. Single writer; the updater only loads.
func (m *Monitor) publishPriorityLocked(cross []domain.CrossOpportunity, now time.Time) {
	if m.priority == nil {
		return
	}

	hint := &domain.PriorityList{PublishedAt: now}
	for _, op := range cross {
		if len(hint.KalshiIDs) < m.cfg.PrioritySideCap {
			hint.KalshiIDs = append(hint.KalshiIDs, op.KalshiID)
		}
		if len(hint.PolymarketIDs) < m.cfg.PrioritySideCap {
			hint.PolymarketIDs = append(hint.PolymarketIDs, op.PolymarketID)
		}
	}
	m.priority.Store(hint)
}

// Snapshot returns a copy of the tracked cross opportunities, profit
// descending.
func (m *Monitor) Snapshot() []domain.CrossOpportunity {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.CrossOpportunity, 0, len(m.tracked))
	for _, op := range m.tracked {
		out = append(out, *op)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EstimatedProfitUSD > out[j].EstimatedProfitUSD
	})
	return out
}

// MonitoringStats summarizes the tracked state for operators.
func (m *Monitor) MonitoringStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		TrackedCross: len(m.tracked),
		ByTier:       make(map[int]int),
		LastScan:     m.lastScan,
	}
	for _, op := range m.tracked {
		s.ByTier[op.Tier]++
		s.TotalProfitUSD += op.EstimatedProfitUSD
		if op.Edge > s.BestEdge {
			s.BestEdge = op.Edge
		}
	}
	return s
}

func minPositive(a, b float64) float64 {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}
