// Package pricing refreshes quotes for bonded contracts on a fixed cadence.
// Kalshi quotes come from batched market reads; Polymarket quotes come from
// per-token order books with the simplified-markets feed as fallback.
package pricing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/exchange"
	"marketbond/internal/exchange/polymarket"
	"marketbond/internal/observability"
	"marketbond/internal/storage"
)

// CycleStats summarizes one price-update cycle.
type CycleStats struct {
	Bonds               int // active bonds driving the cycle
	KalshiContracts     int // kalshi contracts refreshed
	PolymarketContracts int // polymarket contracts refreshed
	FetchErrors         int // upstream calls that failed
}

// Updater drives the price-refresh loop. The priority pointer is written by
// the arbitrage monitor and read here; contracts on the list are refreshed
// first within their platform pass.
type Updater struct {
	cfg        config.Config
	contracts  storage.ContractStore
	bonds      storage.BondStore
	kalshi     exchange.KalshiClient
	polymarket exchange.PolymarketClient
	priority   *atomic.Pointer[domain.PriorityList]
	log        zerolog.Logger

	booksMu   sync.RWMutex
	liveBooks map[string]*domain.OrderBook // token id -> latest streamed snapshot
}

// NewUpdater creates an Updater. priority may be nil when no monitor feeds
// hints.
func NewUpdater(cfg config.Config, contracts storage.ContractStore, bonds storage.BondStore,
	kalshi exchange.KalshiClient, polymarket exchange.PolymarketClient,
	priority *atomic.Pointer[domain.PriorityList], log zerolog.Logger) *Updater {
	return &Updater{
		cfg:        cfg,
		contracts:  contracts,
		bonds:      bonds,
		kalshi:     kalshi,
		polymarket: polymarket,
		priority:   priority,
		log:        log.With().Str("component", "pricing").Logger(),
		liveBooks:  make(map[string]*domain.OrderBook),
	}
}

// ConsumeBooks drains a live Polymarket book feed into the updater's cache
// until the channel closes or the context ends. A cached snapshot that is
// still fresh replaces the per-token poll on the next cycle.
func (u *Updater) ConsumeBooks(ctx context.Context, updates <-chan polymarket.BookUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			book := upd.Book
			u.booksMu.Lock()
			u.liveBooks[upd.TokenID] = &book
			u.booksMu.Unlock()
		}
	}
}

// CachedBook returns the streamed snapshot for the token if it is newer than
// the staleness threshold. The arbitrage monitor reads the same cache to size
// opportunities from real book depth.
func (u *Updater) CachedBook(tokenID string, now time.Time) *domain.OrderBook {
	u.booksMu.RLock()
	defer u.booksMu.RUnlock()

	book := u.liveBooks[tokenID]
	if book == nil || now.Sub(book.Timestamp) > u.cfg.StalenessThreshold {
		return nil
	}
	return book
}

// Run cycles until the context is canceled. A failed cycle is logged and the
// loop keeps going; only context cancellation stops it.
func (u *Updater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.cfg.PriceUpdateInterval)
	defer ticker.Stop()

	for {
		if _, err := u.RunCycle(ctx); err != nil {
			observability.DefaultMetrics.PriceCycles.WithLabelValues("error").Inc()
			u.log.Warn().Err(err).Msg("price cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle refreshes quotes for every contract referenced by an active bond.
// Each contract commits independently, so a failed fetch never blocks the
// rest of the cycle.
func (u *Updater) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	started := time.Now()

	bonds, err := u.bonds.List(ctx, 0)
	if err != nil {
		return stats, fmt.Errorf("list bonds: %w", err)
	}
	stats.Bonds = len(bonds)
	if len(bonds) == 0 {
		return stats, nil
	}

	kalshiIDs := make([]string, 0, len(bonds))
	polyIDs := make([]string, 0, len(bonds))
	seenK := make(map[string]bool, len(bonds))
	seenP := make(map[string]bool, len(bonds))
	for _, b := range bonds {
		if !seenK[b.KalshiID] {
			seenK[b.KalshiID] = true
			kalshiIDs = append(kalshiIDs, b.KalshiID)
		}
		if !seenP[b.PolymarketID] {
			seenP[b.PolymarketID] = true
			polyIDs = append(polyIDs, b.PolymarketID)
		}
	}

	if u.priority != nil {
		if hint := u.priority.Load(); hint != nil {
			kalshiIDs = prioritize(kalshiIDs, hint.KalshiIDs)
			polyIDs = prioritize(polyIDs, hint.PolymarketIDs)
		}
	}

	now := time.Now().UTC()
	u.refreshKalshi(ctx, kalshiIDs, now, &stats)
	u.refreshPolymarket(ctx, polyIDs, now, &stats)

	status := "ok"
	if stats.FetchErrors > 0 {
		status = "partial"
	}
	observability.DefaultMetrics.PriceCycles.WithLabelValues(status).Inc()
	observability.DefaultMetrics.LastSuccessfulPriceUpdate.SetToCurrentTime()

	u.log.Debug().
		Int("bonds", stats.Bonds).
		Int("kalshi", stats.KalshiContracts).
		Int("polymarket", stats.PolymarketContracts).
		Int("fetch_errors", stats.FetchErrors).
		Dur("elapsed", time.Since(started)).
		Msg("price cycle complete")

	return stats, nil
}

// prioritize moves hinted ids to the front, keeping hint order for the head
// and original order for the tail. Unknown hinted ids are dropped.
func prioritize(ids, hint []string) []string {
	if len(hint) == 0 {
		return ids
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	out := make([]string, 0, len(ids))
	head := make(map[string]bool, len(hint))
	for _, id := range hint {
		if known[id] && !head[id] {
			head[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if !head[id] {
			out = append(out, id)
		}
	}
	return out
}

func (u *Updater) refreshKalshi(ctx context.Context, tickers []string, now time.Time, stats *CycleStats) {
	for start := 0; start < len(tickers); start += u.cfg.PriceBatchSize {
		end := min(start+u.cfg.PriceBatchSize, len(tickers))

		markets, err := u.kalshi.GetMarketsByTickers(ctx, tickers[start:end])
		if err != nil {
			stats.FetchErrors++
			observability.DefaultMetrics.PriceFetchErrors.WithLabelValues("kalshi").Inc()
			u.log.Warn().Err(err).Int("batch", end-start).Msg("kalshi batch fetch failed")
			continue
		}

		for _, m := range markets {
			updates := kalshiUpdates(m, now)
			if len(updates) == 0 {
				continue
			}
			if err := u.contracts.UpdatePrices(ctx, updates); err != nil {
				stats.FetchErrors++
				u.log.Warn().Err(err).Str("ticker", m.Ticker).Msg("price commit failed")
				continue
			}
			stats.KalshiContracts++
			observability.DefaultMetrics.PricesUpdated.WithLabelValues("kalshi").Inc()
		}
	}
}

// kalshiUpdates converts one Kalshi market snapshot into yes/no quote
// updates. Cents scale to [0,1]; the no side is the complement of yes with
// bid and ask swapped. Zero cents means no quote on that side.
func kalshiUpdates(m exchange.KalshiMarket, now time.Time) []storage.PriceUpdate {
	var yesBid, yesAsk, yesMid *float64
	if m.YesBid > 0 {
		v := float64(m.YesBid) / 100
		yesBid = &v
	}
	if m.YesAsk > 0 {
		v := float64(m.YesAsk) / 100
		yesAsk = &v
	}
	switch {
	case yesBid != nil && yesAsk != nil:
		v := (*yesBid + *yesAsk) / 2
		yesMid = &v
	case m.LastPrice > 0:
		v := float64(m.LastPrice) / 100
		yesMid = &v
	}
	if yesBid == nil && yesAsk == nil && yesMid == nil {
		return nil
	}

	return []storage.PriceUpdate{
		{ContractID: m.Ticker, OutcomeLabel: "Yes", Bid: yesBid, Ask: yesAsk, Mid: yesMid, ObservedAt: now},
		{ContractID: m.Ticker, OutcomeLabel: "No", Bid: complement(yesAsk), Ask: complement(yesBid), Mid: complement(yesMid), ObservedAt: now},
	}
}

func complement(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := 1 - *p
	return &v
}

func (u *Updater) refreshPolymarket(ctx context.Context, ids []string, now time.Time, stats *CycleStats) {
	// The simplified-markets feed is fetched at most once per cycle, and
	// only after an order-book read has failed.
	var simplified map[string]float64
	simplifiedLoaded := false
	loadSimplified := func() map[string]float64 {
		if simplifiedLoaded {
			return simplified
		}
		simplifiedLoaded = true
		markets, err := u.polymarket.GetSimplifiedMarkets(ctx)
		if err != nil {
			observability.DefaultMetrics.PriceFetchErrors.WithLabelValues("polymarket").Inc()
			u.log.Warn().Err(err).Msg("simplified markets fetch failed")
			return nil
		}
		simplified = make(map[string]float64)
		for _, m := range markets {
			for _, tok := range m.Tokens {
				simplified[tok.TokenID] = tok.Price
			}
		}
		return simplified
	}

	for _, id := range ids {
		c, err := u.contracts.GetByID(ctx, id)
		if err != nil {
			stats.FetchErrors++
			u.log.Warn().Err(err).Str("contract", id).Msg("bonded contract missing")
			continue
		}

		updates := make([]storage.PriceUpdate, 0, len(c.Outcome.Outcomes))
		failed := false
		for _, o := range c.Outcome.Outcomes {
			if o.TokenID == "" {
				continue
			}
			if book := u.CachedBook(o.TokenID, now); book != nil {
				updates = append(updates, bookUpdate(id, o.Label, book, now))
				continue
			}
			book, err := u.polymarket.GetOrderBook(ctx, o.TokenID)
			if err != nil {
				failed = true
				observability.DefaultMetrics.PriceFetchErrors.WithLabelValues("polymarket").Inc()
				if prices := loadSimplified(); prices != nil {
					if p, ok := prices[o.TokenID]; ok {
						mid := p
						updates = append(updates, storage.PriceUpdate{
							ContractID: id, OutcomeLabel: o.Label, Mid: &mid, ObservedAt: now,
						})
					}
				}
				continue
			}
			updates = append(updates, bookUpdate(id, o.Label, book, now))
		}

		if len(updates) == 0 {
			if failed {
				stats.FetchErrors++
			}
			continue
		}
		if err := u.contracts.UpdatePrices(ctx, updates); err != nil {
			stats.FetchErrors++
			u.log.Warn().Err(err).Str("contract", id).Msg("price commit failed")
			continue
		}
		stats.PolymarketContracts++
		observability.DefaultMetrics.PricesUpdated.WithLabelValues("polymarket").Inc()
	}
}

// bookUpdate derives bid, ask, and mid from a CLOB book snapshot. A one-sided
// book yields a mid equal to the present side.
func bookUpdate(contractID, label string, book *domain.OrderBook, now time.Time) storage.PriceUpdate {
	upd := storage.PriceUpdate{ContractID: contractID, OutcomeLabel: label, ObservedAt: now}

	if bid, ok := book.BestBid(); ok {
		v := bid.Price
		upd.Bid = &v
	}
	if ask, ok := book.BestAsk(); ok {
		v := ask.Price
		upd.Ask = &v
	}
	switch {
	case upd.Bid != nil && upd.Ask != nil:
		v := (*upd.Bid + *upd.Ask) / 2
		upd.Mid = &v
	case upd.Bid != nil:
		upd.Mid = upd.Bid
	case upd.Ask != nil:
		upd.Mid = upd.Ask
	}
	return upd
}
