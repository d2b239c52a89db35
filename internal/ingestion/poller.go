// Package ingestion pages raw markets out of both exchanges, runs them
// through the normalization pipeline, and upserts the results. A bad record
// is skipped and counted, never fatal; an exchange outage ends the pass for
// that platform with partial progress.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"marketbond/internal/config"
	"marketbond/internal/exchange"
	"marketbond/internal/normalize"
	"marketbond/internal/observability"
	"marketbond/internal/storage"
)

// maxPages bounds one platform's pagination walk so a cursor loop upstream
// cannot wedge the poller.
const maxPages = 1000

// Stats summarizes one ingestion pass.
type Stats struct {
	KalshiIngested     int
	PolymarketIngested int
	Skipped            int // bad records dropped by the normalizer
}

// Poller drives the ingest loop for both exchanges.
type Poller struct {
	cfg        config.Config
	pipeline   *normalize.Pipeline
	contracts  storage.ContractStore
	kalshi     exchange.KalshiClient
	polymarket exchange.PolymarketClient
	log        zerolog.Logger
}

// New creates a Poller.
func New(cfg config.Config, pipeline *normalize.Pipeline, contracts storage.ContractStore,
	kalshi exchange.KalshiClient, polymarket exchange.PolymarketClient, log zerolog.Logger) *Poller {
	return &Poller{
		cfg:        cfg,
		pipeline:   pipeline,
		contracts:  contracts,
		kalshi:     kalshi,
		polymarket: polymarket,
		log:        log.With().Str("component", "ingestion").Logger(),
	}
}

// Run polls on the configured interval until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil {
			p.log.Warn().Err(err).Msg("ingestion pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce ingests one full pass over both exchanges. One platform failing
// does not abort the other; the first error is returned alongside whatever
// progress was made.
func (p *Poller) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	kalshiErr := p.ingestKalshi(ctx, &stats)
	polyErr := p.ingestPolymarket(ctx, &stats)

	p.log.Info().
		Int("kalshi", stats.KalshiIngested).
		Int("polymarket", stats.PolymarketIngested).
		Int("skipped", stats.Skipped).
		Msg("ingestion pass complete")

	return stats, errors.Join(kalshiErr, polyErr)
}

func (p *Poller) ingestKalshi(ctx context.Context, stats *Stats) error {
	cursor := ""
	for page := 0; page < maxPages; page++ {
		markets, next, err := p.kalshi.ListActiveMarkets(ctx, cursor)
		if err != nil {
			return fmt.Errorf("kalshi page %d: %w", page, err)
		}

		for _, m := range markets {
			prev, err := p.contracts.GetByID(ctx, m.Ticker)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("load kalshi contract %s: %w", m.Ticker, err)
			}

			c, err := p.pipeline.FromKalshi(ctx, m, prev)
			if err != nil {
				if errors.Is(err, normalize.ErrBadRecord) {
					stats.Skipped++
					observability.RecordNormalizationError("kalshi")
					p.log.Debug().Err(err).Str("ticker", m.Ticker).Msg("record skipped")
					continue
				}
				return fmt.Errorf("normalize kalshi %s: %w", m.Ticker, err)
			}
			if err := p.contracts.Upsert(ctx, c); err != nil {
				return fmt.Errorf("upsert kalshi %s: %w", c.ID, err)
			}
			stats.KalshiIngested++
			observability.RecordNormalized("kalshi")
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
	return fmt.Errorf("kalshi pagination exceeded %d pages", maxPages)
}

func (p *Poller) ingestPolymarket(ctx context.Context, stats *Stats) error {
	cursor := ""
	for page := 0; page < maxPages; page++ {
		markets, next, err := p.polymarket.ListActiveMarkets(ctx, cursor)
		if err != nil {
			return fmt.Errorf("polymarket page %d: %w", page, err)
		}

		for _, m := range markets {
			prev, err := p.contracts.GetByConditionID(ctx, m.ConditionID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("load polymarket contract %s: %w", m.ConditionID, err)
			}

			c, err := p.pipeline.FromPolymarket(ctx, m, prev)
			if err != nil {
				if errors.Is(err, normalize.ErrBadRecord) {
					stats.Skipped++
					observability.RecordNormalizationError("polymarket")
					p.log.Debug().Err(err).Str("condition_id", m.ConditionID).Msg("record skipped")
					continue
				}
				return fmt.Errorf("normalize polymarket %s: %w", m.ConditionID, err)
			}
			if err := p.contracts.Upsert(ctx, c); err != nil {
				return fmt.Errorf("upsert polymarket %s: %w", c.ID, err)
			}
			stats.PolymarketIngested++
			observability.RecordNormalized("polymarket")
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
	return fmt.Errorf("polymarket pagination exceeded %d pages", maxPages)
}
