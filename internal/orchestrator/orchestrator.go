// Package orchestrator provides one-shot pipeline orchestration.
// It coordinates: ingestion → bond discovery → price refresh → arbitrage scan
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"marketbond/internal/bondbuilder"
	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/embedding"
	"marketbond/internal/exchange"
	"marketbond/internal/ingestion"
	"marketbond/internal/monitor"
	"marketbond/internal/normalize"
	"marketbond/internal/pricing"
	"marketbond/internal/storage"
)

// Orchestrator runs the full pipeline once, end to end. The long-lived
// binaries run the same components as independent loops; this single-pass
// form exists for the in-process pipeline binary and integration tests.
type Orchestrator struct {
	cfg config.Config

	contracts storage.ContractStore
	bonds     storage.BondStore
	decisions storage.DecisionStore

	kalshi     exchange.KalshiClient
	polymarket exchange.PolymarketClient

	embedder embedding.Provider
	priority *atomic.Pointer[domain.PriorityList]

	skipIngestion bool
	log           zerolog.Logger
}

// Options for creating an Orchestrator.
type Options struct {
	Config config.Config

	// Required stores
	ContractStore storage.ContractStore
	BondStore     storage.BondStore

	// Optional decision sink; nil disables decision recording.
	DecisionStore storage.DecisionStore

	// Required exchange clients
	Kalshi     exchange.KalshiClient
	Polymarket exchange.PolymarketClient

	// Embedder defaults to the hashed encoder when nil.
	Embedder embedding.Provider

	// SkipIngestion runs discovery over already-stored contracts.
	SkipIngestion bool

	Log zerolog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	embedder := opts.Embedder
	if embedder == nil {
		embedder = embedding.NewHashedEncoder()
	}
	return &Orchestrator{
		cfg:           opts.Config,
		contracts:     opts.ContractStore,
		bonds:         opts.BondStore,
		decisions:     opts.DecisionStore,
		kalshi:        opts.Kalshi,
		polymarket:    opts.Polymarket,
		embedder:      embedder,
		priority:      &atomic.Pointer[domain.PriorityList]{},
		skipIngestion: opts.SkipIngestion,
		log:           opts.Log.With().Str("component", "orchestrator").Logger(),
	}
}

// RunResult contains results from one orchestrated pass.
type RunResult struct {
	Ingested     ingestion.Stats
	Discovery    bondbuilder.RunStats
	Pricing      pricing.CycleStats
	Cross        []domain.CrossOpportunity
	Intra        []domain.IntraOpportunity
	PriorityHint *domain.PriorityList
	Errors       []string
}

// Run executes the full pipeline.
// Phases:
//  1. Ingest raw markets from both exchanges and normalize them
//  2. Discover bonds over the stored contract set
//  3. Refresh prices for every bonded contract
//  4. Scan bonded pairs for arbitrage
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	pipeline := normalize.NewPipeline(o.embedder, o.log)

	if !o.skipIngestion {
		o.log.Info().Msg("phase 1: ingestion")
		poller := ingestion.New(o.cfg, pipeline, o.contracts, o.kalshi, o.polymarket, o.log)
		stats, err := poller.RunOnce(ctx)
		result.Ingested = stats
		if err != nil {
			// Partial ingestion still feeds the later phases.
			result.Errors = append(result.Errors, fmt.Sprintf("ingestion: %v", err))
		}
	} else {
		o.log.Info().Msg("phase 1: skipping ingestion")
	}

	o.log.Info().Msg("phase 2: bond discovery")
	builder := bondbuilder.New(o.cfg, o.contracts, o.bonds, o.decisions, o.log)
	discovery, err := builder.Run(ctx)
	result.Discovery = discovery
	if err != nil {
		return result, fmt.Errorf("phase 2 (bond discovery) failed: %w", err)
	}

	o.log.Info().Msg("phase 3: price refresh")
	updater := pricing.NewUpdater(o.cfg, o.contracts, o.bonds, o.kalshi, o.polymarket, o.priority, o.log)
	cycle, err := updater.RunCycle(ctx)
	result.Pricing = cycle
	if err != nil {
		return result, fmt.Errorf("phase 3 (price refresh) failed: %w", err)
	}

	o.log.Info().Msg("phase 4: arbitrage scan")
	mon := monitor.New(o.cfg, o.contracts, o.bonds, o.priority, o.log)
	scan, err := mon.Scan(ctx, 0, 0)
	if err != nil {
		return result, fmt.Errorf("phase 4 (arbitrage scan) failed: %w", err)
	}
	result.Cross = scan.Cross
	result.Intra = scan.Intra
	result.PriorityHint = o.priority.Load()

	o.log.Info().
		Int("kalshi_ingested", result.Ingested.KalshiIngested).
		Int("polymarket_ingested", result.Ingested.PolymarketIngested).
		Int("bonds", result.Discovery.Bonded).
		Int("cross_opportunities", len(result.Cross)).
		Int("intra_opportunities", len(result.Intra)).
		Msg("pipeline complete")

	return result, nil
}
