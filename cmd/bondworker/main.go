// Package main runs the bond worker: the long-lived service hosting the
// control loops for ingestion, bond discovery, price refresh, the arbitrage
// monitor, and post-resolution validation, over shared persistent stores.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"marketbond/internal/bondbuilder"
	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/embedding"
	"marketbond/internal/exchange/kalshi"
	"marketbond/internal/exchange/polymarket"
	"marketbond/internal/ingestion"
	"marketbond/internal/monitor"
	"marketbond/internal/normalize"
	"marketbond/internal/observability"
	"marketbond/internal/pricing"
	"marketbond/internal/storage"
	chstore "marketbond/internal/storage/clickhouse"
	"marketbond/internal/storage/memory"
	"marketbond/internal/storage/migrations"
	pgstore "marketbond/internal/storage/postgres"
	"marketbond/internal/validation"
)

func main() {
	// Load .env file if it exists; real environment wins.
	_ = godotenv.Load()

	kalshiURL := flag.String("kalshi-url", "", "Kalshi trade API base URL (default: public API)")
	gammaURL := flag.String("gamma-url", "", "Polymarket Gamma API base URL (default: public API)")
	clobURL := flag.String("clob-url", "", "Polymarket CLOB API base URL (default: public API)")
	streamURL := flag.String("stream-url", "", "Polymarket CLOB websocket URL (default: public endpoint)")
	streamBooks := flag.Bool("stream-books", true, "Subscribe to live Polymarket order books for bonded tokens")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contracts, bonds, decisions, cleanup, err := createStores(ctx, cfg, *useMemory, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store setup failed")
	}
	defer cleanup()

	kalshiClient := kalshi.NewClient(*kalshiURL)
	polymarketClient := polymarket.NewClient(*gammaURL, *clobURL)

	pipeline := normalize.NewPipeline(embedding.NewHashedEncoder(), log)
	poller := ingestion.New(cfg, pipeline, contracts, kalshiClient, polymarketClient, log)
	builder := bondbuilder.New(cfg, contracts, bonds, decisions, log)

	priority := &atomic.Pointer[domain.PriorityList]{}
	updater := pricing.NewUpdater(cfg, contracts, bonds, kalshiClient, polymarketClient, priority, log)
	mon := monitor.New(cfg, contracts, bonds, priority, log)
	mon.UseBooks(updater)
	validator := validation.New(cfg, bonds, kalshiClient, polymarketClient, log)

	go serveMetrics(*metricsAddr, log)

	log.Info().
		Str("metrics_addr", *metricsAddr).
		Bool("use_memory", *useMemory).
		Msg("bond worker starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(ctx) })
	g.Go(func() error { return runDiscoveryLoop(ctx, builder, cfg.PollInterval, log) })
	g.Go(func() error { return updater.Run(ctx) })
	g.Go(func() error { return mon.Run(ctx) })
	g.Go(func() error { return validator.Run(ctx) })
	if *streamBooks {
		g.Go(func() error {
			return runBookStream(ctx, cfg, contracts, bonds, updater, *streamURL, log)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bond worker failed")
	}
	log.Info().Msg("shutdown complete")
}

// runDiscoveryLoop runs a full bond-discovery pass on the poll interval.
// Discovery trails ingestion by design: each pass sees whatever the poller
// has stored so far.
func runDiscoveryLoop(ctx context.Context, builder *bondbuilder.Builder, interval time.Duration, log zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := builder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("discovery pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runBookStream keeps a websocket subscription covering the outcome tokens
// of every bonded Polymarket contract, feeding snapshots into the updater's
// book cache. The subscription is rebuilt when the bonded token set changes.
func runBookStream(ctx context.Context, cfg config.Config, contracts storage.ContractStore,
	bonds storage.BondStore, updater *pricing.Updater, streamURL string, log zerolog.Logger) error {

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var stream *polymarket.BookStream
	var subscribed string
	defer func() {
		if stream != nil {
			_ = stream.Close()
		}
	}()

	for {
		tokens, err := bondedPolyTokens(ctx, contracts, bonds)
		if err != nil {
			log.Warn().Err(err).Msg("bonded token lookup failed")
		} else if key := strings.Join(tokens, ","); len(tokens) > 0 && key != subscribed {
			if stream != nil {
				_ = stream.Close()
				stream = nil
			}
			s, err := polymarket.NewBookStream(ctx, streamURL, tokens, nil)
			if err != nil {
				log.Warn().Err(err).Int("tokens", len(tokens)).Msg("book stream connect failed")
			} else {
				stream = s
				subscribed = key
				go updater.ConsumeBooks(ctx, s.Updates())
				log.Info().Int("tokens", len(tokens)).Msg("book stream subscribed")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// bondedPolyTokens returns the sorted outcome-token ids of every contract
// referenced by an active bond.
func bondedPolyTokens(ctx context.Context, contracts storage.ContractStore, bonds storage.BondStore) ([]string, error) {
	all, err := bonds.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, b := range all {
		c, err := contracts.GetByID(ctx, b.PolymarketID)
		if err != nil {
			continue
		}
		for _, id := range c.TokenIDs {
			if id != "" {
				set[id] = true
			}
		}
	}

	tokens := make([]string, 0, len(set))
	for id := range set {
		tokens = append(tokens, id)
	}
	sort.Strings(tokens)
	return tokens, nil
}

// createStores wires PostgreSQL for contracts and bonds plus ClickHouse for
// decisions, or in-memory versions of all three.
func createStores(ctx context.Context, cfg config.Config, useMemory bool, log zerolog.Logger) (
	storage.ContractStore, storage.BondStore, storage.DecisionStore, func(), error) {

	if useMemory {
		return memory.NewContractStore(), memory.NewBondStore(), memory.NewDecisionStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}

	var decisions storage.DecisionStore
	cleanup := func() { pool.Close() }

	if cfg.ClickHouseURL != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseURL)
		if err != nil {
			pool.Close()
			return nil, nil, nil, nil, err
		}
		decisions = chstore.NewDecisionStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	} else {
		log.Warn().Msg("no clickhouse url configured, decisions will not be recorded")
	}

	return pgstore.NewContractStore(pool), pgstore.NewBondStore(pool), decisions, cleanup, nil
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
