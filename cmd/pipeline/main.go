// Package main runs the pipeline once, end to end, against the live exchange
// APIs with in-memory storage: ingest → discover bonds → refresh prices →
// scan for arbitrage. Results print to stdout as JSON. Useful for smoke
// tests and threshold experiments without a database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"marketbond/internal/config"
	"marketbond/internal/exchange/kalshi"
	"marketbond/internal/exchange/polymarket"
	"marketbond/internal/orchestrator"
	"marketbond/internal/storage/memory"
)

func main() {
	_ = godotenv.Load()

	kalshiURL := flag.String("kalshi-url", "", "Kalshi trade API base URL (default: public API)")
	gammaURL := flag.String("gamma-url", "", "Polymarket Gamma API base URL (default: public API)")
	clobURL := flag.String("clob-url", "", "Polymarket CLOB API base URL (default: public API)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall run deadline")
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
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	orch := orchestrator.New(orchestrator.Options{
		Config:        cfg,
		ContractStore: memory.NewContractStore(),
		BondStore:     memory.NewBondStore(),
		DecisionStore: memory.NewDecisionStore(),
		Kalshi:        kalshi.NewClient(*kalshiURL),
		Polymarket:    polymarket.NewClient(*gammaURL, *clobURL),
		Log:           log,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("encode result")
	}
}
