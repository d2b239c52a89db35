package domain

import "time"

// Direction of a cross-exchange arbitrage: which side is bought.
type Direction string

const (
	DirectionBuyKalshi     Direction = "buy_kalshi_sell_polymarket"
	DirectionBuyPolymarket Direction = "buy_polymarket_sell_kalshi"
)

// OpportunityKind distinguishes the two arbitrage families.
type OpportunityKind string

const (
	KindCrossExchange OpportunityKind = "cross_exchange"
	KindIntraExchange OpportunityKind = "intra_exchange"
)

// CrossOpportunity is a tracked cross-exchange arbitrage on a bonded pair.
// Transient: owned and mutated only by the arbitrage monitor.
type CrossOpportunity struct {
	Kind         OpportunityKind
	PairID       string
	KalshiID     string
	PolymarketID string
	Tier         int

	Direction Direction
	Edge      float64 // per-share net edge after fees and gas

	KalshiBid     float64
	KalshiAsk     float64
	KalshiMid     float64
	PolymarketBid float64
	PolymarketAsk float64
	PolymarketMid float64

	AvailableLiquidity float64
	RecommendedSize    float64
	EstimatedProfitUSD float64 // RecommendedSize × Edge

	Warnings []string

	FirstDetected time.Time
	LastUpdated   time.Time
	UpdateCount   int
}

// IntraOpportunity is a single-exchange mispricing where yes + no < 1.
type IntraOpportunity struct {
	Kind       OpportunityKind
	Platform   Platform
	ContractID string
	Title      string

	YesPrice      float64
	NoPrice       float64
	PriceSum      float64
	Gap           float64 // 1 − PriceSum
	ProfitPerUnit float64 // Gap / PriceSum

	DetectedAt time.Time
}

// PriorityList is the monitor→price-updater hint: contract ids whose prices
// should be refreshed first on the next cycle. Bounded to ~50 per side.
type PriorityList struct {
	KalshiIDs     []string
	PolymarketIDs []string
	PublishedAt   time.Time
}
