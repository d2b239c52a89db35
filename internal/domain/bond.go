package domain

import "time"

// BondStatus is the lifecycle state of a bond.
type BondStatus string

const (
	BondActive    BondStatus = "active"
	BondPaused    BondStatus = "paused"
	BondRetired   BondStatus = "retired"
	BondValidated BondStatus = "validated"
)

// FeatureBreakdown records the five individual similarity scores plus the
// resolution-date delta, as computed at bond creation. It is never mutated
// after the bond is written.
type FeatureBreakdown struct {
	Text          float64 `json:"text"`
	Entity        float64 `json:"entity"`
	Time          float64 `json:"time"`
	Outcome       float64 `json:"outcome"`
	Resolution    float64 `json:"resolution"`
	TimeDeltaDays float64 `json:"time_delta_days"`
}

// Bond is an accepted semantic equivalence between one kalshi contract and one
// polymarket contract. Tier 3 candidates are never persisted as bonds.
type Bond struct {
	PairID string // deterministic, derived from the two contract ids

	KalshiID     string
	PolymarketID string

	Tier       int // 1 (auto) or 2 (cautious)
	PMatch     float64
	Similarity float64

	// OutcomeMapping maps kalshi outcome labels to polymarket outcome labels.
	OutcomeMapping map[string]string

	Features FeatureBreakdown

	Status        BondStatus
	CreatedAt     time.Time
	LastValidated time.Time
}
