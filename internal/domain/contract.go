package domain

import "time"

// Platform identifies the exchange a contract is listed on.
type Platform string

const (
	PlatformKalshi     Platform = "kalshi"
	PlatformPolymarket Platform = "polymarket"
)

// Status is the lifecycle state of a contract.
// Transitions are monotonic: active → closed → resolved.
type Status string

const (
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusResolved Status = "resolved"
)

// Granularity selects the time-decay constant for time alignment.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// Polarity is the direction of a yes/no contract's question.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// EntitySet holds normalized entity strings extracted from a contract's text.
type EntitySet struct {
	Tickers       []string `json:"tickers,omitempty"`
	People        []string `json:"people,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Countries     []string `json:"countries,omitempty"`
	Misc          []string `json:"misc,omitempty"`
}

// TimeWindow holds a contract's resolution timing.
// Resolution is required; the observation window is optional.
type TimeWindow struct {
	Resolution  time.Time   `json:"resolution"`
	Start       *time.Time  `json:"start,omitempty"`
	End         *time.Time  `json:"end,omitempty"`
	Granularity Granularity `json:"granularity"`
}

// Contract is a normalized exchange-specific offer on a binary (or small-arity
// discrete) future outcome. Identity is (Platform, ID).
type Contract struct {
	ID          string   // platform-local id (kalshi ticker / polymarket condition id)
	Platform    Platform
	ConditionID string   // polymarket condition id (secondary lookup key)
	TokenIDs    []string // polymarket CLOB token ids, one per outcome

	Status Status

	RawTitle       string
	RawDescription string

	CleanTitle       string
	CleanDescription string

	Category         string
	EventType        string
	GeoScope         string
	ResolutionSource string
	SportType        string // nfl/nhl/nba/mlb, empty when undetected
	Parlay           bool

	Entities EntitySet

	TimeWindow TimeWindow

	Outcome OutcomeSchema

	// Embedding is the fixed-dimension dense vector over cleaned title and
	// description. Nil when embedding generation failed; such contracts are
	// invisible to candidate retrieval.
	Embedding []float32

	Volume    float64
	Liquidity float64
	FeeRate   *float64 // per-market fee hint, nil when the exchange default applies

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceFresh reports whether the contract's prices were refreshed within the
// staleness threshold, measured at now.
func (c *Contract) PriceFresh(now time.Time, threshold time.Duration) bool {
	return now.Sub(c.UpdatedAt) <= threshold
}
