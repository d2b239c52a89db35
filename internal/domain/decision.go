package domain

import "time"

// Decision is a record of one scorer invocation over a candidate pair:
// accepted with a tier, or rejected with the triggering veto or failed
// threshold. Decisions feed the offline threshold-tuning sink.
type Decision struct {
	KalshiID     string
	PolymarketID string

	Accepted bool
	Tier     int
	Reason   string // veto or failed-threshold name; empty on tier 1/2 accept

	Similarity float64
	PMatch     float64
	Features   FeatureBreakdown

	At time.Time
}
