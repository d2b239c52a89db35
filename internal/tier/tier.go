// Package tier maps a scored pair onto confidence tiers. Tier 1 bonds are
// safe to trade automatically, tier 2 need review, tier 3 are rejected and
// never persisted.
package tier

import (
	"marketbond/internal/config"
	"marketbond/internal/domain"
)

// Assigner applies the tier calibration tables from configuration.
type Assigner struct {
	cfg config.Config
}

func NewAssigner(cfg config.Config) *Assigner {
	return &Assigner{cfg: cfg}
}

// Assign returns the tier for one scored pair. A hard-constraint violation
// is always tier 3. Tier 1 requires the similarity, p_match, and all five
// per-feature floors; tier 2 relaxes the thresholds and drops the
// resolution floor.
func (a *Assigner) Assign(similarity, pMatch float64, f domain.FeatureBreakdown, hardViolated bool) int {
	if hardViolated {
		return 3
	}

	if similarity >= a.cfg.Tier1MinSimilarity &&
		pMatch >= a.cfg.Tier1PMatch &&
		meetsFloors(f, a.cfg.Tier1Floors, true) {
		return 1
	}

	if similarity >= a.cfg.Tier2MinSimilarity &&
		pMatch >= a.cfg.Tier2PMatch &&
		meetsFloors(f, a.cfg.Tier2Floors, false) {
		return 2
	}

	return 3
}

func meetsFloors(f domain.FeatureBreakdown, floors config.FeatureFloors, includeResolution bool) bool {
	if f.Text < floors.Text || f.Entity < floors.Entity ||
		f.Outcome < floors.Outcome || f.Time < floors.Time {
		return false
	}
	if includeResolution && f.Resolution < floors.Resolution {
		return false
	}
	return true
}
