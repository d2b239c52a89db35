package tier

import (
	"testing"

	"marketbond/internal/config"
	"marketbond/internal/domain"
)

func strongFeatures() domain.FeatureBreakdown {
	return domain.FeatureBreakdown{
		Text:       0.95,
		Entity:     0.85,
		Time:       0.90,
		Outcome:    1.0,
		Resolution: 1.0,
	}
}

func TestAssign_Tier1(t *testing.T) {
	a := NewAssigner(config.Default())

	if got := a.Assign(0.92, 0.98, strongFeatures(), false); got != 1 {
		t.Errorf("Assign = %d, want 1", got)
	}
}

func TestAssign_Tier2OnWeakResolution(t *testing.T) {
	a := NewAssigner(config.Default())

	f := strongFeatures()
	f.Resolution = 0.1 // below tier-1 floor; tier 2 has none

	// Tier 1 blocked by the resolution floor even with strong scores.
	if got := a.Assign(0.92, 0.98, f, false); got != 2 {
		t.Errorf("Assign = %d, want 2", got)
	}
}

func TestAssign_Tier2(t *testing.T) {
	a := NewAssigner(config.Default())

	f := domain.FeatureBreakdown{Text: 0.85, Entity: 0.55, Time: 0.40, Outcome: 0.92, Resolution: 0.3}
	if got := a.Assign(0.74, 0.92, f, false); got != 2 {
		t.Errorf("Assign = %d, want 2", got)
	}
}

func TestAssign_Tier3BelowThresholds(t *testing.T) {
	a := NewAssigner(config.Default())

	f := domain.FeatureBreakdown{Text: 0.75, Entity: 0.3, Time: 0.2, Outcome: 0.5, Resolution: 0.3}
	if got := a.Assign(0.55, 0.6, f, false); got != 3 {
		t.Errorf("Assign = %d, want 3", got)
	}
}

func TestAssign_HardViolationAlwaysTier3(t *testing.T) {
	a := NewAssigner(config.Default())

	if got := a.Assign(0.99, 0.99, strongFeatures(), true); got != 3 {
		t.Errorf("Hard violation must be tier 3, got %d", got)
	}
}

// Raising any single input never worsens (raises) the tier number.
func TestAssign_Monotone(t *testing.T) {
	a := NewAssigner(config.Default())

	base := domain.FeatureBreakdown{Text: 0.85, Entity: 0.55, Time: 0.40, Outcome: 0.92, Resolution: 0.3}
	baseTier := a.Assign(0.74, 0.92, base, false)

	bumps := []func(domain.FeatureBreakdown) domain.FeatureBreakdown{
		func(f domain.FeatureBreakdown) domain.FeatureBreakdown { f.Text += 0.1; return f },
		func(f domain.FeatureBreakdown) domain.FeatureBreakdown { f.Entity += 0.2; return f },
		func(f domain.FeatureBreakdown) domain.FeatureBreakdown { f.Time += 0.3; return f },
		func(f domain.FeatureBreakdown) domain.FeatureBreakdown { f.Outcome += 0.05; return f },
		func(f domain.FeatureBreakdown) domain.FeatureBreakdown { f.Resolution += 0.5; return f },
	}

	for i, bump := range bumps {
		if got := a.Assign(0.74, 0.92, bump(base), false); got > baseTier {
			t.Errorf("Bump %d raised tier from %d to %d", i, baseTier, got)
		}
	}

	if got := a.Assign(0.74, 0.99, base, false); got > baseTier {
		t.Errorf("Raising p_match raised tier from %d to %d", baseTier, got)
	}
}
