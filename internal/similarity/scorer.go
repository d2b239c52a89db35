package similarity

import (
	"math"
	"regexp"
	"strings"

	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/textnorm"
)

// Veto reason names, logged with every rejected decision.
const (
	VetoEventTypeMismatch  = "event_type_mismatch"
	VetoTextBelowFloor     = "text_below_floor"
	VetoEntityBelowFloor   = "entity_below_floor"
	VetoTimeDeltaExceeded  = "time_delta_exceeded"
	VetoOutcomeIncompatible = "outcome_incompatible"
	VetoDirectionMismatch  = "direction_mismatch"
	VetoPeopleDisjoint     = "people_disjoint"
	VetoStatMarkerMismatch = "sports_stat_marker_mismatch"
	VetoStatNumbersDisjoint = "sports_stat_numbers_disjoint"
	VetoSportTypeMismatch  = "sport_type_mismatch"
	VetoParlayMismatch     = "parlay_mismatch"
	VetoParlayTextTooLow   = "parlay_text_too_low"
)

// Result is one scorer invocation over a candidate pair.
type Result struct {
	Features   domain.FeatureBreakdown
	Entity     EntityScores
	Similarity float64
	PMatch     float64

	HardViolated bool
	VetoReason   string // first triggered veto, empty when accepted
}

// Scorer evaluates candidate pairs against an immutable configuration.
type Scorer struct {
	cfg config.Config
}

// NewScorer returns a scorer bound to cfg. The configuration must already
// be validated.
func NewScorer(cfg config.Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the five features for (a, b), applies the hard constraints,
// and on acceptance the weighted similarity and logistic match probability.
// A vetoed pair reports similarity 0 and p_match 0 with the feature
// breakdown intact for decision logging. Pure function of its inputs.
func (s *Scorer) Score(a, b *domain.Contract) Result {
	entity := EntityScores{}
	timeScores := TimeScore(a, b)

	r := Result{}
	r.Features.Text = TextScore(a, b)
	entity = EntityScore(a, b)
	r.Entity = entity
	r.Features.Entity = entity.Final
	r.Features.Time = timeScores.Final
	r.Features.TimeDeltaDays = timeScores.DeltaDays
	r.Features.Outcome = OutcomeScore(a, b)
	r.Features.Resolution = ResolutionScore(a, b)

	if reason := s.checkVetoes(a, b, r.Features, entity); reason != "" {
		r.HardViolated = true
		r.VetoReason = reason
		return r
	}

	w := s.cfg.Weights
	r.Similarity = w.Text*r.Features.Text +
		w.Entity*r.Features.Entity +
		w.Time*r.Features.Time +
		w.Outcome*r.Features.Outcome +
		w.Resolution*r.Features.Resolution

	beta := s.cfg.Beta
	z := beta[0] +
		beta[1]*r.Features.Text +
		beta[2]*r.Features.Entity +
		beta[3]*r.Features.Time +
		beta[4]*r.Features.Outcome +
		beta[5]*r.Features.Resolution
	r.PMatch = 1.0 / (1.0 + math.Exp(-z))

	return r
}

// statMarkers indicate player-prop markets ("mahomes 200+ yards") as opposed
// to team outcomes ("chiefs make playoffs").
var statMarkers = []string{
	"+", "yards", "points", "rushing", "passing", "receiving",
	"rebounds", "assists", "goals", "saves", "touchdowns",
}

var digitsRe = regexp.MustCompile(`\d+`)

// checkVetoes evaluates the hard constraints in order and returns the first
// triggered veto name, or "".
func (s *Scorer) checkVetoes(a, b *domain.Contract, f domain.FeatureBreakdown, entity EntityScores) string {
	titleA, titleB := a.CleanTitle, b.CleanTitle

	if a.EventType != "" && b.EventType != "" && a.EventType != b.EventType {
		return VetoEventTypeMismatch
	}
	if f.Text < s.cfg.HardMinTextScore {
		return VetoTextBelowFloor
	}
	if f.Entity < s.cfg.HardMinEntityScore && !entity.ExactBonus() {
		return VetoEntityBelowFloor
	}
	if f.TimeDeltaDays > s.cfg.HardMaxTimeDeltaDays {
		return VetoTimeDeltaExceeded
	}
	if f.Outcome == 0 {
		return VetoOutcomeIncompatible
	}
	if textnorm.DirectionMismatch(titleA, titleB) {
		return VetoDirectionMismatch
	}

	if len(a.Entities.People) >= 1 && len(b.Entities.People) >= 1 &&
		!intersects(toSet(a.Entities.People), toSet(b.Entities.People)) &&
		!entity.ExactBonus() {
		return VetoPeopleDisjoint
	}

	if a.EventType == "sports" && b.EventType == "sports" {
		hasStatA := hasStatMarker(titleA)
		hasStatB := hasStatMarker(titleB)
		if hasStatA != hasStatB {
			return VetoStatMarkerMismatch
		}
		if hasStatA && hasStatB {
			numsA := toSet(digitsRe.FindAllString(titleA, -1))
			numsB := toSet(digitsRe.FindAllString(titleB, -1))
			if len(numsA) > 0 && len(numsB) > 0 && !intersects(numsA, numsB) && f.Text < 0.70 {
				return VetoStatNumbersDisjoint
			}
		}
		if a.SportType != "" && b.SportType != "" && a.SportType != b.SportType {
			return VetoSportTypeMismatch
		}
	}

	if a.Parlay != b.Parlay {
		return VetoParlayMismatch
	}
	if a.Parlay && b.Parlay && f.Text < 0.85 {
		return VetoParlayTextTooLow
	}

	return ""
}

func hasStatMarker(title string) bool {
	lower := strings.ToLower(title)
	for _, m := range statMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// OutcomeMapping derives the label mapping persisted with a bond. YesNo
// pairs map identically when polarities match, crosswise otherwise. Bracket
// and scalar bonds map labels by case-insensitive identity; unmatched
// labels are omitted.
func OutcomeMapping(a, b *domain.Contract) map[string]string {
	mapping := make(map[string]string)

	if a.Outcome.Type == domain.SchemaYesNo && b.Outcome.Type == domain.SchemaYesNo {
		if a.Outcome.Polarity == b.Outcome.Polarity {
			mapping["Yes"] = "Yes"
			mapping["No"] = "No"
		} else {
			mapping["Yes"] = "No"
			mapping["No"] = "Yes"
		}
		return mapping
	}

	for _, oa := range a.Outcome.Outcomes {
		if ob := b.Outcome.OutcomeByLabel(oa.Label); ob != nil {
			mapping[oa.Label] = ob.Label
		}
	}
	return mapping
}
