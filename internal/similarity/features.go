// Package similarity scores candidate contract pairs. Five pure feature
// calculators feed a weighted aggregate and a calibrated logistic match
// probability; a set of hard constraints can veto a pair outright. The
// scorer performs no I/O and is deterministic and symmetric in its inputs.
package similarity

import (
	"math"
	"regexp"
	"strings"
	"time"

	"marketbond/internal/domain"
	"marketbond/internal/embedding"
)

// TextScore is the cosine similarity of the two embeddings rescaled from
// [-1,1] to [0,1]. Missing embeddings score 0.
func TextScore(a, b *domain.Contract) float64 {
	if len(a.Embedding) == 0 || len(b.Embedding) == 0 {
		return 0
	}
	return (embedding.Cosine(a.Embedding, b.Embedding) + 1) / 2
}

// EntityScores carries the entity feature with its bonus detail. The exact
// bonuses feed hard-constraint exceptions as well as the final score.
type EntityScores struct {
	Base        float64
	Final       float64
	BonusTicker float64
	BonusPerson float64
	BonusOrg    float64
}

// ExactBonus reports whether a full ticker or person set match fired.
func (s EntityScores) ExactBonus() bool {
	return s.BonusTicker >= 1.0 || s.BonusPerson >= 1.0
}

// EntityScore computes Jaccard over the union of the five entity sets plus
// type-specific bonuses, clipped at 1.
func EntityScore(a, b *domain.Contract) EntityScores {
	allA := unionSet(a.Entities)
	allB := unionSet(b.Entities)

	var s EntityScores
	s.Base = jaccard(allA, allB)

	tickersA, tickersB := toSet(a.Entities.Tickers), toSet(b.Entities.Tickers)
	if len(tickersA) > 0 && len(tickersB) > 0 {
		switch {
		case setsEqual(tickersA, tickersB):
			s.BonusTicker = 1.0
		case intersects(tickersA, tickersB):
			s.BonusTicker = 0.5
		}
	}

	peopleA, peopleB := toSet(a.Entities.People), toSet(b.Entities.People)
	if len(peopleA) > 0 && len(peopleB) > 0 {
		switch {
		case setsEqual(peopleA, peopleB):
			s.BonusPerson = 1.0
		case intersects(peopleA, peopleB):
			s.BonusPerson = 0.5
		}
	}

	orgsA, orgsB := toSet(a.Entities.Organizations), toSet(b.Entities.Organizations)
	if len(orgsA) > 0 && len(orgsB) > 0 && intersects(orgsA, orgsB) {
		s.BonusOrg = 0.5
	}

	s.Final = math.Min(1.0, s.Base+0.2*s.BonusTicker+0.15*s.BonusPerson+0.1*s.BonusOrg)
	return s
}

// TimeScores carries the time feature with the resolution-date delta used
// by the hard-constraint check.
type TimeScores struct {
	Final     float64
	Decay     float64
	Window    float64
	DeltaDays float64
}

var granularityTau = map[domain.Granularity]float64{
	domain.GranularityDay:     3,
	domain.GranularityWeek:    7,
	domain.GranularityMonth:   14,
	domain.GranularityQuarter: 21,
	domain.GranularityYear:    30,
}

func tau(g domain.Granularity) float64 {
	if t, ok := granularityTau[g]; ok {
		return t
	}
	return 7
}

// TimeScore combines exponential decay over the resolution-date delta with
// observation-window overlap. Missing resolution dates score 0 with a
// sentinel delta that always violates the time constraint.
func TimeScore(a, b *domain.Contract) TimeScores {
	resA, resB := a.TimeWindow.Resolution, b.TimeWindow.Resolution
	if resA.IsZero() || resB.IsZero() {
		return TimeScores{DeltaDays: 999}
	}

	delta := math.Abs(resA.Sub(resB).Hours() / 24)
	t := math.Max(tau(a.TimeWindow.Granularity), tau(b.TimeWindow.Granularity))
	decay := math.Exp(-delta / t)

	window := decay
	if a.TimeWindow.Start != nil && a.TimeWindow.End != nil &&
		b.TimeWindow.Start != nil && b.TimeWindow.End != nil {
		window = 0
		overlapStart := maxTime(*a.TimeWindow.Start, *b.TimeWindow.Start)
		overlapEnd := minTime(*a.TimeWindow.End, *b.TimeWindow.End)
		if overlapEnd.After(overlapStart) {
			unionStart := minTime(*a.TimeWindow.Start, *b.TimeWindow.Start)
			unionEnd := maxTime(*a.TimeWindow.End, *b.TimeWindow.End)
			unionDays := unionEnd.Sub(unionStart).Hours() / 24
			if unionDays > 0 {
				window = overlapEnd.Sub(overlapStart).Hours() / 24 / unionDays
			}
		}
	}

	return TimeScores{
		Final:     0.6*decay + 0.4*window,
		Decay:     decay,
		Window:    window,
		DeltaDays: delta,
	}
}

// negationWords signal inverted phrasing of a yes/no question.
var negationWords = []string{"will not", "won't", "wont", "not", "fails to", "doesn't", "does not"}

func hasNegation(title string) bool {
	lower := strings.ToLower(title)
	for _, w := range negationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// OutcomeScore compares the two outcome schemas by variant.
func OutcomeScore(a, b *domain.Contract) float64 {
	sa, sb := a.Outcome, b.Outcome

	switch {
	case sa.Type == domain.SchemaYesNo && sb.Type == domain.SchemaYesNo:
		return yesNoScore(a, b)
	case sa.Type == domain.SchemaDiscreteBrackets && sb.Type == domain.SchemaDiscreteBrackets:
		return bracketScore(sa, sb)
	case sa.Type == domain.SchemaScalarRange && sb.Type == domain.SchemaScalarRange:
		return scalarScore(sa, sb)
	case sa.Type == domain.SchemaYesNo && sb.Type == domain.SchemaDiscreteBrackets:
		return binaryCollapseScore(sb)
	case sa.Type == domain.SchemaDiscreteBrackets && sb.Type == domain.SchemaYesNo:
		return binaryCollapseScore(sa)
	}
	return 0
}

func yesNoScore(a, b *domain.Contract) float64 {
	samePolarity := a.Outcome.Polarity == b.Outcome.Polarity
	negationAsymmetry := hasNegation(a.CleanTitle) != hasNegation(b.CleanTitle)

	// Same polarity with aligned phrasing, or inverted polarity with
	// complementary phrasing, both resolve identically after mapping.
	if samePolarity && !negationAsymmetry {
		return 1.0
	}
	if !samePolarity && negationAsymmetry {
		return 1.0
	}
	return 0.0
}

func bracketScore(sa, sb domain.OutcomeSchema) float64 {
	if sa.Unit != sb.Unit {
		return 0
	}
	if len(sa.Brackets) == 0 || len(sb.Brackets) == 0 {
		return 0
	}
	if bracketsEqual(sa.Brackets, sb.Brackets) {
		return 1.0
	}

	overlapCount := 0
	for _, ba := range sa.Brackets {
		for _, bb := range sb.Brackets {
			if ba.Intersects(bb) {
				overlapCount++
				break
			}
		}
	}
	return float64(overlapCount) / float64(max(len(sa.Brackets), len(sb.Brackets)))
}

func bracketsEqual(a, b []domain.Bracket) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func scalarScore(sa, sb domain.OutcomeSchema) float64 {
	if sa.Unit != sb.Unit {
		return 0
	}
	ra := domain.Bracket{Min: sa.Min, Max: sa.Max}
	rb := domain.Bracket{Min: sb.Min, Max: sb.Max}
	switch {
	case ra.Equal(rb):
		return 1.0
	case ra.Contains(rb) || rb.Contains(ra):
		return 0.8
	}
	return 0
}

func binaryCollapseScore(bracketed domain.OutcomeSchema) float64 {
	if len(bracketed.Brackets) == 2 {
		return 0.9
	}
	return 0
}

// sourceSynonyms groups resolution sources that name the same authority.
var sourceSynonyms = [][]string{
	{"bls", "bureau_of_labor_statistics", "labor_statistics"},
	{"fomc", "federal_reserve", "fed", "federal_open_market_committee"},
	{"coingecko", "coin_gecko"},
	{"coinmarketcap", "coin_market_cap", "cmc"},
	{"ap", "associated_press"},
	{"nyt", "new_york_times", "ny_times"},
	{"cnn", "cable_news_network"},
	{"fox", "fox_news"},
	{"nyse", "new_york_stock_exchange"},
}

var sourceCleanRe = regexp.MustCompile(`[\s-]+`)

func normalizeSource(source string) string {
	return sourceCleanRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(source)), "_")
}

func sameSynonymGroup(a, b string) bool {
	for _, group := range sourceSynonyms {
		inA, inB := false, false
		for _, variant := range group {
			if a == variant {
				inA = true
			}
			if b == variant {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// ResolutionScore compares resolution sources: equal canonical forms score 1,
// same synonym group 0.7, both unknown 0.5, anything else 0.3.
func ResolutionScore(a, b *domain.Contract) float64 {
	srcA, srcB := a.ResolutionSource, b.ResolutionSource
	if srcA == "" && srcB == "" {
		return 0.5
	}
	if srcA == "" || srcB == "" {
		return 0.3
	}
	normA, normB := normalizeSource(srcA), normalizeSource(srcB)
	if normA == normB {
		return 1.0
	}
	if sameSynonymGroup(normA, normB) {
		return 0.7
	}
	return 0.3
}

func unionSet(e domain.EntitySet) map[string]bool {
	set := make(map[string]bool)
	for _, group := range [][]string{e.Tickers, e.People, e.Organizations, e.Countries, e.Misc} {
		for _, s := range group {
			set[normalizeEntity(s)] = true
		}
	}
	return set
}

func normalizeEntity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(xs []string) map[string]bool {
	set := make(map[string]bool, len(xs))
	for _, x := range xs {
		set[normalizeEntity(x)] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for x := range a {
		if b[x] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for x := range a {
		if !b[x] {
			return false
		}
	}
	return true
}

func intersects(a, b map[string]bool) bool {
	for x := range a {
		if b[x] {
			return true
		}
	}
	return false
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
