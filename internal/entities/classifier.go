package entities

import (
	"strings"

	"marketbond/internal/domain"
)

// eventRule scores one event type. Scoring per rule:
// (3 if category matches) + 2 per keyword hit + 1 per non-empty required
// entity set, multiplied by boost. Any exclusion word in the title disables
// the rule outright.
type eventRule struct {
	name        string
	keywords    []string
	categories  []string
	entityTypes []string
	boost       float64
	exclusions  []string
}

// eventRules are evaluated in order; ties go to the earlier rule.
var eventRules = []eventRule{
	{
		name:        "election",
		keywords:    []string{"election", "elect", "win", "president", "senate", "congress", "vote", "ballot"},
		categories:  []string{"politics"},
		entityTypes: []string{"people"},
		boost:       1,
	},
	{
		name:        "price_target",
		keywords:    []string{"price", "reach", "hit", "above", "below", "dollar", "bitcoin", "ethereum"},
		categories:  []string{"crypto", "finance", "stocks"},
		entityTypes: []string{"tickers"},
		boost:       1,
	},
	{
		name:        "rate_decision",
		keywords:    []string{"rate", "interest", "federal reserve", "federal open market committee", "basis points", "bps", "hike", "cut"},
		categories:  []string{"finance", "economics"},
		entityTypes: []string{"organizations"},
		boost:       1,
	},
	{
		name:        "economic_indicator",
		keywords:    []string{"gross domestic product", "inflation", "consumer price index", "unemployment", "jobs", "nonfarm", "payroll"},
		categories:  []string{"economics", "finance"},
		entityTypes: []string{"organizations"},
		boost:       1,
	},
	{
		name:        "sports",
		keywords:    []string{"super bowl", "world cup", "world series", "stanley cup", "championship", "win", "finals", "playoffs", "game", "match", "season"},
		categories:  []string{"sports"},
		entityTypes: []string{"misc"},
		boost:       4,
		// "best actor wins" and courtroom "wins" are not sports.
		exclusions: []string{
			"oscar", "academy award", "grammy", "emmy", "golden globe",
			"best actor", "best actress", "best picture", "album of the year",
			"lawsuit", "court", "trial", "verdict", "indicted", "convicted",
			"nominee", "nomination", "confirmation", "appointed", "cabinet",
		},
	},
	{
		name:        "entertainment",
		keywords:    []string{"oscar", "academy award", "grammy", "emmy", "golden globe", "box office", "album", "movie", "actor", "actress", "song"},
		categories:  []string{"entertainment", "culture"},
		entityTypes: []string{"people"},
		boost:       3,
	},
	{
		name:        "geopolitical",
		keywords:    []string{"war", "conflict", "invasion", "treaty", "sanctions", "military", "ceasefire"},
		categories:  []string{"politics", "international"},
		entityTypes: []string{"countries"},
		boost:       1,
	},
	{
		name:        "corporate",
		keywords:    []string{"earnings", "revenue", "acquisition", "merger", "ceo", "ipo", "stock split"},
		categories:  []string{"finance", "business"},
		entityTypes: []string{"organizations", "people"},
		boost:       1,
	},
	{
		name:        "regulatory",
		keywords:    []string{"approve", "ban", "regulation", "law", "sec", "ftc", "doj", "court"},
		categories:  []string{"politics", "legal"},
		entityTypes: []string{"organizations"},
		boost:       1,
	},
}

// ClassifyEventType scores each rule over (category, entities, cleaned title)
// and returns the best positive match, or "general".
func ClassifyEventType(category string, ents domain.EntitySet, title string) string {
	titleLower := strings.ToLower(title)
	categoryLower := strings.ToLower(category)

	best := "general"
	bestScore := 0.0

	for _, rule := range eventRules {
		if excluded(titleLower, rule.exclusions) {
			continue
		}

		score := 0.0
		for _, c := range rule.categories {
			if c == categoryLower {
				score += 3
				break
			}
		}
		for _, kw := range rule.keywords {
			if strings.Contains(titleLower, kw) {
				score += 2
			}
		}
		for _, et := range rule.entityTypes {
			if len(entitySetByName(ents, et)) > 0 {
				score++
			}
		}
		score *= rule.boost

		if score > bestScore {
			bestScore = score
			best = rule.name
		}
	}

	return best
}

func excluded(title string, exclusions []string) bool {
	for _, ex := range exclusions {
		if strings.Contains(title, ex) {
			return true
		}
	}
	return false
}

func entitySetByName(ents domain.EntitySet, name string) []string {
	switch name {
	case "tickers":
		return ents.Tickers
	case "people":
		return ents.People
	case "organizations":
		return ents.Organizations
	case "countries":
		return ents.Countries
	case "misc":
		return ents.Misc
	}
	return nil
}

// DetermineGeoScope infers the geographic scope from countries and title.
// Defaults to US, the dominant scope on both exchanges.
func DetermineGeoScope(ents domain.EntitySet, title string) string {
	titleLower := strings.ToLower(title)

	for _, ind := range []string{"us ", " us", "usa", "united states", "america"} {
		if strings.Contains(titleLower, ind) {
			return "US"
		}
	}
	for _, c := range ents.Countries {
		if c == "us" || c == "usa" || c == "united states" {
			return "US"
		}
	}
	for _, ind := range []string{"eu ", " eu", "europe"} {
		if strings.Contains(titleLower, ind) {
			return "EU"
		}
	}

	switch {
	case len(ents.Countries) == 1:
		return strings.ToUpper(ents.Countries[0])
	case len(ents.Countries) > 1:
		return "multi_country"
	}

	for _, ind := range []string{"global", "world", "worldwide", "international"} {
		if strings.Contains(titleLower, ind) {
			return "global"
		}
	}
	return "US"
}
