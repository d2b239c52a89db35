package entities

import "strings"

// Per-league vocabularies: team names, city nicknames, positions, and
// league-specific terms. Kept disjoint so hit counts are comparable.
var sportVocabularies = []struct {
	name  string
	terms []string
}{
	{"nfl", []string{
		"nfl", "super bowl", "touchdown", "quarterback", "rushing yards",
		"passing yards", "field goal", "chiefs", "eagles", "cowboys", "49ers",
		"bills", "ravens", "packers", "lions", "bengals", "dolphins", "jets",
		"patriots", "steelers", "broncos", "raiders", "texans", "mahomes",
	}},
	{"nhl", []string{
		"nhl", "stanley cup", "hat trick", "power play", "goalie", "puck",
		"avalanche", "bruins", "rangers", "maple leafs", "oilers", "panthers",
		"golden knights", "lightning", "penguins", "blackhawks", "canadiens",
		"red wings", "hurricanes", "stars",
	}},
	{"nba", []string{
		"nba", "three-pointer", "rebounds", "slam dunk", "celtics", "lakers",
		"warriors", "nuggets", "bucks", "suns", "heat", "knicks", "mavericks",
		"clippers", "thunder", "timberwolves", "76ers", "cavaliers", "lebron",
	}},
	{"mlb", []string{
		"mlb", "world series", "home run", "pitcher", "innings", "strikeout",
		"yankees", "dodgers", "astros", "braves", "mets", "phillies",
		"red sox", "cubs", "padres", "orioles", "rangers baseball", "guardians",
	}},
}

// ClassifySportType scans the cleaned title against the four league
// vocabularies and returns the league with the most hits, or "" when no
// vocabulary matches.
func ClassifySportType(title string) string {
	titleLower := strings.ToLower(title)

	best := ""
	bestHits := 0
	for _, vocab := range sportVocabularies {
		hits := 0
		for _, term := range vocab.terms {
			if strings.Contains(titleLower, term) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = vocab.name
		}
	}
	return best
}

var parlayWords = []string{
	"parlay", "combo", "multi-leg", "multileg", "both win", "all win",
	"and also", "double", "treble", "accumulator",
}

// DetectParlay flags multi-game markets: explicit parlay vocabulary,
// repeated yes/no outcome separators, or repeated " vs " matchups.
func DetectParlay(title string) bool {
	titleLower := strings.ToLower(title)

	for _, w := range parlayWords {
		if strings.Contains(titleLower, w) {
			return true
		}
	}
	if strings.Count(titleLower, "yes/no") >= 2 {
		return true
	}
	if strings.Count(titleLower, " vs ")+strings.Count(titleLower, " vs. ") >= 2 {
		return true
	}
	return false
}
