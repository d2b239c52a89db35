// Package entities extracts named entities from cleaned market text and
// classifies the market's event type, geographic scope, sport subtype, and
// parlay flag. Extraction is dictionary- and pattern-based so results are
// deterministic across runs.
package entities

import (
	"regexp"
	"sort"
	"strings"

	"marketbond/internal/domain"
)

// knownTickers covers the crypto and equity symbols seen on both exchanges,
// keyed by their cleaned (lowercase, abbreviation-expanded) forms.
var knownTickers = []string{
	"bitcoin", "ethereum", "solana", "dogecoin", "aapl", "apple", "tsla",
	"tesla", "googl", "google", "msft", "microsoft", "amzn", "amazon",
	"meta", "nvda", "nvidia", "spy", "qqq", "dow",
	"dow jones industrial average", "standard and poors", "sp500", "nasdaq",
}

var knownOrganizations = []string{
	"federal reserve", "federal open market committee",
	"bureau of labor statistics", "treasury", "sec",
	"securities and exchange commission", "consumer price index",
	"gross domestic product", "unemployment", "ecb", "european central bank",
	"opec", "nato", "united nations", "supreme court", "white house",
}

var knownCountries = []string{
	"us", "usa", "united states", "america", "china", "russia", "ukraine",
	"uk", "united kingdom", "eu", "europe", "japan", "germany", "france",
	"canada", "mexico", "brazil", "india", "israel", "iran", "north korea",
	"south korea", "taiwan", "australia",
}

// knownPeople is a closed dictionary of public figures that recur in
// prediction markets. Lowercase full names; single surnames are matched
// only when unambiguous.
var knownPeople = []string{
	"donald trump", "trump", "joe biden", "biden", "kamala harris", "harris",
	"gavin newsom", "newsom", "ron desantis", "desantis", "elon musk", "musk",
	"jerome powell", "powell", "vladimir putin", "putin",
	"volodymyr zelensky", "zelensky", "xi jinping", "patrick mahomes",
	"mahomes", "lebron james", "lebron", "taylor swift", "sam altman",
	"jensen huang", "warren buffett", "buffett",
}

var (
	dollarTickerRe = regexp.MustCompile(`\$([A-Za-z]{2,5})\b`)

	miscEventRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(super bowl)\b`),
		regexp.MustCompile(`\b(world cup)\b`),
		regexp.MustCompile(`\b(world series)\b`),
		regexp.MustCompile(`\b(stanley cup)\b`),
		regexp.MustCompile(`\b(olympics)\b`),
		regexp.MustCompile(`\b(election)\b`),
		regexp.MustCompile(`\b(quarter [1-4])\b`),
		regexp.MustCompile(`\b(20\d\d)\b`),
	}
)

// Extract produces the five normalized entity sets from cleaned text
// (title plus description). Each set is sorted and deduplicated.
func Extract(text string) domain.EntitySet {
	lower := strings.ToLower(text)

	return domain.EntitySet{
		Tickers:       extractTickers(lower),
		People:        dictMatches(lower, knownPeople),
		Organizations: dictMatches(lower, knownOrganizations),
		Countries:     dictMatches(lower, knownCountries),
		Misc:          extractMisc(lower),
	}
}

func extractTickers(lower string) []string {
	set := make(map[string]bool)
	for _, t := range knownTickers {
		if containsWord(lower, t) {
			set[t] = true
		}
	}
	for _, m := range dollarTickerRe.FindAllStringSubmatch(lower, -1) {
		set[strings.ToLower(m[1])] = true
	}
	return sortedSlice(set)
}

func dictMatches(lower string, dict []string) []string {
	set := make(map[string]bool)
	for _, entry := range dict {
		if containsWord(lower, entry) {
			set[entry] = true
		}
	}
	// Collapse entries subsumed by a longer match ("trump" under
	// "donald trump") so set comparisons are phrasing-insensitive.
	for entry := range set {
		for other := range set {
			if entry != other && strings.Contains(other, entry) {
				delete(set, entry)
				break
			}
		}
	}
	return sortedSlice(set)
}

func extractMisc(lower string) []string {
	set := make(map[string]bool)
	for _, re := range miscEventRes {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			set[m[1]] = true
		}
	}
	return sortedSlice(set)
}

// containsWord reports whether phrase occurs in text on word boundaries.
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z'
}

func sortedSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
