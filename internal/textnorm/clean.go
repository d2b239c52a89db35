// Package textnorm cleans market text into a canonical form and provides the
// pure string helpers the similarity scorer builds on.
package textnorm

import (
	"regexp"
	"strings"
)

// abbreviations maps finance/economics shorthand to canonical long forms.
// Applied on word boundaries after lowercasing.
var abbreviations = map[string]string{
	"btc":    "bitcoin",
	"eth":    "ethereum",
	"usd":    "dollar",
	"q1":     "quarter 1",
	"q2":     "quarter 2",
	"q3":     "quarter 3",
	"q4":     "quarter 4",
	"gdp":    "gross domestic product",
	"cpi":    "consumer price index",
	"fomc":   "federal open market committee",
	"fed":    "federal reserve",
	"bls":    "bureau of labor statistics",
	"djia":   "dow jones industrial average",
	"s&p":    "standard and poors",
	"nyse":   "new york stock exchange",
	"nasdaq": "nasdaq",
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Leading question/platform prefixes stripped one after another,
	// so "will does bitcoin..." loses both.
	prefixRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^kalshi:\s*`),
		regexp.MustCompile(`(?i)^polymarket:\s*`),
		regexp.MustCompile(`(?i)^will\s+`),
		regexp.MustCompile(`(?i)^does\s+`),
		regexp.MustCompile(`(?i)^is\s+`),
		regexp.MustCompile(`(?i)^what\s+`),
		regexp.MustCompile(`(?i)^who\s+`),
		regexp.MustCompile(`(?i)^when\s+`),
	}

	abbrevRes = buildAbbrevPatterns()
)

type abbrevPattern struct {
	re        *regexp.Regexp
	expansion string
}

func buildAbbrevPatterns() []abbrevPattern {
	patterns := make([]abbrevPattern, 0, len(abbreviations))
	for abbr, expansion := range abbreviations {
		// \b does not treat '&' as a word char, so "s&p" needs its own guards.
		p := regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(abbr) + `($|[^a-z0-9&])`)
		patterns = append(patterns, abbrevPattern{re: p, expansion: expansion})
	}
	return patterns
}

// StripHTML removes HTML tags.
func StripHTML(text string) string {
	return htmlTagRe.ReplaceAllString(text, "")
}

// NormalizeWhitespace collapses runs of whitespace and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// removePrefixes strips leading platform and question prefixes.
func removePrefixes(text string) string {
	for _, re := range prefixRes {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

// ExpandAbbreviations lowercases text and expands known abbreviations
// on word boundaries.
func ExpandAbbreviations(text string) string {
	text = strings.ToLower(text)
	for _, p := range abbrevRes {
		// Boundary groups consume the separator, so adjacent occurrences
		// ("q1 q2") need a second pass.
		text = p.re.ReplaceAllString(text, "${1}"+p.expansion+"${2}")
		text = p.re.ReplaceAllString(text, "${1}"+p.expansion+"${2}")
	}
	return text
}

// Clean normalizes market text: strip HTML, collapse whitespace, drop
// leading question prefixes, lowercase, expand abbreviations.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	clean := StripHTML(text)
	clean = NormalizeWhitespace(clean)
	clean = removePrefixes(clean)
	clean = ExpandAbbreviations(clean)
	return NormalizeWhitespace(clean)
}

// CleanTitle normalizes a market title.
func CleanTitle(title string) string {
	return Clean(title)
}

// CleanDescription normalizes a market description.
func CleanDescription(description string) string {
	return Clean(description)
}
