package textnorm

import "strings"

// antonymPairs are directional word pairs. Two titles that land on opposite
// sides of any pair describe opposite bets on the same event.
var antonymPairs = [][2]string{
	{"over", "under"},
	{"above", "below"},
	{"higher", "lower"},
	{"wins", "loses"},
	{"win", "lose"},
	{"yes", "no"},
	{"will", "won't"},
	{"increase", "decrease"},
	{"rise", "fall"},
	{"up", "down"},
	{"more", "less"},
	{"before", "after"},
}

// DirectionMismatch reports whether the two strings carry opposite
// directional words: one side of an antonym pair appears in a, the other
// side in b (or vice versa), with neither string containing both sides.
func DirectionMismatch(a, b string) bool {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	for _, pair := range antonymPairs {
		first, second := pair[0], pair[1]
		aFirst, aSecond := wordsA[first], wordsA[second]
		bFirst, bSecond := wordsB[first], wordsB[second]

		// A string mentioning both sides ("over/under 45.5") is not directional.
		if (aFirst && aSecond) || (bFirst && bSecond) {
			continue
		}
		if (aFirst && bSecond) || (aSecond && bFirst) {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(s)) {
		for _, w := range strings.Split(field, "/") {
			w = strings.Trim(w, ".,!?;:\"'()[]")
			if w != "" {
				set[w] = true
			}
		}
	}
	return set
}
