package textnorm

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips html", "<b>Bitcoin</b> price", "bitcoin price"},
		{"collapses whitespace", "bitcoin   price\n\ttarget", "bitcoin price target"},
		{"drops question prefix", "Will Bitcoin reach $100k?", "bitcoin reach $100k?"},
		{"expands btc", "BTC above $50,000", "bitcoin above $50,000"},
		{"expands quarter", "GDP growth in Q3", "gross domestic product growth in quarter 3"},
		{"expands s&p", "S&P 500 closes higher", "standard and poors 500 closes higher"},
		{"adjacent abbreviations", "q1 q2 earnings", "quarter 1 quarter 2 earnings"},
		{"keeps embedded abbrev intact", "ethbtc pair", "ethbtc pair"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClean_StackedPrefixes(t *testing.T) {
	got := Clean("Will  does it rain tomorrow")
	if got != "it rain tomorrow" {
		t.Errorf("Stacked prefixes not removed: %q", got)
	}
}

func TestDirectionMismatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"over vs under", "over 45.5 points", "under 45.5 points", true},
		{"above vs below", "closes above 5000", "closes below 5000", true},
		{"wins vs loses", "team wins the final", "team loses the final", true},
		{"same direction", "over 45.5 points", "over 46.5 points", false},
		{"no directional words", "bitcoin price target", "ethereum price target", false},
		{"both sides in one title", "over/under 45.5 set at over", "under 45.5", false},
		{"punctuation trimmed", "finishes higher!", "finishes (lower)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirectionMismatch(tt.a, tt.b); got != tt.want {
				t.Errorf("DirectionMismatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
