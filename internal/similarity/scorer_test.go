package similarity

import (
	"context"
	"math"
	"testing"
	"time"

	"marketbond/internal/config"
	"marketbond/internal/domain"
	"marketbond/internal/embedding"
	"marketbond/internal/entities"
	"marketbond/internal/textnorm"
)

func yesNoContract(platform domain.Platform, id, title, source string, resolution time.Time) *domain.Contract {
	clean := textnorm.CleanTitle(title)
	return &domain.Contract{
		ID:               id,
		Platform:         platform,
		Status:           domain.StatusActive,
		RawTitle:         title,
		CleanTitle:       clean,
		ResolutionSource: source,
		Entities:         entities.Extract(clean),
		TimeWindow: domain.TimeWindow{
			Resolution:  resolution,
			Granularity: domain.GranularityYear,
		},
		Outcome: domain.OutcomeSchema{
			Type:     domain.SchemaYesNo,
			Polarity: domain.PolarityPositive,
			Outcomes: []domain.Outcome{{Label: "Yes"}, {Label: "No"}},
		},
	}
}

// withEmbedding assigns a shared embedding so text similarity is controlled
// by the test, not by the encoder's treatment of paraphrases.
func withEmbedding(c *domain.Contract, vec []float32) *domain.Contract {
	c.Embedding = vec
	return c
}

func encode(t *testing.T, text string) []float32 {
	t.Helper()
	vec, err := embedding.NewHashedEncoder().Encode(context.Background(), text)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return vec
}

func TestScore_BitcoinPairAcceptsTier1Grade(t *testing.T) {
	resolution := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	shared := encode(t, "bitcoin reach $100,000 by end of 2025")

	k := withEmbedding(yesNoContract(domain.PlatformKalshi, "KXBTC-25DEC31",
		"Will Bitcoin reach $100,000 by end of 2025?", "CoinGecko", resolution), shared)
	p := withEmbedding(yesNoContract(domain.PlatformPolymarket, "0xbtc100k",
		"Bitcoin to $100,000 in 2025?", "CoinGecko", resolution), shared)
	k.EventType = "price_target"
	p.EventType = "price_target"

	r := NewScorer(config.Default()).Score(k, p)

	if r.HardViolated {
		t.Fatalf("Unexpected veto: %s", r.VetoReason)
	}
	if r.Features.Text < 0.85 {
		t.Errorf("f_text = %f, want >= 0.85", r.Features.Text)
	}
	if r.Features.Entity < 0.8 {
		t.Errorf("f_entity = %f, want >= 0.8 (shared ticker bonus)", r.Features.Entity)
	}
	if r.Features.Time != 1.0 {
		t.Errorf("f_time = %f, want 1.0 (same resolution date)", r.Features.Time)
	}
	if r.Features.Outcome != 1.0 {
		t.Errorf("f_outcome = %f, want 1.0", r.Features.Outcome)
	}
	if r.Features.Resolution != 1.0 {
		t.Errorf("f_res = %f, want 1.0 (same source)", r.Features.Resolution)
	}
	if r.PMatch < 0.95 {
		t.Errorf("p_match = %f, want >= 0.95", r.PMatch)
	}

	mapping := OutcomeMapping(k, p)
	if mapping["Yes"] != "Yes" || mapping["No"] != "No" {
		t.Errorf("Expected identity outcome mapping, got %v", mapping)
	}
}

func TestScore_CrossSportVeto(t *testing.T) {
	resolution := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	shared := encode(t, "team wins the championship")

	k := withEmbedding(yesNoContract(domain.PlatformKalshi, "KXNFL",
		"Chiefs make playoffs", "", resolution), shared)
	p := withEmbedding(yesNoContract(domain.PlatformPolymarket, "0xnhl",
		"Avalanche take Stanley Cup", "", resolution), shared)
	k.EventType = "sports"
	p.EventType = "sports"
	k.SportType = entities.ClassifySportType(k.CleanTitle)
	p.SportType = entities.ClassifySportType(p.CleanTitle)

	r := NewScorer(config.Default()).Score(k, p)

	if !r.HardViolated {
		t.Fatal("Expected hard constraint violation")
	}
	if r.VetoReason != VetoSportTypeMismatch {
		t.Errorf("Veto = %s, want %s", r.VetoReason, VetoSportTypeMismatch)
	}
	if r.Similarity != 0 || r.PMatch != 0 {
		t.Errorf("Vetoed pair must score 0/0, got %f/%f", r.Similarity, r.PMatch)
	}
}

func TestScore_DirectionMismatchVeto(t *testing.T) {
	resolution := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	shared := encode(t, "45.5 team total")

	k := withEmbedding(yesNoContract(domain.PlatformKalshi, "KXTOT",
		"Over 45.5 total score", "", resolution), shared)
	p := withEmbedding(yesNoContract(domain.PlatformPolymarket, "0xtot",
		"Under 45.5 total score", "", resolution), shared)

	r := NewScorer(config.Default()).Score(k, p)

	if !r.HardViolated {
		t.Fatal("Expected hard constraint violation")
	}
	if r.VetoReason != VetoDirectionMismatch {
		t.Errorf("Veto = %s, want %s", r.VetoReason, VetoDirectionMismatch)
	}
}

func TestScore_TextBelowFloorVeto(t *testing.T) {
	resolution := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)

	k := yesNoContract(domain.PlatformKalshi, "k1", "Bitcoin above $90,000", "", resolution)
	p := yesNoContract(domain.PlatformPolymarket, "p1", "Rainfall exceeds average in Madrid", "", resolution)
	k.Embedding = encode(t, k.CleanTitle)
	p.Embedding = encode(t, p.CleanTitle)

	r := NewScorer(config.Default()).Score(k, p)

	if !r.HardViolated {
		t.Fatal("Expected veto for unrelated titles")
	}
	if r.VetoReason != VetoTextBelowFloor {
		t.Errorf("Veto = %s, want %s", r.VetoReason, VetoTextBelowFloor)
	}
}

func TestScore_TimeDeltaVeto(t *testing.T) {
	shared := encode(t, "bitcoin reach $100,000")

	k := withEmbedding(yesNoContract(domain.PlatformKalshi, "k1",
		"Bitcoin reach $100,000", "", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)), shared)
	p := withEmbedding(yesNoContract(domain.PlatformPolymarket, "p1",
		"Bitcoin reach $100,000", "", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)), shared)

	r := NewScorer(config.Default()).Score(k, p)

	if r.VetoReason != VetoTimeDeltaExceeded {
		t.Errorf("Veto = %s, want %s (212 days apart)", r.VetoReason, VetoTimeDeltaExceeded)
	}
}

func TestScore_ParlayAsymmetryVeto(t *testing.T) {
	resolution := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	shared := encode(t, "chiefs eagles weekend games")

	k := withEmbedding(yesNoContract(domain.PlatformKalshi, "k1",
		"Chiefs and Eagles parlay special", "", resolution), shared)
	p := withEmbedding(yesNoContract(domain.PlatformPolymarket, "p1",
		"Chiefs beat Eagles", "", resolution), shared)
	k.Parlay = true

	r := NewScorer(config.Default()).Score(k, p)

	if r.VetoReason != VetoParlayMismatch {
		t.Errorf("Veto = %s, want %s", r.VetoReason, VetoParlayMismatch)
	}
}

func TestScore_Deterministic(t *testing.T) {
	resolution := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	shared := encode(t, "bitcoin reach $100,000")

	k := withEmbedding(yesNoContract(domain.PlatformKalshi, "k1",
		"Bitcoin reach $100,000", "coingecko", resolution), shared)
	p := withEmbedding(yesNoContract(domain.PlatformPolymarket, "p1",
		"Bitcoin hits $100,000", "coingecko", resolution), shared)

	s := NewScorer(config.Default())
	r1 := s.Score(k, p)
	r2 := s.Score(k, p)

	if r1 != r2 {
		t.Error("Scorer not deterministic for identical inputs")
	}
}

func TestScore_SymmetricFeatures(t *testing.T) {
	resolution := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	shared := encode(t, "bitcoin reach $100,000")

	k := withEmbedding(yesNoContract(domain.PlatformKalshi, "k1",
		"Bitcoin reach $100,000", "coingecko", resolution), shared)
	p := withEmbedding(yesNoContract(domain.PlatformPolymarket, "p1",
		"Bitcoin hits $100,000", "coin gecko", resolution), shared)

	s := NewScorer(config.Default())
	ab := s.Score(k, p)
	ba := s.Score(p, k)

	if ab.Features != ba.Features {
		t.Errorf("Features not symmetric:\n ab=%+v\n ba=%+v", ab.Features, ba.Features)
	}
	if math.Abs(ab.Similarity-ba.Similarity) > 1e-12 {
		t.Errorf("Similarity not symmetric: %f vs %f", ab.Similarity, ba.Similarity)
	}
}

func TestOutcomeMapping_CrossPolarity(t *testing.T) {
	resolution := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	k := yesNoContract(domain.PlatformKalshi, "k1", "Team will win", "", resolution)
	p := yesNoContract(domain.PlatformPolymarket, "p1", "Team will not win", "", resolution)
	p.Outcome.Polarity = domain.PolarityNegative

	mapping := OutcomeMapping(k, p)
	if mapping["Yes"] != "No" || mapping["No"] != "Yes" {
		t.Errorf("Expected cross mapping for inverted polarity, got %v", mapping)
	}
}
