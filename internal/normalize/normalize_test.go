package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketbond/internal/domain"
	"marketbond/internal/embedding"
	"marketbond/internal/exchange"
)

func testPipeline() *Pipeline {
	return NewPipeline(embedding.NewHashedEncoder(), zerolog.Nop())
}

func kalshiMarket() exchange.KalshiMarket {
	return exchange.KalshiMarket{
		Ticker:         "KXBTC-25DEC31-T100",
		Title:          "Will Bitcoin reach $100,000 by end of 2025?",
		Subtitle:       "Resolves to the CoinGecko daily close.",
		Category:       "Crypto",
		Status:         "open",
		ExpirationTime: "2025-12-31T23:59:00Z",
		YesBid:         60,
		YesAsk:         62,
		LastPrice:      61,
		Volume:         12000,
		Liquidity:      45000,
	}
}

func TestFromKalshi(t *testing.T) {
	p := testPipeline()
	c, err := p.FromKalshi(context.Background(), kalshiMarket(), nil)
	if err != nil {
		t.Fatalf("FromKalshi failed: %v", err)
	}

	if c.ID != "KXBTC-25DEC31-T100" || c.Platform != domain.PlatformKalshi {
		t.Errorf("Identity wrong: %s/%s", c.Platform, c.ID)
	}
	if c.Status != domain.StatusActive {
		t.Errorf("Status = %s, want active", c.Status)
	}
	if c.ResolutionSource != "Kalshi" {
		t.Errorf("ResolutionSource = %q", c.ResolutionSource)
	}
	if got := c.TimeWindow.Resolution; got != time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC) {
		t.Errorf("Resolution = %v", got)
	}
	if c.CleanTitle == "" || c.CleanTitle == c.RawTitle {
		t.Errorf("Title not cleaned: %q", c.CleanTitle)
	}
	if len(c.Embedding) != embedding.Dim {
		t.Errorf("Embedding dimension = %d", len(c.Embedding))
	}
	if c.EventType != "price_target" {
		t.Errorf("EventType = %q, want price_target", c.EventType)
	}
	if c.Outcome.Polarity != domain.PolarityPositive {
		t.Errorf("Polarity = %s, want positive", c.Outcome.Polarity)
	}

	yes := c.Outcome.OutcomeByLabel("yes")
	if yes == nil || yes.Bid == nil || yes.Ask == nil || yes.Mid == nil {
		t.Fatal("Yes outcome missing prices")
	}
	if *yes.Bid != 0.60 || *yes.Ask != 0.62 || *yes.Mid != 0.61 {
		t.Errorf("Yes prices = %.2f/%.2f/%.2f", *yes.Bid, *yes.Mid, *yes.Ask)
	}
	no := c.Outcome.OutcomeByLabel("no")
	if no == nil || no.Bid == nil || no.Ask == nil {
		t.Fatal("No outcome missing prices")
	}
	if *no.Bid != 0.38 || *no.Ask != 0.40 {
		t.Errorf("No prices = %.2f/%.2f", *no.Bid, *no.Ask)
	}
}

func TestFromKalshi_BadRecords(t *testing.T) {
	p := testPipeline()

	missing := kalshiMarket()
	missing.ExpirationTime = ""
	missing.CloseTime = ""
	if _, err := p.FromKalshi(context.Background(), missing, nil); !errors.Is(err, ErrBadRecord) {
		t.Errorf("Missing expiration: err = %v, want ErrBadRecord", err)
	}

	unknown := kalshiMarket()
	unknown.Status = "paused"
	if _, err := p.FromKalshi(context.Background(), unknown, nil); !errors.Is(err, ErrBadRecord) {
		t.Errorf("Unknown status: err = %v, want ErrBadRecord", err)
	}

	untitled := kalshiMarket()
	untitled.Title = ""
	if _, err := p.FromKalshi(context.Background(), untitled, nil); !errors.Is(err, ErrBadRecord) {
		t.Errorf("Missing title: err = %v, want ErrBadRecord", err)
	}
}

func TestFromKalshi_StatusMapping(t *testing.T) {
	p := testPipeline()
	for raw, want := range map[string]domain.Status{
		"open":    domain.StatusActive,
		"closed":  domain.StatusClosed,
		"settled": domain.StatusResolved,
	} {
		m := kalshiMarket()
		m.Status = raw
		c, err := p.FromKalshi(context.Background(), m, nil)
		if err != nil {
			t.Fatalf("Status %q: %v", raw, err)
		}
		if c.Status != want {
			t.Errorf("Status %q → %s, want %s", raw, c.Status, want)
		}
	}
}

func TestFromKalshi_UnchangedTextReusesDerivedFields(t *testing.T) {
	p := testPipeline()
	ctx := context.Background()

	first, err := p.FromKalshi(ctx, kalshiMarket(), nil)
	if err != nil {
		t.Fatal(err)
	}
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first.CreatedAt = created

	m := kalshiMarket()
	m.YesBid, m.YesAsk = 70, 72
	second, err := p.FromKalshi(ctx, m, first)
	if err != nil {
		t.Fatal(err)
	}

	if second.CleanTitle != first.CleanTitle || second.EventType != first.EventType {
		t.Error("Derived text fields not reused")
	}
	if !second.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want preserved %v", second.CreatedAt, created)
	}
	if &second.Embedding[0] != &first.Embedding[0] {
		t.Error("Embedding not reused for unchanged text")
	}
	yes := second.Outcome.OutcomeByLabel("yes")
	if yes == nil || yes.Bid == nil || *yes.Bid != 0.70 {
		t.Error("Prices not refreshed despite unchanged text")
	}
}

func polymarketMarket() exchange.PolymarketMarket {
	return exchange.PolymarketMarket{
		ConditionID:   "0xabc123",
		Question:      "Bitcoin to $100k in 2025?",
		Description:   "Resolves yes if BTC trades at or above $100,000.",
		EndDate:       "2025-12-31T23:59:00Z",
		Active:        true,
		Tags:          []string{"Crypto", "Bitcoin"},
		ClobTokenIDs:  `["111", "222"]`,
		Outcomes:      `["Yes", "No"]`,
		OutcomePrices: `["0.65", "0.35"]`,
		Volume:        "250000.5",
		Liquidity:     "80000",
	}
}

func TestFromPolymarket(t *testing.T) {
	p := testPipeline()
	c, err := p.FromPolymarket(context.Background(), polymarketMarket(), nil)
	if err != nil {
		t.Fatalf("FromPolymarket failed: %v", err)
	}

	if c.ID != "0xabc123" || c.ConditionID != "0xabc123" || c.Platform != domain.PlatformPolymarket {
		t.Errorf("Identity wrong: %+v", c)
	}
	if len(c.TokenIDs) != 2 || c.TokenIDs[0] != "111" {
		t.Errorf("TokenIDs = %v", c.TokenIDs)
	}
	if c.Status != domain.StatusActive {
		t.Errorf("Status = %s", c.Status)
	}
	if c.Category != "Crypto" {
		t.Errorf("Category = %q, want first tag", c.Category)
	}
	if c.ResolutionSource != "Polymarket" {
		t.Errorf("ResolutionSource = %q, want default", c.ResolutionSource)
	}
	if c.Volume != 250000.5 || c.Liquidity != 80000 {
		t.Errorf("Volume/Liquidity = %v/%v", c.Volume, c.Liquidity)
	}

	if c.Outcome.Type != domain.SchemaYesNo {
		t.Fatalf("Schema = %s, want yes_no", c.Outcome.Type)
	}
	yes := c.Outcome.OutcomeByLabel("yes")
	if yes == nil || yes.Mid == nil || *yes.Mid != 0.65 {
		t.Errorf("Yes mid wrong: %+v", yes)
	}
	if yes.TokenID != "111" {
		t.Errorf("Yes token = %q", yes.TokenID)
	}
}

func TestFromPolymarket_BracketSchema(t *testing.T) {
	p := testPipeline()
	m := polymarketMarket()
	m.Outcomes = `["$90k-$100k", "Above $100k"]`
	m.OutcomePrices = `["0.4", "0.6"]`

	c, err := p.FromPolymarket(context.Background(), m, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Outcome.Type != domain.SchemaDiscreteBrackets {
		t.Fatalf("Schema = %s, want discrete_brackets", c.Outcome.Type)
	}
	if c.Outcome.Unit != "usd" {
		t.Errorf("Unit = %q, want usd", c.Outcome.Unit)
	}
	if len(c.Outcome.Brackets) != 2 {
		t.Fatalf("Brackets = %v", c.Outcome.Brackets)
	}
	b0 := c.Outcome.Brackets[0]
	if b0.Min == nil || *b0.Min != 90000 || b0.Max == nil || *b0.Max != 100000 {
		t.Errorf("Bracket 0 = %+v", b0)
	}
	b1 := c.Outcome.Brackets[1]
	if b1.Min == nil || *b1.Min != 100000 || b1.Max != nil {
		t.Errorf("Bracket 1 = %+v", b1)
	}
}

func TestFromPolymarket_BadRecords(t *testing.T) {
	p := testPipeline()
	ctx := context.Background()

	bad := polymarketMarket()
	bad.ClobTokenIDs = `not json`
	if _, err := p.FromPolymarket(ctx, bad, nil); !errors.Is(err, ErrBadRecord) {
		t.Errorf("Bad clobTokenIds: err = %v", err)
	}

	bad = polymarketMarket()
	bad.OutcomePrices = `["1.5", "0.35"]`
	if _, err := p.FromPolymarket(ctx, bad, nil); !errors.Is(err, ErrBadRecord) {
		t.Errorf("Out-of-range price: err = %v", err)
	}

	bad = polymarketMarket()
	bad.EndDate = "eventually"
	if _, err := p.FromPolymarket(ctx, bad, nil); !errors.Is(err, ErrBadRecord) {
		t.Errorf("Bad endDate: err = %v", err)
	}
}

func TestInferGranularity(t *testing.T) {
	cases := map[string]domain.Granularity{
		"bitcoin daily close above 100k":   domain.GranularityDay,
		"jobless claims this week":         domain.GranularityWeek,
		"cpi month over month":             domain.GranularityMonth,
		"tesla quarter 1 deliveries":       domain.GranularityQuarter,
		"annual inflation below 3 percent": domain.GranularityYear,
		"chiefs beat the bills on sunday":  domain.GranularityWeek,
	}
	for title, want := range cases {
		if got := inferGranularity(title); got != want {
			t.Errorf("inferGranularity(%q) = %s, want %s", title, got, want)
		}
	}
}

func TestInferPolarity(t *testing.T) {
	if inferPolarity("bitcoin reaches 100k") != domain.PolarityPositive {
		t.Error("Plain title should be positive")
	}
	if inferPolarity("fed does not cut rates") != domain.PolarityNegative {
		t.Error("Negated title should be negative")
	}
	if inferPolarity("senate fails to confirm nominee") != domain.PolarityNegative {
		t.Error("fails-to title should be negative")
	}
}
