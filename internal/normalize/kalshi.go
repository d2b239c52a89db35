package normalize

import (
	"context"
	"fmt"
	"time"

	"marketbond/internal/domain"
	"marketbond/internal/exchange"
)

// FromKalshi normalizes one Kalshi market record. prev, when non-nil, is the
// stored contract for the same id; unchanged raw text short-circuits the
// text-derivation steps. Prices arrive in integer cents.
func (p *Pipeline) FromKalshi(ctx context.Context, m exchange.KalshiMarket, prev *domain.Contract) (*domain.Contract, error) {
	if m.Ticker == "" {
		return nil, fmt.Errorf("kalshi market: missing ticker: %w", ErrBadRecord)
	}
	if m.Title == "" {
		return nil, fmt.Errorf("kalshi market %s: missing title: %w", m.Ticker, ErrBadRecord)
	}

	status, err := kalshiStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("kalshi market %s: %w", m.Ticker, err)
	}

	resolution, err := kalshiResolution(m)
	if err != nil {
		return nil, fmt.Errorf("kalshi market %s: %w", m.Ticker, err)
	}

	description := m.Title
	if m.Subtitle != "" {
		description = m.Title + ". " + m.Subtitle
	}

	now := nowUTC()
	c := &domain.Contract{
		ID:               m.Ticker,
		Platform:         domain.PlatformKalshi,
		Status:           status,
		RawTitle:         m.Title,
		RawDescription:   description,
		Category:         m.Category,
		ResolutionSource: "Kalshi",
		TimeWindow:       domain.TimeWindow{Resolution: resolution},
		Outcome:          kalshiOutcomeSchema(m),
		Volume:           m.Volume,
		Liquidity:        m.Liquidity,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	p.enrich(ctx, c, prev)
	return c, nil
}

func kalshiStatus(raw string) (domain.Status, error) {
	switch raw {
	case "open", "active":
		return domain.StatusActive, nil
	case "closed":
		return domain.StatusClosed, nil
	case "settled", "finalized":
		return domain.StatusResolved, nil
	default:
		return "", fmt.Errorf("unknown status %q: %w", raw, ErrBadRecord)
	}
}

func kalshiResolution(m exchange.KalshiMarket) (time.Time, error) {
	raw := m.ExpirationTime
	if raw == "" {
		raw = m.CloseTime
	}
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing expiration_time: %w", ErrBadRecord)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiration_time %q: %w", raw, ErrBadRecord)
	}
	return t.UTC(), nil
}

// kalshiOutcomeSchema builds the yes/no schema with prices scaled from cents
// to [0,1]. The no side is derived from the yes book: a no bid at price p is
// a yes ask at 100−p.
func kalshiOutcomeSchema(m exchange.KalshiMarket) domain.OutcomeSchema {
	var yesBid, yesAsk *float64
	if m.YesBid > 0 {
		yesBid = ptr(float64(m.YesBid) / 100)
	}
	if m.YesAsk > 0 {
		yesAsk = ptr(float64(m.YesAsk) / 100)
	}

	yesMid := midOf(yesBid, yesAsk)
	if yesMid == nil && m.LastPrice > 0 {
		yesMid = ptr(float64(m.LastPrice) / 100)
	}

	var noBid, noAsk, noMid *float64
	if yesAsk != nil {
		noBid = ptr(1 - *yesAsk)
	}
	if yesBid != nil {
		noAsk = ptr(1 - *yesBid)
	}
	if yesMid != nil {
		noMid = ptr(1 - *yesMid)
	}

	return domain.OutcomeSchema{
		Type: domain.SchemaYesNo,
		Outcomes: []domain.Outcome{
			{Label: "Yes", Bid: yesBid, Ask: yesAsk, Mid: yesMid},
			{Label: "No", Bid: noBid, Ask: noAsk, Mid: noMid},
		},
	}
}
