package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"marketbond/internal/domain"
	"marketbond/internal/exchange"
)

// FromPolymarket normalizes one Polymarket Gamma market record. prev, when
// non-nil, is the stored contract for the same condition id. Array-valued
// fields arrive as JSON-encoded strings and are decoded here.
func (p *Pipeline) FromPolymarket(ctx context.Context, m exchange.PolymarketMarket, prev *domain.Contract) (*domain.Contract, error) {
	if m.ConditionID == "" {
		return nil, fmt.Errorf("polymarket market: missing conditionId: %w", ErrBadRecord)
	}
	if m.Question == "" {
		return nil, fmt.Errorf("polymarket market %s: missing question: %w", m.ConditionID, ErrBadRecord)
	}

	resolution, err := polymarketResolution(m.EndDate)
	if err != nil {
		return nil, fmt.Errorf("polymarket market %s: %w", m.ConditionID, err)
	}

	labels, err := decodeStringArray(m.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("polymarket market %s: outcomes %q: %w", m.ConditionID, m.Outcomes, ErrBadRecord)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("polymarket market %s: no outcomes: %w", m.ConditionID, ErrBadRecord)
	}
	tokenIDs, err := decodeStringArray(m.ClobTokenIDs)
	if err != nil {
		return nil, fmt.Errorf("polymarket market %s: clobTokenIds %q: %w", m.ConditionID, m.ClobTokenIDs, ErrBadRecord)
	}
	prices, err := decodePriceArray(m.OutcomePrices)
	if err != nil {
		return nil, fmt.Errorf("polymarket market %s: %w", m.ConditionID, err)
	}

	schema, err := polymarketOutcomeSchema(labels, tokenIDs, prices)
	if err != nil {
		return nil, fmt.Errorf("polymarket market %s: %w", m.ConditionID, err)
	}

	status := domain.StatusActive
	if m.Closed {
		status = domain.StatusClosed
	}

	category := ""
	if len(m.Tags) > 0 {
		category = m.Tags[0]
	}
	source := m.ResolutionSource
	if source == "" {
		source = "Polymarket"
	}

	now := nowUTC()
	c := &domain.Contract{
		ID:               m.ConditionID,
		Platform:         domain.PlatformPolymarket,
		ConditionID:      m.ConditionID,
		TokenIDs:         tokenIDs,
		Status:           status,
		RawTitle:         m.Question,
		RawDescription:   m.Description,
		Category:         category,
		ResolutionSource: source,
		TimeWindow:       domain.TimeWindow{Resolution: resolution},
		Outcome:          schema,
		Volume:           looseFloat(m.Volume),
		Liquidity:        looseFloat(m.Liquidity),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	p.enrich(ctx, c, prev)
	return c, nil
}

func polymarketResolution(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing endDate: %w", ErrBadRecord)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("endDate %q: %w", raw, ErrBadRecord)
}

// decodeStringArray decodes a JSON-encoded string array field. Empty input
// decodes to nil.
func decodeStringArray(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodePriceArray(raw string) ([]float64, error) {
	strs, err := decodeStringArray(raw)
	if err != nil {
		return nil, fmt.Errorf("outcomePrices %q: %w", raw, ErrBadRecord)
	}
	out := make([]float64, len(strs))
	for i, s := range strs {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !inRange(v) {
			return nil, fmt.Errorf("outcomePrices[%d] %q: %w", i, s, ErrBadRecord)
		}
		out[i] = v
	}
	return out, nil
}

func looseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// polymarketOutcomeSchema builds the outcome schema from decoded labels,
// token ids, and mid prices. Two outcomes labeled yes/no become the yes_no
// variant; anything else becomes discrete brackets with bounds parsed from
// the labels where possible.
func polymarketOutcomeSchema(labels, tokenIDs []string, prices []float64) (domain.OutcomeSchema, error) {
	outcomes := make([]domain.Outcome, len(labels))
	for i, label := range labels {
		o := domain.Outcome{Label: label}
		if i < len(tokenIDs) {
			o.TokenID = tokenIDs[i]
		}
		if i < len(prices) {
			o.Mid = ptr(prices[i])
		}
		outcomes[i] = o
	}

	if isYesNo(labels) {
		return domain.OutcomeSchema{Type: domain.SchemaYesNo, Outcomes: outcomes}, nil
	}

	schema := domain.OutcomeSchema{Type: domain.SchemaDiscreteBrackets, Outcomes: outcomes}
	for _, label := range labels {
		b, unit := parseBracket(label)
		schema.Brackets = append(schema.Brackets, b)
		if schema.Unit == "" {
			schema.Unit = unit
		}
	}
	return schema, nil
}

func isYesNo(labels []string) bool {
	if len(labels) != 2 {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(labels[0]))
	b := strings.ToLower(strings.TrimSpace(labels[1]))
	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}

var (
	rangeRe = regexp.MustCompile(`(?i)(\$?[\d,.]+[km]?)\s*(?:-|to)\s*(\$?[\d,.]+[km]?)`)
	aboveRe = regexp.MustCompile(`(?i)(?:above|over|>|at least)\s*(\$?[\d,.]+[km]?)|(\$?[\d,.]+[km]?)\s*\+|(\$?[\d,.]+[km]?)\s+or\s+(?:more|higher|above)`)
	belowRe = regexp.MustCompile(`(?i)(?:below|under|<|less than)\s*(\$?[\d,.]+[km]?)`)
)

// parseBracket extracts half-open bounds from a bracket label like
// "$100k-$110k", "Above 3.5%", or "500+". Labels with no recognizable
// bounds produce an unbounded bracket.
func parseBracket(label string) (domain.Bracket, string) {
	unit := ""
	if strings.Contains(label, "$") {
		unit = "usd"
	} else if strings.Contains(label, "%") {
		unit = "percent"
	}

	if m := rangeRe.FindStringSubmatch(label); m != nil {
		lo, loOK := parseAmount(m[1])
		hi, hiOK := parseAmount(m[2])
		if loOK && hiOK {
			return domain.Bracket{Min: &lo, Max: &hi}, unit
		}
	}
	if m := aboveRe.FindStringSubmatch(label); m != nil {
		for _, g := range m[1:] {
			if v, ok := parseAmount(g); ok {
				return domain.Bracket{Min: &v}, unit
			}
		}
	}
	if m := belowRe.FindStringSubmatch(label); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			return domain.Bracket{Max: &v}, unit
		}
	}
	return domain.Bracket{}, unit
}

func parseAmount(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	mult := 1.0
	if strings.HasSuffix(s, "k") {
		mult = 1e3
		s = strings.TrimSuffix(s, "k")
	} else if strings.HasSuffix(s, "m") {
		mult = 1e6
		s = strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}
