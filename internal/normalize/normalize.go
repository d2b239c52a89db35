// Package normalize translates raw exchange market records into the common
// contract model: cleaned text, entities, event classification, time
// granularity, outcome schema, and the semantic embedding.
package normalize

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketbond/internal/domain"
	"marketbond/internal/embedding"
	"marketbond/internal/entities"
	"marketbond/internal/observability"
	"marketbond/internal/textnorm"
)

// ErrBadRecord marks a raw record that cannot be normalized. Callers skip
// the record and advance.
var ErrBadRecord = errors.New("bad raw record")

// Pipeline normalizes raw market records. Safe for concurrent use.
type Pipeline struct {
	embedder embedding.Provider
	log      zerolog.Logger
}

// NewPipeline creates a normalization pipeline over the given embedder.
func NewPipeline(embedder embedding.Provider, log zerolog.Logger) *Pipeline {
	return &Pipeline{embedder: embedder, log: log}
}

// enrich fills the derived fields of c from its raw text: cleaned text,
// entities, classification, granularity, polarity, and the embedding.
// When prev has identical raw text the derived fields are copied instead,
// so repeated normalization of unchanged text is a near no-op.
func (p *Pipeline) enrich(ctx context.Context, c *domain.Contract, prev *domain.Contract) {
	if prev != nil && prev.RawTitle == c.RawTitle && prev.RawDescription == c.RawDescription {
		c.CleanTitle = prev.CleanTitle
		c.CleanDescription = prev.CleanDescription
		c.EventType = prev.EventType
		c.GeoScope = prev.GeoScope
		c.SportType = prev.SportType
		c.Parlay = prev.Parlay
		c.Entities = prev.Entities
		c.TimeWindow.Granularity = prev.TimeWindow.Granularity
		c.Outcome.Polarity = prev.Outcome.Polarity
		c.Embedding = prev.Embedding
		c.CreatedAt = prev.CreatedAt
		if carryBookQuotes(&c.Outcome, &prev.Outcome) {
			c.UpdatedAt = prev.UpdatedAt
		}
		return
	}

	c.CleanTitle = textnorm.CleanTitle(c.RawTitle)
	c.CleanDescription = textnorm.CleanDescription(c.RawDescription)

	combined := strings.TrimSpace(c.CleanTitle + " " + c.CleanDescription)
	c.Entities = entities.Extract(combined)
	c.EventType = entities.ClassifyEventType(c.Category, c.Entities, c.CleanTitle)
	c.GeoScope = entities.DetermineGeoScope(c.Entities, c.CleanTitle)
	c.SportType = entities.ClassifySportType(combined)
	c.Parlay = entities.DetectParlay(c.CleanTitle)

	c.TimeWindow.Granularity = inferGranularity(c.CleanTitle)
	if c.Outcome.Type == domain.SchemaYesNo {
		c.Outcome.Polarity = inferPolarity(c.CleanTitle)
	}

	vec, err := p.embedder.Encode(ctx, combined)
	if err != nil {
		// Stored without an embedding; invisible to candidate retrieval
		// until re-normalized.
		p.log.Warn().Str("platform", string(c.Platform)).Str("id", c.ID).
			Err(err).Msg("embedding unavailable")
		observability.DefaultMetrics.EmbeddingFailures.Inc()
		c.Embedding = nil
	} else {
		c.Embedding = vec
	}
}

// granularityKeywords maps title keywords to a time granularity. Checked in
// order from finest to coarsest; first hit wins.
var granularityKeywords = []struct {
	granularity domain.Granularity
	words       []string
}{
	{domain.GranularityDay, []string{"daily", "today", "by end of day", "eod"}},
	{domain.GranularityWeek, []string{"week", "weekly"}},
	{domain.GranularityMonth, []string{"month", "monthly"}},
	{domain.GranularityQuarter, []string{"quarter", "q1", "q2", "q3", "q4", "quarterly"}},
	{domain.GranularityYear, []string{"year", "annual", "yearly", "eoy", "end of year"}},
}

func inferGranularity(title string) domain.Granularity {
	lower := strings.ToLower(title)
	for _, g := range granularityKeywords {
		for _, w := range g.words {
			if strings.Contains(lower, w) {
				return g.granularity
			}
		}
	}
	return domain.GranularityWeek
}

var negativeIndicators = []string{
	"not", "won't", "will not", "fails to", "doesn't", "does not", "reject",
}

func inferPolarity(title string) domain.Polarity {
	lower := strings.ToLower(title)
	for _, w := range negativeIndicators {
		if strings.Contains(lower, w) {
			return domain.PolarityNegative
		}
	}
	return domain.PolarityPositive
}

// carryBookQuotes copies stored bid/ask quotes into a rebuilt schema whose
// feed only supplied mids, so a re-ingest of unchanged raw text cannot wipe
// what the price updater has written. Outcomes the rebuild already quoted
// keep their fresh values. Reports whether anything was carried.
func carryBookQuotes(next, prev *domain.OutcomeSchema) bool {
	carried := false
	for i := range next.Outcomes {
		o := &next.Outcomes[i]
		if o.Bid != nil || o.Ask != nil {
			continue
		}
		po := prev.OutcomeByLabel(o.Label)
		if po == nil || (po.Bid == nil && po.Ask == nil) {
			continue
		}
		o.Bid = po.Bid
		o.Ask = po.Ask
		if po.Mid != nil {
			o.Mid = po.Mid
		}
		carried = true
	}
	return carried
}

func midOf(bid, ask *float64) *float64 {
	if bid == nil || ask == nil {
		return nil
	}
	m := (*bid + *ask) / 2
	return &m
}

func inRange(p float64) bool { return p >= 0 && p <= 1 }

func ptr(v float64) *float64 { return &v }

func nowUTC() time.Time { return time.Now().UTC() }
