package domain

// SchemaType tags the outcome-schema variant.
type SchemaType string

const (
	SchemaYesNo            SchemaType = "yes_no"
	SchemaDiscreteBrackets SchemaType = "discrete_brackets"
	SchemaScalarRange      SchemaType = "scalar_range"
)

// Bracket is a half-open value range. A nil bound is unbounded.
type Bracket struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Intersects reports whether the two half-open ranges overlap.
func (b Bracket) Intersects(o Bracket) bool {
	lo1, hi1 := b.bounds()
	lo2, hi2 := o.bounds()
	return hi1 > lo2 && hi2 > lo1
}

// Contains reports whether b fully contains o.
func (b Bracket) Contains(o Bracket) bool {
	lo1, hi1 := b.bounds()
	lo2, hi2 := o.bounds()
	return lo1 <= lo2 && hi1 >= hi2
}

// Equal reports bound-for-bound equality.
func (b Bracket) Equal(o Bracket) bool {
	lo1, hi1 := b.bounds()
	lo2, hi2 := o.bounds()
	return lo1 == lo2 && hi1 == hi2
}

func (b Bracket) bounds() (float64, float64) {
	lo, hi := negInf, posInf
	if b.Min != nil {
		lo = *b.Min
	}
	if b.Max != nil {
		hi = *b.Max
	}
	return lo, hi
}

// Outcome is a single tradable outcome with its current prices in [0,1].
// Nil prices mean the upstream client has not provided them.
type Outcome struct {
	Label   string   `json:"label"`
	TokenID string   `json:"token_id,omitempty"` // polymarket CLOB token id
	Mid     *float64 `json:"mid,omitempty"`
	Bid     *float64 `json:"bid,omitempty"`
	Ask     *float64 `json:"ask,omitempty"`
}

// OutcomeSchema is a tagged variant describing the contract's outcome space.
// Exactly the fields for the tagged Type are meaningful.
type OutcomeSchema struct {
	Type SchemaType `json:"type"`

	// yes_no
	Polarity Polarity `json:"polarity,omitempty"`

	// discrete_brackets and scalar_range
	Unit string `json:"unit,omitempty"`

	// discrete_brackets
	Brackets []Bracket `json:"brackets,omitempty"`

	// scalar_range
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	Outcomes []Outcome `json:"outcomes"`
}

// OutcomeByLabel returns a pointer into Outcomes for the given label,
// matched case-insensitively, or nil.
func (s *OutcomeSchema) OutcomeByLabel(label string) *Outcome {
	for i := range s.Outcomes {
		if equalFold(s.Outcomes[i].Label, label) {
			return &s.Outcomes[i]
		}
	}
	return nil
}

// YesNoPrices returns the mid prices of the yes and no outcomes.
// ok is false unless both are present.
func (s *OutcomeSchema) YesNoPrices() (yes, no float64, ok bool) {
	y := s.OutcomeByLabel("yes")
	n := s.OutcomeByLabel("no")
	if y == nil || n == nil || y.Mid == nil || n.Mid == nil {
		return 0, 0, false
	}
	return *y.Mid, *n.Mid, true
}
