package exchange

// KalshiMarket is the raw market record from the Kalshi trade API.
// Prices arrive in integer cents in [0,100].
type KalshiMarket struct {
	Ticker         string `json:"ticker"`
	EventTicker    string `json:"event_ticker"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Category       string `json:"category"`
	Status         string `json:"status"` // open / closed / settled
	Result         string `json:"result"` // yes / no once settled
	OpenTime       string `json:"open_time"`
	CloseTime      string `json:"close_time"`
	ExpirationTime string `json:"expiration_time"`

	YesBid    int64   `json:"yes_bid"`
	YesAsk    int64   `json:"yes_ask"`
	LastPrice int64   `json:"last_price"`
	Volume    float64 `json:"volume"`
	Liquidity float64 `json:"liquidity"`
}

// PolymarketMarket is the raw market record from the Polymarket Gamma API.
// Prices and token ids arrive as JSON-encoded strings.
type PolymarketMarket struct {
	ConditionID      string   `json:"conditionId"`
	Question         string   `json:"question"`
	Description      string   `json:"description"`
	EndDate          string   `json:"endDate"` // ISO 8601
	Active           bool     `json:"active"`
	Closed           bool     `json:"closed"`
	Tags             []string `json:"tags"`
	ClobTokenIDs     string   `json:"clobTokenIds"` // JSON array of strings
	Outcomes         string   `json:"outcomes"`     // JSON array of labels
	OutcomePrices    string   `json:"outcomePrices"` // JSON array of decimal strings
	Volume           string   `json:"volume"`
	Liquidity        string   `json:"liquidity"`
	ResolutionSource string   `json:"resolutionSource"`
}

// SimplifiedMarket is one entry of the CLOB simplified-markets response.
type SimplifiedMarket struct {
	ConditionID string            `json:"condition_id"`
	Closed      bool              `json:"closed"`
	Tokens      []SimplifiedToken `json:"tokens"`
}

// SimplifiedToken carries the current price for one outcome token. Winner is
// set on the resolved outcome once the market closes.
type SimplifiedToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}
