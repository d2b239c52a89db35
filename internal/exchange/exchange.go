// Package exchange defines the read-only client contract for the two
// exchanges and the shared HTTP plumbing its implementations use. Clients
// expose raw records; translation to the common contract model happens in
// the normalization pipeline.
package exchange

import (
	"context"
	"errors"

	"marketbond/internal/domain"
)

// Transient upstream failures. Call sites retry these with bounded backoff
// and treat persistent failure as partial progress for the cycle.
var (
	// ErrUpstreamUnavailable indicates the exchange API failed or timed out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRateLimited indicates the exchange rejected the call with a 429.
	ErrRateLimited = errors.New("rate limited")
)

// KalshiClient reads market data from the Kalshi trade API.
type KalshiClient interface {
	// ListActiveMarkets returns one page of open markets. Pass the returned
	// cursor to fetch the next page; an empty cursor means the last page.
	ListActiveMarkets(ctx context.Context, cursor string) (markets []KalshiMarket, nextCursor string, err error)

	// GetMarketsByTickers fetches up to 100 markets in one call.
	GetMarketsByTickers(ctx context.Context, tickers []string) ([]KalshiMarket, error)

	// GetMarket fetches a single market by ticker.
	GetMarket(ctx context.Context, ticker string) (*KalshiMarket, error)

	// GetOrderBook fetches the market's current order book.
	GetOrderBook(ctx context.Context, ticker string) (*domain.OrderBook, error)
}

// PolymarketClient reads market data from the Polymarket Gamma and CLOB APIs.
type PolymarketClient interface {
	// ListActiveMarkets returns one page of open markets. The cursor is an
	// opaque pagination token; empty means the last page.
	ListActiveMarkets(ctx context.Context, cursor string) (markets []PolymarketMarket, nextCursor string, err error)

	// GetMarket fetches a single market by condition id.
	GetMarket(ctx context.Context, conditionID string) (*PolymarketMarket, error)

	// GetOrderBook fetches the CLOB order book for one outcome token.
	GetOrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error)

	// GetSimplifiedMarkets returns current token prices for all markets in
	// one call. Fallback when per-token order books are unavailable.
	GetSimplifiedMarkets(ctx context.Context) ([]SimplifiedMarket, error)
}
