// Package stub provides in-memory exchange clients for tests and the
// in-process pipeline binary.
package stub

import (
	"context"
	"fmt"
	"sort"

	"marketbond/internal/domain"
	"marketbond/internal/exchange"
)

// KalshiClient implements exchange.KalshiClient over fixed data.
type KalshiClient struct {
	Markets map[string]exchange.KalshiMarket
	Books   map[string]*domain.OrderBook

	// Err, when set, fails every call. Simulates upstream outages.
	Err error
}

var _ exchange.KalshiClient = (*KalshiClient)(nil)

// NewKalshiClient creates an empty stub.
func NewKalshiClient() *KalshiClient {
	return &KalshiClient{
		Markets: make(map[string]exchange.KalshiMarket),
		Books:   make(map[string]*domain.OrderBook),
	}
}

func (c *KalshiClient) ListActiveMarkets(_ context.Context, cursor string) ([]exchange.KalshiMarket, string, error) {
	if c.Err != nil {
		return nil, "", c.Err
	}
	tickers := make([]string, 0, len(c.Markets))
	for t := range c.Markets {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	out := make([]exchange.KalshiMarket, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, c.Markets[t])
	}
	return out, "", nil
}

func (c *KalshiClient) GetMarketsByTickers(_ context.Context, tickers []string) ([]exchange.KalshiMarket, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]exchange.KalshiMarket, 0, len(tickers))
	for _, t := range tickers {
		if m, ok := c.Markets[t]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *KalshiClient) GetMarket(_ context.Context, ticker string) (*exchange.KalshiMarket, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	m, ok := c.Markets[ticker]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", ticker, exchange.ErrUpstreamUnavailable)
	}
	return &m, nil
}

func (c *KalshiClient) GetOrderBook(_ context.Context, ticker string) (*domain.OrderBook, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	b, ok := c.Books[ticker]
	if !ok {
		return nil, fmt.Errorf("order book %s: %w", ticker, exchange.ErrUpstreamUnavailable)
	}
	return b, nil
}

// PolymarketClient implements exchange.PolymarketClient over fixed data.
type PolymarketClient struct {
	Markets    map[string]exchange.PolymarketMarket // by condition id
	Books      map[string]*domain.OrderBook         // by token id
	Simplified []exchange.SimplifiedMarket

	// BookErr fails GetOrderBook only, forcing the simplified fallback.
	BookErr error
	Err     error
}

var _ exchange.PolymarketClient = (*PolymarketClient)(nil)

// NewPolymarketClient creates an empty stub.
func NewPolymarketClient() *PolymarketClient {
	return &PolymarketClient{
		Markets: make(map[string]exchange.PolymarketMarket),
		Books:   make(map[string]*domain.OrderBook),
	}
}

func (c *PolymarketClient) ListActiveMarkets(_ context.Context, cursor string) ([]exchange.PolymarketMarket, string, error) {
	if c.Err != nil {
		return nil, "", c.Err
	}
	ids := make([]string, 0, len(c.Markets))
	for id := range c.Markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]exchange.PolymarketMarket, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.Markets[id])
	}
	return out, "", nil
}

func (c *PolymarketClient) GetMarket(_ context.Context, conditionID string) (*exchange.PolymarketMarket, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	m, ok := c.Markets[conditionID]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", conditionID, exchange.ErrUpstreamUnavailable)
	}
	return &m, nil
}

func (c *PolymarketClient) GetOrderBook(_ context.Context, tokenID string) (*domain.OrderBook, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if c.BookErr != nil {
		return nil, c.BookErr
	}
	b, ok := c.Books[tokenID]
	if !ok {
		return nil, fmt.Errorf("order book %s: %w", tokenID, exchange.ErrUpstreamUnavailable)
	}
	return b, nil
}

func (c *PolymarketClient) GetSimplifiedMarkets(_ context.Context) ([]exchange.SimplifiedMarket, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Simplified, nil
}
