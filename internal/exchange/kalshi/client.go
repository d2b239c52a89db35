// Package kalshi implements the exchange client for the Kalshi trade API.
package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketbond/internal/domain"
	"marketbond/internal/exchange"
)

// DefaultBaseURL is the public trade API root.
const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

// pageLimit is the markets-per-page maximum the API accepts.
const pageLimit = 1000

// batchLimit is the maximum tickers per get-by-tickers request.
const batchLimit = 100

// Client reads market data from Kalshi.
type Client struct {
	rest *exchange.RESTClient
}

var _ exchange.KalshiClient = (*Client)(nil)

// NewClient creates a Kalshi client. Pass an empty baseURL for the default.
func NewClient(baseURL string, opts ...exchange.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]exchange.Option{exchange.WithPlatform("kalshi")}, opts...)
	return &Client{rest: exchange.NewRESTClient(baseURL, opts...)}
}

type marketsResponse struct {
	Markets []exchange.KalshiMarket `json:"markets"`
	Cursor  string                  `json:"cursor"`
}

type marketResponse struct {
	Market exchange.KalshiMarket `json:"market"`
}

func (c *Client) ListActiveMarkets(ctx context.Context, cursor string) ([]exchange.KalshiMarket, string, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("status", "open")
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp marketsResponse
	if err := c.rest.GetJSON(ctx, "/markets", params, &resp); err != nil {
		return nil, "", fmt.Errorf("list markets: %w", err)
	}
	return resp.Markets, resp.Cursor, nil
}

func (c *Client) GetMarketsByTickers(ctx context.Context, tickers []string) ([]exchange.KalshiMarket, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	if len(tickers) > batchLimit {
		return nil, fmt.Errorf("get markets: %d tickers exceeds batch limit %d", len(tickers), batchLimit)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(len(tickers)))
	params.Set("tickers", strings.Join(tickers, ","))

	var resp marketsResponse
	if err := c.rest.GetJSON(ctx, "/markets", params, &resp); err != nil {
		return nil, fmt.Errorf("get markets by tickers: %w", err)
	}
	return resp.Markets, nil
}

func (c *Client) GetMarket(ctx context.Context, ticker string) (*exchange.KalshiMarket, error) {
	var resp marketResponse
	if err := c.rest.GetJSON(ctx, "/markets/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	return &resp.Market, nil
}

type orderBookResponse struct {
	OrderBook struct {
		// Levels are [price_cents, contracts] pairs.
		Yes [][2]int64 `json:"yes"`
		No  [][2]int64 `json:"no"`
	} `json:"orderbook"`
}

// GetOrderBook fetches the yes-side book. Kalshi quotes resting yes bids
// and no bids; a no bid at price p is a yes ask at 100-p.
func (c *Client) GetOrderBook(ctx context.Context, ticker string) (*domain.OrderBook, error) {
	var resp orderBookResponse
	if err := c.rest.GetJSON(ctx, "/markets/"+url.PathEscape(ticker)+"/orderbook", nil, &resp); err != nil {
		return nil, fmt.Errorf("get order book %s: %w", ticker, err)
	}

	book := &domain.OrderBook{Timestamp: time.Now().UTC()}
	for _, level := range resp.OrderBook.Yes {
		book.Bids = append(book.Bids, domain.BookLevel{
			Price: float64(level[0]) / 100,
			Size:  float64(level[1]),
		})
	}
	for _, level := range resp.OrderBook.No {
		book.Asks = append(book.Asks, domain.BookLevel{
			Price: float64(100-level[0]) / 100,
			Size:  float64(level[1]),
		})
	}

	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, nil
}
