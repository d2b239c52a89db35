// Package polymarket implements the exchange client for Polymarket's Gamma
// (market discovery) and CLOB (prices and order books) APIs.
package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"marketbond/internal/domain"
	"marketbond/internal/exchange"
)

// Default API roots.
const (
	DefaultGammaBaseURL = "https://gamma-api.polymarket.com"
	DefaultCLOBBaseURL  = "https://clob.polymarket.com"
)

// pageLimit is the Gamma markets-per-page size.
const pageLimit = 100

// Client reads market data from Polymarket.
type Client struct {
	gamma *exchange.RESTClient
	clob  *exchange.RESTClient
}

var _ exchange.PolymarketClient = (*Client)(nil)

// NewClient creates a Polymarket client. Pass empty URLs for the defaults.
func NewClient(gammaBaseURL, clobBaseURL string, opts ...exchange.Option) *Client {
	if gammaBaseURL == "" {
		gammaBaseURL = DefaultGammaBaseURL
	}
	if clobBaseURL == "" {
		clobBaseURL = DefaultCLOBBaseURL
	}
	opts = append([]exchange.Option{exchange.WithPlatform("polymarket")}, opts...)
	return &Client{
		gamma: exchange.NewRESTClient(gammaBaseURL, opts...),
		clob:  exchange.NewRESTClient(clobBaseURL, opts...),
	}
}

// ListActiveMarkets pages through Gamma open markets. Gamma paginates by
// offset; the cursor is the stringified next offset.
func (c *Client) ListActiveMarkets(ctx context.Context, cursor string) ([]exchange.PolymarketMarket, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad cursor %q: %w", cursor, err)
		}
		offset = n
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("closed", "false")

	var markets []exchange.PolymarketMarket
	if err := c.gamma.GetJSON(ctx, "/markets", params, &markets); err != nil {
		return nil, "", fmt.Errorf("list markets: %w", err)
	}

	next := ""
	if len(markets) == pageLimit {
		next = strconv.Itoa(offset + pageLimit)
	}
	return markets, next, nil
}

func (c *Client) GetMarket(ctx context.Context, conditionID string) (*exchange.PolymarketMarket, error) {
	params := url.Values{}
	params.Set("condition_ids", conditionID)

	var markets []exchange.PolymarketMarket
	if err := c.gamma.GetJSON(ctx, "/markets", params, &markets); err != nil {
		return nil, fmt.Errorf("get market %s: %w", conditionID, err)
	}
	for i := range markets {
		if markets[i].ConditionID == conditionID {
			return &markets[i], nil
		}
	}
	return nil, fmt.Errorf("get market %s: %w: not in response", conditionID, exchange.ErrUpstreamUnavailable)
}

type clobBookResponse struct {
	Bids      []clobBookLevel `json:"bids"`
	Asks      []clobBookLevel `json:"asks"`
	Timestamp string          `json:"timestamp"` // unix millis
}

type clobBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var resp clobBookResponse
	if err := c.clob.GetJSON(ctx, "/book", params, &resp); err != nil {
		return nil, fmt.Errorf("get order book %s: %w", tokenID, err)
	}
	return translateBook(resp)
}

func translateBook(resp clobBookResponse) (*domain.OrderBook, error) {
	book := &domain.OrderBook{Timestamp: time.Now().UTC()}
	if resp.Timestamp != "" {
		if ms, err := strconv.ParseInt(resp.Timestamp, 10, 64); err == nil {
			book.Timestamp = time.UnixMilli(ms).UTC()
		}
	}

	for _, l := range resp.Bids {
		level, err := parseLevel(l)
		if err != nil {
			return nil, fmt.Errorf("bad bid level: %w", err)
		}
		book.Bids = append(book.Bids, level)
	}
	for _, l := range resp.Asks {
		level, err := parseLevel(l)
		if err != nil {
			return nil, fmt.Errorf("bad ask level: %w", err)
		}
		book.Asks = append(book.Asks, level)
	}

	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, nil
}

func parseLevel(l clobBookLevel) (domain.BookLevel, error) {
	price, err := strconv.ParseFloat(l.Price, 64)
	if err != nil {
		return domain.BookLevel{}, fmt.Errorf("price %q: %w", l.Price, err)
	}
	size, err := strconv.ParseFloat(l.Size, 64)
	if err != nil {
		return domain.BookLevel{}, fmt.Errorf("size %q: %w", l.Size, err)
	}
	return domain.BookLevel{Price: price, Size: size}, nil
}

func (c *Client) GetSimplifiedMarkets(ctx context.Context) ([]exchange.SimplifiedMarket, error) {
	// The endpoint is paginated but serves the full set with a large limit.
	var resp struct {
		Data       []exchange.SimplifiedMarket `json:"data"`
		NextCursor string                      `json:"next_cursor"`
	}
	if err := c.clob.GetJSON(ctx, "/simplified-markets", nil, &resp); err != nil {
		return nil, fmt.Errorf("get simplified markets: %w", err)
	}
	return resp.Data, nil
}
