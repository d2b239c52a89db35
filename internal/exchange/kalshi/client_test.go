package kalshi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListActiveMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("status") != "open" {
			t.Errorf("Expected status=open, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
			"markets": [
				{"ticker": "KXBTC-25DEC31", "title": "Bitcoin above $100k?", "status": "open",
				 "yes_bid": 60, "yes_ask": 61, "volume": 12000, "liquidity": 45000}
			],
			"cursor": "next-page"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	markets, cursor, err := c.ListActiveMarkets(context.Background(), "")
	if err != nil {
		t.Fatalf("ListActiveMarkets failed: %v", err)
	}
	if len(markets) != 1 || markets[0].Ticker != "KXBTC-25DEC31" {
		t.Fatalf("Unexpected markets: %+v", markets)
	}
	if markets[0].YesBid != 60 || markets[0].YesAsk != 61 {
		t.Errorf("Prices not decoded: %+v", markets[0])
	}
	if cursor != "next-page" {
		t.Errorf("Cursor = %q, want next-page", cursor)
	}
}

func TestGetMarketsByTickers_BatchLimit(t *testing.T) {
	c := NewClient("http://unused")

	tickers := make([]string, 101)
	for i := range tickers {
		tickers[i] = "T"
	}
	if _, err := c.GetMarketsByTickers(context.Background(), tickers); err == nil {
		t.Fatal("Expected error for batch over 100 tickers")
	}
}

func TestGetOrderBook_TranslatesNoSide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/KXBTC/orderbook" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		// Yes bids at 58 and 60 cents; no bids at 38 and 39 cents,
		// i.e. yes asks at 62 and 61.
		w.Write([]byte(`{"orderbook": {"yes": [[58, 120], [60, 100]], "no": [[38, 80], [39, 90]]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	book, err := c.GetOrderBook(context.Background(), "KXBTC")
	if err != nil {
		t.Fatalf("GetOrderBook failed: %v", err)
	}

	bid, ok := book.BestBid()
	if !ok || bid.Price != 0.60 {
		t.Errorf("BestBid = %+v, want price 0.60", bid)
	}
	ask, ok := book.BestAsk()
	if !ok || ask.Price != 0.61 {
		t.Errorf("BestAsk = %+v, want price 0.61", ask)
	}
}
