package domain

import "time"

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a snapshot for a single outcome token.
// Bids are sorted descending by price, asks ascending.
type OrderBook struct {
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// BestBid returns the top-of-book bid, ok false when the side is empty.
func (b *OrderBook) BestBid() (BookLevel, bool) {
	if len(b.Bids) == 0 {
		return BookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top-of-book ask, ok false when the side is empty.
func (b *OrderBook) BestAsk() (BookLevel, bool) {
	if len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}

// DepthAt sums size available at or better than the target price on the given
// side: bids at or above target (selling), asks at or below target (buying).
func (b *OrderBook) DepthAt(target float64, side string) float64 {
	var total float64
	switch side {
	case "bid":
		for _, l := range b.Bids {
			if l.Price < target {
				break
			}
			total += l.Size
		}
	case "ask":
		for _, l := range b.Asks {
			if l.Price > target {
				break
			}
			total += l.Size
		}
	}
	return total
}
