package domain

import "time"

// PriceLevel is a single price+quantity entry in an order book.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is one full L2 update. Asks are ascending by price and bids
// descending, best level first. Each update replaces the previous book.
type OrderBook struct {
	Asks []PriceLevel
	Bids []PriceLevel
}

// BestAsk returns the lowest ask, or false when the ask side is empty.
func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// BestBid returns the highest bid, or false when the bid side is empty.
func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// HasBothSides reports whether the book has at least one ask and one bid.
func (b OrderBook) HasBothSides() bool {
	return len(b.Asks) > 0 && len(b.Bids) > 0
}

// MidPrice returns the average of the best ask and best bid, or 0 when
// either side is empty.
func (b OrderBook) MidPrice() float64 {
	if !b.HasBothSides() {
		return 0
	}
	return (b.Asks[0].Price + b.Bids[0].Price) / 2
}

// BBO is the top of book for one instrument at a point in time.
type BBO struct {
	Exchange  string     `json:"exchange"`
	Symbol    string     `json:"symbol"`
	BestBid   PriceLevel `json:"best_bid"`
	BestAsk   PriceLevel `json:"best_ask"`
	MidPrice  float64    `json:"mid_price"`
	Timestamp time.Time  `json:"timestamp"`
}
