// Package book maintains an L2 order book for a single instrument.
//
// A Book is seeded from a full-depth snapshot and mutated by incremental
// depth updates. It keeps both sides in price order at all times, so
// top-of-book and depth queries never sort. The Book is intentionally
// unsynchronized: it is owned by exactly one feed goroutine and every
// mutation is a short synchronous call.
package book

import (
	"math"

	"github.com/tidwall/btree"
)

// Level is a single price level: the aggregate resting quantity at one price.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Book holds the current best-known state of the price ladder.
//
// Prices are normalized to fixed-point integer keys at a configured number
// of decimal places so that levels from string-formatted venue payloads
// compare exactly.
type Book struct {
	bids *btree.Map[int64, float64]
	asks *btree.Map[int64, float64]

	precision int
	scale     float64

	lastUpdateID int64
	applied      int64
}

const mapDegree = 32

// New creates an empty book. precision is the number of decimal places
// used to normalize prices into comparable keys.
func New(precision int) *Book {
	return &Book{
		bids:      btree.NewMap[int64, float64](mapDegree),
		asks:      btree.NewMap[int64, float64](mapDegree),
		precision: precision,
		scale:     math.Pow10(precision),
	}
}

// Precision returns the number of decimal places used for price keys.
func (b *Book) Precision() int {
	return b.precision
}

func (b *Book) priceToKey(price float64) int64 {
	return int64(math.Round(price * b.scale))
}

func (b *Book) keyToPrice(key int64) float64 {
	return float64(key) / b.scale
}

// ApplySnapshot replaces the entire book with the given levels and resets
// the sequence marker to the snapshot's update id. Rows with size 0 are
// not inserted. The replace is all-or-nothing from the caller's view.
func (b *Book) ApplySnapshot(bids, asks []Level, lastUpdateID int64) {
	b.bids = btree.NewMap[int64, float64](mapDegree)
	b.asks = btree.NewMap[int64, float64](mapDegree)

	for _, lvl := range bids {
		if lvl.Size > 0 {
			b.bids.Set(b.priceToKey(lvl.Price), lvl.Size)
		}
	}
	for _, lvl := range asks {
		if lvl.Size > 0 {
			b.asks.Set(b.priceToKey(lvl.Price), lvl.Size)
		}
	}

	b.lastUpdateID = lastUpdateID
}

// Update upserts one price level, or removes it when size is 0.
// Removing an absent level is a no-op. The caller is responsible for
// having parsed and validated the numeric inputs.
func (b *Book) Update(price, size float64, bid bool) {
	side := b.asks
	if bid {
		side = b.bids
	}

	key := b.priceToKey(price)
	if size <= 0 {
		side.Delete(key)
	} else {
		side.Set(key, size)
	}

	b.applied++
}

// ApplyDelta applies every row of one incremental message in order and
// advances the sequence marker to the message's final update id. The
// caller must have already run the message through its continuity check.
func (b *Book) ApplyDelta(bids, asks []Level, finalUpdateID int64) {
	for _, lvl := range bids {
		b.Update(lvl.Price, lvl.Size, true)
	}
	for _, lvl := range asks {
		b.Update(lvl.Price, lvl.Size, false)
	}
	b.lastUpdateID = finalUpdateID
}

// LastUpdateID returns the update id of the most recently applied
// snapshot or delta.
func (b *Book) LastUpdateID() int64 {
	return b.lastUpdateID
}

// Applied returns the number of individual level mutations applied since
// the book was created.
func (b *Book) Applied() int64 {
	return b.applied
}

// Clear empties both sides and resets the sequence marker. The book must
// be re-seeded from a snapshot before further deltas are applied.
func (b *Book) Clear() {
	b.bids = btree.NewMap[int64, float64](mapDegree)
	b.asks = btree.NewMap[int64, float64](mapDegree)
	b.lastUpdateID = 0
}

// BidLen returns the number of bid levels.
func (b *Book) BidLen() int {
	return b.bids.Len()
}

// AskLen returns the number of ask levels.
func (b *Book) AskLen() int {
	return b.asks.Len()
}

// BestBid returns the highest bid level, or false if the side is empty.
func (b *Book) BestBid() (Level, bool) {
	key, size, ok := b.bids.Max()
	if !ok {
		return Level{}, false
	}
	return Level{Price: b.keyToPrice(key), Size: size}, true
}

// BestAsk returns the lowest ask level, or false if the side is empty.
func (b *Book) BestAsk() (Level, bool) {
	key, size, ok := b.asks.Min()
	if !ok {
		return Level{}, false
	}
	return Level{Price: b.keyToPrice(key), Size: size}, true
}

// Spread returns best ask minus best bid. It is defined only when both
// sides are non-empty.
func (b *Book) Spread() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// MidPrice returns the midpoint between best bid and best ask. It is
// defined only when both sides are non-empty.
func (b *Book) MidPrice() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// Depth returns up to n levels per side, best price first. A side with
// fewer than n levels is returned in full; an empty book yields empty
// slices. Pass n <= 0 for the full depth.
func (b *Book) Depth(n int) (bids, asks []Level) {
	if n <= 0 {
		n = b.bids.Len() + b.asks.Len()
	}

	bids = make([]Level, 0, min(n, b.bids.Len()))
	b.bids.Reverse(func(key int64, size float64) bool {
		bids = append(bids, Level{Price: b.keyToPrice(key), Size: size})
		return len(bids) < n
	})

	asks = make([]Level, 0, min(n, b.asks.Len()))
	b.asks.Scan(func(key int64, size float64) bool {
		asks = append(asks, Level{Price: b.keyToPrice(key), Size: size})
		return len(asks) < n
	})

	return bids, asks
}
