// Package types common market data types.
package types

import (
	"errors"
	"sort"
	"time"
)

// Quote is the market data of one asset in USD.
type Quote struct {
	Price     float64 `json:"price" bson:"price"`
	Change24h float64 `json:"change24h" bson:"change24h"` // percentage points
	MarketCap float64 `json:"marketCap" bson:"marketCap"`
	Volume    float64 `json:"volume" bson:"volume"`
}

// QuoteSet maps an uppercase ticker (ie. BTC) to its quote.
type QuoteSet map[string]Quote

// Clone returns a copy of qs that can be modified without affecting qs.
func (qs QuoteSet) Clone() QuoteSet {
	if qs == nil {
		return nil
	}

	c := make(QuoteSet, len(qs))
	for k, v := range qs {
		c[k] = v
	}

	return c
}

// Symbols returns the tickers in qs sorted alphabetically.
func (qs QuoteSet) Symbols() []string {
	s := make([]string, 0, len(qs))
	for k := range qs {
		s = append(s, k)
	}

	sort.Strings(s)

	return s
}

// Source tells where the quotes served to a client come from.
type Source string

// Sources of quotes.
const (
	SourceLive     Source = "live"     // just fetched from upstream, unperturbed
	SourceCache    Source = "cache"    // simulated movement over a previously fetched snapshot
	SourceFallback Source = "fallback" // simulated movement over the static fallback table
)

// Snapshot is a QuoteSet with the instant it was captured and its origin. Only SourceLive and SourceFallback
// snapshots are stored.
type Snapshot struct {
	Quotes     QuoteSet  `json:"quotes" bson:"quotes"`
	CapturedAt time.Time `json:"capturedAt" bson:"capturedAt"`
	Source     Source    `json:"source" bson:"source"`
}

// IsZero reports whether s holds no quotes.
func (s Snapshot) IsZero() bool {
	return len(s.Quotes) == 0
}

// Errors for market data.
var (
	ErrNoQuotes  = errors.New("no usable quotes")
	ErrNoPrice   = errors.New("price not available")
	ErrBadSymbol = errors.New("unknown symbol")
)

// Headers of the price endpoint telling the Source and capture time (RFC 3339) of the body.
const (
	HeaderSource     = "X-Price-Source"
	HeaderCapturedAt = "X-Price-Captured-At"
)

// MsgPrices is the type of the messages pushed by the price stream.
const MsgPrices = "prices"

// StreamMessage is a price stream message.
type StreamMessage struct {
	Type       string    `json:"type"`
	Source     Source    `json:"source"`
	CapturedAt time.Time `json:"capturedAt"`
	Timestamp  time.Time `json:"timestamp"`
	Prices     QuoteSet  `json:"prices"`
}
