// Package price implements the wallet price feed: the basket of tracked assets, the time windowed quote cache, the
// static fallback table, the movement simulator and the feed that combines them into one answer per request.
package price

import (
	"fmt"
	"strings"

	"github.com/tarancss/cryptowallet/lib/coingecko"
	"github.com/tarancss/cryptowallet/lib/config"
	"github.com/tarancss/cryptowallet/lib/price/types"
)

// Asset is a tracked ticker and its upstream identifier.
type Asset struct {
	Symbol string
	Name   string
	CoinID string
}

// Basket is the ordered set of tracked assets.
type Basket struct {
	assets []Asset
	bySym  map[string]Asset
	byID   map[string]string
}

// NewBasket builds a basket from the configured networks, keeping their order. Later duplicates of a symbol are
// ignored.
func NewBasket(nets []config.NetworkConfig) *Basket {
	b := &Basket{bySym: make(map[string]Asset), byID: make(map[string]string)}

	for _, n := range nets {
		sym := strings.ToUpper(n.Symbol)
		if _, ok := b.bySym[sym]; ok || sym == "" {
			continue
		}

		a := Asset{Symbol: sym, Name: n.Name, CoinID: n.CoinID}
		if a.CoinID == "" {
			a.CoinID = strings.ToLower(sym)
		}

		if a.Name == "" {
			a.Name = sym
		}

		b.assets = append(b.assets, a)
		b.bySym[sym] = a
		b.byID[a.CoinID] = sym
	}

	return b
}

// DefaultBasket returns the ten assets tracked by default.
func DefaultBasket() *Basket {
	return NewBasket(config.NetworksDefault)
}

// Symbols returns the tickers in basket order.
func (b *Basket) Symbols() []string {
	s := make([]string, len(b.assets))
	for i, a := range b.assets {
		s[i] = a.Symbol
	}

	return s
}

// Contains reports whether symbol is tracked.
func (b *Basket) Contains(symbol string) bool {
	_, ok := b.bySym[strings.ToUpper(symbol)]

	return ok
}

// ID returns the upstream identifier of symbol. Untracked symbols map to their lowercase form.
func (b *Basket) ID(symbol string) string {
	if a, ok := b.bySym[strings.ToUpper(symbol)]; ok {
		return a.CoinID
	}

	return strings.ToLower(symbol)
}

// Name returns the display name of symbol, or symbol itself when untracked.
func (b *Basket) Name(symbol string) string {
	if a, ok := b.bySym[strings.ToUpper(symbol)]; ok {
		return a.Name
	}

	return symbol
}

// Normalize maps an upstream /simple/price answer back to tickers for the requested symbols. Symbols missing from
// raw or with a non positive price are dropped; if none survives ErrNoQuotes is returned.
func (b *Basket) Normalize(symbols []string, raw map[string]coingecko.SimplePrice) (types.QuoteSet, error) {
	qs := make(types.QuoteSet, len(symbols))

	for _, sym := range symbols {
		sp, ok := raw[b.ID(sym)]
		if !ok || sp.USD <= 0 {
			continue
		}

		qs[strings.ToUpper(sym)] = types.Quote{
			Price:     sp.USD,
			Change24h: sp.USD24hChange,
			MarketCap: sp.USDMarketCap,
			Volume:    sp.USD24hVol,
		}
	}

	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: upstream returned none of %v", types.ErrNoQuotes, symbols)
	}

	return qs, nil
}
