package price

import (
	"context"
	"strings"

	"github.com/tarancss/cryptowallet/lib/coingecko"
	"github.com/tarancss/cryptowallet/lib/monitor"
	"github.com/tarancss/cryptowallet/lib/price/types"
)

// Upstream fetches current quotes for the given tickers.
type Upstream interface {
	Fetch(ctx context.Context, symbols []string) (types.QuoteSet, error)
}

// MarketData is the part of the CoinGecko client used by the feed.
type MarketData interface {
	SimplePrices(ctx context.Context, ids []string) (map[string]coingecko.SimplePrice, error)
	Trending(ctx context.Context) (coingecko.TrendingResponse, error)
}

// CoinGecko adapts a CoinGecko client to Upstream.
type CoinGecko struct {
	md     MarketData
	basket *Basket
}

// NewCoinGecko returns an Upstream backed by md that translates tickers with basket.
func NewCoinGecko(md MarketData, basket *Basket) *CoinGecko {
	return &CoinGecko{md: md, basket: basket}
}

// Fetch requests all symbols in a single upstream call and normalizes the answer.
func (c *CoinGecko) Fetch(ctx context.Context, symbols []string) (types.QuoteSet, error) {
	ids := make([]string, len(symbols))
	for i, s := range symbols {
		ids[i] = c.basket.ID(strings.ToUpper(s))
	}

	raw, err := c.md.SimplePrices(ctx, ids)
	monitor.Upstream("simple_price", err)

	if err != nil {
		return nil, err
	}

	return c.basket.Normalize(symbols, raw)
}
