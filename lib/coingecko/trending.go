package coingecko

import (
	"context"
)

// TrendingItem describes a trending coin.
type TrendingItem struct {
	ID            string  `json:"id"`
	CoinID        int     `json:"coin_id,omitempty"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	MarketCapRank int     `json:"market_cap_rank"`
	Thumb         string  `json:"thumb,omitempty"`
	Small         string  `json:"small,omitempty"`
	Large         string  `json:"large,omitempty"`
	Slug          string  `json:"slug,omitempty"`
	PriceBTC      float64 `json:"price_btc,omitempty"`
	Score         int     `json:"score,omitempty"`
}

// TrendingCoin wraps an item the way the API does.
type TrendingCoin struct {
	Item TrendingItem `json:"item"`
}

// TrendingResponse is the payload of /search/trending. Only the coins are kept.
type TrendingResponse struct {
	Coins []TrendingCoin `json:"coins"`
}

// Trending requests the coins most searched in the last 24 hours.
func (c *Client) Trending(ctx context.Context) (TrendingResponse, error) {
	var res TrendingResponse
	err := c.get(ctx, "/search/trending", nil, &res)

	return res, err
}
