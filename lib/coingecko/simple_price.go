package coingecko

import (
	"context"
	"net/url"
	"strings"
)

// SimplePrice is the USD market data returned by /simple/price for one coin id. Fields the API omits are zero.
type SimplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USDMarketCap float64 `json:"usd_market_cap"`
	USD24hVol    float64 `json:"usd_24h_vol"`
}

// SimplePrices requests the USD price, 24h change, market cap and 24h volume of the given coin ids in one call. The
// result is keyed by coin id and only holds the ids the API knows.
func (c *Client) SimplePrices(ctx context.Context, ids []string) (map[string]SimplePrice, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")

	res := map[string]SimplePrice{}
	if err := c.get(ctx, "/simple/price", q, &res); err != nil {
		return nil, err
	}

	return res, nil
}
