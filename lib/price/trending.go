package price

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/tarancss/cryptowallet/lib/coingecko"
	"github.com/tarancss/cryptowallet/lib/monitor"
)

var trendingFallback = []coingecko.TrendingCoin{
	{Item: coingecko.TrendingItem{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", MarketCapRank: 1}},
	{Item: coingecko.TrendingItem{ID: "ethereum", Name: "Ethereum", Symbol: "eth", MarketCapRank: 2}},
	{Item: coingecko.TrendingItem{ID: "solana", Name: "Solana", Symbol: "sol", MarketCapRank: 5}},
	{Item: coingecko.TrendingItem{ID: "cardano", Name: "Cardano", Symbol: "ada", MarketCapRank: 8}},
	{Item: coingecko.TrendingItem{ID: "polygon", Name: "Polygon", Symbol: "matic", MarketCapRank: 15}},
}

// TrendingFallback returns the coins served when the trending list cannot be obtained.
func TrendingFallback() coingecko.TrendingResponse {
	coins := make([]coingecko.TrendingCoin, len(trendingFallback))
	copy(coins, trendingFallback)

	return coingecko.TrendingResponse{Coins: coins}
}

// Trending memoizes the upstream trending coins for a TTL. Concurrent refreshes share one upstream request.
type Trending struct {
	md  MarketData
	ttl time.Duration
	now func() time.Time

	sf      singleflight.Group
	mu      sync.Mutex
	last    coingecko.TrendingResponse
	fetched time.Time
}

// NewTrending returns a Trending keeping answers for ttl.
func NewTrending(md MarketData, ttl time.Duration, opts ...CacheOption) *Trending {
	c := newClock(ttl, opts)

	return &Trending{md: md, ttl: c.ttl, now: c.now}
}

func (t *Trending) fresh() (coingecko.TrendingResponse, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, len(t.last.Coins) > 0 && t.now().Sub(t.fetched) < t.ttl
}

// Coins returns the memoized list while fresh, otherwise asks upstream. Failures or an empty answer fall back to the
// fixed list, which is not memoized so the next request retries.
func (t *Trending) Coins(ctx context.Context) coingecko.TrendingResponse {
	if res, ok := t.fresh(); ok {
		return res
	}

	// callers joining the refresh must not fail because the first one went away
	ctx = context.WithoutCancel(ctx)

	v, _, _ := t.sf.Do("trending", func() (any, error) {
		if res, ok := t.fresh(); ok {
			return res, nil
		}

		res, err := t.md.Trending(ctx)
		monitor.Upstream("trending", err)

		if err != nil || len(res.Coins) == 0 {
			log.WithError(err).Warn("trending coins unavailable, serving fallback")

			return TrendingFallback(), nil
		}

		t.mu.Lock()
		t.last, t.fetched = res, t.now()
		t.mu.Unlock()

		return res, nil
	})

	return v.(coingecko.TrendingResponse)
}
