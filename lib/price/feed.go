package price

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/monitor"
	"github.com/tarancss/cryptowallet/lib/price/types"
)

// Result is the answer of the feed to one request.
type Result struct {
	Quotes     types.QuoteSet
	Source     types.Source
	CapturedAt time.Time // when the underlying snapshot was captured
}

// Feed decides, per request, between fresh cached data, a new upstream fetch, stale cached data and the fallback
// table. Only real fetches and the fallback table are ever stored; simulated movement is applied on the way out.
type Feed struct {
	cache  Cache
	up     Upstream
	sim    *Simulator
	basket *Basket
	now    func() time.Time
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithFeedClock replaces time.Now for the capture time of new snapshots.
func WithFeedClock(now func() time.Time) FeedOption {
	return func(f *Feed) {
		f.now = now
	}
}

// NewFeed returns a Feed over the given collaborators.
func NewFeed(cache Cache, up Upstream, sim *Simulator, basket *Basket, opts ...FeedOption) *Feed {
	f := &Feed{cache: cache, up: up, sim: sim, basket: basket, now: time.Now}
	for _, o := range opts {
		o(f)
	}

	return f
}

// Prices always returns a quote set:
//
// - a fresh cached snapshot is served with simulated movement,
//
// - otherwise upstream is asked; a successful answer is stored and served unperturbed,
//
// - if upstream fails the stale snapshot, or the fallback table when nothing was ever stored, is served with
// simulated movement. The fallback table is stored so later requests see it as cached.
func (f *Feed) Prices(ctx context.Context) Result {
	res := f.prices(ctx)
	monitor.PriceRequests.WithLabelValues(string(res.Source)).Inc()

	return res
}

func (f *Feed) prices(ctx context.Context) Result {
	if f.cache.IsFresh(ctx) {
		if snap, ok := f.cache.Get(ctx); ok {
			return f.simulated(snap)
		}
	}

	qs, err := f.up.Fetch(ctx, f.basket.Symbols())
	if err == nil {
		snap := types.Snapshot{Quotes: qs, CapturedAt: f.now(), Source: types.SourceLive}
		f.cache.Set(ctx, snap)

		log.WithField("symbols", len(qs)).Debug("price feed refreshed from upstream")

		return Result{Quotes: qs.Clone(), Source: types.SourceLive, CapturedAt: snap.CapturedAt}
	}

	snap, ok := f.cache.Get(ctx)
	if !ok {
		snap = types.Snapshot{Quotes: Fallback(), CapturedAt: f.now(), Source: types.SourceFallback}
		f.cache.Set(ctx, snap)
	}

	log.WithError(err).WithField("serving", snap.Source).Warn("upstream price fetch failed")

	return f.simulated(snap)
}

func (f *Feed) simulated(snap types.Snapshot) Result {
	src := types.SourceCache
	if snap.Source == types.SourceFallback {
		src = types.SourceFallback
	}

	return Result{Quotes: f.sim.Simulate(snap.Quotes), Source: src, CapturedAt: snap.CapturedAt}
}

// Price returns a real USD price for symbol to execute a trade with: the fresh live snapshot when available,
// otherwise a single upstream lookup. Simulated and fallback prices are never used.
func (f *Feed) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)

	if f.cache.IsFresh(ctx) {
		if snap, ok := f.cache.Get(ctx); ok && snap.Source == types.SourceLive {
			if q, ok := snap.Quotes[symbol]; ok && q.Price > 0 {
				return q.Price, nil
			}
		}
	}

	qs, err := f.up.Fetch(ctx, []string{symbol})
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %v", types.ErrNoPrice, symbol, err)
	}

	q, ok := qs[symbol]
	if !ok || q.Price <= 0 {
		return 0, fmt.Errorf("%w for %s", types.ErrNoPrice, symbol)
	}

	return q.Price, nil
}

// Basket returns the tracked assets.
func (f *Feed) Basket() *Basket {
	return f.basket
}
