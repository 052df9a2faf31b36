package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/cryptowallet/lib/holdings"
	"github.com/tarancss/cryptowallet/lib/poller"
	"github.com/tarancss/cryptowallet/lib/price/types"
)

func newWatch(t *testing.T) (*watch, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer

	return &watch{store: holdings.NewStore(filepath.Join(t.TempDir(), "h.json")), out: &out}, &out
}

func TestBuyAndSend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set(types.HeaderSource, string(types.SourceLive))
		_ = json.NewEncoder(rw).Encode(types.QuoteSet{"ETH": {Price: 2000}})
	}))
	defer ts.Close()

	w, out := newWatch(t)

	require.NoError(t, w.buy(context.Background(), poller.New(ts.URL), "eth", "200"))
	assert.Equal(t, "Bought 0.100000 ETH at $2000.00\n", out.String())

	hs, err := w.store.Load()
	require.NoError(t, err)
	assert.InDelta(t, 1.6, hs[1].Amount, 1e-9)

	assert.ErrorIs(t, w.buy(context.Background(), poller.New(ts.URL), "doge", "10"), holdings.ErrBadPrice)
	assert.ErrorIs(t, w.buy(context.Background(), poller.New(ts.URL), "eth", "ten"), ErrUsage)

	out.Reset()
	require.NoError(t, w.send("ada", "1000"))
	assert.Equal(t, "Sent 1000 ADA\n", out.String())

	hs, err = w.store.Load()
	require.NoError(t, err)
	assert.Len(t, hs, 2)

	assert.ErrorIs(t, w.send("btc", "1"), holdings.ErrInsufficient)
}

func TestPrint(t *testing.T) {
	w, out := newWatch(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	w.print(holdings.Defaults(), poller.State{
		Prices:      types.QuoteSet{"BTC": {Price: 50000, Change24h: 1.234}, "ETH": {Price: 2500}},
		Source:      types.SourceFallback,
		CapturedAt:  at,
		LastUpdated: at,
		Status:      poller.StatusConnected,
	})

	s := out.String()
	assert.Contains(t, s, "SYMBOL")
	assert.Contains(t, s, "1250.00")
	assert.Contains(t, s, "5000.00")
	assert.Contains(t, s, "(fallback prices)")
	assert.Contains(t, s, "captured:2026-01-02T03:04:05Z")

	// nothing to value before the first answer
	out.Reset()
	w.print(nil, poller.State{Status: poller.StatusDisconnected, Err: poller.ErrEmpty})
	assert.Equal(t, "disconnected: invalid data format received\n", out.String())
}
