package poller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/cryptowallet/lib/price/types"
)

var captured = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func pricesHandler(body string, source types.Source) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PricesPath {
			rw.WriteHeader(http.StatusNotFound)

			return
		}

		rw.Header().Set(types.HeaderSource, string(source))
		rw.Header().Set(types.HeaderCapturedAt, captured.Format(time.RFC3339Nano))
		_, _ = io.WriteString(rw, body)
	}
}

func TestRefresh(t *testing.T) {
	ts := httptest.NewServer(pricesHandler(
		`{"BTC":{"price":43250.126,"change24h":2.456,"marketCap":850000000000.4,"volume":25000000000.6},`+
			`"DOGE":{"price":0.082345,"change24h":-3.2,"marketCap":12000000000,"volume":650000000}}`,
		types.SourceCache))
	defer ts.Close()

	now := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)

	var updates []State

	p := New(ts.URL+"/", WithClock(func() time.Time { return now }), OnUpdate(func(s State) {
		updates = append(updates, s)
	}))
	assert.Equal(t, StatusConnecting, p.State().Status)

	require.NoError(t, p.Refresh(context.Background()))

	s := p.State()
	assert.Equal(t, StatusConnected, s.Status)
	assert.Equal(t, types.SourceCache, s.Source)
	assert.True(t, captured.Equal(s.CapturedAt))
	assert.Equal(t, now, s.LastUpdated)
	assert.NoError(t, s.Err)
	assert.False(t, s.UsingFallback())
	assert.Equal(t, types.QuoteSet{
		"BTC":  {Price: 43250.13, Change24h: 2.46, MarketCap: 850000000000, Volume: 25000000001},
		"DOGE": {Price: 0.0823, Change24h: -3.2, MarketCap: 12000000000, Volume: 650000000},
	}, s.Prices)
	assert.Len(t, updates, 1)
}

func TestRefreshFallbackSource(t *testing.T) {
	ts := httptest.NewServer(pricesHandler(`{"ETH":{"price":2580}}`, types.SourceFallback))
	defer ts.Close()

	p := New(ts.URL)
	require.NoError(t, p.Refresh(context.Background()))
	assert.True(t, p.State().UsingFallback())
}

func TestRefreshErrors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
		err  error
	}{
		{"status", func(rw http.ResponseWriter, _ *http.Request) { rw.WriteHeader(http.StatusInternalServerError) }, ErrStatus},
		{"empty", pricesHandler(`{}`, types.SourceLive), ErrEmpty},
		{"malformed", pricesHandler(`[1,2`, types.SourceLive), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.h)
			defer ts.Close()

			p := New(ts.URL)
			err := p.Refresh(context.Background())
			require.Error(t, err)

			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}

			s := p.State()
			assert.Equal(t, StatusDisconnected, s.Status)
			assert.Error(t, s.Err)
			assert.True(t, s.UsingFallback())
		})
	}
}

func TestRefreshKeepsPricesOnError(t *testing.T) {
	var fail atomic.Bool

	ok := pricesHandler(`{"ETH":{"price":2580}}`, types.SourceLive)
	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			rw.WriteHeader(http.StatusTooManyRequests)

			return
		}

		ok(rw, r)
	}))
	defer ts.Close()

	p := New(ts.URL)
	require.NoError(t, p.Refresh(context.Background()))

	fail.Store(true)
	require.Error(t, p.Refresh(context.Background()))

	s := p.State()
	assert.Equal(t, StatusDisconnected, s.Status)
	assert.Equal(t, 2580.0, s.Prices["ETH"].Price)
}

// clientFunc is an HTTPClient that ignores cancellation, so late responses do arrive.
type clientFunc func(*http.Request) (*http.Response, error)

func (f clientFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func response(body string) *http.Response {
	h := http.Header{}
	h.Set(types.HeaderSource, string(types.SourceLive))

	return &http.Response{StatusCode: http.StatusOK, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func TestLateResponseDiscarded(t *testing.T) {
	var calls atomic.Int32

	started, release := make(chan struct{}), make(chan struct{})

	p := New("http://wallet", WithHTTPClient(clientFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release

			return response(`{"BTC":{"price":1000}}`), nil
		}

		return response(`{"BTC":{"price":2000}}`), nil
	})))

	first := make(chan error, 1)

	go func() { first <- p.Refresh(context.Background()) }()

	<-started
	require.NoError(t, p.Refresh(context.Background()))
	close(release)

	assert.ErrorIs(t, <-first, ErrStale)
	assert.Equal(t, 2000.0, p.State().Prices["BTC"].Price)
}

func TestNewRequestCancelsInFlight(t *testing.T) {
	var calls atomic.Int32

	started := make(chan struct{})
	cancelled := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(started)
			<-r.Context().Done()
			close(cancelled)

			return
		}

		pricesHandler(`{"SOL":{"price":98.5}}`, types.SourceLive)(rw, r)
	}))
	defer ts.Close()

	p := New(ts.URL)
	first := make(chan error, 1)

	go func() { first <- p.Refresh(context.Background()) }()

	<-started
	require.NoError(t, p.Refresh(context.Background()))

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in flight request was not cancelled")
	}

	assert.ErrorIs(t, <-first, ErrStale)
	assert.Equal(t, StatusConnected, p.State().Status)
}

func TestRun(t *testing.T) {
	var calls atomic.Int32

	h := pricesHandler(`{"BTC":{"price":43250}}`, types.SourceLive)
	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(rw, r)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	p := New(ts.URL, WithInterval(20*time.Millisecond))
	err := p.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	assert.Equal(t, 43250.0, p.State().Prices["BTC"].Price)
}

func TestRunServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := New(ts.URL, WithInterval(10*time.Millisecond))
	assert.Error(t, p.Run(ctx))
	assert.Equal(t, StatusDisconnected, p.State().Status)
}

func TestStream(t *testing.T) {
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StreamPath, r.URL.Path)

		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, m := range []types.StreamMessage{
			{Type: types.MsgPrices, Source: types.SourceLive, CapturedAt: captured, Prices: types.QuoteSet{"ETH": {Price: 2580.004}}},
			{Type: "ping"},
			{Type: types.MsgPrices, Source: types.SourceFallback, CapturedAt: captured, Prices: types.QuoteSet{"ETH": {Price: 2590.117}}},
		} {
			b, _ := json.Marshal(m)
			_ = conn.WriteMessage(websocket.TextMessage, b)
		}

		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer ts.Close()

	var got []State

	p := New(ts.URL, OnUpdate(func(s State) { got = append(got, s) }))

	err := p.Stream(context.Background())
	require.Error(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, 2580.0, got[0].Prices["ETH"].Price)
	assert.Equal(t, types.SourceLive, got[0].Source)
	assert.Equal(t, StatusConnected, got[0].Status)
	assert.Equal(t, 2590.12, got[1].Prices["ETH"].Price)
	assert.True(t, got[1].UsingFallback())
	// connection closed
	assert.Equal(t, StatusDisconnected, got[2].Status)
	assert.Equal(t, 2590.12, got[2].Prices["ETH"].Price)
}

func TestStreamCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New(ts.URL).Stream(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err)
}

func TestStreamDialError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	p := New(ts.URL)
	require.Error(t, p.Stream(context.Background()))
	assert.Equal(t, StatusDisconnected, p.State().Status)
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:3030"+StreamPath, New("http://localhost:3030").streamURL())
	assert.Equal(t, "wss://wallet.example"+StreamPath, New("https://wallet.example/").streamURL())
}

func TestRound(t *testing.T) {
	assert.Nil(t, Round(nil))
	assert.Equal(t, types.QuoteSet{"XRP": {Price: 0.6301, Change24h: -0.5}},
		Round(types.QuoteSet{"XRP": {Price: 0.63014, Change24h: -0.499}}))
}
