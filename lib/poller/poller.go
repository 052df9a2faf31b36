// Package poller implements a client of the wallet price endpoints. It keeps the last quote set received, when it
// was received, the quality reported by the server and the connection status.
//
// Prices are obtained either by polling GET /api/crypto-prices on an interval (Run) or by subscribing to the
// websocket stream at /api/crypto-prices/stream (Stream). A new poll cancels the one in flight, and a generation
// counter discards any response that arrives after a newer request was issued.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/price/types"
)

// Endpoints of the wallet service.
const (
	PricesPath = "/api/crypto-prices"
	StreamPath = "/api/crypto-prices/stream"
)

// DefaultInterval is the polling interval.
const DefaultInterval = time.Hour

// Status of the connection to the wallet service.
type Status string

// Connection statuses.
const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Errors reported by the poller.
var (
	ErrStale  = errors.New("response superseded by a newer request")
	ErrStatus = errors.New("unexpected http status")
	ErrEmpty  = errors.New("invalid data format received")
)

// HTTPClient executes http requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// State is what the poller knows about prices.
type State struct {
	Prices      types.QuoteSet
	Source      types.Source // as reported by the server
	CapturedAt  time.Time    // when the server captured the underlying data
	LastUpdated time.Time    // when the poller received Prices
	Status      Status
	Err         error // last error, nil after a successful update
}

// UsingFallback reports whether the prices shown are not backed by real market data, either because the server
// said so or because it cannot be reached.
func (s State) UsingFallback() bool {
	return s.Source == types.SourceFallback || s.Status == StatusDisconnected
}

// Poller fetches prices from a wallet service.
type Poller struct {
	base     string
	client   HTTPClient
	dialer   *websocket.Dialer
	interval time.Duration
	now      func() time.Time
	onUpdate func(State)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
}

// Option configures a Poller.
type Option func(*Poller)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c HTTPClient) Option {
	return func(p *Poller) { p.client = c }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(p *Poller) { p.dialer = d }
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// OnUpdate registers fn to be called with the new state after every change. fn must not block.
func OnUpdate(fn func(State)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

// New returns a poller for the wallet service at baseURL (ie. http://localhost:3030).
func New(baseURL string, opts ...Option) *Poller {
	p := &Poller{
		base:     strings.TrimRight(baseURL, "/"),
		client:   http.DefaultClient,
		dialer:   websocket.DefaultDialer,
		interval: DefaultInterval,
		now:      time.Now,
		state:    State{Status: StatusConnecting},
	}
	for _, o := range opts {
		o(p)
	}

	return p
}

// State returns a copy of the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	s.Prices = s.Prices.Clone()

	return s
}

// begin starts a new generation, cancelling the request of the previous one.
func (p *Poller) begin(ctx context.Context) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	p.gen++

	var rctx context.Context
	rctx, p.cancel = context.WithCancel(ctx)

	return rctx, p.gen
}

// end applies the outcome of generation gen unless a newer one has begun, in which case ErrStale is returned.
func (p *Poller) end(gen uint64, msg types.StreamMessage, err error) error {
	p.mu.Lock()

	if gen != p.gen {
		p.mu.Unlock()

		return ErrStale
	}

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	if err != nil {
		p.state.Status = StatusDisconnected
		p.state.Err = err
	} else {
		p.state = State{
			Prices:      Round(msg.Prices),
			Source:      msg.Source,
			CapturedAt:  msg.CapturedAt,
			LastUpdated: p.now(),
			Status:      StatusConnected,
		}
	}

	s := p.state
	s.Prices = s.Prices.Clone()
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(s)
	}

	return err
}

// Refresh fetches the prices once. It returns ErrStale if another request was issued while this one was in flight;
// the state is then left to the newer request.
func (p *Poller) Refresh(ctx context.Context) error {
	rctx, gen := p.begin(ctx)
	msg, err := p.fetch(rctx)

	return p.end(gen, msg, err)
}

func (p *Poller) fetch(ctx context.Context) (types.StreamMessage, error) {
	var msg types.StreamMessage

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+PricesPath, nil)
	if err != nil {
		return msg, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return msg, fmt.Errorf("requesting prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return msg, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	if err = json.NewDecoder(resp.Body).Decode(&msg.Prices); err != nil {
		return msg, fmt.Errorf("decoding prices: %w", err)
	}

	if len(msg.Prices) == 0 {
		return msg, ErrEmpty
	}

	msg.Type = types.MsgPrices
	msg.Source = types.Source(resp.Header.Get(types.HeaderSource))

	if at := resp.Header.Get(types.HeaderCapturedAt); at != "" {
		if msg.CapturedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			log.Printf("Ignoring bad %s header %q: %v", types.HeaderCapturedAt, at, err)
		}
	}

	return msg, nil
}

// Run polls the prices now and then on every interval until ctx is done. Each poll cancels the previous one if still
// in flight. Failed polls are logged and reflected in the state. Run returns ctx.Err() once every poll has ended.
func (p *Poller) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	poll := func() {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
				log.Printf("Error polling prices: %v", err)
			}
		}()
	}

	t := time.NewTicker(p.interval)
	defer t.Stop()

	poll()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()

			return ctx.Err()
		case <-t.C:
			poll()
		}
	}
}

func (p *Poller) streamURL() string {
	u := p.base + StreamPath

	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}

	return u
}

// Stream subscribes to the price stream and applies every message received until ctx is done or the connection
// breaks. It returns ctx.Err() when cancelled and the connection error otherwise.
func (p *Poller) Stream(ctx context.Context) error {
	rctx, gen := p.begin(ctx)

	conn, resp, err := p.dialer.DialContext(rctx, p.streamURL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err != nil {
		err = fmt.Errorf("dialing price stream: %w", err)
		_ = p.end(gen, types.StreamMessage{}, err)

		return err
	}
	defer conn.Close()

	go func() {
		<-rctx.Done()
		conn.Close()
	}()

	for {
		var msg types.StreamMessage
		if err = conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				err = fmt.Errorf("reading price stream: %w", err)
			}

			_ = p.end(gen, types.StreamMessage{}, err)

			return err
		}

		if msg.Type != types.MsgPrices || len(msg.Prices) == 0 {
			continue
		}

		if err = p.apply(gen, msg); err != nil {
			return err
		}
	}
}

// apply stores a stream message without ending generation gen.
func (p *Poller) apply(gen uint64, msg types.StreamMessage) error {
	p.mu.Lock()

	if gen != p.gen {
		p.mu.Unlock()

		return ErrStale
	}

	p.state = State{
		Prices:      Round(msg.Prices),
		Source:      msg.Source,
		CapturedAt:  msg.CapturedAt,
		LastUpdated: p.now(),
		Status:      StatusConnected,
	}

	s := p.state
	s.Prices = s.Prices.Clone()
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(s)
	}

	return nil
}

// Round rounds quotes for display: prices to 2 decimals, or 4 below 1 USD, changes to 2 decimals and market cap and
// volume to units.
func Round(qs types.QuoteSet) types.QuoteSet {
	if qs == nil {
		return nil
	}

	out := make(types.QuoteSet, len(qs))

	for s, q := range qs {
		places := int32(2)
		if q.Price < 1 {
			places = 4
		}

		out[s] = types.Quote{
			Price:     round(q.Price, places),
			Change24h: round(q.Change24h, 2),
			MarketCap: round(q.MarketCap, 0),
			Volume:    round(q.Volume, 0),
		}
	}

	return out
}

func round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}
