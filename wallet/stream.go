package wallet

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/monitor"
	"github.com/tarancss/cryptowallet/lib/price/types"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 // subscribers only send control frames
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is a websocket subscriber of the price stream.
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan types.StreamMessage
}

// hub pushes the feed prices to every subscriber on an interval. Prices are only read while someone listens, one
// read at a time and outside the hub loop, so a slow upstream never delays subscriptions.
type hub struct {
	feed     PriceFeed
	interval time.Duration
	timeout  time.Duration // for one feed read
	now      func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	fetching bool
	updates  chan types.StreamMessage

	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	quit       chan struct{}
	done       chan struct{}
}

func newHub(feed PriceFeed, interval, timeout time.Duration) *hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &hub{
		feed:       feed,
		interval:   interval,
		timeout:    timeout,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		updates:    make(chan types.StreamMessage, 1),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *hub) message() types.StreamMessage {
	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	res := h.feed.Prices(ctx)

	return types.StreamMessage{
		Type:       types.MsgPrices,
		Source:     res.Source,
		CapturedAt: res.CapturedAt.UTC(),
		Timestamp:  h.now().UTC(),
		Prices:     res.Quotes,
	}
}

// fetch starts reading the feed unless a read is in flight. The message arrives on updates.
func (h *hub) fetch() {
	if h.fetching {
		return
	}

	h.fetching = true

	go func() {
		h.updates <- h.message()
	}()
}

// drop removes c, closing its send channel so its writer ends the connection.
func (h *hub) drop(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		monitor.StreamClients.Dec()
	}
}

// run is the hub loop. It ends when stop is called, disconnecting every client.
func (h *hub) run() {
	t := time.NewTicker(h.interval)

	defer func() {
		t.Stop()
		h.cancel()

		for c := range h.clients {
			h.drop(c)
		}

		close(h.done)
	}()

	for {
		select {
		case <-h.quit:
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			monitor.StreamClients.Inc()
			// new subscribers get the next read right away
			h.fetch()
		case c := <-h.unregister:
			h.drop(c)
		case <-t.C:
			if len(h.clients) > 0 {
				h.fetch()
			}
		case m := <-h.updates:
			h.fetching = false

			for c := range h.clients {
				select {
				case c.send <- m:
				default:
					// too slow, disconnect so the hub never blocks
					log.Printf("Dropping slow price stream client %s", c.conn.RemoteAddr())
					h.drop(c)
				}
			}
		}
	}
}

// stop ends the hub loop and waits for it.
func (h *hub) stop() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
	<-h.done
}

// readPump discards client messages and watches the connection liveness.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}

		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Price stream read error: %v", err)
			}

			return
		}
	}
}

// writePump sends the hub messages and keeps the connection alive with pings.
func (c *client) writePump() {
	t := time.NewTicker(pingPeriod)

	defer func() {
		t.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))

				return
			}

			if err := c.conn.WriteJSON(m); err != nil {
				log.Printf("Price stream write error: %v", err)

				return
			}
		case <-t.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// streamHandler upgrades the request to a websocket subscribed to the price stream.
func (w *Wallet) streamHandler(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)

	log.Printf("httpreq from %v %s stream err:%v", r.RemoteAddr, r.RequestURI, err)

	if err != nil {
		return
	}

	c := &client{hub: w.hub, conn: conn, send: make(chan types.StreamMessage, sendBuffer)}

	select {
	case w.hub.register <- c:
	case <-w.hub.done:
		conn.Close()

		return
	}

	go c.writePump()
	go c.readPump()
}
