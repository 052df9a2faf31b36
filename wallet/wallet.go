// Package wallet implements the wallet microservice.
//
// This microservice implements a RESTful API for a demo crypto wallet: market prices with simulated movement, the
// trending coins, simulated buys and sends, card and UPI deposits through the payment gateway and the gateway webhook.
// Prices are also pushed to websocket subscribers.
package wallet

import (
	"context"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/confirmer"
	"github.com/tarancss/cryptowallet/lib/block"
	"github.com/tarancss/cryptowallet/lib/block/types"
	"github.com/tarancss/cryptowallet/lib/coingecko"
	"github.com/tarancss/cryptowallet/lib/msg"
	"github.com/tarancss/cryptowallet/lib/payment"
	"github.com/tarancss/cryptowallet/lib/price"
	"github.com/tarancss/cryptowallet/lib/store"
	"github.com/tarancss/cryptowallet/lib/store/db"
)

// PriceFeed serves market prices.
type PriceFeed interface {
	Prices(ctx context.Context) price.Result
	Price(ctx context.Context, symbol string) (float64, error)
}

// NewsFeed serves the trending coins.
type NewsFeed interface {
	Coins(ctx context.Context) coingecko.TrendingResponse
}

// WebhookHandler verifies and processes payment gateway notifications.
type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, signature string) (string, error)
}

// Settings are the tunables of the wallet service. UpstreamTimeout is the longest a market data request may take;
// responses are allowed that long plus some headroom to be written. RequestTimeout bounds reading requests.
type Settings struct {
	BuyMinUSD       float64
	BuyFeeRate      float64
	DepositMin      float64
	StreamInterval  time.Duration
	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration
}

// Services are the collaborators of the wallet. Broker, Gateway and DB may be nil.
type Services struct {
	Feed      PriceFeed
	News      NewsFeed
	Chains    map[string]block.Chain
	Confirmer *confirmer.Confirmer
	Broker    msg.MsgBroker
	Gateway   payment.Gateway
	Webhook   WebhookHandler
	DBType    string
	DB        store.DB
}

// Wallet contains the data necessary to deliver the service
type Wallet struct {
	set Settings
	Services

	hub *hub

	s  *http.Server  // http server
	ss *http.Server  // https server
	sc chan struct{} // http server channel used for graceful shutdowns

	stop sync.Once
}

// New returns a pointer to a new Wallet service. The price stream starts right away.
func New(set Settings, svc Services) *Wallet {
	if set.StreamInterval <= 0 {
		set.StreamInterval = 3 * time.Second
	}

	if set.UpstreamTimeout <= 0 {
		set.UpstreamTimeout = timeout * time.Second
	}

	if set.RequestTimeout <= 0 {
		set.RequestTimeout = timeout * time.Second
	}

	if svc.Chains == nil {
		svc.Chains = map[string]block.Chain{}
	}

	if svc.Confirmer == nil {
		svc.Confirmer = confirmer.New(nil, nil, confirmer.DefaultDelay)
	}

	w := &Wallet{set: set, Services: svc, sc: make(chan struct{})}
	// the feed may still read its cache after upstream gave up
	w.hub = newHub(svc.Feed, set.StreamInterval, set.UpstreamTimeout+writeHeadroom)

	go w.hub.run()

	return w
}

// Stop shuts down the http servers implementing the RESTful API and the price stream, cancels pending confirmations
// and closes gracefully the connections to message broker and database.
func (w *Wallet) Stop() {
	w.stop.Do(w.stopWallet)
}

func (w *Wallet) stopWallet() {
	var err error
	// shutdown http server
	if w.s != nil {
		if err = w.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown:%v", err)
		}
	}

	if w.ss != nil {
		if err = w.ss.Shutdown(context.Background()); err != nil {
			log.Printf("Error in https server shutdown:%v", err)
		}
	}

	close(w.sc) // close server channels to indicate shutdowns have finished

	w.hub.stop()
	w.Confirmer.Stop()
	// close message broker
	if w.Broker != nil {
		if err = w.Broker.Close(); err != nil {
			log.Printf("Error closing message broker:%v", err)
		}
	}
	// close database
	if w.DB != nil {
		err = db.Close(w.DBType, w.DB)
		log.Printf("Disconnecting %v database, err:%v", w.DBType, err)
	}
}

// ManageEvents starts go routines to consume the message broker queues for confirmation events sent by the
// confirmer service. For each network, two channels are opened, one for transaction events, and one for errors.
func (w *Wallet) ManageEvents() error {
	if w.Broker == nil {
		return nil
	}
	// for each chain establish a process to read events from the broker queues
	for net := range w.Chains {
		var mut *sync.Mutex = new(sync.Mutex)
		mut.Lock()

		eveCh, errCh, err := w.Broker.GetEvents(net, mut)
		if err != nil {
			return err
		}

		// launch event channel reader
		go func(netName string) {
			log.Printf("[%s] Start listening to confirmer event channel", netName)

			for eve := range eveCh {
				logConfirmed(eve)
				mut.Unlock()
			}

			log.Printf("[%s] Stop listening to confirmer event channel", netName)
		}(net)

		// launch error channel reader
		go func(netName string) {
			log.Printf("[%s] Start listening to err channel", netName)

			for e := range errCh {
				log.Printf("[%s] Received error %+v", netName, e)
			}

			log.Printf("[%s] Stop listening to err channel", netName)
		}(net)
	}

	return nil
}

// submit hands a pending send over to be confirmed: through the broker to the confirmer service when there is one
// listening on its network, in process otherwise.
func (w *Wallet) submit(tx types.Trans) {
	if _, ok := w.Chains[tx.Symbol]; ok && w.Broker != nil {
		err := w.Broker.SendTx(tx.Symbol, tx)
		if err == nil {
			return
		}

		log.Printf("[%s] Error publishing transaction %s, confirming in process: %v", tx.Symbol, tx.TxHash, err)
	}

	w.Confirmer.Schedule(tx, logConfirmed)
}

// logConfirmed only logs: balances are not kept by the service.
func logConfirmed(tx types.Trans) {
	log.WithFields(log.Fields{"id": tx.ID, "symbol": tx.Symbol, "txHash": tx.TxHash, "status": tx.Status}).
		Info("Transaction confirmation received")
}
