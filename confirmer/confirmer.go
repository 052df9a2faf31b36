// Package confirmer implements the confirmation microservice. Submitted sends are pending on their simulated network;
// after a fixed delay the confirmer marks them confirmed and reports it, either through a callback when running
// inside the wallet or as an event on the message broker when running as its own service.
package confirmer

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/block/types"
	"github.com/tarancss/cryptowallet/lib/monitor"
	"github.com/tarancss/cryptowallet/lib/msg"
)

// DefaultDelay is the time a simulated network takes to confirm a send.
const DefaultDelay = 30 * time.Second

// Confirmer implements a confirmer service.
type Confirmer struct {
	mb    msg.MsgBroker
	nets  []string
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer // pending confirmations by tx id
	stopped bool
	quit    chan struct{}
}

// New instantiates a new confirmer. mb may be nil when only Schedule is used.
func New(mb msg.MsgBroker, nets []string, delay time.Duration) *Confirmer {
	return &Confirmer{
		mb:     mb,
		nets:   nets,
		delay:  delay,
		timers: make(map[string]*time.Timer),
		quit:   make(chan struct{}),
	}
}

// Schedule calls done once with the confirmed version of tx after the confirmer delay. It returns false if the
// confirmer has been stopped.
func (c *Confirmer) Schedule(tx types.Trans, done func(types.Trans)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}

	key := tx.ID + tx.TxHash
	if _, ok := c.timers[key]; ok {
		log.Printf("[%s] Transaction %s already scheduled. Ignoring...", tx.Symbol, tx.TxHash)

		return true
	}

	c.timers[key] = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		delete(c.timers, key)
		c.mu.Unlock()

		tx.Status = types.TrxConfirmed
		tx.Confirmations = 1

		log.WithFields(log.Fields{"id": tx.ID, "symbol": tx.Symbol, "txHash": tx.TxHash}).Info("Transaction confirmed")
		monitor.Transactions.WithLabelValues(types.TypeSend, types.TrxConfirmed).Inc()

		if done != nil {
			done(tx)
		}
	})

	return true
}

// Pending returns the number of scheduled confirmations.
func (c *Confirmer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

// Stop cancels all pending confirmations and ends the broker consumers started by Confirm.
func (c *Confirmer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.stopped = true

	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}

	close(c.quit)
}

// Confirm starts a go routine per network consuming submitted sends from the broker. Each is scheduled and, once
// confirmed, published back as an event. The returned channel receives a message once every network consumer has
// ended after Stop.
func (c *Confirmer) Confirm() (chan string, error) {
	if c.mb == nil {
		return nil, fmt.Errorf("confirmer: %w", ErrNoBroker)
	}

	ret := make(chan string, 1)
	w := make(chan string, len(c.nets))

	for _, net := range c.nets {
		if err := c.ConfirmNet(net, w); err != nil {
			c.Stop()

			return nil, err
		}
	}
	// routine to wait for all networks to end
	go func() {
		for i := 1; i < len(c.nets)+1; i++ {
			log.Printf("Confirm, channel %d/%d returned: %s", i, len(c.nets), <-w)
		}
		ret <- "Done!"
	}()

	return ret, nil
}

// ConfirmNet consumes submitted sends for network 'net' until Stop is called or the broker closes, then writes to
// ret.
func (c *Confirmer) ConfirmNet(net string, ret chan string) error {
	mut := new(sync.Mutex)
	mut.Lock()

	txCh, errCh, err := c.mb.GetTxs(net, mut)
	if err != nil {
		return fmt.Errorf("confirmer: cannot get transactions for %s: %w", net, err)
	}

	go func() {
		log.Printf("[%s] Start listening to wallet transaction channel", net)

		defer func() {
			log.Printf("[%s] Stop listening to wallet transaction channel", net)
			ret <- "[" + net + "] Done!"
		}()

		for {
			select {
			case <-c.quit:
				return
			case tx, ok := <-txCh:
				if !ok {
					return
				}

				if tx.Status != types.TrxPending {
					log.Printf("[%s] Transaction %s has status %s. Ignoring...", net, tx.TxHash, tx.Status)
				} else {
					c.Schedule(tx, func(t types.Trans) {
						if err := c.mb.SendEvent(net, t); err != nil {
							log.Printf("[%s] Error sending confirmation event: %v", net, err)
						}
					})
				}

				mut.Unlock()
			case e, ok := <-errCh:
				if !ok {
					return
				}

				log.Printf("[%s] Received error %+v", net, e)
			}
		}
	}()

	return nil
}
