// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/tarancss/cryptowallet/lib/block/types"
	"github.com/tarancss/cryptowallet/lib/msg"
)

// Exchange names.
const (
	txExchange    = "wt" // wallet transactions
	eventExchange = "ce" // confirmer events
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	mu   sync.Mutex // guards ch
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (msg.MsgBroker, error) {
	r := Amqp{}

	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}

	log.Printf("Connected to %s", uri)

	return &r, err
}

// Setup obtains an amqp channel and declares the message broker exchanges:
//
// - wt ("wallet transactions"): the wallet service publishes submitted sends to this exchange
//
// - ce ("confirmer events"): the confirmer service publishes confirmations to this exchange
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()
	// declare exchanges
	if err = channel.ExchangeDeclare(txExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	return channel.ExchangeDeclare(eventExchange, "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	r.mu.Lock()
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%v", err)
		}

		r.ch = nil

		log.Printf("amqp.Channel closed!")
	}
	r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	return r.conn.Close()
}

// channel returns the shared channel, opening it if not present.
func (r *Amqp) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		ch, err := r.conn.Channel()
		if err != nil {
			return nil, err
		}

		r.ch = ch
	}

	return r.ch, nil
}

// publish marshals t and publishes it to exchange with the routing key net.trans.<hash>.
func (r *Amqp) publish(exchange, net string, t types.Trans) error {
	jsonDoc, err := json.Marshal(t)
	if err != nil {
		return err
	}

	ch, err := r.channel()
	if err != nil {
		return err
	}

	m := amqp.Publishing{
		Headers:     amqp.Table{"x-trans-name": net + "." + t.TxHash},
		Body:        jsonDoc,
		ContentType: "application/json",
	}

	r.mu.Lock()
	err = ch.Publish(exchange, net+".trans."+t.TxHash, false, false, m)
	r.mu.Unlock()

	if err != nil {
		log.Printf("[%s] Error publishing to %s exchange: %v", net, exchange, err)
	}

	return err
}

// SendTx publishes a submitted transaction to the "wt" exchange.
func (r *Amqp) SendTx(net string, t types.Trans) error {
	return r.publish(txExchange, net, t)
}

// SendEvent publishes a confirmation event to the "ce" exchange.
func (r *Amqp) SendEvent(net string, t types.Trans) error {
	return r.publish(eventExchange, net, t)
}

// GetEvents consumes confirmation events from the "ce" exchange pushing them to the returned channel. The Mutex
// pointer is provided to ensure the consumed message has been fully dealt with by the management function, so the
// message consumed is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetEvents(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error) {
	return r.consume(eventExchange, net, "wallet-"+net, mut)
}

// GetTxs consumes submitted transactions from the "wt" exchange for the specified network pushing them to the
// returned channel. The Mutex pointer is used as in GetEvents.
func (r *Amqp) GetTxs(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error) {
	return r.consume(txExchange, net, "confirmer-"+net, mut)
}

func (r *Amqp) consume(exchange, net, consumer string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error) {
	ch, err := r.channel()
	if err != nil {
		return nil, nil, err
	}

	queue := exchange + net

	r.mu.Lock()
	defer r.mu.Unlock()

	// declare queue
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}
	// bind queue to exchange
	if err = ch.QueueBind(queue, net+".*.*", exchange, false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving messages
	msgs, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}
	// define channels to return
	txs := make(chan types.Trans)
	errs := make(chan error)
	// start routine to consume messages from broker
	go func() {
		defer close(txs)
		defer close(errs)

		for m := range msgs {
			var tx types.Trans
			if err := json.Unmarshal(m.Body, &tx); err != nil {
				errs <- err

				_ = m.Nack(false, false)

				continue
			}

			txs <- tx
			mut.Lock() // wait for the consumer to finish processing the message
			_ = m.Ack(false)
		}
	}()

	return txs, errs, nil
}
