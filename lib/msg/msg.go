// Package msg defines the interface for different message brokers.
//
// The wallet service publishes every submitted send and the confirmer service answers with a confirmation event once
// the simulated network has confirmed it.
package msg

import (
	"sync"

	"github.com/tarancss/cryptowallet/lib/block/types"
)

// Broker types.
const (
	NONE = ""
	AMQP = "amqp"
)

type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// methods for wallet service
	SendTx(net string, t types.Trans) error
	GetEvents(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error)

	// methods for confirmer service
	GetTxs(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error)
	SendEvent(net string, t types.Trans) error
}
