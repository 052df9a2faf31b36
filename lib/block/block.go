// Package block defines the interface required for all blockchain or network connections. Networks are simulated: they
// validate addresses, quote fees and fabricate pending transactions, but nothing is broadcast.
package block

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/block/mock"
	"github.com/tarancss/cryptowallet/lib/block/types"
	"github.com/tarancss/cryptowallet/lib/config"
)

// Chain is an interface that contains the required methods of a network an asset is sent on.
type Chain interface {
	Symbol() string
	ValidAddress(address string) bool
	Fee() float64             // flat network fee in units of the asset
	ConfirmationTime() string // human readable estimate
	ExplorerURL(hash string) string
	Send(toAddress string, amount float64) (types.Trans, error)
}

// Init loads a client for every network read from the config into a map keyed by symbol.
func Init(nets []config.NetworkConfig) (m map[string]Chain, err error) {
	m = make(map[string]Chain, len(nets))

	for _, n := range nets {
		sym := strings.ToUpper(n.Symbol)
		if _, ok := m[sym]; ok {
			log.Printf("Network %s defined twice. Ignoring...", sym)

			continue
		}

		var c *mock.Mock

		if c, err = mock.New(n); err != nil {
			return nil, fmt.Errorf("network %s: %w", sym, err)
		}

		m[sym] = c
	}

	return m, nil
}

// Get returns the client for symbol, or a permissive default network when symbol is not configured.
func Get(m map[string]Chain, symbol string) Chain {
	symbol = strings.ToUpper(symbol)
	if c, ok := m[symbol]; ok {
		return c
	}

	return mock.NewDefault(symbol)
}
