// Package mock implements a simulated network. Sends are accepted immediately and produce a pending transaction with
// a random hash; no node is contacted.
package mock

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tarancss/cryptowallet/lib/block/types"
	"github.com/tarancss/cryptowallet/lib/config"
)

// Values used for networks that are not configured.
const (
	DefaultFee         = 0.001
	DefaultConfirmTime = "1-5 minutes"
	DefaultExplorer    = "https://blockchain.info/tx/"
	defaultMinLen      = 21
)

// Mock is a simulated network.
type Mock struct {
	symbol   string
	re       *regexp.Regexp // nil accepts any address of at least minLen characters
	minLen   int
	fee      float64
	confirm  string
	explorer string
	rand     io.Reader
	now      func() time.Time
}

// New returns a network with the address pattern, fee and explorer of cfg.
func New(cfg config.NetworkConfig) (*Mock, error) {
	m := NewDefault(cfg.Symbol)

	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("bad address pattern: %w", err)
		}

		m.re = re
	}

	if cfg.Fee > 0 {
		m.fee = cfg.Fee
	}

	if cfg.ConfirmTime != "" {
		m.confirm = cfg.ConfirmTime
	}

	if cfg.Explorer != "" {
		m.explorer = cfg.Explorer
	}

	return m, nil
}

// NewDefault returns a network for an unconfigured symbol.
func NewDefault(symbol string) *Mock {
	return &Mock{
		symbol:   strings.ToUpper(symbol),
		minLen:   defaultMinLen,
		fee:      DefaultFee,
		confirm:  DefaultConfirmTime,
		explorer: DefaultExplorer,
		rand:     rand.Reader,
		now:      time.Now,
	}
}

// Symbol returns the ticker of the asset sent on the network.
func (m *Mock) Symbol() string { return m.symbol }

// Fee returns the flat network fee.
func (m *Mock) Fee() float64 { return m.fee }

// ConfirmationTime returns the estimated confirmation time.
func (m *Mock) ConfirmationTime() string { return m.confirm }

// ExplorerURL returns where hash can be looked up.
func (m *Mock) ExplorerURL(hash string) string { return m.explorer + hash }

// ValidAddress checks address against the network pattern.
func (m *Mock) ValidAddress(address string) bool {
	if m.re == nil {
		return len(address) >= m.minLen
	}

	return m.re.MatchString(address)
}

// Send fabricates a pending transaction of amount to toAddress. The total includes the network fee.
func (m *Mock) Send(toAddress string, amount float64) (types.Trans, error) {
	if amount <= 0 {
		return types.Trans{}, types.ErrBadAmount
	}

	if !m.ValidAddress(toAddress) {
		return types.Trans{}, types.ErrBadAddress
	}

	hash := make([]byte, 32)
	if _, err := io.ReadFull(m.rand, hash); err != nil {
		return types.Trans{}, fmt.Errorf("generating tx hash: %w", err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return types.Trans{}, fmt.Errorf("generating tx id: %w", err)
	}

	return types.Trans{
		ID:                        "send_" + id.String(),
		Type:                      types.TypeSend,
		Symbol:                    m.symbol,
		Amount:                    amount,
		NetworkFee:                m.fee,
		TotalAmount:               decimal.NewFromFloat(amount).Add(decimal.NewFromFloat(m.fee)).InexactFloat64(),
		ToAddress:                 toAddress,
		TxHash:                    "0x" + hex.EncodeToString(hash),
		Timestamp:                 m.now().UTC(),
		Status:                    types.TrxPending,
		Confirmations:             0,
		EstimatedConfirmationTime: m.confirm,
	}, nil
}
