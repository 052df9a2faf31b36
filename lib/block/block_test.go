package block

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/cryptowallet/lib/block/types"
	"github.com/tarancss/cryptowallet/lib/config"
)

func TestValidAddress(t *testing.T) {
	bc, err := Init(config.NetworksDefault)
	require.NoError(t, err)
	require.Len(t, bc, 10)

	cases := []struct {
		sym, addr string
		valid     bool
	}{
		{"BTC", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"BTC", "bc1" + strings.Repeat("q", 39), true},
		{"BTC", "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", false},
		{"ETH", "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", true},
		{"ETH", "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c", false},
		{"ETH", "not-an-address", false},
		{"MATIC", "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", true},
		{"BNB", "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", true},
		{"LINK", "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92cz", false},
		{"ADA", "addr1" + strings.Repeat("x", 98), true},
		{"ADA", "addr1" + strings.Repeat("x", 97), false},
		{"SOL", "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", true},
		{"SOL", "0OIl" + strings.Repeat("1", 30), false},
		{"XRP", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", true},
		{"XRP", "xHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", false},
		{"DOGE", "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L", true},
		{"DOGE", "DZ5yaieqoZN36fDVciNyRueRGvGLR3mr7L", false},
		{"DOT", "1" + strings.Repeat("a", 47), true},
		{"DOT", "2" + strings.Repeat("a", 47), false},
	}

	for _, c := range cases {
		assert.Equalf(t, c.valid, Get(bc, c.sym).ValidAddress(c.addr), "%s %s", c.sym, c.addr)
	}
}

func TestDefaultNetwork(t *testing.T) {
	bc, err := Init(config.NetworksDefault)
	require.NoError(t, err)

	c := Get(bc, "shib")
	assert.Equal(t, "SHIB", c.Symbol())
	assert.Equal(t, 0.001, c.Fee())
	assert.Equal(t, "1-5 minutes", c.ConfirmationTime())
	assert.Equal(t, "https://blockchain.info/tx/0xab", c.ExplorerURL("0xab"))
	assert.False(t, c.ValidAddress(strings.Repeat("a", 20)))
	assert.True(t, c.ValidAddress(strings.Repeat("a", 21)))
}

func TestNetworkDetails(t *testing.T) {
	bc, err := Init(config.NetworksDefault)
	require.NoError(t, err)

	cases := []struct {
		sym      string
		fee      float64
		confirm  string
		explorer string
	}{
		{"BTC", 0.0001, "10-60 minutes", "https://blockstream.info/tx/"},
		{"ETH", 0.002, "1-5 minutes", "https://etherscan.io/tx/"},
		{"ADA", 0.17, "2-5 minutes", "https://cardanoscan.io/transaction/"},
		{"SOL", 0.00025, "30 seconds", "https://solscan.io/tx/"},
		{"MATIC", 0.001, "1-3 minutes", "https://polygonscan.com/tx/"},
		{"BNB", 0.0005, "3 seconds", "https://bscscan.com/tx/"},
		{"XRP", 0.00001, "3-5 seconds", "https://xrpscan.com/tx/"},
		{"DOGE", 1, "1 minute", "https://dogechain.info/tx/"},
		{"LINK", 0.001, "1-5 minutes", "https://etherscan.io/tx/"},
		{"DOT", 0.01, "6 seconds", "https://polkadot.subscan.io/extrinsic/"},
	}

	for _, c := range cases {
		n := Get(bc, c.sym)
		assert.Equal(t, c.fee, n.Fee(), c.sym)
		assert.Equal(t, c.confirm, n.ConfirmationTime(), c.sym)
		assert.Equal(t, c.explorer+"0x1", n.ExplorerURL("0x1"), c.sym)
	}
}

func TestSend(t *testing.T) {
	bc, err := Init(config.NetworksDefault)
	require.NoError(t, err)

	eth := Get(bc, "ETH")

	tx, err := eth.Send("0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", 0.1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx.ID, "send_"))
	assert.Equal(t, types.TypeSend, tx.Type)
	assert.Equal(t, "ETH", tx.Symbol)
	assert.Equal(t, 0.002, tx.NetworkFee)
	assert.Equal(t, 0.102, tx.TotalAmount)
	assert.Equal(t, types.TrxPending, tx.Status)
	assert.Equal(t, 0, tx.Confirmations)
	assert.Equal(t, "1-5 minutes", tx.EstimatedConfirmationTime)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, tx.TxHash)
	assert.False(t, tx.Timestamp.IsZero())

	other, err := eth.Send("0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", 0.1)
	require.NoError(t, err)
	assert.NotEqual(t, tx.TxHash, other.TxHash)
	assert.NotEqual(t, tx.ID, other.ID)

	_, err = eth.Send("0x123", 1)
	assert.ErrorIs(t, err, types.ErrBadAddress)

	_, err = eth.Send("0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", 0)
	assert.ErrorIs(t, err, types.ErrBadAmount)
}

func TestInitBadPattern(t *testing.T) {
	_, err := Init([]config.NetworkConfig{{Symbol: "BAD", Pattern: "^[a-"}})
	assert.Error(t, err)
}
