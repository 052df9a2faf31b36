package holdings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/cryptowallet/lib/price/types"
)

func TestLoadSeedsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	s := NewStore(path)

	hs, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), hs)

	// the defaults were persisted
	_, err = os.Stat(path)
	require.NoError(t, err)

	hs, err = NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), hs)
}

func TestSaveLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "h.json"))

	want := []Holding{{Symbol: "SOL", Name: "Solana", Amount: 3, AveragePrice: 90}}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Save(nil))
	got, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	hs, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), hs)

	// the corrupt file is left as it was
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(b))
}

func TestNewStoreDefaultPath(t *testing.T) {
	assert.Equal(t, DefaultFile, NewStore("").Path())
}

func TestBuy(t *testing.T) {
	hs := Defaults()

	out, err := Buy(hs, "eth", "", 300, 3000)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 1.6, out[1].Amount, 1e-12)
	assert.InDelta(t, 2531.25, out[1].AveragePrice, 1e-9)
	// input untouched
	assert.Equal(t, 1.5, hs[1].Amount)

	out, err = Buy(out, "SOL", "Solana", 100, 50)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, Holding{Symbol: "SOL", Name: "Solana", Amount: 2, AveragePrice: 50}, out[3])

	out, err = Buy(nil, "DOT", "", 10, 4)
	require.NoError(t, err)
	assert.Equal(t, []Holding{{Symbol: "DOT", Name: "DOT", Amount: 2.5, AveragePrice: 4}}, out)

	_, err = Buy(hs, "BTC", "", 0, 40000)
	assert.ErrorIs(t, err, ErrBadAmount)
	_, err = Buy(hs, "BTC", "", 10, 0)
	assert.ErrorIs(t, err, ErrBadPrice)
}

func TestSend(t *testing.T) {
	hs := Defaults()

	out, err := Send(hs, "ETH", 0.5)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 1.0, out[1].Amount, 1e-12)

	// sending the whole position drops it
	out, err = Send(out, "BTC", 0.025)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "ETH", out[0].Symbol)

	// dust is dropped too
	out, err = Send([]Holding{{Symbol: "ADA", Amount: 1}}, "ADA", 0.9999995)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = Send(hs, "ETH", 2)
	assert.ErrorIs(t, err, ErrInsufficient)
	_, err = Send(hs, "DOGE", 1)
	assert.ErrorIs(t, err, ErrNotHeld)
	_, err = Send(hs, "ETH", -1)
	assert.ErrorIs(t, err, ErrBadAmount)
	assert.Equal(t, Defaults(), hs)
}

func TestValue(t *testing.T) {
	v := Value(Defaults(), types.QuoteSet{
		"BTC": {Price: 40000, Change24h: 1.5},
		"ETH": {Price: 3000, Change24h: -2},
	})

	assert.InDelta(t, 5500, v.Value, 1e-9)
	assert.InDelta(t, 5280, v.Cost, 1e-9)
	assert.InDelta(t, 220, v.PnL, 1e-9)

	require.Len(t, v.Positions, 3)
	assert.Equal(t, "ETH", v.Positions[0].Symbol)
	assert.InDelta(t, 750, v.Positions[0].PnL, 1e-9)
	assert.InDelta(t, 20, v.Positions[0].PnLPercent, 1e-9)
	assert.Equal(t, -2.0, v.Positions[0].Change24h)
	assert.Equal(t, "BTC", v.Positions[1].Symbol)
	assert.InDelta(t, -50, v.Positions[1].PnL, 1e-9)
	// no quote values the position at 0
	assert.Equal(t, "ADA", v.Positions[2].Symbol)
	assert.Zero(t, v.Positions[2].Value)
	assert.InDelta(t, -100, v.Positions[2].PnLPercent, 1e-9)

	assert.Empty(t, Value(nil, nil).Positions)
}
