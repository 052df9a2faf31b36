// Package holdings keeps the local record of owned coins and values it against a quote set.
//
// Positions are kept in a JSON file holding an array of {symbol, name, amount, averagePrice}. A missing file is
// seeded with a fixed default portfolio.
package holdings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/price/types"
)

// DefaultFile is the name of the holdings file.
const DefaultFile = "crypto-wallet-holdings.json"

// Dust is the amount under which a position is removed after a send.
const Dust = 0.000001

// Errors returned by portfolio operations.
var (
	ErrBadAmount    = errors.New("amount must be positive")
	ErrBadPrice     = errors.New("price must be positive")
	ErrNotHeld      = errors.New("coin not held")
	ErrInsufficient = errors.New("insufficient balance")
)

// Holding is an owned position.
type Holding struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	AveragePrice float64 `json:"averagePrice"`
}

// Defaults returns the seed portfolio.
func Defaults() []Holding {
	return []Holding{
		{Symbol: "BTC", Name: "Bitcoin", Amount: 0.025, AveragePrice: 42000},
		{Symbol: "ETH", Name: "Ethereum", Amount: 1.5, AveragePrice: 2500},
		{Symbol: "ADA", Name: "Cardano", Amount: 1000, AveragePrice: 0.48},
	}
}

// Store persists holdings in a JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store for the file at path. An empty path uses DefaultFile in the working directory.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFile
	}

	return &Store{path: path}
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Load reads the holdings. A missing file is seeded with Defaults, which are written back. A file that cannot be
// decoded yields Defaults and is left untouched.
func (s *Store) Load() ([]Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		hs := Defaults()
		if err = s.write(hs); err != nil {
			return hs, err
		}

		log.WithField("file", s.path).Info("Set default holdings")

		return hs, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading holdings: %w", err)
	}

	var hs []Holding
	if err = json.Unmarshal(b, &hs); err != nil {
		log.WithError(err).WithField("file", s.path).Warn("Error loading holdings, using defaults")

		return Defaults(), nil
	}

	return hs, nil
}

// Save replaces the stored holdings.
func (s *Store) Save(hs []Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(hs)
}

func (s *Store) write(hs []Holding) error {
	if hs == nil {
		hs = []Holding{}
	}

	b, err := json.MarshalIndent(hs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding holdings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".holdings-*")
	if err != nil {
		return fmt.Errorf("saving holdings: %w", err)
	}

	if _, err = tmp.Write(b); err == nil {
		err = tmp.Close()
	} else {
		_ = tmp.Close()
	}

	if err == nil {
		err = os.Rename(tmp.Name(), s.path)
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("saving holdings: %w", err)
	}

	return nil
}

func find(hs []Holding, symbol string) int {
	for i := range hs {
		if strings.EqualFold(hs[i].Symbol, symbol) {
			return i
		}
	}

	return -1
}

// Buy adds the coins bought for usd at price to hs. An existing position gets the weighted average price of the old
// and new coins; otherwise a new position is appended at price. hs is not modified.
func Buy(hs []Holding, symbol, name string, usd, price float64) ([]Holding, error) {
	if usd <= 0 {
		return nil, ErrBadAmount
	}

	if price <= 0 {
		return nil, ErrBadPrice
	}

	symbol = strings.ToUpper(symbol)
	spent := decimal.NewFromFloat(usd)
	bought := spent.Div(decimal.NewFromFloat(price))

	out := append([]Holding(nil), hs...)

	i := find(out, symbol)
	if i < 0 {
		if name == "" {
			name = symbol
		}

		return append(out, Holding{
			Symbol: symbol, Name: name, Amount: bought.InexactFloat64(), AveragePrice: price,
		}), nil
	}

	held := decimal.NewFromFloat(out[i].Amount)
	total := held.Add(bought)
	avg := held.Mul(decimal.NewFromFloat(out[i].AveragePrice)).Add(spent).Div(total)

	out[i].Amount = total.InexactFloat64()
	out[i].AveragePrice = avg.InexactFloat64()

	return out, nil
}

// Send removes amount coins of symbol from hs. Positions left under Dust are dropped. hs is not modified.
func Send(hs []Holding, symbol string, amount float64) ([]Holding, error) {
	if amount <= 0 {
		return nil, ErrBadAmount
	}

	i := find(hs, symbol)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotHeld, symbol)
	}

	if amount > hs[i].Amount {
		return nil, fmt.Errorf("%w: %s available %v", ErrInsufficient, hs[i].Symbol, hs[i].Amount)
	}

	out := make([]Holding, 0, len(hs))

	for j, h := range hs {
		if j == i {
			h.Amount = decimal.NewFromFloat(h.Amount).Sub(decimal.NewFromFloat(amount)).InexactFloat64()
		}

		if h.Amount > Dust {
			out = append(out, h)
		}
	}

	return out, nil
}

// Position is a valued holding.
type Position struct {
	Holding
	Price      float64 `json:"price"`
	Change24h  float64 `json:"change24h"`
	Value      float64 `json:"value"`
	Cost       float64 `json:"cost"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnlPercent"`
}

// Valuation is a portfolio valued against a quote set.
type Valuation struct {
	Value     float64    `json:"value"`
	Cost      float64    `json:"cost"`
	PnL       float64    `json:"pnl"`
	Positions []Position `json:"positions"`
}

// Value values hs at the prices in quotes. A coin without a quote is valued at 0. Positions are sorted by value,
// highest first.
func Value(hs []Holding, quotes types.QuoteSet) Valuation {
	var v Valuation

	value, cost := decimal.Zero, decimal.Zero

	for _, h := range hs {
		q := quotes[strings.ToUpper(h.Symbol)]
		amt := decimal.NewFromFloat(h.Amount)
		pv := amt.Mul(decimal.NewFromFloat(q.Price))
		pc := amt.Mul(decimal.NewFromFloat(h.AveragePrice))
		pnl := pv.Sub(pc)

		p := Position{
			Holding:   h,
			Price:     q.Price,
			Change24h: q.Change24h,
			Value:     pv.InexactFloat64(),
			Cost:      pc.InexactFloat64(),
			PnL:       pnl.InexactFloat64(),
		}
		if !pc.IsZero() {
			p.PnLPercent = pnl.Div(pc).Shift(2).InexactFloat64()
		}

		v.Positions = append(v.Positions, p)
		value = value.Add(pv)
		cost = cost.Add(pc)
	}

	sort.SliceStable(v.Positions, func(i, j int) bool { return v.Positions[i].Value > v.Positions[j].Value })

	v.Value = value.InexactFloat64()
	v.Cost = cost.InexactFloat64()
	v.PnL = value.Sub(cost).InexactFloat64()

	return v
}
