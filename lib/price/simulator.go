package price

import (
	"math/rand/v2"
	"sync"

	"github.com/tarancss/cryptowallet/lib/price/types"
)

// SimConfig parameterises the movement simulator. Each range is the half width of a zero centred uniform draw.
type SimConfig struct {
	Probability float64 // chance that a symbol moves on one call
	PriceRange  float64 // relative price move, 0.001 is ±0.1%
	ChangeRange float64 // absolute change24h move in percentage points
	CapFactor   float64 // market cap moves by the price draw times this factor
	VolumeRange float64 // relative volume move
}

// DefaultSimConfig returns the parameters used unless configured otherwise.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Probability: 0.3,
		PriceRange:  0.001,
		ChangeRange: 0.1,
		CapFactor:   0.5,
		VolumeRange: 0.025,
	}
}

// Simulator applies small random movements to quotes so a cached or static answer still looks alive.
type Simulator struct {
	cfg SimConfig
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator returns a Simulator drawing from src. A nil src is seeded randomly.
func NewSimulator(cfg SimConfig, src rand.Source) *Simulator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &Simulator{cfg: cfg, rnd: rand.New(src)}
}

// Simulate returns a perturbed copy of qs with the same symbols. qs is not modified.
func (s *Simulator) Simulate(qs types.QuoteSet) types.QuoteSet {
	out := make(types.QuoteSet, len(qs))

	s.mu.Lock()
	defer s.mu.Unlock()

	// sorted so a seeded source gives repeatable output
	for _, sym := range qs.Symbols() {
		q := qs[sym]

		if s.rnd.Float64() < s.cfg.Probability {
			u := s.draw(s.cfg.PriceRange)
			q.Price *= 1 + u
			q.Change24h += s.draw(s.cfg.ChangeRange)
			q.MarketCap *= 1 + u*s.cfg.CapFactor
			q.Volume *= 1 + s.draw(s.cfg.VolumeRange)
		}

		out[sym] = q
	}

	return out
}

// draw returns a uniform value in [-half, half).
func (s *Simulator) draw(half float64) float64 {
	return (s.rnd.Float64() - 0.5) * 2 * half
}
