package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// startingPrices seeds the random walk per symbol; unknown symbols
// start at 100.
var startingPrices = map[string]float64{
	"AAPL": 180.0,
	"MSFT": 420.0,
	"NVDA": 130.0,
	"AMZN": 200.0,
	"GOOG": 170.0,
}

// SyntheticProvider generates a deterministic per-symbol random walk.
// New symbols are backfilled with warmup bars on first access, and
// Advance appends one bar per call so the caller controls simulated
// time.
type SyntheticProvider struct {
	logger   *zap.Logger
	mu       sync.Mutex
	rng      *rand.Rand
	interval time.Duration
	warmup   int
	now      time.Time
	series   map[string][]types.Bar
	price    map[string]float64
	maxBars  int
}

// NewSyntheticProvider creates a synthetic feed seeded for
// reproducibility.
func NewSyntheticProvider(logger *zap.Logger, seed int64, start time.Time, interval time.Duration, warmup int) *SyntheticProvider {
	return &SyntheticProvider{
		logger:   logger.Named("synthetic-data"),
		rng:      rand.New(rand.NewSource(seed)),
		interval: interval,
		warmup:   warmup,
		now:      start,
		series:   make(map[string][]types.Bar),
		price:    make(map[string]float64),
		maxBars:  4096,
	}
}

// GetSeries returns the most recent lookback bars for the symbol,
// oldest first.
func (p *SyntheticProvider) GetSeries(_ context.Context, symbol string, lookback int) ([]types.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ensureSymbol(symbol)
	bars := p.series[symbol]
	if len(bars) == 0 {
		return nil, &DataUnavailableError{Symbol: symbol, Detail: "no bars generated"}
	}
	if lookback > 0 && len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	out := make([]types.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// GetPrice returns the latest close for the symbol.
func (p *SyntheticProvider) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ensureSymbol(symbol)
	bars := p.series[symbol]
	if len(bars) == 0 {
		return decimal.Zero, &DataUnavailableError{Symbol: symbol, Detail: "no price available"}
	}
	return bars[len(bars)-1].Close, nil
}

// Advance appends one new bar to every known symbol and moves the
// simulated clock forward one interval.
func (p *SyntheticProvider) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.now = p.now.Add(p.interval)
	for symbol := range p.series {
		p.appendBarAt(symbol, p.now)
	}
}

func (p *SyntheticProvider) ensureSymbol(symbol string) {
	if _, ok := p.series[symbol]; ok {
		return
	}

	start, ok := startingPrices[symbol]
	if !ok {
		start = 100.0
	}
	p.price[symbol] = start
	p.series[symbol] = nil

	at := p.now.Add(-time.Duration(p.warmup-1) * p.interval)
	for !at.After(p.now) {
		p.appendBarAt(symbol, at)
		at = at.Add(p.interval)
	}
	p.logger.Debug("symbol initialized",
		zap.String("symbol", symbol),
		zap.Int("bars", len(p.series[symbol])))
}

func (p *SyntheticProvider) appendBarAt(symbol string, at time.Time) {
	price := p.price[symbol]

	// Random walk with +/- 1% steps and occasional volume spikes.
	change := (p.rng.Float64() - 0.5) * 0.02 * price
	open := decimal.NewFromFloat(price)
	price += change
	p.price[symbol] = price
	closeP := decimal.NewFromFloat(price)

	high := decimal.Max(open, closeP).Mul(decimal.NewFromFloat(1 + p.rng.Float64()*0.005))
	low := decimal.Min(open, closeP).Mul(decimal.NewFromFloat(1 - p.rng.Float64()*0.005))
	volume := 500000 + p.rng.Float64()*500000
	if p.rng.Float64() < 0.1 {
		volume *= 3
	}

	bars := append(p.series[symbol], types.Bar{
		Timestamp: at,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
		Volume:    decimal.NewFromFloat(volume),
	})
	if len(bars) > p.maxBars {
		bars = bars[len(bars)-p.maxBars:]
	}
	p.series[symbol] = bars
}
