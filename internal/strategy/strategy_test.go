package strategy_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade/internal/strategy"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// series builds bars from close prices, one per minute, with constant
// volume unless lastVolume overrides the final bar.
func series(t *testing.T, start time.Time, prices []float64, lastVolume float64) []types.Bar {
	t.Helper()
	bars := make([]types.Bar, len(prices))
	for i, p := range prices {
		vol := 1000.0
		if i == len(prices)-1 && lastVolume > 0 {
			vol = lastVolume
		}
		c := decimal.NewFromFloat(p)
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    decimal.NewFromFloat(vol),
		}
	}
	return bars
}

func ramp(from, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

func TestRegistry(t *testing.T) {
	r := strategy.NewRegistry(zap.NewNop())

	for _, name := range []string{"momentum", "mean_reversion_rsi", "day_momentum", "day_rsi"} {
		s, err := r.Create(name)
		if err != nil {
			t.Errorf("Create(%q) failed: %v", name, err)
			continue
		}
		if s.Name() != name {
			t.Errorf("strategy name mismatch: %s", s.Name())
		}
	}

	if _, err := r.Create("nope"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestMomentumBuyNeedsVolumeConfirmation(t *testing.T) {
	cfg := strategy.DefaultMomentumConfig()
	s := strategy.NewMomentum(cfg)
	start := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)

	// Strong uptrend with a volume spike on the last bar.
	up := series(t, start, ramp(100, 1, 30), 5000)
	vote := s.Evaluate(up)
	if vote.Direction != types.DirectionBuy {
		t.Errorf("expected buy, got %s (%s)", vote.Direction, vote.Reason)
	}
	if vote.Confidence <= 0 {
		t.Error("buy vote should carry confidence")
	}

	// Same trend without the spike is a hold.
	flat := series(t, start, ramp(100, 1, 30), 0)
	vote = s.Evaluate(flat)
	if vote.Direction != types.DirectionHold {
		t.Errorf("expected hold without volume confirmation, got %s", vote.Direction)
	}
}

func TestMomentumExitOnStopAndTarget(t *testing.T) {
	s := strategy.NewMomentum(strategy.DefaultMomentumConfig())
	pos := &types.Position{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), AvgPrice: decimal.NewFromInt(100)}

	bar := func(close float64) types.Bar {
		return types.Bar{Close: decimal.NewFromFloat(close)}
	}

	if s.ShouldExit(pos, bar(101)) {
		t.Error("should hold inside the band")
	}
	if !s.ShouldExit(pos, bar(106)) {
		t.Error("should exit at profit target")
	}
	if !s.ShouldExit(pos, bar(96.5)) {
		t.Error("should exit at stop loss")
	}
}

func TestRSIOversoldBuy(t *testing.T) {
	s := strategy.NewMeanReversionRSI(strategy.DefaultRSIConfig())
	start := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)

	// Long decline pushes RSI deep oversold; small bounce at the end
	// provides trend confirmation.
	prices := ramp(200, -2, 30)
	prices = append(prices, prices[len(prices)-1]+3, prices[len(prices)-1]+6)
	vote := s.Evaluate(series(t, start, prices, 0))
	if vote.Direction != types.DirectionBuy {
		t.Errorf("expected buy on oversold bounce, got %s (%s)", vote.Direction, vote.Reason)
	}
}

func TestRSIOverboughtNeedsTurn(t *testing.T) {
	s := strategy.NewMeanReversionRSI(strategy.DefaultRSIConfig())
	start := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)

	// Still rising: overbought alone is not a sell.
	vote := s.Evaluate(series(t, start, ramp(100, 2, 30), 0))
	if vote.Direction != types.DirectionHold {
		t.Errorf("expected hold while still rising, got %s", vote.Direction)
	}

	// Rally that rolls over should vote sell.
	prices := ramp(100, 2, 30)
	prices = append(prices, prices[len(prices)-1]-1, prices[len(prices)-1]-3)
	vote = s.Evaluate(series(t, start, prices, 0))
	if vote.Direction != types.DirectionSell {
		t.Errorf("expected sell on overbought rollover, got %s (%s)", vote.Direction, vote.Reason)
	}
}

func TestDayVariantsGateOnHours(t *testing.T) {
	s := strategy.NewDayMomentum(strategy.DefaultDayConfig())

	// 8am is before the entry window regardless of trend strength.
	early := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	bars := series(t, early, ramp(100, 1, 10), 5000)
	// keep all bars inside the same hour
	for i := range bars {
		bars[i].Timestamp = early
	}
	if vote := s.Evaluate(bars); vote.Direction != types.DirectionHold {
		t.Errorf("expected hold before trading hours, got %s", vote.Direction)
	}
}

func TestDayVariantForcesExitAtHour(t *testing.T) {
	cfg := strategy.DefaultDayConfig()
	s := strategy.NewDayRSI(cfg)
	pos := &types.Position{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), AvgPrice: decimal.NewFromInt(100)}

	flat := types.Bar{
		Timestamp: time.Date(2025, 3, 3, cfg.ExitHour, 1, 0, 0, time.UTC),
		Close:     decimal.NewFromInt(100),
	}
	if !s.ShouldExit(pos, flat) {
		t.Error("should force exit at exit hour even with no P&L")
	}

	midday := types.Bar{
		Timestamp: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
		Close:     decimal.NewFromInt(100),
	}
	if s.ShouldExit(pos, midday) {
		t.Error("should not exit midday inside the band")
	}
}

func TestIndicators(t *testing.T) {
	start := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)

	// Monotone rise: RSI should saturate at 100.
	if rsi := strategy.RSI(series(t, start, ramp(100, 1, 20), 0), 14); rsi != 100 {
		t.Errorf("RSI on pure gains: expected 100, got %f", rsi)
	}

	// Flat series has zero momentum and volatility.
	flat := series(t, start, ramp(100, 0, 20), 0)
	if m := strategy.Momentum(flat, 10); m != 0 {
		t.Errorf("momentum on flat series: %f", m)
	}
	if v := strategy.Volatility(flat); v != 0 {
		t.Errorf("volatility on flat series: %f", v)
	}

	// Short series degrade to neutral values, not panics.
	short := series(t, start, []float64{100}, 0)
	if rsi := strategy.RSI(short, 14); rsi != 50 {
		t.Errorf("RSI on short series: expected neutral 50, got %f", rsi)
	}
}

func TestExtractFeatures(t *testing.T) {
	start := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)
	at := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	f := strategy.ExtractFeatures(series(t, start, ramp(100, 1, 40), 0), 6, 0.25, at)
	if f.Momentum <= 0 {
		t.Error("rising series should have positive momentum feature")
	}
	if f.HourOfDay != 14 || f.DayOfWeek != float64(time.Monday) {
		t.Errorf("time features wrong: hour=%f day=%f", f.HourOfDay, f.DayOfWeek)
	}
	if f.Sentiment != 0.25 {
		t.Errorf("sentiment passthrough wrong: %f", f.Sentiment)
	}
}
