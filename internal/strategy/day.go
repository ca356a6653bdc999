package strategy

import (
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
)

// DayConfig configures the intraday strategy variants. Hours are in the
// bar's local time.
type DayConfig struct {
	StartHour    int     `json:"startHour"` // first hour entries are allowed
	EndHour      int     `json:"endHour"`   // last hour entries are allowed
	ExitHour     int     `json:"exitHour"`  // force exit at or after this hour
	ProfitTarget float64 `json:"profitTarget"`
	StopLoss     float64 `json:"stopLoss"`
}

// DefaultDayConfig returns default intraday parameters.
func DefaultDayConfig() DayConfig {
	return DayConfig{
		StartHour:    10, // skip the open auction noise
		EndHour:      14,
		ProfitTarget: 0.015,
		StopLoss:     0.01,
		ExitHour:     15,
	}
}

func (c DayConfig) entryAllowed(bar types.Bar) bool {
	h := bar.Timestamp.Hour()
	return h >= c.StartHour && h <= c.EndHour
}

func (c DayConfig) forcedExit(pos *types.Position, bar types.Bar) bool {
	if bar.Timestamp.Hour() >= c.ExitHour {
		return true
	}
	if pos == nil || pos.AvgPrice.IsZero() {
		return false
	}
	target := pos.AvgPrice.Mul(decimal.NewFromFloat(1 + c.ProfitTarget))
	stop := pos.AvgPrice.Mul(decimal.NewFromFloat(1 - c.StopLoss))
	return bar.Close.GreaterThanOrEqual(target) || bar.Close.LessThanOrEqual(stop)
}

// DayMomentum is the momentum strategy gated to intraday trading hours
// with a tighter profit target and a hard end-of-window exit.
type DayMomentum struct {
	base *MomentumStrategy
	day  DayConfig
}

// NewDayMomentum creates an intraday momentum strategy.
func NewDayMomentum(day DayConfig) *DayMomentum {
	base := DefaultMomentumConfig()
	base.Lookback = 6
	base.Threshold = 0.008
	return &DayMomentum{base: NewMomentum(base), day: day}
}

func (s *DayMomentum) Name() string { return "day_momentum" }

func (s *DayMomentum) Evaluate(series []types.Bar) Vote {
	if len(series) == 0 || !s.day.entryAllowed(series[len(series)-1]) {
		return Hold("outside trading hours")
	}
	return s.base.Evaluate(series)
}

func (s *DayMomentum) ShouldExit(pos *types.Position, bar types.Bar) bool {
	return s.day.forcedExit(pos, bar)
}

// DayRSI is the mean reversion RSI strategy gated to intraday hours.
type DayRSI struct {
	base *MeanReversionRSI
	day  DayConfig
}

// NewDayRSI creates an intraday RSI strategy.
func NewDayRSI(day DayConfig) *DayRSI {
	base := DefaultRSIConfig()
	base.Period = 7
	return &DayRSI{base: NewMeanReversionRSI(base), day: day}
}

func (s *DayRSI) Name() string { return "day_rsi" }

func (s *DayRSI) Evaluate(series []types.Bar) Vote {
	if len(series) == 0 || !s.day.entryAllowed(series[len(series)-1]) {
		return Hold("outside trading hours")
	}
	return s.base.Evaluate(series)
}

func (s *DayRSI) ShouldExit(pos *types.Position, bar types.Bar) bool {
	return s.day.forcedExit(pos, bar)
}
