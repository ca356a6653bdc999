package analytics_test

import (
	"math"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade/internal/analytics"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
)

func curve(values ...float64) []types.SnapshotPoint {
	base := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	out := make([]types.SnapshotPoint, len(values))
	for i, v := range values {
		out[i] = types.SnapshotPoint{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			TotalValue: decimal.NewFromFloat(v),
		}
	}
	return out
}

func almost(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 100, trough 90, later high does not erase the drawdown.
	if got := analytics.MaxDrawdown(curve(100, 90, 120)); !almost(got, 0.1) {
		t.Errorf("expected 10%% drawdown, got %f", got)
	}

	// Monotone curves have zero drawdown.
	if got := analytics.MaxDrawdown(curve(100, 105, 111)); got != 0 {
		t.Errorf("monotone rise should have zero drawdown, got %f", got)
	}

	if got := analytics.MaxDrawdown(nil); got != 0 {
		t.Errorf("empty curve should have zero drawdown, got %f", got)
	}
}

func TestTotalReturn(t *testing.T) {
	if got := analytics.TotalReturn(curve(100000, 101400)); !almost(got, 0.014) {
		t.Errorf("expected 1.4%%, got %f", got)
	}
	if got := analytics.TotalReturn(curve(100000)); got != 0 {
		t.Errorf("single point has no return, got %f", got)
	}
}

func TestSharpeZeroWhenFlat(t *testing.T) {
	returns := analytics.Returns(curve(100, 100, 100, 100))
	if got := analytics.SharpeRatio(returns); got != 0 {
		t.Errorf("flat curve must have zero Sharpe, got %f", got)
	}
	if got := analytics.Volatility(returns); got != 0 {
		t.Errorf("flat curve must have zero volatility, got %f", got)
	}
}

func TestVolatilityPopulationStdDev(t *testing.T) {
	// Returns alternate +10% and -10% around a 0 mean.
	returns := []float64{0.1, -0.1, 0.1, -0.1}
	if got := analytics.Volatility(returns); !almost(got, 0.1) {
		t.Errorf("expected 0.1, got %f", got)
	}
}

func TestWinRateFractionOfPositiveDays(t *testing.T) {
	// Two up periods out of four: [+1%, -1%, +2%, 0%].
	returns := analytics.Returns(curve(100, 101, 99.99, 101.99, 101.99))
	if got := analytics.WinRate(returns); !almost(got, 0.5) {
		t.Errorf("expected 0.5 win rate, got %f", got)
	}

	if got := analytics.WinRate(nil); got != 0 {
		t.Errorf("no returns should yield zero win rate, got %f", got)
	}
}

func TestAnalyze(t *testing.T) {
	history := curve(100000, 99000, 101000, 100500)
	orders := []types.Order{
		{Side: types.OrderSideSell, Status: types.OrderStatusFilled, PnL: decimal.NewFromInt(500)},
		{Side: types.OrderSideSell, Status: types.OrderStatusFilled, PnL: decimal.NewFromInt(-200)},
	}

	report := analytics.Analyze(history, orders)
	if report.TradeCount != 2 || report.WinningTrades != 1 || report.LosingTrades != 1 {
		t.Errorf("trade counting wrong: %+v", report)
	}
	// One positive period out of three in the equity curve.
	if !almost(report.WinRate, 1.0/3.0) {
		t.Errorf("expected 1/3 win rate, got %f", report.WinRate)
	}
	if !almost(report.TotalReturn, 0.005) {
		t.Errorf("expected 0.5%% total return, got %f", report.TotalReturn)
	}
	if !almost(report.MaxDrawdown, 0.01) {
		t.Errorf("expected 1%% max drawdown, got %f", report.MaxDrawdown)
	}
	if report.Volatility <= 0 || report.SnapshotCount != 4 {
		t.Errorf("unexpected report: %+v", report)
	}
}
