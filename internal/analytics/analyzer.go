// Package analytics computes performance statistics over equity
// snapshots and order history.
package analytics

import (
	"math"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
)

// Report bundles the performance statistics for one equity curve.
type Report struct {
	TotalReturn    float64 `json:"totalReturn"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpeRatio"`
	MaxDrawdown    float64 `json:"maxDrawdown"`
	WinRate        float64 `json:"winRate"`
	TradeCount     int     `json:"tradeCount"`
	WinningTrades  int     `json:"winningTrades"`
	LosingTrades   int     `json:"losingTrades"`
	SnapshotCount  int     `json:"snapshotCount"`
}

// Analyze computes a full report from an equity curve and the filled
// orders behind it.
func Analyze(history []types.SnapshotPoint, orders []types.Order) Report {
	returns := Returns(history)
	wins, losses := countOutcomes(orders)

	return Report{
		TotalReturn:   TotalReturn(history),
		Volatility:    Volatility(returns),
		SharpeRatio:   SharpeRatio(returns),
		MaxDrawdown:   MaxDrawdown(history),
		WinRate:       WinRate(returns),
		WinningTrades: wins,
		LosingTrades:  losses,
		TradeCount:    wins + losses,
		SnapshotCount: len(history),
	}
}

// Returns converts an equity curve into per-step fractional returns.
// Steps starting from zero equity are skipped.
func Returns(history []types.SnapshotPoint) []float64 {
	if len(history) < 2 {
		return nil
	}
	out := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i-1].TotalValue.InexactFloat64()
		if prev == 0 {
			continue
		}
		cur := history[i].TotalValue.InexactFloat64()
		out = append(out, (cur-prev)/prev)
	}
	return out
}

// TotalReturn is the fractional return from the first snapshot to the
// last, 0 when the curve is too short.
func TotalReturn(history []types.SnapshotPoint) float64 {
	if len(history) < 2 {
		return 0
	}
	first := history[0].TotalValue.InexactFloat64()
	if first == 0 {
		return 0
	}
	last := history[len(history)-1].TotalValue.InexactFloat64()
	return (last - first) / first
}

// Volatility is the population standard deviation of the returns.
func Volatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	var sumSq float64
	for _, r := range returns {
		diff := r - m
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

// SharpeRatio is mean return over volatility, with a zero risk-free
// rate. Returns 0 when volatility is zero.
func SharpeRatio(returns []float64) float64 {
	vol := Volatility(returns)
	if vol == 0 {
		return 0
	}
	return mean(returns) / vol
}

// MaxDrawdown is the largest peak-to-trough decline of the equity
// curve, as a positive fraction of the peak.
func MaxDrawdown(history []types.SnapshotPoint) float64 {
	if len(history) == 0 {
		return 0
	}

	peak := history[0].TotalValue.InexactFloat64()
	var maxDD float64
	for _, point := range history {
		value := point.TotalValue.InexactFloat64()
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if dd := (peak - value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// WinRate is the fraction of periods in the equity curve with a
// positive return.
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var wins int
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

func countOutcomes(orders []types.Order) (wins, losses int) {
	for _, order := range orders {
		if order.Status != types.OrderStatusFilled || order.Side != types.OrderSideSell {
			continue
		}
		switch {
		case order.PnL.GreaterThan(decimal.Zero):
			wins++
		case order.PnL.LessThan(decimal.Zero):
			losses++
		}
	}
	return wins, losses
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
