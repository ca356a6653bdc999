package strategy

import (
	"math"
	"time"

	"github.com/atlas-desktop/papertrade/pkg/types"
)

// closes extracts close prices as float64 for indicator math.
func closes(series []types.Bar) []float64 {
	out := make([]float64, len(series))
	for i, bar := range series {
		out[i] = bar.Close.InexactFloat64()
	}
	return out
}

// Momentum returns the fractional return over the last n bars, or 0 when
// the series is too short.
func Momentum(series []types.Bar, n int) float64 {
	if len(series) <= n || n <= 0 {
		return 0
	}
	past := series[len(series)-1-n].Close.InexactFloat64()
	if past == 0 {
		return 0
	}
	current := series[len(series)-1].Close.InexactFloat64()
	return (current - past) / past
}

// RSI computes the relative strength index over the given period using
// Wilder smoothing. Returns 50 (neutral) when the series is too short.
func RSI(series []types.Bar, period int) float64 {
	prices := closes(series)
	if len(prices) <= period || period <= 0 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// VolumeRatio returns the last bar's volume relative to the average of
// the preceding n bars. Returns 1 when no history is available.
func VolumeRatio(series []types.Bar, n int) float64 {
	if len(series) < 2 {
		return 1
	}
	if n >= len(series) {
		n = len(series) - 1
	}
	var sum float64
	for i := len(series) - 1 - n; i < len(series)-1; i++ {
		sum += series[i].Volume.InexactFloat64()
	}
	avg := sum / float64(n)
	if avg == 0 {
		return 1
	}
	return series[len(series)-1].Volume.InexactFloat64() / avg
}

// Volatility returns the population standard deviation of bar-to-bar
// returns over the whole series.
func Volatility(series []types.Bar) float64 {
	prices := closes(series)
	if len(prices) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		diff := r - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

// ExtractFeatures builds the learning feature vector from a price series.
// barsPerDay sets how many bars make one trading day for the 1d/5d
// change features.
func ExtractFeatures(series []types.Bar, barsPerDay int, sentiment float64, at time.Time) types.Features {
	if barsPerDay <= 0 {
		barsPerDay = 1
	}
	return types.Features{
		Momentum:      Momentum(series, 14),
		RSI:           RSI(series, 14),
		VolumeRatio:   VolumeRatio(series, 20),
		PriceChange1D: Momentum(series, barsPerDay),
		PriceChange5D: Momentum(series, 5*barsPerDay),
		Volatility:    Volatility(series),
		Sentiment:     sentiment,
		HourOfDay:     float64(at.Hour()),
		DayOfWeek:     float64(at.Weekday()),
	}
}
