package strategy

import (
	"fmt"
	"math"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
)

// RSIConfig configures the mean reversion RSI strategy.
type RSIConfig struct {
	Period        int     `json:"period"`
	Oversold      float64 `json:"oversold"`
	Overbought    float64 `json:"overbought"`
	TrendLookback int     `json:"trendLookback"` // bars for trend confirmation
	TakeProfit    float64 `json:"takeProfit"`
	StopLoss      float64 `json:"stopLoss"`
}

// DefaultRSIConfig returns default RSI parameters.
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{
		Period:        14,
		Oversold:      30,
		Overbought:    70,
		TrendLookback: 3,
		TakeProfit:    0.04,
		StopLoss:      0.03,
	}
}

// MeanReversionRSI buys oversold and sells overbought readings, requiring
// the short-term trend to have turned in the trade's direction.
type MeanReversionRSI struct {
	config RSIConfig
}

// NewMeanReversionRSI creates a mean reversion RSI strategy.
func NewMeanReversionRSI(config RSIConfig) *MeanReversionRSI {
	return &MeanReversionRSI{config: config}
}

func (s *MeanReversionRSI) Name() string { return "mean_reversion_rsi" }

func (s *MeanReversionRSI) Evaluate(series []types.Bar) Vote {
	if len(series) <= s.config.Period+1 {
		return Hold("insufficient history")
	}

	rsi := RSI(series, s.config.Period)
	trend := Momentum(series, s.config.TrendLookback)

	switch {
	case rsi < s.config.Oversold:
		if trend <= 0 {
			return Hold("oversold but still falling")
		}
		// Confidence grows as RSI sinks further below the threshold.
		confidence := math.Min((s.config.Oversold-rsi)/s.config.Oversold+0.5, 1)
		return Vote{
			Direction:  types.DirectionBuy,
			Confidence: confidence,
			Reason:     fmt.Sprintf("RSI %.1f oversold, trend turning up", rsi),
		}
	case rsi > s.config.Overbought:
		if trend >= 0 {
			return Hold("overbought but still rising")
		}
		confidence := math.Min((rsi-s.config.Overbought)/(100-s.config.Overbought)+0.5, 1)
		return Vote{
			Direction:  types.DirectionSell,
			Confidence: confidence,
			Reason:     fmt.Sprintf("RSI %.1f overbought, trend turning down", rsi),
		}
	default:
		return Hold("RSI in neutral band")
	}
}

func (s *MeanReversionRSI) ShouldExit(pos *types.Position, bar types.Bar) bool {
	if pos == nil || pos.AvgPrice.IsZero() {
		return false
	}
	target := pos.AvgPrice.Mul(decimal.NewFromFloat(1 + s.config.TakeProfit))
	stop := pos.AvgPrice.Mul(decimal.NewFromFloat(1 - s.config.StopLoss))
	return bar.Close.GreaterThanOrEqual(target) || bar.Close.LessThanOrEqual(stop)
}
