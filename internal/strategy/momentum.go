package strategy

import (
	"fmt"
	"math"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
)

// MomentumConfig configures the momentum strategy.
type MomentumConfig struct {
	Lookback    int     `json:"lookback"`
	Threshold   float64 `json:"threshold"`   // minimum N-bar return
	VolumeSpike float64 `json:"volumeSpike"` // volume confirmation multiplier
	TakeProfit  float64 `json:"takeProfit"`  // fraction above avg cost
	StopLoss    float64 `json:"stopLoss"`    // fraction below avg cost
}

// DefaultMomentumConfig returns default momentum parameters.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		Lookback:    14,
		Threshold:   0.02,
		VolumeSpike: 1.5,
		TakeProfit:  0.05,
		StopLoss:    0.03,
	}
}

// MomentumStrategy trades N-bar price momentum with volume-spike
// confirmation.
type MomentumStrategy struct {
	config MomentumConfig
}

// NewMomentum creates a momentum strategy.
func NewMomentum(config MomentumConfig) *MomentumStrategy {
	return &MomentumStrategy{config: config}
}

func (s *MomentumStrategy) Name() string { return "momentum" }

func (s *MomentumStrategy) Evaluate(series []types.Bar) Vote {
	if len(series) <= s.config.Lookback {
		return Hold("insufficient history")
	}

	momentum := Momentum(series, s.config.Lookback)
	volRatio := VolumeRatio(series, s.config.Lookback)
	confirmed := volRatio >= s.config.VolumeSpike

	confidence := math.Min(math.Abs(momentum)/(2*s.config.Threshold), 1)

	switch {
	case momentum > s.config.Threshold && confirmed:
		return Vote{
			Direction:  types.DirectionBuy,
			Confidence: confidence,
			Reason:     fmt.Sprintf("momentum %.4f with volume spike %.2fx", momentum, volRatio),
		}
	case momentum < -s.config.Threshold && confirmed:
		return Vote{
			Direction:  types.DirectionSell,
			Confidence: confidence,
			Reason:     fmt.Sprintf("negative momentum %.4f with volume spike %.2fx", momentum, volRatio),
		}
	case momentum > s.config.Threshold || momentum < -s.config.Threshold:
		return Hold("momentum without volume confirmation")
	default:
		return Hold("momentum below threshold")
	}
}

func (s *MomentumStrategy) ShouldExit(pos *types.Position, bar types.Bar) bool {
	if pos == nil || pos.AvgPrice.IsZero() {
		return false
	}
	target := pos.AvgPrice.Mul(decimal.NewFromFloat(1 + s.config.TakeProfit))
	stop := pos.AvgPrice.Mul(decimal.NewFromFloat(1 - s.config.StopLoss))
	return bar.Close.GreaterThanOrEqual(target) || bar.Close.LessThanOrEqual(stop)
}
