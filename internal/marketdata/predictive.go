package marketdata

import (
	"context"
	"math"

	"github.com/atlas-desktop/papertrade/internal/strategy"
	"github.com/atlas-desktop/papertrade/pkg/types"
)

// HeuristicPredictor is a built-in predictive model combining momentum
// and RSI into a directional vote. It stands in for an external model
// service behind the same port.
type HeuristicPredictor struct {
	lookback int
}

// NewHeuristicPredictor creates the built-in predictor.
func NewHeuristicPredictor(lookback int) *HeuristicPredictor {
	if lookback <= 0 {
		lookback = 20
	}
	return &HeuristicPredictor{lookback: lookback}
}

// Predict votes on the series direction, abstaining on short series.
func (h *HeuristicPredictor) Predict(_ context.Context, _ string, series []types.Bar) (*types.Prediction, error) {
	if len(series) <= h.lookback {
		return nil, nil
	}

	momentum := strategy.Momentum(series, h.lookback)
	rsi := strategy.RSI(series, 14)

	// Score in [-1, 1]: trend plus distance of RSI from neutral.
	score := math.Tanh(momentum*20) + (50-rsi)/100
	confidence := math.Min(math.Abs(score), 1)

	direction := types.DirectionHold
	switch {
	case score > 0.25:
		direction = types.DirectionBuy
	case score < -0.25:
		direction = types.DirectionSell
	}

	return &types.Prediction{
		Direction:  direction,
		Confidence: confidence,
	}, nil
}

// StaticSentiment returns a fixed sentiment score for every symbol.
type StaticSentiment struct {
	Score float64
}

// Sentiment implements SentimentPort.
func (s StaticSentiment) Sentiment(_ context.Context, _ string) (float64, error) {
	return s.Score, nil
}
