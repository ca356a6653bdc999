// Package marketdata defines the price data and predictive model ports
// and provides a synthetic in-memory provider.
package marketdata

import (
	"context"
	"fmt"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
)

// DataUnavailableError means a symbol has no usable data this cycle.
// The trading loop skips the symbol and moves on.
type DataUnavailableError struct {
	Symbol string
	Detail string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("market data unavailable for %s: %s", e.Symbol, e.Detail)
}

// MarketDataPort supplies price history and quotes to the trading loop.
type MarketDataPort interface {
	// GetSeries returns up to lookback most recent bars, oldest first.
	GetSeries(ctx context.Context, symbol string, lookback int) ([]types.Bar, error)
	// GetPrice returns the latest trade price.
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PredictivePort supplies an external model's directional vote. A nil
// prediction with nil error means the model abstains.
type PredictivePort interface {
	Predict(ctx context.Context, symbol string, series []types.Bar) (*types.Prediction, error)
}

// SentimentPort supplies a symbol sentiment score in [-1, 1].
// Implementations may return 0 when no reading is available.
type SentimentPort interface {
	Sentiment(ctx context.Context, symbol string) (float64, error)
}
