// Package rebalance drifts the portfolio back toward its target
// allocation weights.
package rebalance

import (
	"errors"
	"sort"
	"time"

	"github.com/atlas-desktop/papertrade/internal/ledger"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config contains rebalancing thresholds.
type Config struct {
	// DriftThreshold is the absolute weight deviation that triggers a
	// correcting trade.
	DriftThreshold decimal.Decimal `json:"driftThreshold"`
	// MinTradePct of total portfolio value is the floor below which
	// correcting trades are skipped as churn.
	MinTradePct decimal.Decimal `json:"minTradePct"`
}

// DefaultConfig returns default rebalancing thresholds.
func DefaultConfig() Config {
	return Config{
		DriftThreshold: decimal.NewFromFloat(0.05),
		MinTradePct:    decimal.NewFromFloat(0.01),
	}
}

// Trade is one planned rebalancing order.
type Trade struct {
	Symbol   string          `json:"symbol"`
	Side     types.OrderSide `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Drift    decimal.Decimal `json:"drift"`
}

// Rebalancer plans and executes drift-correcting trades.
type Rebalancer struct {
	logger *zap.Logger
	config Config
}

// New creates a rebalancer.
func New(logger *zap.Logger, config Config) *Rebalancer {
	return &Rebalancer{logger: logger.Named("rebalance"), config: config}
}

// Plan computes whole-unit trades that move current weights toward the
// target weights. Held symbols missing from targets are treated as
// target zero. Sells come first so their proceeds fund the buys.
func (r *Rebalancer) Plan(book *ledger.Ledger, targets map[string]decimal.Decimal, prices map[string]decimal.Decimal) []Trade {
	total := book.TotalValue()
	if total.IsZero() {
		return nil
	}

	weights := make(map[string]decimal.Decimal, len(targets))
	for sym, w := range targets {
		weights[sym] = w
	}
	for _, pos := range book.Positions() {
		if _, ok := weights[pos.Symbol]; !ok {
			weights[pos.Symbol] = decimal.Zero
		}
	}

	symbols := make([]string, 0, len(weights))
	for sym := range weights {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	minTrade := total.Mul(r.config.MinTradePct)
	var trades []Trade
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			r.logger.Warn("no price for rebalance candidate", zap.String("symbol", sym))
			continue
		}

		var current decimal.Decimal
		if pos := book.Position(sym); pos != nil {
			current = pos.Quantity.Mul(price)
		}
		drift := current.Div(total).Sub(weights[sym])
		if drift.Abs().LessThanOrEqual(r.config.DriftThreshold) {
			continue
		}

		delta := weights[sym].Mul(total).Sub(current)
		qty := delta.Abs().Div(price).Floor()
		if qty.IsZero() || qty.Mul(price).LessThan(minTrade) {
			continue
		}

		side := types.OrderSideBuy
		if delta.IsNegative() {
			side = types.OrderSideSell
			if pos := book.Position(sym); pos != nil && qty.GreaterThan(pos.Quantity) {
				qty = pos.Quantity
			}
		}
		trades = append(trades, Trade{Symbol: sym, Side: side, Quantity: qty, Price: price, Drift: drift})
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Side == types.OrderSideSell && trades[j].Side != types.OrderSideSell
	})
	return trades
}

// Execute plans and applies rebalancing trades through the ledger.
// Rejected orders are logged and skipped, never fatal. Returns the
// orders that filled.
func (r *Rebalancer) Execute(book *ledger.Ledger, targets map[string]decimal.Decimal, prices map[string]decimal.Decimal, at time.Time) []*types.Order {
	book.Revalue(prices)

	var filled []*types.Order
	for _, trade := range r.Plan(book, targets, prices) {
		var (
			order *types.Order
			err   error
		)
		reason := "rebalance toward target allocation"
		if trade.Side == types.OrderSideBuy {
			order, err = book.Buy(trade.Symbol, trade.Quantity, trade.Price, "rebalance", reason, at)
		} else {
			order, err = book.Sell(trade.Symbol, trade.Quantity, trade.Price, "rebalance", reason, at)
		}
		if err != nil {
			var rejected *ledger.RejectedOrderError
			if errors.As(err, &rejected) {
				r.logger.Warn("rebalance trade rejected",
					zap.String("symbol", trade.Symbol),
					zap.String("side", string(trade.Side)),
					zap.String("reason", string(rejected.Reason)))
				continue
			}
			r.logger.Error("rebalance trade failed", zap.Error(err))
			continue
		}
		filled = append(filled, order)
	}

	if len(filled) > 0 {
		r.logger.Info("rebalance executed", zap.Int("trades", len(filled)))
	}
	return filled
}
