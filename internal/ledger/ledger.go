// Package ledger maintains the authoritative cash and position state of a
// simulated portfolio.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RejectReason classifies why an order was rejected.
type RejectReason string

const (
	RejectInsufficientCash   RejectReason = "insufficient_cash"
	RejectInsufficientShares RejectReason = "insufficient_shares"
	RejectNoPosition         RejectReason = "no_position"
	RejectInvalidOrder       RejectReason = "invalid_order"
)

// RejectedOrderError is returned when a buy or sell cannot be filled.
// It is an expected, recoverable condition; the rejected order is still
// appended to the order log with OrderStatusRejected.
type RejectedOrderError struct {
	Reason RejectReason
	Symbol string
	Detail string
}

func (e *RejectedOrderError) Error() string {
	return fmt.Sprintf("order rejected (%s): %s %s", e.Reason, e.Symbol, e.Detail)
}

// Ledger owns portfolio state. All mutation goes through Buy, Sell,
// Revalue and Snapshot; everything else is a read under RLock.
type Ledger struct {
	mu          sync.RWMutex
	logger      *zap.Logger
	cash        decimal.Decimal
	initialCash decimal.Decimal
	positions   map[string]*types.Position
	orders      []types.Order
	snapshots   []types.SnapshotPoint
	realizedPnL decimal.Decimal
}

// New creates a ledger with the given starting capital.
func New(logger *zap.Logger, initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		logger:      logger.Named("ledger"),
		cash:        initialCash,
		initialCash: initialCash,
		positions:   make(map[string]*types.Position),
	}
}

// Buy debits cash and opens or grows a position at weighted-average cost.
// Fails with RejectInsufficientCash when cost exceeds available cash; the
// cash invariant (cash >= 0) can never be violated.
func (l *Ledger) Buy(symbol string, qty, price decimal.Decimal, strategy, reason string, at time.Time) (*types.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if qty.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return nil, l.reject(symbol, types.OrderSideBuy, qty, price, strategy, RejectInvalidOrder,
			"quantity and price must be positive", at)
	}

	cost := qty.Mul(price)
	if cost.GreaterThan(l.cash) {
		return nil, l.reject(symbol, types.OrderSideBuy, qty, price, strategy, RejectInsufficientCash,
			fmt.Sprintf("cost %s exceeds cash %s", cost, l.cash), at)
	}

	l.cash = l.cash.Sub(cost)

	if pos, ok := l.positions[symbol]; ok {
		totalQty := pos.Quantity.Add(qty)
		totalCost := pos.Quantity.Mul(pos.AvgPrice).Add(cost)
		pos.AvgPrice = totalCost.Div(totalQty)
		pos.Quantity = totalQty
		pos.LastPrice = price
		pos.Trades++
	} else {
		l.positions[symbol] = &types.Position{
			Symbol:    symbol,
			Quantity:  qty,
			AvgPrice:  price,
			LastPrice: price,
			OpenedAt:  at,
			Trades:    1,
		}
	}

	order := l.appendOrder(symbol, types.OrderSideBuy, qty, price, types.OrderStatusFilled,
		strategy, reason, decimal.Zero, at)

	l.logger.Info("buy filled",
		zap.String("symbol", symbol),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
		zap.String("cash", l.cash.String()))

	return order, nil
}

// Sell credits proceeds and shrinks the position, recording realized P&L
// against the average cost. Over-selling is fully rejected, never
// partially filled. A position reaching zero quantity is removed.
func (l *Ledger) Sell(symbol string, qty, price decimal.Decimal, strategy, reason string, at time.Time) (*types.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if qty.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return nil, l.reject(symbol, types.OrderSideSell, qty, price, strategy, RejectInvalidOrder,
			"quantity and price must be positive", at)
	}

	pos, ok := l.positions[symbol]
	if !ok {
		return nil, l.reject(symbol, types.OrderSideSell, qty, price, strategy, RejectNoPosition,
			"no open position", at)
	}
	if qty.GreaterThan(pos.Quantity) {
		return nil, l.reject(symbol, types.OrderSideSell, qty, price, strategy, RejectInsufficientShares,
			fmt.Sprintf("quantity %s exceeds held %s", qty, pos.Quantity), at)
	}

	proceeds := qty.Mul(price)
	pnl := price.Sub(pos.AvgPrice).Mul(qty)

	l.cash = l.cash.Add(proceeds)
	l.realizedPnL = l.realizedPnL.Add(pnl)
	pos.Quantity = pos.Quantity.Sub(qty)
	pos.LastPrice = price
	pos.Trades++
	if pos.Quantity.IsZero() {
		delete(l.positions, symbol)
	}

	order := l.appendOrder(symbol, types.OrderSideSell, qty, price, types.OrderStatusFilled,
		strategy, reason, pnl, at)

	l.logger.Info("sell filled",
		zap.String("symbol", symbol),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
		zap.String("pnl", pnl.String()))

	return order, nil
}

// Revalue updates last known prices only. Cash and quantities are never
// touched here.
func (l *Ledger) Revalue(prices map[string]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for symbol, price := range prices {
		if pos, ok := l.positions[symbol]; ok && price.GreaterThan(decimal.Zero) {
			pos.LastPrice = price
		}
	}
}

// Snapshot appends a valuation point. Timestamps must strictly increase;
// an out-of-order timestamp is dropped.
func (l *Ledger) Snapshot(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.snapshots); n > 0 && !at.After(l.snapshots[n-1].Timestamp) {
		l.logger.Debug("snapshot dropped, non-increasing timestamp", zap.Time("at", at))
		return
	}

	l.snapshots = append(l.snapshots, types.SnapshotPoint{
		Timestamp:  at,
		TotalValue: l.totalValueLocked(),
		Cash:       l.cash,
	})
}

func (l *Ledger) reject(symbol string, side types.OrderSide, qty, price decimal.Decimal, strategy string, reason RejectReason, detail string, at time.Time) *RejectedOrderError {
	l.appendOrder(symbol, side, qty, price, types.OrderStatusRejected, strategy, string(reason), decimal.Zero, at)
	l.logger.Warn("order rejected",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("reason", string(reason)),
		zap.String("detail", detail))
	return &RejectedOrderError{Reason: reason, Symbol: symbol, Detail: detail}
}

func (l *Ledger) appendOrder(symbol string, side types.OrderSide, qty, price decimal.Decimal, status types.OrderStatus, strategy, reason string, pnl decimal.Decimal, at time.Time) *types.Order {
	order := types.Order{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Status:    status,
		Strategy:  strategy,
		Reason:    reason,
		PnL:       pnl,
		CreatedAt: at,
	}
	l.orders = append(l.orders, order)
	return &order
}

// Cash returns available cash.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// RealizedPnL returns cumulative realized profit since creation.
func (l *Ledger) RealizedPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realizedPnL
}

// TotalValue returns cash plus the market value of every position.
func (l *Ledger) TotalValue() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalValueLocked()
}

func (l *Ledger) totalValueLocked() decimal.Decimal {
	total := l.cash
	for _, pos := range l.positions {
		total = total.Add(pos.MarketValue())
	}
	return total
}

// Position returns a copy of the position for symbol, or nil.
func (l *Ledger) Position(symbol string) *types.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return nil
	}
	cp := *pos
	return &cp
}

// Positions returns copies of all open positions.
func (l *Ledger) Positions() map[string]*types.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]*types.Position, len(l.positions))
	for symbol, pos := range l.positions {
		cp := *pos
		out[symbol] = &cp
	}
	return out
}

// RecentOrders returns the most recent orders, newest last.
func (l *Ledger) RecentOrders(limit int) []types.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.orders) {
		limit = len(l.orders)
	}
	out := make([]types.Order, limit)
	copy(out, l.orders[len(l.orders)-limit:])
	return out
}

// History returns a copy of the valuation snapshot history.
func (l *Ledger) History() []types.SnapshotPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.SnapshotPoint, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}

// Summary is a consistent read-only view of the portfolio.
type Summary struct {
	Cash        decimal.Decimal            `json:"cash"`
	Positions   map[string]*types.Position `json:"positions"`
	TotalValue  decimal.Decimal            `json:"totalValue"`
	RealizedPnL decimal.Decimal            `json:"realizedPnl"`
}

// Summarize returns a point-in-time summary.
func (l *Ledger) Summarize() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]*types.Position, len(l.positions))
	for symbol, pos := range l.positions {
		cp := *pos
		positions[symbol] = &cp
	}
	return Summary{
		Cash:        l.cash,
		Positions:   positions,
		TotalValue:  l.totalValueLocked(),
		RealizedPnL: l.realizedPnL,
	}
}

// State is the persistable form of the ledger.
type State struct {
	Cash        decimal.Decimal            `json:"cash"`
	InitialCash decimal.Decimal            `json:"initialCash"`
	RealizedPnL decimal.Decimal            `json:"realizedPnl"`
	Positions   map[string]*types.Position `json:"positions"`
	Orders      []types.Order              `json:"orders"`
	Snapshots   []types.SnapshotPoint      `json:"snapshots"`
}

// Export returns a deep copy of the full ledger state for persistence.
func (l *Ledger) Export() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]*types.Position, len(l.positions))
	for symbol, pos := range l.positions {
		cp := *pos
		positions[symbol] = &cp
	}
	orders := make([]types.Order, len(l.orders))
	copy(orders, l.orders)
	snapshots := make([]types.SnapshotPoint, len(l.snapshots))
	copy(snapshots, l.snapshots)

	return State{
		Cash:        l.cash,
		InitialCash: l.initialCash,
		RealizedPnL: l.realizedPnL,
		Positions:   positions,
		Orders:      orders,
		Snapshots:   snapshots,
	}
}

// Restore replaces the ledger state from a persisted snapshot.
func (l *Ledger) Restore(state State) error {
	if state.Cash.LessThan(decimal.Zero) {
		return fmt.Errorf("restore: negative cash %s", state.Cash)
	}
	for symbol, pos := range state.Positions {
		if pos.Quantity.LessThan(decimal.Zero) {
			return fmt.Errorf("restore: negative quantity for %s", symbol)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = state.Cash
	l.initialCash = state.InitialCash
	l.realizedPnL = state.RealizedPnL
	l.positions = make(map[string]*types.Position, len(state.Positions))
	for symbol, pos := range state.Positions {
		cp := *pos
		l.positions[symbol] = &cp
	}
	l.orders = append([]types.Order(nil), state.Orders...)
	l.snapshots = append([]types.SnapshotPoint(nil), state.Snapshots...)
	return nil
}
