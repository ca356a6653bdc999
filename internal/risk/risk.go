// Package risk enforces position sizing limits and the daily loss
// circuit breaker.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Block rule identifiers.
const (
	RulePositionTooLarge = "position_too_large"
	RuleDailyLossLimit   = "daily_loss_limit"
	RuleInvalidOrder     = "invalid_order"
)

// BlockError reports a risk rule that blocked an order.
type BlockError struct {
	Rule   string
	Symbol string
	Detail string
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("risk block %s for %s: %s", e.Rule, e.Symbol, e.Detail)
}

// Violation records a blocked order for reporting.
type Violation struct {
	Rule      string          `json:"rule"`
	Symbol    string          `json:"symbol"`
	Value     decimal.Decimal `json:"value"`
	Limit     decimal.Decimal `json:"limit"`
	Timestamp time.Time       `json:"timestamp"`
}

// Config contains risk limits.
type Config struct {
	// MaxPositionPct is the maximum fraction of total equity a single
	// position may represent after the order fills.
	MaxPositionPct decimal.Decimal `json:"maxPositionPct"`
	// DailyLossPct of start-of-day equity trips the circuit breaker.
	DailyLossPct decimal.Decimal `json:"dailyLossPct"`
	// SizingFraction is the target fraction of equity committed to a
	// new position before confidence scaling.
	SizingFraction decimal.Decimal `json:"sizingFraction"`
	// MaxOrderValue is an absolute per-order notional cap.
	MaxOrderValue decimal.Decimal `json:"maxOrderValue"`
}

// DefaultConfig returns default risk limits.
func DefaultConfig() Config {
	return Config{
		MaxPositionPct: decimal.NewFromFloat(0.10),
		DailyLossPct:   decimal.NewFromFloat(0.05),
		SizingFraction: decimal.NewFromFloat(0.08),
		MaxOrderValue:  decimal.NewFromInt(25000),
	}
}

// Manager tracks daily realized losses and gates order entry.
type Manager struct {
	logger *zap.Logger
	config Config
	mu     sync.RWMutex

	dayStartEquity decimal.Decimal
	currentEquity  decimal.Decimal
	realizedToday  decimal.Decimal
	tripped        bool
	violations     []Violation
}

// NewManager creates a risk manager. ResetDaily must be called with the
// session's opening equity before the first check.
func NewManager(logger *zap.Logger, config Config) *Manager {
	return &Manager{
		logger: logger.Named("risk"),
		config: config,
	}
}

// ResetDaily clears daily tracking at session start.
func (m *Manager) ResetDaily(startEquity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dayStartEquity = startEquity
	m.currentEquity = startEquity
	m.realizedToday = decimal.Zero
	m.tripped = false
	m.logger.Info("daily risk state reset",
		zap.String("startEquity", startEquity.String()))
}

// RecordRealized accumulates realized P&L and trips the breaker when
// the daily loss budget is exhausted. Once tripped, the breaker stays
// tripped until the next ResetDaily.
func (m *Manager) RecordRealized(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.realizedToday = m.realizedToday.Add(pnl)
	if m.tripped {
		return
	}
	budget := m.dayStartEquity.Mul(m.config.DailyLossPct)
	if m.realizedToday.LessThanOrEqual(budget.Neg()) {
		m.tripped = true
		m.logger.Warn("daily loss breaker tripped",
			zap.String("realized", m.realizedToday.String()),
			zap.String("budget", budget.String()))
	}
}

// MarkEquity updates the breaker with the portfolio's current total
// value so that unrealized losses count against the daily budget. Call
// once per cycle after revaluation.
func (m *Manager) MarkEquity(equity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentEquity = equity
	if m.tripped || m.dayStartEquity.IsZero() {
		return
	}
	budget := m.dayStartEquity.Mul(m.config.DailyLossPct)
	if m.dayStartEquity.Sub(equity).GreaterThanOrEqual(budget) {
		m.tripped = true
		m.logger.Warn("daily loss breaker tripped on equity drawdown",
			zap.String("equity", equity.String()),
			zap.String("dayStart", m.dayStartEquity.String()))
	}
}

// Tripped reports whether the daily loss breaker is active.
func (m *Manager) Tripped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tripped
}

// DailyLossUsage returns the consumed fraction of the daily loss
// budget, clamped to [0, 1]. The worse of the realized loss and the
// marked equity drawdown counts; gains count as zero usage.
func (m *Manager) DailyLossUsage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	budget := m.dayStartEquity.Mul(m.config.DailyLossPct)
	if budget.IsZero() {
		return 0
	}
	loss := decimal.Max(m.realizedToday.Neg(), m.dayStartEquity.Sub(m.currentEquity))
	if loss.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	usage, _ := loss.Div(budget).Float64()
	if usage > 1 {
		return 1
	}
	return usage
}

// CanOpen checks whether a new entry of qty at price is allowed given
// current total equity and any existing notional in the symbol. Returns
// a *BlockError describing the violated rule, or nil. Violations are
// recorded with the caller's cycle time.
func (m *Manager) CanOpen(symbol string, qty, price, existingValue, totalEquity decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qty.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return &BlockError{Rule: RuleInvalidOrder, Symbol: symbol, Detail: "quantity and price must be positive"}
	}

	if m.tripped {
		m.record(Violation{Rule: RuleDailyLossLimit, Symbol: symbol,
			Value: m.realizedToday, Limit: m.dayStartEquity.Mul(m.config.DailyLossPct).Neg(),
			Timestamp: at})
		return &BlockError{Rule: RuleDailyLossLimit, Symbol: symbol,
			Detail: fmt.Sprintf("daily loss breaker active, realized %s", m.realizedToday.String())}
	}

	if totalEquity.IsZero() {
		return &BlockError{Rule: RuleInvalidOrder, Symbol: symbol, Detail: "zero portfolio equity"}
	}

	value := existingValue.Add(qty.Mul(price))
	limit := totalEquity.Mul(m.config.MaxPositionPct)
	if value.GreaterThan(limit) {
		m.record(Violation{Rule: RulePositionTooLarge, Symbol: symbol, Value: value, Limit: limit,
			Timestamp: at})
		return &BlockError{Rule: RulePositionTooLarge, Symbol: symbol,
			Detail: fmt.Sprintf("position value %s exceeds limit %s", value.StringFixed(2), limit.StringFixed(2))}
	}
	return nil
}

// SizePosition returns the whole-unit quantity to buy for a signal,
// scaled by confidence and capped by the position limit, available
// cash, and the absolute order cap. Returns zero when nothing fits.
func (m *Manager) SizePosition(confidence float64, price, cash, totalEquity decimal.Decimal) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if price.LessThanOrEqual(decimal.Zero) || confidence <= 0 {
		return decimal.Zero
	}

	notional := totalEquity.Mul(m.config.SizingFraction).Mul(decimal.NewFromFloat(confidence))
	if limit := totalEquity.Mul(m.config.MaxPositionPct); notional.GreaterThan(limit) {
		notional = limit
	}
	if notional.GreaterThan(cash) {
		notional = cash
	}
	if notional.GreaterThan(m.config.MaxOrderValue) {
		notional = m.config.MaxOrderValue
	}

	return notional.Div(price).Floor()
}

// Violations returns the most recent blocked-order records, newest last.
func (m *Manager) Violations(limit int) []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.violations) {
		limit = len(m.violations)
	}
	out := make([]Violation, limit)
	copy(out, m.violations[len(m.violations)-limit:])
	return out
}

// Stats summarizes current risk state.
type Stats struct {
	DayStartEquity decimal.Decimal `json:"dayStartEquity"`
	RealizedToday  decimal.Decimal `json:"realizedToday"`
	LossUsage      float64         `json:"lossUsage"`
	BreakerTripped bool            `json:"breakerTripped"`
	ViolationCount int             `json:"violationCount"`
}

// GetStats returns current risk statistics.
func (m *Manager) GetStats() Stats {
	usage := m.DailyLossUsage()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		DayStartEquity: m.dayStartEquity,
		RealizedToday:  m.realizedToday,
		LossUsage:      usage,
		BreakerTripped: m.tripped,
		ViolationCount: len(m.violations),
	}
}

func (m *Manager) record(v Violation) {
	m.violations = append(m.violations, v)
	if len(m.violations) > 200 {
		m.violations = m.violations[len(m.violations)-200:]
	}
}
