// Package types provides shared type definitions for the paper trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

// SignalType represents the actionable direction of a fused signal
type SignalType string

const (
	SignalStrongBuy  SignalType = "strong_buy"
	SignalBuy        SignalType = "buy"
	SignalHold       SignalType = "hold"
	SignalSell       SignalType = "sell"
	SignalStrongSell SignalType = "strong_sell"
)

// Direction is a raw directional vote before fusion
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionHold Direction = "hold"
	DirectionSell Direction = "sell"
)

// SessionState represents the scheduler lifecycle state
type SessionState string

const (
	SessionIdle    SessionState = "idle"
	SessionRunning SessionState = "running"
	SessionPaused  SessionState = "paused"
	SessionClosing SessionState = "closing"
)

// Outcome labels a completed trade for the learning model
type Outcome string

const (
	OutcomeProfitable Outcome = "profitable"
	OutcomeLoss       Outcome = "loss"
	OutcomeNeutral    Outcome = "neutral"
)

// Bar represents a single candlestick
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Order represents an immutable entry in the portfolio's order log.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Status    OrderStatus     `json:"status"`
	Strategy  string          `json:"strategy,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	PnL       decimal.Decimal `json:"pnl"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Position represents a currently held symbol. Owned exclusively by the
// ledger; quantity never goes below zero.
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avgPrice"`
	LastPrice decimal.Decimal `json:"lastPrice"`
	OpenedAt  time.Time       `json:"openedAt"`
	Trades    int             `json:"trades"`
}

// MarketValue returns quantity * last known price.
func (p *Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.LastPrice)
}

// UnrealizedPnL returns the open profit at the last known price.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	return p.Quantity.Mul(p.LastPrice.Sub(p.AvgPrice))
}

// Signal represents a fused, confidence-scored recommendation for one
// symbol at one point in time. Produced by fusion, consumed once.
type Signal struct {
	Symbol     string          `json:"symbol"`
	Type       SignalType      `json:"type"`
	Confidence float64         `json:"confidence"`
	Price      decimal.Decimal `json:"price"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Target     decimal.Decimal `json:"target,omitempty"`
	Stop       decimal.Decimal `json:"stop,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Actionable reports whether the signal asks for a trade.
func (s *Signal) Actionable() bool {
	return s.Type != SignalHold
}

// SnapshotPoint is one entry in the portfolio valuation history.
type SnapshotPoint struct {
	Timestamp  time.Time       `json:"timestamp"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Cash       decimal.Decimal `json:"cash"`
}

// StrategyPerformance aggregates per-strategy results within a session.
type StrategyPerformance struct {
	Strategy string          `json:"strategy"`
	Trades   int             `json:"trades"`
	Wins     int             `json:"wins"`
	PnL      decimal.Decimal `json:"pnl"`
}

// TradingSession records one day-trading session. Closed sessions are
// immutable and appended to history.
type TradingSession struct {
	ID             string                          `json:"id"`
	Date           string                          `json:"date"`
	StartTime      time.Time                       `json:"startTime"`
	EndTime        time.Time                       `json:"endTime,omitempty"`
	InitialCapital decimal.Decimal                 `json:"initialCapital"`
	FinalCapital   decimal.Decimal                 `json:"finalCapital"`
	TotalTrades    int                             `json:"totalTrades"`
	WinningTrades  int                             `json:"winningTrades"`
	LosingTrades   int                             `json:"losingTrades"`
	TotalPnL       decimal.Decimal                 `json:"totalPnl"`
	MaxDrawdown    decimal.Decimal                 `json:"maxDrawdown"`
	ByStrategy     map[string]*StrategyPerformance `json:"byStrategy,omitempty"`
	SentimentScore float64                         `json:"sentimentScore"`
	Insights       []string                        `json:"insights,omitempty"`
	Closed         bool                            `json:"closed"`
}

// Features is the learning model's input vector, captured when a trade
// is opened.
type Features struct {
	Momentum      float64 `json:"momentum"`
	RSI           float64 `json:"rsi"`
	VolumeRatio   float64 `json:"volumeRatio"`
	PriceChange1D float64 `json:"priceChange1d"`
	PriceChange5D float64 `json:"priceChange5d"`
	Volatility    float64 `json:"volatility"`
	Sentiment     float64 `json:"sentiment"`
	HourOfDay     float64 `json:"hourOfDay"`
	DayOfWeek     float64 `json:"dayOfWeek"`
}

// Vector returns the features in fixed order for the classifier.
func (f Features) Vector() []float64 {
	return []float64{
		f.Momentum, f.RSI, f.VolumeRatio,
		f.PriceChange1D, f.PriceChange5D,
		f.Volatility, f.Sentiment, f.HourOfDay, f.DayOfWeek,
	}
}

// LearningSample pairs a feature vector with the realized outcome of the
// trade it described.
type LearningSample struct {
	Symbol   string          `json:"symbol"`
	Features Features        `json:"features"`
	Outcome  Outcome         `json:"outcome"`
	PnL      decimal.Decimal `json:"pnl"`
	Recorded time.Time       `json:"recorded"`
}

// Prediction is the learned model's vote for a prospective trade.
type Prediction struct {
	Direction  Direction `json:"direction"`
	Outcome    Outcome   `json:"outcome"`
	Confidence float64   `json:"confidence"`
}
