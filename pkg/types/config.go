// Package types provides configuration types for the paper trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskParams tunes the risk manager for a session.
type RiskParams struct {
	MaxPositionPct decimal.Decimal `json:"maxPositionPct"` // fraction of equity per position
	DailyLossPct   decimal.Decimal `json:"dailyLossPct"`   // daily loss budget fraction
	SizingFraction decimal.Decimal `json:"sizingFraction"` // fraction of equity per entry
	MaxOrderValue  decimal.Decimal `json:"maxOrderValue"`  // absolute per-order notional cap
}

// RebalanceParams tunes the rebalancer.
type RebalanceParams struct {
	DriftThreshold decimal.Decimal `json:"driftThreshold"`
	MinTradePct    decimal.Decimal `json:"minTradePct"`
}

// EngineConfig configures one simulated portfolio engine run.
type EngineConfig struct {
	Strategy         string                     `json:"strategy"`
	Watchlist        []string                   `json:"watchlist"`
	InitialCapital   decimal.Decimal            `json:"initialCapital"`
	CycleInterval    time.Duration              `json:"cycleInterval"`
	Lookback         int                        `json:"lookback"`
	EndOfDay         string                     `json:"endOfDay"`   // "15:55"
	AutoRestart      bool                       `json:"autoRestart"`
	TargetAllocation map[string]decimal.Decimal `json:"targetAllocation,omitempty"`
	RebalanceEvery   int                        `json:"rebalanceEvery"` // cycles between rebalance passes
	SymbolTimeout    time.Duration              `json:"symbolTimeout"`
	Risk             RiskParams                 `json:"risk"`
	Rebalance        RebalanceParams            `json:"rebalance"`
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Strategy:       "momentum",
		Watchlist:      []string{"AAPL", "MSFT", "NVDA"},
		InitialCapital: decimal.NewFromInt(100000),
		CycleInterval:  30 * time.Second,
		Lookback:       60,
		EndOfDay:       "15:55",
		AutoRestart:    false,
		RebalanceEvery: 20,
		SymbolTimeout:  5 * time.Second,
		Risk: RiskParams{
			MaxPositionPct: decimal.NewFromFloat(0.10),
			DailyLossPct:   decimal.NewFromFloat(0.05),
			SizingFraction: decimal.NewFromFloat(0.08),
			MaxOrderValue:  decimal.NewFromInt(25000),
		},
		Rebalance: RebalanceParams{
			DriftThreshold: decimal.NewFromFloat(0.05),
			MinTradePct:    decimal.NewFromFloat(0.01),
		},
	}
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	WebSocketPath string        `json:"websocketPath"`
	ReadTimeout   time.Duration `json:"readTimeout"`
	WriteTimeout  time.Duration `json:"writeTimeout"`
	EnableMetrics bool          `json:"enableMetrics"`
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "localhost",
		Port:          8080,
		WebSocketPath: "/ws",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		EnableMetrics: true,
	}
}
