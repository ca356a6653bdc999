// Package fusion combines per-symbol strategy votes with predictive
// model votes into a single trading signal.
package fusion

import (
	"fmt"
	"math"
	"time"

	"github.com/atlas-desktop/papertrade/internal/strategy"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config tunes the fusion precedence rules.
type Config struct {
	// PredictiveOverride is the minimum predictive confidence for the
	// predictive vote to win outright over the strategy vote.
	PredictiveOverride float64 `json:"predictiveOverride"`
	// RiskLowWatermark is the maximum fraction of the daily loss budget
	// that may be consumed for a predictive override to apply.
	RiskLowWatermark float64 `json:"riskLowWatermark"`
	// StrongThreshold promotes buy/sell to strong_buy/strong_sell.
	StrongThreshold float64 `json:"strongThreshold"`
	// LearnedLossVeto demotes a signal to hold when the outcome
	// classifier predicts a loss at or above this confidence.
	LearnedLossVeto float64 `json:"learnedLossVeto"`
}

// DefaultConfig returns default fusion parameters.
func DefaultConfig() Config {
	return Config{
		PredictiveOverride: 0.75,
		RiskLowWatermark:   0.5,
		StrongThreshold:    0.8,
		LearnedLossVeto:    0.7,
	}
}

// Inputs carries everything fusion needs for one symbol on one cycle.
type Inputs struct {
	Symbol   string
	Price    decimal.Decimal
	Strategy strategy.Vote
	// Predictive is the model vote, nil when the predictive port has
	// nothing for this symbol.
	Predictive *types.Prediction
	// RiskUsage is the consumed fraction of the daily loss budget, in
	// [0, 1].
	RiskUsage float64
	// Learned is the outcome classifier's read on this setup, nil until
	// the classifier is trained.
	Learned *types.Prediction
	At      time.Time
}

// Fuser merges strategy and predictive votes under fixed precedence
// rules and applies the learned-outcome adjustment.
type Fuser struct {
	logger *zap.Logger
	config Config
}

// New creates a signal fuser.
func New(logger *zap.Logger, config Config) *Fuser {
	return &Fuser{logger: logger.Named("fusion"), config: config}
}

// Fuse resolves one symbol's votes into a signal. Precedence:
//
//  1. A predictive vote with high confidence wins outright while risk
//     usage is low.
//  2. Agreement uses the shared direction at the higher confidence.
//  3. Disagreement between two non-hold votes resolves to hold.
//  4. A hold on either side resolves to hold.
func (f *Fuser) Fuse(in Inputs) *types.Signal {
	direction, confidence, reason := f.resolve(in)

	if direction != types.DirectionHold && in.Learned != nil {
		direction, confidence, reason = f.applyLearned(in, direction, confidence, reason)
	}

	sig := &types.Signal{
		Symbol:     in.Symbol,
		Type:       f.signalType(direction, confidence),
		Confidence: confidence,
		Price:      in.Price,
		Reasoning:  reason,
		CreatedAt:  in.At,
	}

	f.logger.Debug("fused signal",
		zap.String("symbol", in.Symbol),
		zap.String("type", string(sig.Type)),
		zap.Float64("confidence", sig.Confidence),
		zap.String("reason", reason))
	return sig
}

func (f *Fuser) resolve(in Inputs) (types.Direction, float64, string) {
	sv := in.Strategy
	pv := in.Predictive

	if pv == nil {
		return sv.Direction, sv.Confidence, sv.Reason
	}

	// Rule 1: confident model vote overrides while risk headroom is
	// healthy, even against a disagreeing strategy.
	if pv.Direction != types.DirectionHold &&
		pv.Confidence >= f.config.PredictiveOverride &&
		in.RiskUsage <= f.config.RiskLowWatermark {
		return pv.Direction, pv.Confidence,
			fmt.Sprintf("predictive override (%.2f confidence, %.0f%% risk used)",
				pv.Confidence, in.RiskUsage*100)
	}

	// Rule 4: either side holding means no conviction.
	if sv.Direction == types.DirectionHold || pv.Direction == types.DirectionHold {
		return types.DirectionHold, 0, "no conviction from both sources"
	}

	// Rule 2: agreement compounds.
	if sv.Direction == pv.Direction {
		return sv.Direction, math.Max(sv.Confidence, pv.Confidence),
			fmt.Sprintf("strategy and model agree: %s", sv.Reason)
	}

	// Rule 3: conflicting non-hold votes cancel out.
	return types.DirectionHold, 0,
		fmt.Sprintf("strategy says %s, model says %s", sv.Direction, pv.Direction)
}

// applyLearned scales the fused confidence by the outcome classifier's
// verdict on this setup.
func (f *Fuser) applyLearned(in Inputs, direction types.Direction, confidence float64, reason string) (types.Direction, float64, string) {
	switch in.Learned.Outcome {
	case types.OutcomeLoss:
		if in.Learned.Confidence >= f.config.LearnedLossVeto {
			return types.DirectionHold, 0,
				fmt.Sprintf("vetoed: similar setups lost %.0f%% of the time", in.Learned.Confidence*100)
		}
		confidence *= 1 - in.Learned.Confidence/2
		reason += "; dampened by loss history"
	case types.OutcomeProfitable:
		confidence = math.Min(confidence*(1+in.Learned.Confidence/4), 1)
		reason += "; boosted by win history"
	}
	return direction, confidence, reason
}

func (f *Fuser) signalType(direction types.Direction, confidence float64) types.SignalType {
	switch direction {
	case types.DirectionBuy:
		if confidence >= f.config.StrongThreshold {
			return types.SignalStrongBuy
		}
		return types.SignalBuy
	case types.DirectionSell:
		if confidence >= f.config.StrongThreshold {
			return types.SignalStrongSell
		}
		return types.SignalSell
	default:
		return types.SignalHold
	}
}
