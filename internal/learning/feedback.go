// Package learning records trade outcomes and trains an outcome
// classifier that feeds back into signal fusion.
package learning

import (
	"errors"
	"sync"
	"time"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInsufficientSamples means training was skipped because too few
// outcomes have been recorded.
var ErrInsufficientSamples = errors.New("insufficient samples to train")

// Config tunes the feedback engine.
type Config struct {
	// MinSamples before the first training pass is attempted.
	MinSamples int `json:"minSamples"`
	// MaxSamples caps the retained window, oldest dropped first.
	MaxSamples int `json:"maxSamples"`
	// NeutralBand is the absolute P&L below which an outcome counts as
	// neutral rather than a win or loss.
	NeutralBand decimal.Decimal `json:"neutralBand"`
}

// DefaultConfig returns default learning parameters.
func DefaultConfig() Config {
	return Config{
		MinSamples:  50,
		MaxSamples:  5000,
		NeutralBand: decimal.NewFromInt(1),
	}
}

// Engine accumulates labeled trade outcomes and retrains the
// classifier on demand.
type Engine struct {
	logger *zap.Logger
	config Config
	mu     sync.RWMutex

	samples    []types.LearningSample
	classifier *Classifier
	lastTrain  time.Time
}

// NewEngine creates a feedback engine with an untrained classifier.
func NewEngine(logger *zap.Logger, config Config) *Engine {
	return &Engine{
		logger:     logger.Named("learning"),
		config:     config,
		classifier: NewClassifier(),
	}
}

// ClassifyOutcome labels a realized P&L.
func (e *Engine) ClassifyOutcome(pnl decimal.Decimal) types.Outcome {
	switch {
	case pnl.GreaterThan(e.config.NeutralBand):
		return types.OutcomeProfitable
	case pnl.LessThan(e.config.NeutralBand.Neg()):
		return types.OutcomeLoss
	default:
		return types.OutcomeNeutral
	}
}

// Record stores one closed trade's features and outcome.
func (e *Engine) Record(symbol string, features types.Features, pnl decimal.Decimal, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples = append(e.samples, types.LearningSample{
		Symbol:   symbol,
		Features: features,
		Outcome:  e.ClassifyOutcome(pnl),
		PnL:      pnl,
		Recorded: at,
	})
	if e.config.MaxSamples > 0 && len(e.samples) > e.config.MaxSamples {
		e.samples = e.samples[len(e.samples)-e.config.MaxSamples:]
	}
}

// SampleCount returns the retained sample count.
func (e *Engine) SampleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.samples)
}

// Train refits the classifier on the retained samples. Returns
// ErrInsufficientSamples below the configured minimum; the previous
// model, if any, stays in effect.
func (e *Engine) Train(at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.samples) < e.config.MinSamples {
		e.logger.Debug("training skipped",
			zap.Int("samples", len(e.samples)),
			zap.Int("required", e.config.MinSamples))
		return ErrInsufficientSamples
	}

	fresh := NewClassifier()
	if err := fresh.Fit(e.samples); err != nil {
		e.logger.Warn("training failed, keeping previous model", zap.Error(err))
		return err
	}

	e.classifier = fresh
	e.lastTrain = at
	e.logger.Info("outcome classifier trained",
		zap.Int("samples", len(e.samples)))
	return nil
}

// Predict returns the trained classifier's read on a feature vector,
// nil while untrained.
func (e *Engine) Predict(features types.Features) *types.Prediction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.classifier.Predict(features)
}

// Trained reports whether a model is available.
func (e *Engine) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.classifier.Trained()
}

// State is the serializable form of the engine for snapshots.
type State struct {
	Samples   []types.LearningSample `json:"samples"`
	Model     Params                 `json:"model"`
	LastTrain time.Time              `json:"lastTrain"`
}

// Export captures samples and model parameters for persistence.
func (e *Engine) Export() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	samples := make([]types.LearningSample, len(e.samples))
	copy(samples, e.samples)
	return State{
		Samples:   samples,
		Model:     e.classifier.Params(),
		LastTrain: e.lastTrain,
	}
}

// Restore replaces the engine's state from a snapshot.
func (e *Engine) Restore(state State) error {
	classifier, err := NewClassifierFromParams(state.Model)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = state.Samples
	e.classifier = classifier
	e.lastTrain = state.LastTrain
	return nil
}
