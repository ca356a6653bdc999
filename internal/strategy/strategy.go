// Package strategy provides trading strategy implementations.
package strategy

import (
	"fmt"
	"sync"

	"github.com/atlas-desktop/papertrade/pkg/types"
	"go.uber.org/zap"
)

// Vote is a strategy's raw directional opinion on one symbol.
type Vote struct {
	Direction  types.Direction
	Confidence float64 // 0-1
	Reason     string
}

// Hold returns a neutral vote.
func Hold(reason string) Vote {
	return Vote{Direction: types.DirectionHold, Confidence: 0, Reason: reason}
}

// Strategy is the interface all strategies must implement. Evaluate turns
// a price series into a directional vote; ShouldExit decides whether an
// open position should be closed on the current bar.
type Strategy interface {
	Name() string
	Evaluate(series []types.Bar) Vote
	ShouldExit(pos *types.Position, bar types.Bar) bool
}

// Registry manages available strategies.
type Registry struct {
	logger    *zap.Logger
	factories map[string]func() Strategy
	mu        sync.RWMutex
}

// NewRegistry creates a registry with the built-in strategies registered.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger:    logger,
		factories: make(map[string]func() Strategy),
	}

	r.Register("momentum", func() Strategy { return NewMomentum(DefaultMomentumConfig()) })
	r.Register("mean_reversion_rsi", func() Strategy { return NewMeanReversionRSI(DefaultRSIConfig()) })
	r.Register("day_momentum", func() Strategy { return NewDayMomentum(DefaultDayConfig()) })
	r.Register("day_rsi", func() Strategy { return NewDayRSI(DefaultDayConfig()) })

	return r
}

// Register registers a new strategy factory.
func (r *Registry) Register(name string, factory func() Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create creates a new strategy instance by name.
func (r *Registry) Create(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return factory(), nil
}

// List returns all available strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
