package learning_test

import (
	"errors"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade/internal/learning"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var trainTime = time.Date(2025, 3, 3, 16, 0, 0, 0, time.UTC)

// winnerFeatures and loserFeatures are deliberately separable so the
// classifier has something real to learn.
func winnerFeatures(i int) types.Features {
	return types.Features{
		Momentum:    0.05 + float64(i%5)*0.01,
		RSI:         45 + float64(i%10),
		VolumeRatio: 2.0,
		Volatility:  0.01,
		HourOfDay:   11,
		DayOfWeek:   2,
	}
}

func loserFeatures(i int) types.Features {
	return types.Features{
		Momentum:    -0.04 - float64(i%5)*0.01,
		RSI:         75 + float64(i%10),
		VolumeRatio: 0.8,
		Volatility:  0.04,
		HourOfDay:   15,
		DayOfWeek:   4,
	}
}

func seededEngine(t *testing.T, n int) *learning.Engine {
	t.Helper()
	e := learning.NewEngine(zap.NewNop(), learning.DefaultConfig())
	for i := 0; i < n/2; i++ {
		e.Record("AAPL", winnerFeatures(i), decimal.NewFromInt(250), trainTime)
		e.Record("AAPL", loserFeatures(i), decimal.NewFromInt(-180), trainTime)
	}
	return e
}

func TestTrainRequiresMinimumSamples(t *testing.T) {
	e := seededEngine(t, 40)

	if err := e.Train(trainTime); !errors.Is(err, learning.ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
	if e.Trained() {
		t.Error("engine must stay untrained below minimum")
	}
	if p := e.Predict(winnerFeatures(0)); p != nil {
		t.Error("untrained engine must predict nil")
	}
}

func TestTrainAndPredict(t *testing.T) {
	e := seededEngine(t, 60)

	if err := e.Train(trainTime); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if !e.Trained() {
		t.Fatal("engine should be trained")
	}

	win := e.Predict(winnerFeatures(1))
	if win == nil || win.Outcome != types.OutcomeProfitable {
		t.Errorf("winner-like setup should predict profitable, got %+v", win)
	}
	if win.Confidence <= 0.5 || win.Confidence > 1 {
		t.Errorf("confidence out of range: %f", win.Confidence)
	}

	loss := e.Predict(loserFeatures(1))
	if loss == nil || loss.Outcome != types.OutcomeLoss {
		t.Errorf("loser-like setup should predict loss, got %+v", loss)
	}
}

func TestClassifyOutcome(t *testing.T) {
	e := learning.NewEngine(zap.NewNop(), learning.DefaultConfig())

	if got := e.ClassifyOutcome(decimal.NewFromInt(100)); got != types.OutcomeProfitable {
		t.Errorf("positive P&L: %s", got)
	}
	if got := e.ClassifyOutcome(decimal.NewFromInt(-100)); got != types.OutcomeLoss {
		t.Errorf("negative P&L: %s", got)
	}
	if got := e.ClassifyOutcome(decimal.NewFromFloat(0.5)); got != types.OutcomeNeutral {
		t.Errorf("tiny P&L should be neutral: %s", got)
	}
}

func TestSampleWindowCapped(t *testing.T) {
	cfg := learning.DefaultConfig()
	cfg.MaxSamples = 10
	e := learning.NewEngine(zap.NewNop(), cfg)

	for i := 0; i < 25; i++ {
		e.Record("AAPL", winnerFeatures(i), decimal.NewFromInt(10), trainTime)
	}
	if got := e.SampleCount(); got != 10 {
		t.Errorf("expected capped window of 10, got %d", got)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	e := seededEngine(t, 60)
	if err := e.Train(trainTime); err != nil {
		t.Fatal(err)
	}
	before := e.Predict(winnerFeatures(2))

	restored := learning.NewEngine(zap.NewNop(), learning.DefaultConfig())
	if err := restored.Restore(e.Export()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !restored.Trained() {
		t.Fatal("restored engine should be trained")
	}
	if restored.SampleCount() != e.SampleCount() {
		t.Error("sample window should survive the round trip")
	}

	after := restored.Predict(winnerFeatures(2))
	if after == nil || after.Outcome != before.Outcome || after.Confidence != before.Confidence {
		t.Errorf("prediction changed across restore: %+v vs %+v", before, after)
	}
}

func TestRestoreRejectsCorruptModel(t *testing.T) {
	state := learning.State{
		Model: learning.Params{
			Trained:    true,
			FeatureDim: 9,
			Classes: map[types.Outcome]learning.ClassParams{
				types.OutcomeProfitable: {Prior: 1, Means: []float64{1}, Variances: []float64{1}},
				types.OutcomeLoss:       {Prior: 0, Means: []float64{0}, Variances: []float64{1}},
			},
		},
	}

	e := learning.NewEngine(zap.NewNop(), learning.DefaultConfig())
	if err := e.Restore(state); err == nil {
		t.Error("dimension mismatch should fail restore")
	}
}
