package marketdata_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade/internal/marketdata"
	"go.uber.org/zap"
)

var startTime = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

func TestSyntheticDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	a := marketdata.NewSyntheticProvider(zap.NewNop(), 42, startTime, time.Minute, 100)
	b := marketdata.NewSyntheticProvider(zap.NewNop(), 42, startTime, time.Minute, 100)

	sa, err := a.GetSeries(ctx, "AAPL", 50)
	if err != nil {
		t.Fatal(err)
	}
	sb, err := b.GetSeries(ctx, "AAPL", 50)
	if err != nil {
		t.Fatal(err)
	}

	if len(sa) != 50 || len(sb) != 50 {
		t.Fatalf("expected 50 bars, got %d and %d", len(sa), len(sb))
	}
	for i := range sa {
		if !sa[i].Close.Equal(sb[i].Close) {
			t.Fatalf("same seed diverged at bar %d", i)
		}
	}
}

func TestSyntheticAdvanceAppendsBars(t *testing.T) {
	ctx := context.Background()
	p := marketdata.NewSyntheticProvider(zap.NewNop(), 7, startTime, time.Minute, 30)

	before, err := p.GetSeries(ctx, "MSFT", 0)
	if err != nil {
		t.Fatal(err)
	}

	p.Advance()
	after, err := p.GetSeries(ctx, "MSFT", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before)+1 {
		t.Errorf("advance should add one bar: %d -> %d", len(before), len(after))
	}
	if want := startTime.Add(time.Minute); !after[len(after)-1].Timestamp.Equal(want) {
		t.Errorf("last bar timestamp %s, want %s", after[len(after)-1].Timestamp, want)
	}

	price, err := p.GetPrice(ctx, "MSFT")
	if err != nil {
		t.Fatal(err)
	}
	if !price.Equal(after[len(after)-1].Close) {
		t.Error("GetPrice should match the last close")
	}
}

func TestSyntheticNoWarmupIsUnavailable(t *testing.T) {
	p := marketdata.NewSyntheticProvider(zap.NewNop(), 1, startTime, time.Minute, 0)

	_, err := p.GetSeries(context.Background(), "AAPL", 10)
	var unavailable *marketdata.DataUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected DataUnavailableError, got %v", err)
	}
}

func TestHeuristicPredictorAbstainsOnShortSeries(t *testing.T) {
	p := marketdata.NewHeuristicPredictor(20)
	pred, err := p.Predict(context.Background(), "AAPL", nil)
	if err != nil || pred != nil {
		t.Errorf("expected abstention, got %+v err %v", pred, err)
	}
}
