package risk_test

import (
	"errors"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade/internal/risk"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var cycleTime = time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newManager() *risk.Manager {
	m := risk.NewManager(zap.NewNop(), risk.DefaultConfig())
	m.ResetDaily(d("100000"))
	return m
}

func TestPositionCapBlocksOversize(t *testing.T) {
	m := newManager()

	// 100 shares at 150 is 15% of a 100k portfolio.
	err := m.CanOpen("AAPL", d("100"), d("150"), decimal.Zero, d("100000"), cycleTime)
	var blocked *risk.BlockError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockError, got %v", err)
	}
	if blocked.Rule != risk.RulePositionTooLarge {
		t.Errorf("wrong rule: %s", blocked.Rule)
	}

	// 60 shares is 9%, allowed.
	if err := m.CanOpen("AAPL", d("60"), d("150"), decimal.Zero, d("100000"), cycleTime); err != nil {
		t.Errorf("9%% position should pass: %v", err)
	}
}

func TestPositionCapCountsExistingNotional(t *testing.T) {
	m := newManager()

	// 40 more shares on top of an 8k position breaches the 10k limit.
	err := m.CanOpen("AAPL", d("40"), d("150"), d("8000"), d("100000"), cycleTime)
	var blocked *risk.BlockError
	if !errors.As(err, &blocked) || blocked.Rule != risk.RulePositionTooLarge {
		t.Fatalf("expected position_too_large with existing notional, got %v", err)
	}
}

func TestDailyLossBreaker(t *testing.T) {
	m := newManager()

	m.RecordRealized(d("-3000"))
	if m.Tripped() {
		t.Fatal("breaker must not trip at 3% loss")
	}
	if got := m.DailyLossUsage(); got < 0.59 || got > 0.61 {
		t.Errorf("loss usage should be 0.6, got %f", got)
	}

	m.RecordRealized(d("-2000"))
	if !m.Tripped() {
		t.Fatal("breaker must trip at 5% loss")
	}

	err := m.CanOpen("AAPL", d("10"), d("150"), decimal.Zero, d("95000"), cycleTime)
	var blocked *risk.BlockError
	if !errors.As(err, &blocked) || blocked.Rule != risk.RuleDailyLossLimit {
		t.Fatalf("expected daily_loss_limit block, got %v", err)
	}

	// Winning back P&L does not untrip the breaker mid-day.
	m.RecordRealized(d("6000"))
	if !m.Tripped() {
		t.Error("breaker must stay tripped until daily reset")
	}

	m.ResetDaily(d("101000"))
	if m.Tripped() {
		t.Error("reset should clear the breaker")
	}
}

func TestUnrealizedDrawdownTripsBreaker(t *testing.T) {
	m := newManager()

	// A 4% equity drop from open positions consumes budget but does
	// not trip the 5% breaker.
	m.MarkEquity(d("96000"))
	if m.Tripped() {
		t.Fatal("breaker must not trip at 4% drawdown")
	}
	if got := m.DailyLossUsage(); got < 0.79 || got > 0.81 {
		t.Errorf("loss usage should be 0.8, got %f", got)
	}

	// 6% down on marks alone, with nothing realized, trips it.
	m.MarkEquity(d("94000"))
	if !m.Tripped() {
		t.Fatal("breaker must trip on unrealized drawdown past 5%")
	}

	// A recovery does not untrip mid-day.
	m.MarkEquity(d("99000"))
	if !m.Tripped() {
		t.Error("breaker must stay tripped until daily reset")
	}

	err := m.CanOpen("AAPL", d("10"), d("150"), decimal.Zero, d("99000"), cycleTime)
	var blocked *risk.BlockError
	if !errors.As(err, &blocked) || blocked.Rule != risk.RuleDailyLossLimit {
		t.Fatalf("expected daily_loss_limit block, got %v", err)
	}
}

func TestGainsCountAsZeroUsage(t *testing.T) {
	m := newManager()
	m.RecordRealized(d("1200"))
	if got := m.DailyLossUsage(); got != 0 {
		t.Errorf("gains should report zero usage, got %f", got)
	}
}

func TestSizePositionWholeUnits(t *testing.T) {
	m := newManager()

	// 8% of 100k at full confidence is 8000, at 153.27 that is 52.19
	// shares, floored to 52.
	qty := m.SizePosition(1.0, d("153.27"), d("100000"), d("100000"))
	if !qty.Equal(d("52")) {
		t.Errorf("expected 52 shares, got %s", qty)
	}

	// Half confidence halves the notional.
	qty = m.SizePosition(0.5, d("153.27"), d("100000"), d("100000"))
	if !qty.Equal(d("26")) {
		t.Errorf("expected 26 shares, got %s", qty)
	}
}

func TestSizePositionCappedByCash(t *testing.T) {
	m := newManager()

	qty := m.SizePosition(1.0, d("100"), d("450"), d("100000"))
	if !qty.Equal(d("4")) {
		t.Errorf("cash cap should yield 4 shares, got %s", qty)
	}

	if qty := m.SizePosition(1.0, d("100"), d("50"), d("100000")); !qty.IsZero() {
		t.Errorf("expected zero when cash cannot cover one share, got %s", qty)
	}
}

func TestCanOpenRejectsInvalidOrders(t *testing.T) {
	m := newManager()

	var blocked *risk.BlockError
	err := m.CanOpen("AAPL", decimal.Zero, d("150"), decimal.Zero, d("100000"), cycleTime)
	if !errors.As(err, &blocked) || blocked.Rule != risk.RuleInvalidOrder {
		t.Errorf("zero quantity should be invalid, got %v", err)
	}
	err = m.CanOpen("AAPL", d("10"), d("-1"), decimal.Zero, d("100000"), cycleTime)
	if !errors.As(err, &blocked) || blocked.Rule != risk.RuleInvalidOrder {
		t.Errorf("negative price should be invalid, got %v", err)
	}
}

func TestViolationsRecorded(t *testing.T) {
	m := newManager()

	_ = m.CanOpen("AAPL", d("100"), d("150"), decimal.Zero, d("100000"), cycleTime)
	_ = m.CanOpen("MSFT", d("200"), d("150"), decimal.Zero, d("100000"), cycleTime.Add(time.Minute))

	got := m.Violations(10)
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(got))
	}
	if got[1].Symbol != "MSFT" {
		t.Errorf("violations should be ordered oldest first, got %s last", got[1].Symbol)
	}
	if !got[0].Timestamp.Equal(cycleTime) || !got[1].Timestamp.Equal(cycleTime.Add(time.Minute)) {
		t.Errorf("violations should carry the caller's cycle time: %+v", got)
	}

	stats := m.GetStats()
	if stats.ViolationCount != 2 || stats.BreakerTripped {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
