package notify

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

func dec(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(Config{Capacity: 2, MinDelay: time.Hour}, nil, nil)

	if !q.Enqueue("a") || !q.Enqueue("b") {
		t.Fatal("expected first two enqueues to succeed")
	}
	if q.Enqueue("c") {
		t.Fatal("expected third enqueue to be dropped, buffer at capacity")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped message, got %d", q.Dropped())
	}
}

func TestQueueRunDeliversToSink(t *testing.T) {
	var delivered atomic.Int32
	sink := func(msg string) error {
		delivered.Add(1)
		return nil
	}

	q := NewQueue(Config{Capacity: 10, MinDelay: time.Millisecond}, sink, nil)
	q.Enqueue("hello")
	q.Enqueue("world")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	q.Run(ctx)

	if delivered.Load() != 2 {
		t.Fatalf("expected both messages delivered, got %d", delivered.Load())
	}
}

func TestFormatSignalIncludesWhyAndPlan(t *testing.T) {
	f := NewFormatter()
	sig := types.Signal{
		Symbol:       "BTCUSDT",
		Mode:         types.ModeMain,
		Direction:    types.DirectionLong,
		Score:        14,
		HighConf:     true,
		MarketRegime: types.RegimeTrend,
		Spread:       dec("0.0003"),
		Checks: types.SignalChecks{
			EMAGapValue:  dec("0.03"),
			VolumeRatio:  dec("2.1"),
			VolumeSpike:  true,
			WickOK:       true,
			MomentumOK:   true,
			SpreadOK:     true,
			LiquidityOK:  true,
			ATRSqueeze:   true,
			ATRShortPct:  dec("0.01"),
			ATRLongPct:   dec("0.02"),
			SqueezeRatio: dec("0.5"),
		},
	}

	out := f.FormatSignal(sig)
	for _, want := range []string{"BTCUSDT", "WHY:", "PLAN:", "atr_squeeze", "HIGH-CONF"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormatRegimeChangePanic(t *testing.T) {
	f := NewFormatter()
	out := f.FormatRegimeChange(types.RegimeResult{Regime: types.RegimePanic, Reason: "atr ratio 3.2x"})
	if !strings.Contains(out, "PANIC MODE ON") || !strings.Contains(out, "atr ratio 3.2x") {
		t.Fatalf("unexpected panic regime message: %s", out)
	}
}

func TestFormatCloseWinVsLoss(t *testing.T) {
	f := NewFormatter()
	win := f.FormatClose(types.CloseResult{Symbol: "ETHUSDT", Direction: types.DirectionLong, Result: "TP", Exit: dec("110"), PnL: dec("50"), RR: dec("2")}, types.SimulatorSummary{NAV: dec("10050"), TotalTrades: 1, WinRatePct: dec("100")})
	if !strings.HasPrefix(win, "🟢") {
		t.Fatalf("expected green icon for winning close, got: %s", win)
	}

	loss := f.FormatClose(types.CloseResult{Symbol: "ETHUSDT", Direction: types.DirectionLong, Result: "SL", Exit: dec("90"), PnL: dec("-30"), RR: dec("2")}, types.SimulatorSummary{NAV: dec("9970"), TotalTrades: 2, WinRatePct: dec("50")})
	if !strings.HasPrefix(loss, "🔴") {
		t.Fatalf("expected red icon for losing close, got: %s", loss)
	}
}
