package simulator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

func dec(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestUpdateByCandleLongStopLoss(t *testing.T) {
	s := New(dec("10000"), decimal.Zero)
	s.Open(&types.Position{
		Symbol: "BTCUSDT", Direction: types.DirectionLong,
		Entry: dec("100"), SL: dec("95"), TP: dec("110"),
		RiskUSD: dec("50"), RR: dec("2"),
	})

	res, closed := s.UpdateByCandle("BTCUSDT", types.Candle{High: dec("101"), Low: dec("94")})
	if !closed {
		t.Fatal("expected position to close on SL touch")
	}
	if res.Result != "SL" {
		t.Fatalf("expected SL result, got %s", res.Result)
	}
	if !res.PnL.Equal(dec("-50")) {
		t.Fatalf("expected loss = -risk_usd, got %s", res.PnL)
	}
	if !s.NAV().Equal(dec("9950")) {
		t.Fatalf("expected NAV 9950, got %s", s.NAV())
	}
	if s.HasPosition("BTCUSDT") {
		t.Fatal("expected position removed after close")
	}
}

func TestUpdateByCandleLongTakeProfit(t *testing.T) {
	s := New(dec("10000"), decimal.Zero)
	s.Open(&types.Position{
		Symbol: "BTCUSDT", Direction: types.DirectionLong,
		Entry: dec("100"), SL: dec("95"), TP: dec("110"),
		RiskUSD: dec("50"), RR: dec("2"),
	})

	res, closed := s.UpdateByCandle("BTCUSDT", types.Candle{High: dec("111"), Low: dec("99")})
	if !closed || res.Result != "TP" {
		t.Fatalf("expected TP close, got %+v closed=%v", res, closed)
	}
	if !res.PnL.Equal(dec("100")) {
		t.Fatalf("expected gain = risk_usd*rr = 100, got %s", res.PnL)
	}
}

// TestUpdateByCandleSLFirstTieBreak matches spec.md §9's SL-first
// resolution when a single candle's range spans both SL and TP.
func TestUpdateByCandleSLFirstTieBreak(t *testing.T) {
	s := New(dec("10000"), decimal.Zero)
	s.Open(&types.Position{
		Symbol: "BTCUSDT", Direction: types.DirectionLong,
		Entry: dec("100"), SL: dec("95"), TP: dec("110"),
		RiskUSD: dec("50"), RR: dec("2"),
	})

	res, closed := s.UpdateByCandle("BTCUSDT", types.Candle{High: dec("120"), Low: dec("90")})
	if !closed || res.Result != "SL" {
		t.Fatalf("expected SL-first tie-break, got %+v closed=%v", res, closed)
	}
}

func TestUpdateByCandleShortStopLoss(t *testing.T) {
	s := New(dec("10000"), decimal.Zero)
	s.Open(&types.Position{
		Symbol: "ETHUSDT", Direction: types.DirectionShort,
		Entry: dec("100"), SL: dec("105"), TP: dec("90"),
		RiskUSD: dec("40"), RR: dec("2"),
	})

	res, closed := s.UpdateByCandle("ETHUSDT", types.Candle{High: dec("106"), Low: dec("99")})
	if !closed || res.Result != "SL" {
		t.Fatalf("expected SHORT SL close, got %+v", res)
	}
	if !res.PnL.Equal(dec("-40")) {
		t.Fatalf("expected loss -40, got %s", res.PnL)
	}
}

func TestSummaryWinRate(t *testing.T) {
	s := New(dec("10000"), decimal.Zero)
	s.Open(&types.Position{Symbol: "A", Direction: types.DirectionLong, Entry: dec("100"), SL: dec("95"), TP: dec("110"), RiskUSD: dec("10"), RR: dec("2")})
	s.UpdateByCandle("A", types.Candle{High: dec("111"), Low: dec("99")})

	s.Open(&types.Position{Symbol: "B", Direction: types.DirectionLong, Entry: dec("100"), SL: dec("95"), TP: dec("110"), RiskUSD: dec("10"), RR: dec("2")})
	s.UpdateByCandle("B", types.Candle{High: dec("101"), Low: dec("94")})

	sum := s.Summary()
	if sum.TotalTrades != 2 || sum.Wins != 1 || sum.Losses != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if !sum.WinRatePct.Equal(dec("50")) {
		t.Fatalf("expected 50%% winrate, got %s", sum.WinRatePct)
	}
}

// TestUpdateByCandleAppliesExitSlippage matches spec.md §4.8's optional
// exit-slippage: the reported fill shifts adversely off the SL/TP level
// and the PnL absorbs the same fraction of risk_usd.
func TestUpdateByCandleAppliesExitSlippage(t *testing.T) {
	s := New(dec("10000"), dec("0.001"))
	s.Open(&types.Position{
		Symbol: "BTCUSDT", Direction: types.DirectionLong,
		Entry: dec("100"), SL: dec("95"), TP: dec("110"),
		RiskUSD: dec("50"), RR: dec("2"),
	})

	res, closed := s.UpdateByCandle("BTCUSDT", types.Candle{High: dec("111"), Low: dec("99")})
	if !closed || res.Result != "TP" {
		t.Fatalf("expected TP close, got %+v closed=%v", res, closed)
	}
	wantExit := dec("110").Mul(dec("1").Sub(dec("0.001")))
	if !res.Exit.Equal(wantExit) {
		t.Fatalf("expected slippage-adjusted exit %s, got %s", wantExit, res.Exit)
	}
	wantPnL := dec("100").Sub(dec("50").Mul(dec("0.001")))
	if !res.PnL.Equal(wantPnL) {
		t.Fatalf("expected slippage-reduced pnl %s, got %s", wantPnL, res.PnL)
	}
}

func TestOpenNoOpWhenAlreadyOpen(t *testing.T) {
	s := New(dec("10000"), decimal.Zero)
	s.Open(&types.Position{Symbol: "A", Direction: types.DirectionLong, Entry: dec("100"), SL: dec("90"), TP: dec("120"), RiskUSD: dec("10"), RR: dec("2")})
	s.Open(&types.Position{Symbol: "A", Direction: types.DirectionShort, Entry: dec("200"), SL: dec("210"), TP: dec("180"), RiskUSD: dec("10"), RR: dec("2")})

	p, _ := s.Position("A")
	if p.Direction != types.DirectionLong {
		t.Fatal("expected second open on same symbol to be a no-op")
	}
}
