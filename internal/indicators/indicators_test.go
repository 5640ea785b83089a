package indicators

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// TestWilderATRSeedAndSmooth matches spec.md's concrete scenario 2:
// period 3 bars with TR values [2,3,4,5] seed ATR=3.0 after bar 3, then
// (3*2+5)/3 = 3.6667 after bar 4.
func TestWilderATRSeedAndSmooth(t *testing.T) {
	atr := NewATR(3)

	// Build an explicit TR sequence [2,3,4,5] via direct high/low/prevClose control.
	// Bar 1: prevClose unset, H=102,L=100 -> TR=2
	v, seeded := atr.Update(dec("102"), dec("100"), dec("100"))
	if seeded {
		t.Fatalf("expected not seeded after bar 1, got %v", v)
	}
	// Bar 2: prevClose=100, H=103,L=100 -> TR=max(3,|103-100|=3,|100-100|=0)=3
	v, seeded = atr.Update(dec("103"), dec("100"), dec("100"))
	if seeded {
		t.Fatalf("expected not seeded after bar 2, got %v", v)
	}
	// Bar 3: prevClose=100, H=104,L=100 -> TR=max(4,4,0)=4
	v, seeded = atr.Update(dec("104"), dec("100"), dec("100"))
	if !seeded {
		t.Fatal("expected seeded after bar 3")
	}
	want := dec("2").Add(dec("3")).Add(dec("4")).Div(dec("3"))
	if !v.Equal(want) {
		t.Fatalf("seeded ATR = %s, want %s (=3.0)", v, want)
	}
	if !v.Equal(dec("3")) {
		t.Fatalf("seeded ATR = %s, want 3", v)
	}

	// Bar 4: prevClose=100, H=105,L=100 -> TR=max(5,5,0)=5
	v, seeded = atr.Update(dec("105"), dec("100"), dec("100"))
	if !seeded {
		t.Fatal("expected seeded after bar 4")
	}
	want2 := dec("3").Mul(dec("2")).Add(dec("5")).Div(dec("3"))
	if v.Round(4).String() != "3.6667" {
		t.Fatalf("smoothed ATR = %s, want 3.6667 (raw=%s)", v.Round(4), want2)
	}
}

func TestEMASeedsOnFirstSample(t *testing.T) {
	e := NewEMA(9)
	v := e.Update(dec("10"))
	if !v.Equal(dec("10")) {
		t.Fatalf("first EMA sample should equal price, got %s", v)
	}
	v2 := e.Update(dec("20"))
	if v2.Equal(dec("10")) {
		t.Fatal("EMA should move after second sample")
	}
}

func TestWickRatioBounds(t *testing.T) {
	c := &types.Candle{Open: dec("10"), High: dec("12"), Low: dec("8"), Close: dec("11")}
	r := WickRatio(c)
	if r.LessThan(decimal.Zero) || r.GreaterThan(decimal.NewFromInt(1)) {
		t.Fatalf("wick ratio out of [0,1]: %s", r)
	}
}

func TestMomentumZeroOpen(t *testing.T) {
	c := &types.Candle{Open: decimal.Zero, Close: dec("5")}
	if !Momentum(c).IsZero() {
		t.Fatal("momentum with zero open should be zero")
	}
}
