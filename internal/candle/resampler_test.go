package candle

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// TestTimeframeResamplerPerSecondCatchUp drives the resampler the way
// the symbol engine does: one Update call per integer second, with the
// mid price held constant within a second and volume flushed at each
// tick. With tf=60, sec 100 falls in bucket [60,120) and sec 130 in
// [120,180); the bucket holding t=130 (O=10 carried in at sec 120, H=11,
// L=10, C=11, V=2) is the last one emitted, on the step to sec 180.
func TestTimeframeResamplerPerSecondCatchUp(t *testing.T) {
	r := NewTimeframeResampler(60)

	prices := map[int64]decimal.Decimal{
		100: d("10.0"),
		130: d("11.0"),
		190: d("12.0"),
	}
	vols := map[int64]decimal.Decimal{
		100: d("1"),
		130: d("2"),
		190: d("3"),
	}

	currentPrice := d("10.0")
	var lastClosed *struct {
		o, h, l, c, v string
		start, end    int64
	}

	for sec := int64(100); sec <= 190; sec++ {
		if p, ok := prices[sec]; ok {
			currentPrice = p
		}
		vol := decimal.Zero
		if v, ok := vols[sec]; ok {
			vol = v
		}
		closed, didClose := r.Update(sec, currentPrice, vol)
		if didClose {
			lastClosed = &struct {
				o, h, l, c, v string
				start, end    int64
			}{
				o: closed.Open.String(), h: closed.High.String(), l: closed.Low.String(),
				c: closed.Close.String(), v: closed.Volume.String(),
				start: closed.StartTS, end: closed.EndTS,
			}
		}
	}

	if lastClosed == nil {
		t.Fatal("expected a candle to close by sec=190")
	}
	if lastClosed.o != "10" || lastClosed.h != "11" || lastClosed.l != "10" || lastClosed.c != "11" {
		t.Fatalf("unexpected OHLC: %+v", lastClosed)
	}
	if lastClosed.v != "2" {
		t.Fatalf("expected volume 2, got %s", lastClosed.v)
	}
	if lastClosed.start != 120 || lastClosed.end != 180 {
		t.Fatalf("expected bucket [120,180), got [%d,%d)", lastClosed.start, lastClosed.end)
	}
}

func TestTimeframeResamplerInvariants(t *testing.T) {
	r := NewTimeframeResampler(10)
	seq := []struct {
		sec   int64
		price string
		vol   string
	}{
		{1, "5", "1"}, {2, "7", "1"}, {9, "3", "1"}, {11, "6", "1"}, {25, "9", "2"}, {30, "1", "1"},
	}

	var closed []struct {
		o, h, l, c decimal.Decimal
		start, end int64
	}
	for _, s := range seq {
		c, ok := r.Update(s.sec, d(s.price), d(s.vol))
		if ok {
			closed = append(closed, struct {
				o, h, l, c decimal.Decimal
				start, end int64
			}{c.Open, c.High, c.Low, c.Close, c.StartTS, c.EndTS})
		}
	}

	for _, c := range closed {
		if c.end-c.start != 10 {
			t.Errorf("end-start != tf: %+v", c)
		}
		if c.l.GreaterThan(c.o) || c.l.GreaterThan(c.c) || c.o.GreaterThan(c.h) || c.c.GreaterThan(c.h) {
			t.Errorf("OHLC invariant violated: %+v", c)
		}
	}
	if len(closed) == 0 {
		t.Fatal("expected at least one closed candle")
	}
}
