// Package indicators implements the stateful and stateless indicator
// primitives consumed by the regime engine and the signal scorer: EMA,
// Wilder ATR, wick ratio, momentum and ATR compression.
package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

var two = decimal.NewFromInt(2)
var epsilon = decimal.NewFromFloat(1e-12)

// EMA is an exponential moving average accumulator. The first sample
// seeds the value; every subsequent sample applies value += a*(price-value).
type EMA struct {
	period int
	alpha  decimal.Decimal
	value  decimal.Decimal
	seeded bool
}

// NewEMA creates an EMA accumulator for the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  two.Div(decimal.NewFromInt(int64(period + 1))),
	}
}

// Update feeds a price sample and returns the current EMA value.
func (e *EMA) Update(price decimal.Decimal) decimal.Decimal {
	if !e.seeded {
		e.value = price
		e.seeded = true
		return e.value
	}
	e.value = price.Sub(e.value).Mul(e.alpha).Add(e.value)
	return e.value
}

// Value returns the current EMA value (zero if never seeded).
func (e *EMA) Value() decimal.Decimal {
	return e.value
}

// Seeded reports whether at least one sample has been applied.
func (e *EMA) Seeded() bool {
	return e.seeded
}

// ATR is a Wilder-smoothed Average True Range accumulator.
type ATR struct {
	period    int
	value     decimal.Decimal
	seeded    bool
	prevClose decimal.Decimal
	hasPrev   bool
	warm      int
	sumTR     decimal.Decimal
}

// NewATR creates a Wilder ATR accumulator for the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Update feeds one bar's high/low/close and returns the current ATR, or
// the zero value with seeded=false during the part of warmup before the
// period-th bar.
func (a *ATR) Update(high, low, close decimal.Decimal) (decimal.Decimal, bool) {
	var tr decimal.Decimal
	if !a.hasPrev {
		tr = high.Sub(low)
	} else {
		tr = maxDecimal3(
			high.Sub(low),
			high.Sub(a.prevClose).Abs(),
			low.Sub(a.prevClose).Abs(),
		)
	}
	a.prevClose = close
	a.hasPrev = true

	if a.warm < a.period {
		a.sumTR = a.sumTR.Add(tr)
		a.warm++
		if a.warm == a.period {
			a.value = a.sumTR.Div(decimal.NewFromInt(int64(a.period)))
			a.seeded = true
		}
		return a.value, a.seeded
	}

	periodDec := decimal.NewFromInt(int64(a.period))
	a.value = a.value.Mul(periodDec.Sub(decimal.NewFromInt(1))).Add(tr).Div(periodDec)
	return a.value, true
}

// Value returns the current ATR value.
func (a *ATR) Value() decimal.Decimal {
	return a.value
}

// Seeded reports whether the ATR has completed warmup.
func (a *ATR) Seeded() bool {
	return a.seeded
}

func maxDecimal3(a, b, c decimal.Decimal) decimal.Decimal {
	m := a
	if b.GreaterThan(m) {
		m = b
	}
	if c.GreaterThan(m) {
		m = c
	}
	return m
}

// WickRatio is ((H - max(O,C)) + (min(O,C) - L)) / max(H-L, epsilon),
// clamped at zero.
func WickRatio(c *types.Candle) decimal.Decimal {
	rng := c.High.Sub(c.Low)
	if rng.LessThan(epsilon) {
		rng = epsilon
	}
	bodyTop := decimal.Max(c.Open, c.Close)
	bodyBot := decimal.Min(c.Open, c.Close)

	upper := c.High.Sub(bodyTop)
	if upper.LessThan(decimal.Zero) {
		upper = decimal.Zero
	}
	lower := bodyBot.Sub(c.Low)
	if lower.LessThan(decimal.Zero) {
		lower = decimal.Zero
	}
	return upper.Add(lower).Div(rng)
}

// Momentum is |close-open|/open (zero when open is zero).
func Momentum(c *types.Candle) decimal.Decimal {
	if c.Open.IsZero() {
		return decimal.Zero
	}
	return c.Close.Sub(c.Open).Abs().Div(c.Open)
}

// ATRCompressionResult is the output of the ATR-compression squeeze
// check over a candle window.
type ATRCompressionResult struct {
	OK           bool
	ATRShortPct  decimal.Decimal
	ATRLongPct   decimal.Decimal
	SqueezeRatio decimal.Decimal
}

// ATRCompression computes a short-period and long-period ATR over the
// last long+2 candles and reports whether short ATR is compressed
// relative to long ATR by compressionRatio.
func ATRCompression(candles []*types.Candle, short, long int, compressionRatio decimal.Decimal) ATRCompressionResult {
	if len(candles) < long+2 {
		return ATRCompressionResult{}
	}

	window := candles[len(candles)-(long+2):]
	atrS := NewATR(short)
	atrL := NewATR(long)

	var aS, aL decimal.Decimal
	var sSeeded, lSeeded bool
	for _, c := range window {
		aS, sSeeded = atrS.Update(c.High, c.Low, c.Close)
		aL, lSeeded = atrL.Update(c.High, c.Low, c.Close)
	}

	lastClose := window[len(window)-1].Close
	if !sSeeded || !lSeeded || aL.IsZero() || lastClose.IsZero() {
		return ATRCompressionResult{}
	}

	return ATRCompressionResult{
		OK:           aS.LessThan(compressionRatio.Mul(aL)),
		ATRShortPct:  aS.Div(lastClose),
		ATRLongPct:   aL.Div(lastClose),
		SqueezeRatio: aS.Div(aL),
	}
}
