// Package utils provides small numeric and decimal helpers shared across
// the engine's packages.
package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// MinDecimal returns the minimum of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the maximum of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal clamps a value between min and max.
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// CalculateMean calculates the mean of decimal values.
func CalculateMean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// SMA calculates a simple moving average over a trailing window.
type SMA struct {
	period int
	values []decimal.Decimal
	sum    decimal.Decimal
}

// NewSMA creates a new SMA calculator.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		values: make([]decimal.Decimal, 0, period),
	}
}

// Add adds a value and returns the current SMA.
func (s *SMA) Add(value decimal.Decimal) decimal.Decimal {
	s.values = append(s.values, value)
	s.sum = s.sum.Add(value)

	if len(s.values) > s.period {
		s.sum = s.sum.Sub(s.values[0])
		s.values = s.values[1:]
	}

	return s.Current()
}

// Current returns the current SMA value.
func (s *SMA) Current() decimal.Decimal {
	if len(s.values) == 0 {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(len(s.values))))
}

// Len reports how many samples are currently in the window.
func (s *SMA) Len() int {
	return len(s.values)
}

// RingBuffer is a bounded, oldest-first-discard buffer used for candle,
// volume and price-history series throughout the engine (spec.md §9:
// "all candle, volume and price-history collections are bounded").
type RingBuffer[T any] struct {
	cap   int
	items []T
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	return &RingBuffer[T]{
		cap:   capacity,
		items: make([]T, 0, capacity),
	}
}

// Push appends an item, discarding the oldest entry if at capacity.
func (r *RingBuffer[T]) Push(item T) {
	r.items = append(r.items, item)
	if len(r.items) > r.cap {
		r.items = r.items[len(r.items)-r.cap:]
	}
}

// Items returns the buffer's contents, oldest first.
func (r *RingBuffer[T]) Items() []T {
	return r.items
}

// Len reports the current number of items.
func (r *RingBuffer[T]) Len() int {
	return len(r.items)
}

// Last returns the most recently pushed item and whether the buffer is
// non-empty.
func (r *RingBuffer[T]) Last() (T, bool) {
	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	return r.items[len(r.items)-1], true
}

// SimpleReturns computes arithmetic (non-log) returns from a price
// series, matching original_source/app/correlation_engine.py's
// returns_from_prices (np.diff(arr) / arr[:-1]).
func SimpleReturns(prices []decimal.Decimal) []decimal.Decimal {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]decimal.Decimal, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1].IsZero() {
			returns[i-1] = decimal.Zero
			continue
		}
		returns[i-1] = prices[i].Sub(prices[i-1]).Div(prices[i-1])
	}
	return returns
}

// PearsonCorrelation computes the Pearson correlation coefficient
// between two equal-length return series. Callers are responsible for
// aligning series length (see internal/portfolio for the common-suffix
// alignment policy).
func PearsonCorrelation(a, b []decimal.Decimal) decimal.Decimal {
	n := len(a)
	if n == 0 || n != len(b) {
		return decimal.Zero
	}

	meanA := CalculateMean(a)
	meanB := CalculateMean(b)

	var sumAB, sumA2, sumB2 float64
	for i := 0; i < n; i++ {
		da, _ := a[i].Sub(meanA).Float64()
		db, _ := b[i].Sub(meanB).Float64()
		sumAB += da * db
		sumA2 += da * da
		sumB2 += db * db
	}

	denom := math.Sqrt(sumA2) * math.Sqrt(sumB2)
	if denom == 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(sumAB / denom)
}
