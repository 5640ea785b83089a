// Package candle implements the fixed-width timeframe resampler that
// turns a stream of (second, price, volume) points into closed candles.
package candle

import (
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

// TimeframeResampler aggregates a price/volume stream into candles of a
// fixed bucket width. Bucket boundaries are aligned to absolute-time
// multiples of tf: start = floor(sec/tf) * tf. There is no gap-filling;
// buckets the stream jumps over are simply never emitted.
type TimeframeResampler struct {
	tf int64

	curStart int64
	started  bool

	open, high, low, close decimal.Decimal
	volume                 decimal.Decimal
}

// NewTimeframeResampler creates a resampler for a bucket width of tf
// seconds.
func NewTimeframeResampler(tfSeconds int64) *TimeframeResampler {
	return &TimeframeResampler{tf: tfSeconds}
}

// Timeframe returns the resampler's bucket width in seconds.
func (r *TimeframeResampler) Timeframe() int64 {
	return r.tf
}

// Update feeds one (second, price, volume-increment) sample. It returns
// the candle that just closed (if the bucket advanced) and whether a
// candle closed at all.
func (r *TimeframeResampler) Update(sec int64, price, volIncrement decimal.Decimal) (*types.Candle, bool) {
	bucketStart := (sec / r.tf) * r.tf

	if !r.started {
		r.started = true
		r.curStart = bucketStart
		r.open, r.high, r.low, r.close = price, price, price, price
		r.volume = volIncrement
		return nil, false
	}

	if bucketStart == r.curStart {
		r.close = price
		if price.GreaterThan(r.high) {
			r.high = price
		}
		if price.LessThan(r.low) {
			r.low = price
		}
		r.volume = r.volume.Add(volIncrement)
		return nil, false
	}

	closed := &types.Candle{
		Open:    r.open,
		High:    r.high,
		Low:     r.low,
		Close:   r.close,
		Volume:  r.volume,
		StartTS: r.curStart,
		EndTS:   r.curStart + r.tf,
	}

	r.curStart = bucketStart
	r.open, r.high, r.low, r.close = price, price, price, price
	r.volume = volIncrement

	return closed, true
}
