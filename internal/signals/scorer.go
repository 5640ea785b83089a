// Package signals implements the multi-factor candle scorer (spec.md
// §4.3) and the liquidity pre-filter (original_source/app/liquidity_filter.py).
package signals

import (
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/internal/indicators"
	"github.com/perpsignal/engine/pkg/types"
	"github.com/perpsignal/engine/pkg/utils"
)

// Thresholds selects the gate values used when evaluating a candle
// close under a given mode (early vs main).
type Thresholds = types.ModeThresholds

// ScorerConfig groups the scorer's static configuration.
type ScorerConfig struct {
	Indicators  types.IndicatorConfig
	VolumeSMA   int
	Thresholds  map[types.Mode]Thresholds
}

// Scorer evaluates a closed candle against the multi-factor checklist.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score is the scorer's raw verdict: a numeric score and the named
// sub-checks that contributed to it. It does not itself accept or
// reject a signal.
type Score struct {
	Total     int
	Direction types.Direction
	Checks    types.SignalChecks
}

// Evaluate scores the most recent candle close against mode-specific
// thresholds. candles must have at least 30 entries and volumes at
// least cfg.VolumeSMA entries; callers are responsible for checking
// those lengths (the scorer returns a zero Score when under-provisioned,
// matching spec.md §7's missing-data handling).
func (s *Scorer) Evaluate(candles []*types.Candle, volumes []decimal.Decimal, spread decimal.Decimal, mode types.Mode) Score {
	if len(candles) < 30 || len(volumes) < s.cfg.VolumeSMA {
		return Score{}
	}

	th := s.cfg.Thresholds[mode]
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	direction := types.DirectionShort
	if last.Close.GreaterThan(last.Open) {
		direction = types.DirectionLong
	}

	checks := types.SignalChecks{}
	total := 0

	// Volume spike is mandatory: failure aborts the whole evaluation.
	sma := utils.NewSMA(s.cfg.VolumeSMA)
	for _, v := range volumes[len(volumes)-s.cfg.VolumeSMA:] {
		sma.Add(v)
	}
	lastVol := volumes[len(volumes)-1]
	volRatio := decimal.Zero
	if !sma.Current().IsZero() {
		volRatio = lastVol.Div(sma.Current())
	}
	checks.VolumeRatio = volRatio
	if volRatio.LessThan(th.VolumeRatio) {
		checks.VolumeSpike = false
		return Score{Direction: direction, Checks: checks}
	}
	checks.VolumeSpike = true
	total += 3

	if !prev.Close.IsZero() {
		gap := last.Close.Sub(prev.Close).Abs().Div(prev.Close)
		checks.EMAGapValue = gap
		if gap.GreaterThanOrEqual(th.EMAGap) {
			checks.EMAGap = true
			total += 2
		}
	}

	if !s.cfg.Indicators.EnableWickFilter {
		checks.WickOK = true
		total += 2
	} else if wick := indicators.WickRatio(last); wick.LessThanOrEqual(th.WickMax) {
		checks.WickOK = true
		total += 2
	}

	if !s.cfg.Indicators.EnableMomentumFilter {
		checks.MomentumOK = true
		total += 2
	} else if mom := indicators.Momentum(last); mom.GreaterThanOrEqual(th.MomentumMin) {
		checks.MomentumOK = true
		total += 2
	}

	if mode == types.ModeMain && s.cfg.Indicators.EnableATRCompression {
		res := indicators.ATRCompression(candles, s.cfg.Indicators.ATRShort, s.cfg.Indicators.ATRLong, s.cfg.Indicators.ATRCompressionRatio)
		checks.ATRShortPct = res.ATRShortPct
		checks.ATRLongPct = res.ATRLongPct
		checks.SqueezeRatio = res.SqueezeRatio
		if res.OK {
			checks.ATRSqueeze = true
			total += 2
		}
	}

	if len(candles) >= 21 {
		window := candles[len(candles)-21 : len(candles)-1]
		maxHigh, minLow := window[0].High, window[0].Low
		for _, c := range window {
			if c.High.GreaterThan(maxHigh) {
				maxHigh = c.High
			}
			if c.Low.LessThan(minLow) {
				minLow = c.Low
			}
		}
		if last.Close.GreaterThan(maxHigh) || last.Close.LessThan(minLow) {
			checks.BreakoutHighLow = true
			total += 3
		}
	}

	checks.SpreadOK = spread.LessThanOrEqual(th.SpreadMax)
	if checks.SpreadOK {
		total += 1
	}

	return Score{Total: total, Direction: direction, Checks: checks}
}

// LiquidityOK gates signal evaluation on the average traded USD volume
// exceeding a configured minimum (original_source/app/liquidity_filter.py).
func LiquidityOK(avgVolumeUSD, minRequiredUSD decimal.Decimal) bool {
	return avgVolumeUSD.GreaterThanOrEqual(minRequiredUSD)
}

// PickThresholds returns the threshold table for a mode, defaulting to
// main if the mode is unrecognized.
func PickThresholds(cfg map[types.Mode]Thresholds, mode types.Mode) Thresholds {
	if th, ok := cfg[mode]; ok {
		return th
	}
	return cfg[types.ModeMain]
}
