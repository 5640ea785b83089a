// Package regime implements the market-wide regime state machine driven
// by two proxy symbols' 1h and 4h candle histories.
package regime

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpsignal/engine/internal/indicators"
	"github.com/perpsignal/engine/pkg/types"
)

// Engine is the market regime state machine. It is written exclusively
// by the trade-reader task (see spec.md §5, §9 "process-wide regime
// scalar") and carries no internal locking.
type Engine struct {
	log *zap.SugaredLogger
	cfg types.RegimeConfig

	regime         types.Regime
	panic          bool
	lastChangeUnix int64
	lastAlertUnix  int64
}

// NewEngine creates a regime engine starting in NORMAL.
func NewEngine(cfg types.RegimeConfig, log *zap.SugaredLogger) *Engine {
	return &Engine{
		log:    log,
		cfg:    cfg,
		regime: types.RegimeNormal,
	}
}

// Regime returns the current regime label and panic flag.
func (e *Engine) Regime() (types.Regime, bool) {
	return e.regime, e.panic
}

// Update recomputes the regime from the two proxies' 1h/4h candle
// histories (keyed by proxy symbol) and the current wall-clock time (for
// min-hold and alert-cooldown bookkeeping).
func (e *Engine) Update(now time.Time, candles1h, candles4h map[string][]*types.Candle) types.RegimeResult {
	proxies := e.cfg.ProxySymbols

	for _, sym := range proxies {
		if len(candles1h[sym]) == 0 || len(candles4h[sym]) == 0 {
			return e.transition(now, types.RegimeNormal, false, decimal.NewFromInt(1), "missing proxies data", true)
		}
	}

	var atrRatios []decimal.Decimal
	dump := false
	for _, sym := range proxies {
		c1 := candles1h[sym]
		atr5, ok5 := atrPct(c1, 5)
		atr20, ok20 := atrPct(c1, 20)
		if !ok5 || !ok20 || atr20.IsZero() {
			continue
		}
		atrRatios = append(atrRatios, atr5.Div(atr20))

		last := c1[len(c1)-1]
		if !last.Open.IsZero() {
			drop := last.Close.Sub(last.Open).Div(last.Open)
			if drop.LessThanOrEqual(e.cfg.PanicDropPct.Neg()) {
				dump = true
			}
		}
	}

	atrRatio := decimal.Zero
	for _, r := range atrRatios {
		if r.GreaterThan(atrRatio) {
			atrRatio = r
		}
	}

	panicNow := atrRatio.GreaterThanOrEqual(e.cfg.PanicATRRatio) || dump

	if e.regime == types.RegimePanic {
		greenOK := true
		for _, sym := range proxies {
			last := candles1h[sym][len(candles1h[sym])-1]
			if last.Close.LessThanOrEqual(last.Open) {
				greenOK = false
				break
			}
		}
		if atrRatio.GreaterThan(decimal.Zero) && atrRatio.LessThanOrEqual(e.cfg.RecoveryATRRatio) && greenOK {
			return e.transition(now, types.RegimeRecovery, false, decimal.NewFromFloat(0.5),
				"recovery: vol cooled and proxies green", false)
		}
	}

	if panicNow {
		return e.transition(now, types.RegimePanic, true, decimal.Zero, "panic: atr_ratio or dump threshold breached", true)
	}

	var gaps, atr4s []decimal.Decimal
	dirs := map[string]bool{}
	for _, sym := range proxies {
		c4 := candles4h[sym]
		gap, gapOK := emaGap(c4, e.cfg.TrendEMAFast, e.cfg.TrendEMASlow)
		dir, dirOK := trendDir(c4, e.cfg.TrendEMAFast, e.cfg.TrendEMASlow)
		atr4, atr4OK := atrPct(c4, 14)
		if gapOK {
			gaps = append(gaps, gap)
		}
		if dirOK {
			dirs[dir] = true
		}
		if atr4OK {
			atr4s = append(atr4s, atr4)
		}
	}

	gapAvg := avg(gaps)
	atr4Avg := avg(atr4s)
	sameDir := len(dirs) == 1

	if atr4Avg.GreaterThan(decimal.Zero) && atr4Avg.LessThanOrEqual(e.cfg.RangeATRMax) && gapAvg.LessThanOrEqual(e.cfg.RangeGapMax) {
		return e.transition(now, types.RegimeRange, false, decimal.NewFromFloat(0.7), "range: low vol and low ema gap", false)
	}

	if gapAvg.GreaterThanOrEqual(e.cfg.TrendGapMin) && sameDir {
		return e.transition(now, types.RegimeTrend, false, decimal.NewFromInt(1), "trend: ema gap and proxies aligned", false)
	}

	return e.transition(now, types.RegimeNormal, false, decimal.NewFromInt(1), "normal: no regime threshold met", false)
}

// transition applies the min-hold rule from spec.md §4.9 step 6: a new
// non-PANIC label is only accepted after min_hold_sec has elapsed since
// the last change; PANIC always preempts immediately, and so does any
// label passed with force set (the missing-data fallback to NORMAL).
func (e *Engine) transition(now time.Time, newRegime types.Regime, panic bool, riskMult decimal.Decimal, reason string, force bool) types.RegimeResult {
	changed := newRegime != e.regime
	canChange := force || newRegime == types.RegimePanic || e.lastChangeUnix == 0 ||
		now.Unix()-e.lastChangeUnix >= int64(e.cfg.MinHold.Seconds())

	if changed && canChange {
		e.regime = newRegime
		e.panic = panic
		e.lastChangeUnix = now.Unix()
		if e.log != nil {
			e.log.Infow("regime changed", "regime", newRegime, "panic", panic, "reason", reason)
		}
	} else if changed {
		// Hold window not elapsed: keep the previous label but still
		// report it via reason so callers can see why nothing moved.
		reason = "hold: " + reason
	} else {
		e.panic = panic
	}

	return types.RegimeResult{
		Regime:   e.regime,
		Panic:    e.panic,
		RiskMult: riskMult,
		Reason:   reason,
	}
}

// ShouldAlert reports whether a regime-change notification may be sent
// now, honoring the alert cooldown, and records the attempt if so.
func (e *Engine) ShouldAlert(now time.Time) bool {
	if e.lastAlertUnix != 0 && now.Unix()-e.lastAlertUnix < int64(e.cfg.AlertCooldown.Seconds()) {
		return false
	}
	e.lastAlertUnix = now.Unix()
	return true
}

func atrPct(candles []*types.Candle, period int) (decimal.Decimal, bool) {
	if len(candles) < period+2 {
		return decimal.Zero, false
	}
	atr := indicators.NewATR(period)
	var v decimal.Decimal
	var seeded bool
	for _, c := range candles {
		v, seeded = atr.Update(c.High, c.Low, c.Close)
	}
	if !seeded {
		return decimal.Zero, false
	}
	lastClose := candles[len(candles)-1].Close
	if lastClose.IsZero() {
		return decimal.Zero, false
	}
	return v.Div(lastClose), true
}

func ema(series []decimal.Decimal, period int) (decimal.Decimal, bool) {
	if len(series) < period {
		return decimal.Zero, false
	}
	e := indicators.NewEMA(period)
	var v decimal.Decimal
	for _, x := range series {
		v = e.Update(x)
	}
	return v, true
}

func emaGap(candles []*types.Candle, fast, slow int) (decimal.Decimal, bool) {
	if len(candles) < slow {
		return decimal.Zero, false
	}
	closes := closesOf(candles)[len(candles)-slow:]
	ef, okF := ema(closes, fast)
	es, okS := ema(closes, slow)
	if !okF || !okS || es.IsZero() {
		return decimal.Zero, false
	}
	return ef.Sub(es).Abs().Div(es), true
}

func trendDir(candles []*types.Candle, fast, slow int) (string, bool) {
	if len(candles) < slow {
		return "", false
	}
	closes := closesOf(candles)[len(candles)-slow:]
	ef, okF := ema(closes, fast)
	es, okS := ema(closes, slow)
	if !okF || !okS {
		return "", false
	}
	if ef.GreaterThan(es) {
		return "UP", true
	}
	return "DOWN", true
}

func closesOf(candles []*types.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func avg(vals []decimal.Decimal) decimal.Decimal {
	if len(vals) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(vals))))
}
