// Package decision implements the hard/soft regime gates and the
// risk-policy seeds (risk multiplier, RR, SL-ATR multiplier) that
// precede the risk planner (spec.md §4.4).
package decision

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
	"github.com/perpsignal/engine/pkg/utils"
)

// Decision is the centralized verdict of the decision engine: whether
// to allow the signal, and the risk/RR/SL seeds to hand to the risk
// planner.
type Decision struct {
	Allow     bool
	RiskMult  decimal.Decimal
	RR        decimal.Decimal
	SLATRMult decimal.Decimal
	Reason    string
}

// Engine applies the gate and risk-policy rules, plus the per-mode
// cooldown from spec.md §4.4.
type Engine struct {
	cfg         types.ScoreConfig
	lastSignal  map[types.Mode]int64
	enableATR   bool
}

// NewEngine creates a decision engine.
func NewEngine(cfg types.ScoreConfig, enableATRCompression bool) *Engine {
	return &Engine{
		cfg:        cfg,
		lastSignal: map[types.Mode]int64{},
		enableATR:  enableATRCompression,
	}
}

// Evaluate applies the hard gates, soft gates, and risk-policy seeding
// described in spec.md §4.4, given the scorer's verdict and the current
// regime. baseRR/baseSLATRMult are the configured defaults before
// regime/confidence adjustment.
func (e *Engine) Evaluate(now time.Time, sig types.Signal, baseRR, baseSLATRMult decimal.Decimal, cooldown time.Duration) Decision {
	regime := sig.MarketRegime
	if regime == "" {
		regime = types.RegimeNormal
	}

	// Hard gates.
	if sig.MarketPanic {
		if sig.Direction == types.DirectionLong {
			return Decision{Allow: false, RR: baseRR, SLATRMult: baseSLATRMult, Reason: "PANIC: block LONG"}
		}
	}
	if sig.Mode == types.ModeEarly {
		switch regime {
		case types.RegimePanic:
			return Decision{Allow: false, RR: baseRR, SLATRMult: baseSLATRMult, Reason: "PANIC: block EARLY"}
		case types.RegimeRecovery:
			return Decision{Allow: false, RR: baseRR, SLATRMult: baseSLATRMult, Reason: "RECOVERY: block EARLY"}
		case types.RegimeRange:
			return Decision{Allow: false, RR: baseRR, SLATRMult: baseSLATRMult, Reason: "RANGE: block EARLY"}
		}
	}

	scoreMin := e.scoreMin(sig.Mode)

	if sig.MarketPanic {
		// SHORT allowed under PANIC, reduced risk and RR.
		rr := utils.MinDecimal(baseRR, decimal.NewFromFloat(1.8))
		slm := baseSLATRMult.Mul(decimal.NewFromFloat(1.05))
		scoreMin = e.cfg.ScoreMinPanic
		if sig.Score < scoreMin {
			return Decision{Allow: false, RR: rr, SLATRMult: slm, Reason: "PANIC: score too low"}
		}
		if !sig.Checks.BreakoutHighLow {
			return Decision{Allow: false, RR: rr, SLATRMult: slm, Reason: "PANIC: requires breakout"}
		}
		if e.enableATR && !sig.Checks.ATRSqueeze {
			return Decision{Allow: false, RR: rr, SLATRMult: slm, Reason: "PANIC: requires ATR squeeze"}
		}
		if !e.checkCooldown(now, sig.Mode, cooldown) {
			return Decision{Allow: false, RR: rr, SLATRMult: slm, Reason: "cooldown active"}
		}
		e.markSignal(now, sig.Mode)
		return Decision{Allow: true, RiskMult: decimal.NewFromFloat(0.60), RR: rr, SLATRMult: slm, Reason: "PANIC: allow SHORT (reduced risk)"}
	}

	if sig.Mode == types.ModeEarly {
		if sig.Score < e.cfg.EarlyMin && !sig.HighConf {
			return Decision{Allow: false, RR: baseRR, SLATRMult: baseSLATRMult, Reason: "EARLY: score too low"}
		}
		rr := utils.MaxDecimal(decimal.NewFromFloat(1.6), baseRR)
		if !e.checkCooldown(now, sig.Mode, cooldown) {
			return Decision{Allow: false, RR: rr, SLATRMult: baseSLATRMult, Reason: "cooldown active"}
		}
		e.markSignal(now, sig.Mode)
		return Decision{Allow: true, RiskMult: decimal.NewFromFloat(0.75), RR: rr, SLATRMult: baseSLATRMult, Reason: "EARLY: allow (reduced risk)"}
	}

	// MAIN policy by regime. Baseline required score is scoreMin; RANGE
	// and RECOVERY raise it per the soft gates in spec.md §4.4.
	riskMult := decimal.NewFromInt(1)
	rr := baseRR
	slm := baseSLATRMult
	requiredScore := scoreMin

	if sig.HighConf {
		rr = utils.MaxDecimal(rr, decimal.NewFromFloat(2.5))
		riskMult = riskMult.Mul(decimal.NewFromFloat(1.20))
		slm = slm.Mul(decimal.NewFromFloat(1.05))
	}

	switch regime {
	case types.RegimeTrend:
		rr = utils.MaxDecimal(rr, decimal.NewFromFloat(2.2))
		riskMult = riskMult.Mul(decimal.NewFromFloat(1.10))
		slm = slm.Mul(decimal.NewFromFloat(1.10))
	case types.RegimeRange:
		rr = utils.MinDecimal(rr, decimal.NewFromFloat(1.6))
		riskMult = riskMult.Mul(decimal.NewFromFloat(0.75))
		slm = slm.Mul(decimal.NewFromFloat(0.90))
		requiredScore += 1
	case types.RegimeRecovery:
		rr = utils.MinDecimal(rr, decimal.NewFromFloat(1.7))
		riskMult = riskMult.Mul(decimal.NewFromFloat(0.55))
		slm = slm.Mul(decimal.NewFromFloat(0.95))
		requiredScore += 1
		if sig.Direction == types.DirectionShort {
			requiredScore += 2
		}
		if !sig.HighConf {
			return Decision{Allow: false, RR: rr, SLATRMult: slm, Reason: "RECOVERY: requires high_conf"}
		}
	default:
		rr = utils.MaxDecimal(rr, decimal.NewFromFloat(1.8))
		if !sig.HighConf {
			riskMult = riskMult.Mul(decimal.NewFromFloat(0.90))
		}
	}

	if sig.Score < requiredScore {
		return Decision{Allow: false, RR: rr, SLATRMult: slm, Reason: string(regime) + ": MAIN score too low"}
	}

	rr = utils.ClampDecimal(rr, decimal.NewFromFloat(1.2), decimal.NewFromFloat(3.0))
	slm = utils.ClampDecimal(slm, decimal.NewFromFloat(0.6), decimal.NewFromFloat(2.8))
	riskMult = utils.ClampDecimal(riskMult, decimal.NewFromFloat(0.4), decimal.NewFromFloat(1.6))

	if !e.checkCooldown(now, sig.Mode, cooldown) {
		return Decision{Allow: false, RiskMult: riskMult, RR: rr, SLATRMult: slm, Reason: "cooldown active"}
	}
	e.markSignal(now, sig.Mode)

	return Decision{Allow: true, RiskMult: riskMult, RR: rr, SLATRMult: slm, Reason: string(regime) + ": allow"}
}

func (e *Engine) scoreMin(mode types.Mode) int {
	if mode == types.ModeEarly {
		return e.cfg.EarlyMin
	}
	return e.cfg.MainMin
}

func (e *Engine) checkCooldown(now time.Time, mode types.Mode, cooldown time.Duration) bool {
	last, ok := e.lastSignal[mode]
	if !ok {
		return true
	}
	return now.Unix()-last >= int64(cooldown.Seconds())
}

func (e *Engine) markSignal(now time.Time, mode types.Mode) {
	e.lastSignal[mode] = now.Unix()
}
