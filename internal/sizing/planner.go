// Package sizing implements the risk planner (spec.md §4.5): given a
// decision's risk/RR/SL seeds, it derives an entry, stop, target,
// quantity and risk_usd, including volatility-adjusted sizing,
// regime-dependent entry offsets, and slippage (original_source/app/
// volatility_sizing.py, slippage_model.py).
package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
	"github.com/perpsignal/engine/pkg/utils"
)

// PlanInputs groups everything the planner needs for one signal.
type PlanInputs struct {
	Symbol    string
	Direction types.Direction
	Entry     decimal.Decimal
	ATRValue  decimal.Decimal
	NAV       decimal.Decimal
	Mode      types.Mode
	Regime    types.Regime
	RiskMult  decimal.Decimal
	RR        decimal.Decimal
	SLATRMult decimal.Decimal
}

// Planner derives a RiskPlan from decision outputs, per spec.md §4.5's
// nine ordered steps.
type Planner struct {
	cfg types.RiskConfig
}

// NewPlanner creates a risk planner with the given configuration.
func NewPlanner(cfg types.RiskConfig) *Planner {
	return &Planner{cfg: cfg}
}

var (
	minRiskPct = decimal.NewFromFloat(0.05)
	hundred    = decimal.NewFromInt(100)
)

// Plan executes the nine-step risk-planning sequence and returns the
// resulting plan. An invariant violation (non-positive entry or ATR)
// returns a zero plan and ok=false; callers must log and abort the
// event per spec.md §7.
func (p *Planner) Plan(in PlanInputs) (types.RiskPlan, bool) {
	if in.Entry.LessThanOrEqual(decimal.Zero) || in.ATRValue.LessThanOrEqual(decimal.Zero) || in.NAV.LessThanOrEqual(decimal.Zero) {
		return types.RiskPlan{}, false
	}

	notes := ""

	// 1. Base risk %.
	base, ok := p.cfg.BaseRiskPct[in.Mode]
	if !ok {
		base = p.cfg.BaseRiskPct[types.ModeMain]
	}
	riskPct := base.Mul(in.RiskMult)
	riskPct = utils.ClampDecimal(riskPct, minRiskPct, p.cfg.RiskMaxPct)

	// 2. Volatility adjustment.
	atrPct := in.ATRValue.Div(in.Entry)
	if p.cfg.EnableVolAdjust && !atrPct.IsZero() {
		volFactor := decimal.NewFromInt(1)
		if atrPct.GreaterThan(decimal.Zero) {
			volFactor = utils.MinDecimal(decimal.NewFromInt(1), p.cfg.TargetVolPct.Div(atrPct))
		}
		volFactor = utils.ClampDecimal(volFactor, decimal.NewFromFloat(0.5), decimal.NewFromFloat(1.5))
		riskPct = riskPct.Mul(volFactor)
		notes += fmt.Sprintf("vol_factor=%s ", volFactor.StringFixed(3))
	}

	// 3. SL distance.
	slDist := utils.MaxDecimal(in.ATRValue.Mul(in.SLATRMult), in.Entry.Mul(decimal.NewFromFloat(0.0002)))

	// 4/5. Entry offset -- the two mechanisms in spec.md §9's open
	// question never stack; cfg.EntryOffsetMode picks exactly one.
	entry := in.Entry
	sign := decimal.NewFromInt(1)
	if in.Direction == types.DirectionShort {
		sign = decimal.NewFromInt(-1)
	}

	switch p.cfg.EntryOffsetMode {
	case "regime":
		if in.Regime == types.RegimeTrend {
			entry = entry.Mul(decimal.NewFromInt(1).Add(sign.Mul(p.cfg.BreakoutPct)))
			notes += "offset=breakout "
		} else {
			entry = entry.Mul(decimal.NewFromInt(1).Sub(sign.Mul(p.cfg.PullbackPct)))
			notes += "offset=pullback "
		}
	case "confirm":
		confirmPct := utils.ClampDecimal(atrPct.Mul(decimal.NewFromFloat(0.10)), p.cfg.ConfirmMin, p.cfg.ConfirmMax)
		entry = entry.Mul(decimal.NewFromInt(1).Add(sign.Mul(confirmPct)))
		notes += "offset=confirm "
	}

	sl, tp := slTP(entry, slDist, in.RR, in.Direction)

	// 6. Slippage: shift entry adverse, preserving SL/TP distances.
	slipPct := p.cfg.SlippageBps.Div(decimal.NewFromInt(10000))
	if !p.cfg.AvgVolumeUSD.IsZero() {
		slipPct = EstimateSlippagePct(decimal.Zero, atrPct, decimal.Zero, p.cfg.AvgVolumeUSD, slipPct)
	}
	if !slipPct.IsZero() {
		delta := entry.Mul(slipPct).Mul(sign.Neg())
		entry = entry.Add(delta)
		sl = sl.Add(delta)
		tp = tp.Add(delta)
		notes += fmt.Sprintf("slip=%s ", slipPct.StringFixed(5))
	}

	// 7. Risk USD.
	riskUSD := in.NAV.Mul(riskPct).Div(hundred)

	// 8. Quantity.
	qty := decimal.Zero
	if slDist.GreaterThan(decimal.Zero) {
		qty = riskUSD.Div(slDist)
	}

	return types.RiskPlan{
		Symbol:    in.Symbol,
		Direction: in.Direction,
		Entry:     entry,
		SL:        sl,
		TP:        tp,
		Qty:       qty,
		RiskUSD:   riskUSD,
		RiskPct:   riskPct,
		RR:        in.RR,
		SLATRMult: in.SLATRMult,
		ATRValue:  in.ATRValue,
		ATRPct:    atrPct,
		Notes:     notes,
	}, true
}

func slTP(entry, slDist, rr decimal.Decimal, dir types.Direction) (sl, tp decimal.Decimal) {
	if dir == types.DirectionLong {
		return entry.Sub(slDist), entry.Add(rr.Mul(slDist))
	}
	return entry.Add(slDist), entry.Sub(rr.Mul(slDist))
}

// EstimateSlippagePct derives slippage from spread, volatility impact
// and size-vs-liquidity market impact, matching
// original_source/app/slippage_model.py's estimate_slippage_pct. When
// avgVolumeUSD is non-positive it returns spreadPct, or the flat
// configured bps value (flatFallback) if spreadPct is zero, giving that
// otherwise-dead configuration field a concrete meaning.
func EstimateSlippagePct(spreadPct, atrPct, positionNotionalUSD, avgVolumeUSD, flatFallback decimal.Decimal) decimal.Decimal {
	if avgVolumeUSD.LessThanOrEqual(decimal.Zero) {
		if spreadPct.IsZero() {
			return flatFallback
		}
		return spreadPct
	}

	kATR := decimal.NewFromFloat(0.4)
	kImpact := decimal.NewFromFloat(0.3)

	impactRatio := decimal.Zero
	if positionNotionalUSD.GreaterThan(decimal.Zero) {
		impactRatio = positionNotionalUSD.Div(avgVolumeUSD)
	}

	slippage := spreadPct.Add(kATR.Mul(atrPct)).Add(kImpact.Mul(impactRatio))
	return utils.MaxDecimal(slippage, spreadPct)
}
