// Package portfolio implements the portfolio gatekeeper (spec.md §4.6):
// tracks live simulated positions and answers can_open against
// max-positions, aggregate-risk and pairwise-correlation limits.
// Grounded on original_source/app/position_manager.py and
// correlation_engine.py.
package portfolio

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
	"github.com/perpsignal/engine/pkg/utils"
)

const minCorrelationSamples = 20
const minReturnSamples = 5

// Gatekeeper is the single writer of the live-position set, exclusively
// owned by the trade-reader task (see spec.md §5). No internal locking.
type Gatekeeper struct {
	cfg       types.PortfolioConfig
	navUSD    decimal.Decimal
	positions map[string]*types.Position
}

// NewGatekeeper creates a gatekeeper with the given limits.
func NewGatekeeper(cfg types.PortfolioConfig) *Gatekeeper {
	return &Gatekeeper{
		cfg:       cfg,
		positions: make(map[string]*types.Position),
	}
}

// UpdateNAV refreshes the NAV scalar used for the percentage-based risk
// cap (propagated by value from the execution simulator).
func (g *Gatekeeper) UpdateNAV(nav decimal.Decimal) {
	g.navUSD = nav
}

// TotalRiskUSD returns the sum of risk_usd across all live positions.
func (g *Gatekeeper) TotalRiskUSD() decimal.Decimal {
	total := decimal.Zero
	for _, p := range g.positions {
		total = total.Add(p.RiskUSD)
	}
	return total
}

func (g *Gatekeeper) riskLimitUSD() (decimal.Decimal, bool) {
	if !g.cfg.MaxTotalRiskPct.IsZero() && g.navUSD.GreaterThan(decimal.Zero) {
		return g.navUSD.Mul(g.cfg.MaxTotalRiskPct).Div(decimal.NewFromInt(100)), true
	}
	if !g.cfg.MaxTotalRiskUSD.IsZero() {
		return g.cfg.MaxTotalRiskUSD, true
	}
	return decimal.Zero, false
}

// HasPosition reports whether the symbol is currently held.
func (g *Gatekeeper) HasPosition(symbol string) bool {
	_, ok := g.positions[symbol]
	return ok
}

// CanOpen answers spec.md §4.6's gatekeeper contract.
func (g *Gatekeeper) CanOpen(symbol string, riskUSD decimal.Decimal, recentPrices []decimal.Decimal) types.GateResult {
	if g.HasPosition(symbol) {
		return types.GateResult{Allowed: false, Reason: "position_exists"}
	}
	if len(g.positions) >= g.cfg.MaxPositions {
		return types.GateResult{Allowed: false, Reason: "max_positions_reached"}
	}

	if limit, has := g.riskLimitUSD(); has {
		if g.TotalRiskUSD().Add(riskUSD).GreaterThan(limit) {
			return types.GateResult{Allowed: false, Reason: "max_total_risk_reached"}
		}
	}

	if reason, blocked := g.correlationBlock(recentPrices); blocked {
		return types.GateResult{Allowed: false, Reason: reason}
	}

	return types.GateResult{Allowed: true, Reason: "ok"}
}

// correlationBlock implements the don't-know-don't-block policy from
// spec.md §9: missing config, too-short history on either side, or too
// few samples never blocks.
func (g *Gatekeeper) correlationBlock(newPrices []decimal.Decimal) (string, bool) {
	if g.cfg.MaxCorrelation.IsZero() {
		return "", false
	}
	if len(newPrices) < minCorrelationSamples {
		return "", false
	}

	newReturns := utils.SimpleReturns(newPrices)

	for _, p := range g.positions {
		if len(p.PriceHistory) < minCorrelationSamples {
			continue
		}
		otherReturns := utils.SimpleReturns(p.PriceHistory)
		if len(newReturns) < minReturnSamples || len(otherReturns) < minReturnSamples {
			continue
		}

		n := len(newReturns)
		if len(otherReturns) < n {
			n = len(otherReturns)
		}
		a := newReturns[len(newReturns)-n:]
		b := otherReturns[len(otherReturns)-n:]

		c := utils.PearsonCorrelation(a, b)
		if c.GreaterThanOrEqual(g.cfg.MaxCorrelation) {
			return "correlation_block(" + p.Symbol + "," + c.StringFixed(2) + ")", true
		}
	}

	return "", false
}

// OpenPosition inserts a new live position. Callers must have already
// checked CanOpen; double-open on an already-held symbol is a caller
// error guarded upstream (spec.md §4.8).
func (g *Gatekeeper) OpenPosition(plan types.RiskPlan, openedAtUnix int64, priceHistory []decimal.Decimal) *types.Position {
	pos := &types.Position{
		ID:           NewPositionID(),
		Symbol:       plan.Symbol,
		Direction:    plan.Direction,
		Qty:          plan.Qty,
		Entry:        plan.Entry,
		SL:           plan.SL,
		TP:           plan.TP,
		RiskUSD:      plan.RiskUSD,
		RR:           plan.RR,
		OpenedAtUnix: openedAtUnix,
		PriceHistory: append([]decimal.Decimal(nil), priceHistory...),
	}
	g.positions[plan.Symbol] = pos
	return pos
}

// ClosePosition removes a symbol's live position.
func (g *Gatekeeper) ClosePosition(symbol string) {
	delete(g.positions, symbol)
}

// Snapshot returns a shallow copy of the live position set, keyed by
// symbol, for status reporting.
func (g *Gatekeeper) Snapshot() map[string]*types.Position {
	out := make(map[string]*types.Position, len(g.positions))
	for k, v := range g.positions {
		out[k] = v
	}
	return out
}

// NewPositionID generates a unique identifier for a freshly opened
// position, used by the notification formatter and status API.
func NewPositionID() string {
	return uuid.NewString()
}
