// Package drawdown implements the drawdown manager (spec.md §4.7):
// soft/hard/kill thresholds, a risk multiplier, and a cooldown, mirroring
// original_source/app/drawdown_manager.py.
package drawdown

import (
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
	"github.com/perpsignal/engine/pkg/utils"
)

// haltForever is the sentinel halted_until value representing the
// kill-switch's permanent halt (spec.md: "halted_until = +inf").
const haltForever = int64(1<<63 - 1)

// Manager tracks NAV against a running peak and classifies the current
// drawdown state. Single writer, no internal locking (spec.md §5).
type Manager struct {
	cfg types.DrawdownConfig

	peakNAV     decimal.Decimal
	nav         decimal.Decimal
	haltedUntil int64
	killed      bool
}

// NewManager creates a drawdown manager starting at startNAV.
func NewManager(cfg types.DrawdownConfig, startNAV decimal.Decimal) *Manager {
	return &Manager{
		cfg:     cfg,
		peakNAV: startNAV,
		nav:     startNAV,
	}
}

// Update recomputes peak_nav and dd_pct for a new NAV reading and
// returns the resulting snapshot, applying the kill-switch and
// hard-cooldown-extension side effects described in spec.md §4.7.
func (m *Manager) Update(nav decimal.Decimal, nowUnix int64) types.DrawdownState {
	m.nav = nav
	if nav.GreaterThan(m.peakNAV) {
		m.peakNAV = nav
	}

	ddPct := decimal.Zero
	if m.peakNAV.GreaterThan(decimal.Zero) {
		ddPct = utils.MaxDecimal(decimal.Zero, m.peakNAV.Sub(nav).Div(m.peakNAV))
	}

	if ddPct.GreaterThanOrEqual(m.cfg.KillPct) {
		m.killed = true
		m.haltedUntil = haltForever
	} else if ddPct.GreaterThanOrEqual(m.cfg.HardPct) {
		candidate := nowUnix + int64(m.cfg.HardCooldown.Seconds())
		if candidate > m.haltedUntil {
			m.haltedUntil = candidate
		}
	}

	return types.DrawdownState{
		PeakNAV:     m.peakNAV,
		NAV:         m.nav,
		DDPct:       ddPct,
		Soft:        ddPct.GreaterThanOrEqual(m.cfg.SoftPct),
		Hard:        ddPct.GreaterThanOrEqual(m.cfg.HardPct),
		Kill:        m.killed,
		HaltedUntil: m.haltedUntil,
	}
}

// CanTrade returns a gate result from the state recorded by the last
// Update: blocked once the kill switch has fired, and blocked while
// nowUnix is before halted_until. It does not extend the cooldown.
func (m *Manager) CanTrade(nowUnix int64) types.GateResult {
	if m.killed {
		return types.GateResult{Allowed: false, Reason: "dd_kill"}
	}
	if nowUnix < m.haltedUntil {
		return types.GateResult{Allowed: false, Reason: "dd_hard_cooldown"}
	}
	return types.GateResult{Allowed: true, Reason: "ok"}
}

// RiskMultiplier returns 1.0 below the soft threshold, then linearly
// interpolates down to min_risk_mult as dd_pct moves from soft to hard,
// clamped to [min_risk_mult, 1.0].
func (m *Manager) RiskMultiplier(nowUnix int64) decimal.Decimal {
	st := m.Update(m.nav, nowUnix)

	if st.DDPct.LessThan(m.cfg.SoftPct) {
		return decimal.NewFromInt(1)
	}

	soft := m.cfg.SoftPct
	hard := m.cfg.HardPct
	if hard.LessThanOrEqual(soft) {
		hard = soft.Add(decimal.NewFromFloat(1e-9))
	}

	x := utils.ClampDecimal(st.DDPct.Sub(soft).Div(hard.Sub(soft)), decimal.Zero, decimal.NewFromInt(1))
	mult := decimal.NewFromInt(1).Sub(x.Mul(decimal.NewFromInt(1).Sub(m.cfg.MinRiskMult)))

	return utils.ClampDecimal(mult, m.cfg.MinRiskMult, decimal.NewFromInt(1))
}

// State returns the current snapshot without mutating NAV.
func (m *Manager) State(nowUnix int64) types.DrawdownState {
	return m.Update(m.nav, nowUnix)
}

// ResetPeak manually clears the kill switch and cooldown, setting
// peak_nav to the current NAV.
func (m *Manager) ResetPeak() {
	m.peakNAV = m.nav
	m.haltedUntil = 0
	m.killed = false
}
