// Package simulator implements the paper execution simulator
// (spec.md §4.8): tracks open positions against incoming candles,
// settles SL/TP fills, and keeps running NAV and trade statistics.
// Grounded on original_source/app/simulator.py's ExecutionSimulator.
package simulator

import (
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

// Simulator is the single writer of live positions and NAV, exclusively
// owned by the trade-reader task (spec.md §5). No internal locking.
type Simulator struct {
	nav          decimal.Decimal
	positions    map[string]*types.Position
	exitSlippage decimal.Decimal

	totalTrades int
	wins        int
	losses      int
	totalPnL    decimal.Decimal
}

// New creates a simulator starting at startNAV. exitSlippagePct shifts
// every SL/TP fill in the adverse direction by that fraction of the
// trigger price (spec.md §4.8's optional exit slippage); pass
// decimal.Zero to disable it.
func New(startNAV, exitSlippagePct decimal.Decimal) *Simulator {
	return &Simulator{
		nav:          startNAV,
		positions:    make(map[string]*types.Position),
		exitSlippage: exitSlippagePct,
		totalPnL:     decimal.Zero,
	}
}

// NAV returns the current net asset value.
func (s *Simulator) NAV() decimal.Decimal {
	return s.nav
}

// HasPosition reports whether symbol currently has an open position.
func (s *Simulator) HasPosition(symbol string) bool {
	_, ok := s.positions[symbol]
	return ok
}

// Open records a new live position. Opening on top of an existing
// position for the same symbol is a no-op, matching the original's
// guard.
func (s *Simulator) Open(pos *types.Position) {
	if s.HasPosition(pos.Symbol) {
		return
	}
	s.positions[pos.Symbol] = pos
}

// Position returns the live position for symbol, if any.
func (s *Simulator) Position(symbol string) (*types.Position, bool) {
	p, ok := s.positions[symbol]
	return p, ok
}

// UpdateByCandle checks one new candle against symbol's live position
// and settles it on SL or TP touch. SL is checked first on both sides
// (spec.md §9 open question: SL-first tie-break when a single candle's
// range spans both levels).
func (s *Simulator) UpdateByCandle(symbol string, c types.Candle) (types.CloseResult, bool) {
	pos, ok := s.positions[symbol]
	if !ok {
		return types.CloseResult{}, false
	}

	var result string
	var level decimal.Decimal
	var pnl decimal.Decimal

	if pos.Direction == types.DirectionLong {
		switch {
		case c.Low.LessThanOrEqual(pos.SL):
			result, level, pnl = "SL", pos.SL, pos.RiskUSD.Neg()
		case c.High.GreaterThanOrEqual(pos.TP):
			result, level, pnl = "TP", pos.TP, pos.RiskUSD.Mul(pos.RR)
		}
	} else {
		switch {
		case c.High.GreaterThanOrEqual(pos.SL):
			result, level, pnl = "SL", pos.SL, pos.RiskUSD.Neg()
		case c.Low.LessThanOrEqual(pos.TP):
			result, level, pnl = "TP", pos.TP, pos.RiskUSD.Mul(pos.RR)
		}
	}

	if result == "" {
		return types.CloseResult{}, false
	}

	exit := level
	if !s.exitSlippage.IsZero() {
		if pos.Direction == types.DirectionLong {
			exit = level.Mul(decimal.NewFromInt(1).Sub(s.exitSlippage))
		} else {
			exit = level.Mul(decimal.NewFromInt(1).Add(s.exitSlippage))
		}
		pnl = pnl.Sub(pos.RiskUSD.Mul(s.exitSlippage))
	}

	s.nav = s.nav.Add(pnl)
	s.totalTrades++
	s.totalPnL = s.totalPnL.Add(pnl)
	if pnl.GreaterThan(decimal.Zero) {
		s.wins++
	} else {
		s.losses++
	}
	delete(s.positions, symbol)

	return types.CloseResult{
		ID:        pos.ID,
		Symbol:    symbol,
		Direction: pos.Direction,
		Result:    result,
		Exit:      exit,
		PnL:       pnl,
		RR:        pos.RR,
		NAV:       s.nav,
	}, true
}

// Close forcibly removes a position without settlement (e.g. manual
// close or symbol delisting).
func (s *Simulator) Close(symbol string) (*types.Position, bool) {
	p, ok := s.positions[symbol]
	if ok {
		delete(s.positions, symbol)
	}
	return p, ok
}

// Summary reports running performance statistics, used by the
// notification worker's trade-close messages and the status API.
func (s *Simulator) Summary() types.SimulatorSummary {
	winRate := decimal.Zero
	if s.totalTrades > 0 {
		winRate = decimal.NewFromInt(int64(s.wins)).
			Div(decimal.NewFromInt(int64(s.totalTrades))).
			Mul(decimal.NewFromInt(100))
	}

	return types.SimulatorSummary{
		TotalTrades: s.totalTrades,
		Wins:        s.wins,
		Losses:      s.losses,
		WinRatePct:  winRate,
		TotalPnL:    s.totalPnL,
		NAV:         s.nav,
	}
}
