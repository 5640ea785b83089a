package symbolengine

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpsignal/engine/internal/drawdown"
	"github.com/perpsignal/engine/internal/portfolio"
	"github.com/perpsignal/engine/internal/regime"
	"github.com/perpsignal/engine/internal/signals"
	"github.com/perpsignal/engine/internal/simulator"
	"github.com/perpsignal/engine/internal/sizing"
	"github.com/perpsignal/engine/pkg/types"
	"github.com/perpsignal/engine/pkg/utils"
)

// Hooks are optional callbacks the ingestor/notification layer supplies
// to observe pipeline events; any of them may be nil.
type Hooks struct {
	OnSignal       func(types.Signal)
	OnOpen         func(types.Position, types.RiskPlan)
	OnClose        func(types.CloseResult, types.SimulatorSummary)
	OnRegimeChange func(types.RegimeResult)
	OnGateReject   func(gate, reason string)
	OnDrawdown     func(types.DrawdownState)
}

// Engine is the trade-reader task's single point of orchestration: the
// sole writer of every SymbolState, ProxyState, the gatekeeper, the
// drawdown manager and the simulator (spec.md §5). No internal locking.
type Engine struct {
	cfg types.Config
	log *zap.SugaredLogger

	symbols map[string]*SymbolState
	proxies map[string]*ProxyState
	isProxy map[string]bool

	regimeEngine *regime.Engine
	regimeResult types.RegimeResult

	scorer     *signals.Scorer
	planner    *sizing.Planner
	gatekeeper *portfolio.Gatekeeper
	ddManager  *drawdown.Manager
	sim        *simulator.Simulator

	hooks Hooks
}

// New constructs the engine and its per-symbol/per-proxy state from
// cfg.Symbols and cfg.Regime.ProxySymbols.
func New(cfg types.Config, log *zap.SugaredLogger, hooks Hooks) *Engine {
	e := &Engine{
		cfg:     cfg,
		log:     log,
		symbols: make(map[string]*SymbolState),
		proxies: make(map[string]*ProxyState),
		isProxy: make(map[string]bool),
		hooks:   hooks,

		regimeEngine: regime.NewEngine(cfg.Regime, log),
		scorer: signals.NewScorer(signals.ScorerConfig{
			Indicators: cfg.Indicators,
			VolumeSMA:  cfg.Indicators.VolumeSMALen,
			Thresholds: cfg.Thresholds,
		}),
		planner:    sizing.NewPlanner(cfg.Risk),
		gatekeeper: portfolio.NewGatekeeper(cfg.Portfolio),
		ddManager:  drawdown.NewManager(cfg.Drawdown, cfg.Simulator.StartingNAV),
		sim:        simulator.New(cfg.Simulator.StartingNAV, cfg.Simulator.ExitSlippage),
	}
	e.gatekeeper.UpdateNAV(cfg.Simulator.StartingNAV)

	for _, p := range cfg.Regime.ProxySymbols {
		if p == "" {
			continue
		}
		e.isProxy[p] = true
		e.proxies[p] = newProxyState(p, cfg.BufferCap)
	}

	earlyTF := cfg.EarlyTimeframeSec
	if !cfg.EnableEarlySignals {
		earlyTF = 0
	}
	for _, sym := range cfg.Symbols {
		if e.isProxy[sym] {
			continue
		}
		e.symbols[sym] = newSymbolState(sym, cfg.MainTimeframeSec, earlyTF, cfg.BufferCap, cfg.Indicators.ATRShort, cfg.Scoring, cfg.Indicators.EnableATRCompression)
	}

	return e
}

// Summary exposes the simulator's running statistics, used by the
// periodic reporter and the status API.
func (e *Engine) Summary() types.SimulatorSummary {
	return e.sim.Summary()
}

// Regime returns the current cached regime result.
func (e *Engine) Regime() types.RegimeResult {
	return e.regimeResult
}

// OnBookTicker applies a book-ticker frame to the relevant symbol or
// proxy state.
func (e *Engine) OnBookTicker(symbol string, bid, ask decimal.Decimal) {
	if e.isProxy[symbol] {
		if p, ok := e.proxies[symbol]; ok {
			p.UpdateBookTicker(bid, ask)
		}
		return
	}
	if s, ok := e.symbols[symbol]; ok {
		s.UpdateBookTicker(bid, ask)
	}
}

// OnTrade applies one aggregated-trade event, driving the catch-up
// resampling loop described in spec.md §4.10. nowUnix is the wall-clock
// time used for cooldowns and drawdown bookkeeping.
func (e *Engine) OnTrade(symbol string, eventTimeMs int64, qty decimal.Decimal, nowUnix int64) {
	if e.isProxy[symbol] {
		e.onProxyTrade(symbol, eventTimeMs, qty, nowUnix)
		return
	}

	st, ok := e.symbols[symbol]
	if !ok {
		return
	}

	eventSec := eventTimeMs / 1000
	if !st.curSecSet {
		st.curSec = eventSec
		st.curSecSet = true
	}

	for eventSec > st.curSec {
		if mid, ok := st.book.mid(); ok {
			e.advance(st, st.main, types.ModeMain, st.curSec, mid, st.volBucket, nowUnix)
			if st.early != nil {
				e.advance(st, st.early, types.ModeEarly, st.curSec, mid, st.volBucket, nowUnix)
			}
		}
		st.volBucket = decimal.Zero
		st.curSec++
	}

	st.volBucket = st.volBucket.Add(qty)
}

func (e *Engine) advance(st *SymbolState, track *timeframeTrack, mode types.Mode, sec int64, mid, vol decimal.Decimal, nowUnix int64) {
	closed, didClose := track.resampler.Update(sec, mid, vol)
	if !didClose {
		return
	}
	track.push(closed)
	if mode == types.ModeMain {
		st.prices.Push(closed.Close)
	}
	e.processClose(st, mode, track, closed, nowUnix)
}

// processClose runs the full per-candle pipeline: settle any existing
// position against the new candle, then evaluate a fresh signal.
func (e *Engine) processClose(st *SymbolState, mode types.Mode, track *timeframeTrack, closed *types.Candle, nowUnix int64) {
	if mode == types.ModeMain {
		if res, didClose := e.sim.UpdateByCandle(st.Symbol, *closed); didClose {
			e.gatekeeper.ClosePosition(st.Symbol)
			e.gatekeeper.UpdateNAV(e.sim.NAV())
			ddState := e.ddManager.Update(e.sim.NAV(), nowUnix)
			if e.hooks.OnDrawdown != nil {
				e.hooks.OnDrawdown(ddState)
			}
			if e.hooks.OnClose != nil {
				e.hooks.OnClose(res, e.sim.Summary())
			}
		}
	}

	candles := track.candles.Items()
	volumes := track.volumes.Items()
	if len(candles) < 30 || len(volumes) < e.cfg.Indicators.VolumeSMALen {
		return
	}

	if !e.cfg.Portfolio.MinLiquidityUSD.IsZero() {
		avgVol := utils.CalculateMean(volumes)
		avgVolUSD := avgVol.Mul(closed.Close)
		if !signals.LiquidityOK(avgVolUSD, e.cfg.Portfolio.MinLiquidityUSD) {
			return
		}
	}

	if !track.atrSeeded {
		return
	}

	spread := st.book.spread()
	score := e.scorer.Evaluate(candles, volumes, spread, mode)
	// Reaching this point means the liquidity pre-filter passed (or is
	// disabled), so the signal reports the check as passed.
	score.Checks.LiquidityOK = true

	sig := types.Signal{
		Symbol:       st.Symbol,
		Mode:         mode,
		Direction:    score.Direction,
		Score:        score.Total,
		HighConf:     score.Total >= e.cfg.Scoring.HighConfMin,
		MarketRegime: e.regimeResult.Regime,
		MarketPanic:  e.regimeResult.Panic,
		Spread:       spread,
		Checks:       score.Checks,
	}

	if e.hooks.OnSignal != nil {
		e.hooks.OnSignal(sig)
	}

	th := signals.PickThresholds(e.cfg.Thresholds, mode)
	d := st.decisionEngine.Evaluate(time.Unix(nowUnix, 0), sig, e.cfg.Risk.RR, e.cfg.Risk.SLATRMult, th.Cooldown)
	if !d.Allow {
		if e.hooks.OnGateReject != nil {
			e.hooks.OnGateReject("decision", d.Reason)
		}
		return
	}

	if e.gatekeeper.HasPosition(st.Symbol) || e.sim.HasPosition(st.Symbol) {
		return
	}
	if gate := e.ddManager.CanTrade(nowUnix); !gate.Allowed {
		if e.hooks.OnGateReject != nil {
			e.hooks.OnGateReject("drawdown", gate.Reason)
		}
		return
	}

	riskMult := d.RiskMult.Mul(e.ddManager.RiskMultiplier(nowUnix))

	plan, ok := e.planner.Plan(sizing.PlanInputs{
		Symbol:    st.Symbol,
		Direction: sig.Direction,
		Entry:     closed.Close,
		ATRValue:  track.atrValue,
		NAV:       e.sim.NAV(),
		Mode:      mode,
		Regime:    e.regimeResult.Regime,
		RiskMult:  riskMult,
		RR:        d.RR,
		SLATRMult: d.SLATRMult,
	})
	if !ok {
		return
	}

	gateRes := e.gatekeeper.CanOpen(st.Symbol, plan.RiskUSD, st.prices.Items())
	if !gateRes.Allowed {
		if e.hooks.OnGateReject != nil {
			e.hooks.OnGateReject("portfolio", gateRes.Reason)
		}
		return
	}

	pos := e.gatekeeper.OpenPosition(plan, nowUnix, st.prices.Items())
	e.sim.Open(pos)

	if e.hooks.OnOpen != nil {
		e.hooks.OnOpen(*pos, plan)
	}
}

func (e *Engine) onProxyTrade(symbol string, eventTimeMs int64, qty decimal.Decimal, nowUnix int64) {
	p, ok := e.proxies[symbol]
	if !ok {
		return
	}

	eventSec := eventTimeMs / 1000
	if !p.curSecSet {
		p.curSec = eventSec
		p.curSecSet = true
	}

	h1Closed := false
	for eventSec > p.curSec {
		if mid, ok := p.book.mid(); ok {
			if c, did := p.h1.resampler.Update(p.curSec, mid, p.volBucket); did {
				p.h1.candles.Push(c)
				h1Closed = true
			}
			if c, did := p.h4.resampler.Update(p.curSec, mid, p.volBucket); did {
				p.h4.candles.Push(c)
			}
		}
		p.volBucket = decimal.Zero
		p.curSec++
	}
	p.volBucket = p.volBucket.Add(qty)

	if h1Closed {
		e.recomputeRegime(nowUnix)
	}
}

func (e *Engine) recomputeRegime(nowUnix int64) {
	c1h := make(map[string][]*types.Candle, len(e.proxies))
	c4h := make(map[string][]*types.Candle, len(e.proxies))
	for sym, p := range e.proxies {
		c1h[sym] = p.h1.candles.Items()
		c4h[sym] = p.h4.candles.Items()
	}

	prevRegime := e.regimeResult.Regime
	e.regimeResult = e.regimeEngine.Update(time.Unix(nowUnix, 0), c1h, c4h)

	if e.regimeResult.Regime != prevRegime && e.hooks.OnRegimeChange != nil && e.regimeEngine.ShouldAlert(time.Unix(nowUnix, 0)) {
		e.hooks.OnRegimeChange(e.regimeResult)
	}
}
