// Package symbolengine implements per-symbol orchestration (spec.md
// §4.10 and §3's SymbolState/ProxyState): it owns each symbol's
// resamplers, bounded candle/volume/price histories and per-mode
// cooldowns, and chains the scorer, decision engine, risk planner,
// gatekeeper, drawdown manager and simulator for every closed candle.
package symbolengine

import (
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/internal/candle"
	"github.com/perpsignal/engine/internal/decision"
	"github.com/perpsignal/engine/internal/indicators"
	"github.com/perpsignal/engine/pkg/types"
	"github.com/perpsignal/engine/pkg/utils"
)

// bookTicker is a symbol's latest best bid/ask.
type bookTicker struct {
	bid, ask decimal.Decimal
	set      bool
}

func (b *bookTicker) mid() (decimal.Decimal, bool) {
	if !b.set {
		return decimal.Zero, false
	}
	return b.bid.Add(b.ask).Div(decimal.NewFromInt(2)), true
}

func (b *bookTicker) spread() decimal.Decimal {
	mid, ok := b.mid()
	if !ok || mid.IsZero() {
		return decimal.Zero
	}
	return b.ask.Sub(b.bid).Div(mid)
}

// timeframeTrack bundles one timeframe's resampler with its bounded
// candle and volume histories.
type timeframeTrack struct {
	resampler *candle.TimeframeResampler
	candles   *utils.RingBuffer[*types.Candle]
	volumes   *utils.RingBuffer[decimal.Decimal]

	atr       *indicators.ATR
	atrValue  decimal.Decimal
	atrSeeded bool
}

func newTimeframeTrack(tfSeconds int64, bufferCap int, atrPeriod int) *timeframeTrack {
	return &timeframeTrack{
		resampler: candle.NewTimeframeResampler(tfSeconds),
		candles:   utils.NewRingBuffer[*types.Candle](bufferCap),
		volumes:   utils.NewRingBuffer[decimal.Decimal](bufferCap),
		atr:       indicators.NewATR(atrPeriod),
	}
}

// push records a closed candle, its volume, and updates the ATR
// accumulator used by the risk planner's SL-distance calculation.
func (t *timeframeTrack) push(c *types.Candle) {
	t.candles.Push(c)
	t.volumes.Push(c.Volume)
	t.atrValue, t.atrSeeded = t.atr.Update(c.High, c.Low, c.Close)
}

// SymbolState is the ingestor's per-symbol working set: the book-ticker,
// the current second being processed, the running volume bucket, one
// timeframe track per active mode, the symbol's own decision engine
// (owning the per-mode cooldown timestamps described in spec.md §3),
// and a bounded recent-price history used by the correlation gate.
type SymbolState struct {
	Symbol string

	book bookTicker

	curSec    int64
	curSecSet bool
	volBucket decimal.Decimal

	main  *timeframeTrack
	early *timeframeTrack // nil when early signals are disabled

	decisionEngine *decision.Engine
	prices         *utils.RingBuffer[decimal.Decimal]
}

// newSymbolState creates a SymbolState with the given main/early
// timeframe widths and buffer capacity. earlyTFSeconds <= 0 disables
// the early track (spec.md §9's "main only" open question).
func newSymbolState(symbol string, mainTF, earlyTF int64, bufferCap, atrShort int, scoreCfg types.ScoreConfig, enableATR bool) *SymbolState {
	s := &SymbolState{
		Symbol:         symbol,
		main:           newTimeframeTrack(mainTF, bufferCap, atrShort),
		decisionEngine: decision.NewEngine(scoreCfg, enableATR),
		prices:         utils.NewRingBuffer[decimal.Decimal](bufferCap),
	}
	if earlyTF > 0 {
		s.early = newTimeframeTrack(earlyTF, bufferCap, atrShort)
	}
	return s
}

// UpdateBookTicker applies a book-ticker frame; mid/spread derive from
// it lazily. A zero-or-negative side leaves the ticker unset, matching
// spec.md §4.10: "if either side is unset, mid is undefined".
func (s *SymbolState) UpdateBookTicker(bid, ask decimal.Decimal) {
	if bid.LessThanOrEqual(decimal.Zero) || ask.LessThanOrEqual(decimal.Zero) {
		return
	}
	s.book.bid = bid
	s.book.ask = ask
	s.book.set = true
}

// proxyTrack is a ProxyState's single timeframe view (1h or 4h).
type proxyTrack struct {
	resampler *candle.TimeframeResampler
	candles   *utils.RingBuffer[*types.Candle]
}

func newProxyTrack(tfSeconds int64, bufferCap int) *proxyTrack {
	return &proxyTrack{
		resampler: candle.NewTimeframeResampler(tfSeconds),
		candles:   utils.NewRingBuffer[*types.Candle](bufferCap),
	}
}

// ProxyState mirrors SymbolState but only maintains 1h/4h resamplers
// and candle buffers, feeding the regime engine exclusively (spec.md §3).
type ProxyState struct {
	Symbol string

	book bookTicker

	curSec    int64
	curSecSet bool
	volBucket decimal.Decimal

	h1 *proxyTrack
	h4 *proxyTrack
}

const (
	oneHourSeconds  = 3600
	fourHourSeconds = 14400
)

func newProxyState(symbol string, bufferCap int) *ProxyState {
	return &ProxyState{
		Symbol: symbol,
		h1:     newProxyTrack(oneHourSeconds, bufferCap),
		h4:     newProxyTrack(fourHourSeconds, bufferCap),
	}
}

func (p *ProxyState) UpdateBookTicker(bid, ask decimal.Decimal) {
	if bid.LessThanOrEqual(decimal.Zero) || ask.LessThanOrEqual(decimal.Zero) {
		return
	}
	p.book.bid = bid
	p.book.ask = ask
	p.book.set = true
}
