// Package feed implements the websocket ingestor (spec.md §5/§6): two
// cooperative reader tasks (book-ticker, aggregated trade) decode
// exchange frames and hand them to a single dispatch goroutine, which
// is the sole writer of all per-symbol/per-proxy state — matching the
// single-writer model of spec.md §5 without any locking. Grounded on
// the teacher's internal/data/market_data.go for the dial/read/
// reconnect shape.
package feed

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/perpsignal/engine/internal/symbolengine"
	"github.com/perpsignal/engine/pkg/types"
)

// Config groups the ingestor's connection settings.
type Config struct {
	BookTickerURL string
	TradeURL      string
	Symbols       []string

	// ReportInterval and OnReport drive the periodic reporter task
	// (spec.md §5): every ReportInterval it reads engine.Summary() and
	// hands it to OnReport. Either left zero/nil disables the task.
	ReportInterval time.Duration
	OnReport       func(types.SimulatorSummary)
}

type eventKind int

const (
	eventBookTicker eventKind = iota
	eventTrade
)

type rawEvent struct {
	kind        eventKind
	symbol      string
	bid, ask    decimal.Decimal
	eventTimeMs int64
	qty         decimal.Decimal
}

// Ingestor drives the symbol engine from the two websocket streams.
type Ingestor struct {
	cfg    Config
	engine *symbolengine.Engine
	log    *zap.SugaredLogger

	events chan rawEvent
	clock  func() int64
}

// NewIngestor creates an ingestor that dispatches into engine.
func NewIngestor(cfg Config, engine *symbolengine.Engine, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{
		cfg:    cfg,
		engine: engine,
		log:    log,
		events: make(chan rawEvent, 1024),
		clock:  func() int64 { return time.Now().Unix() },
	}
}

// Run starts the two reader tasks, the dispatch loop and the periodic
// reporter task, blocking until ctx is cancelled. Reader tasks reconnect
// with jittered exponential backoff on any transport failure; the
// dispatch loop is the engine's only writer.
func (in *Ingestor) Run(ctx context.Context) {
	var wg conc.WaitGroup

	wg.Go(func() { in.readLoop(ctx, in.cfg.BookTickerURL, in.handleBookTickerFrame) })
	wg.Go(func() { in.readLoop(ctx, in.cfg.TradeURL, in.handleTradeFrame) })
	wg.Go(func() { in.dispatchLoop(ctx) })
	wg.Go(func() { in.reportLoop(ctx) })

	wg.Wait()
}

// reportLoop ticks on cfg.ReportInterval, reads the engine's running
// NAV/stats snapshot and hands it to cfg.OnReport. A zero interval or
// nil callback disables the task entirely.
func (in *Ingestor) reportLoop(ctx context.Context) {
	if in.cfg.ReportInterval <= 0 || in.cfg.OnReport == nil {
		return
	}

	ticker := time.NewTicker(in.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.cfg.OnReport(in.engine.Summary())
		}
	}
}

// readLoop owns one websocket connection and reconnects it on failure.
// handle decodes one frame and enqueues the resulting event(s); it never
// touches engine state directly.
func (in *Ingestor) readLoop(ctx context.Context, rawURL string, handle func([]byte)) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := dial(rawURL)
		if err != nil {
			in.logErrorf("dial failed: %v", err)
			if !sleepBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}
		attempt = 0

		in.readUntilFailure(ctx, conn, handle)
		conn.Close()

		if !sleepBackoff(ctx, attempt) {
			return
		}
		attempt++
	}
}

func (in *Ingestor) readUntilFailure(ctx context.Context, conn *websocket.Conn, handle func([]byte)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				in.logErrorf("read error: %v", err)
			}
			return
		}
		handle(msg)
	}
}

func dial(rawURL string) (*websocket.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// sleepBackoff waits min(60, 2^n) seconds plus uniform jitter in [0,1)
// (spec.md §5), returning false if ctx is cancelled first.
func sleepBackoff(ctx context.Context, attempt int) bool {
	base := float64(int64(1) << uint(minInt(attempt, 6)))
	if base > 60 {
		base = 60
	}
	d := time.Duration((base + rand.Float64()) * float64(time.Second))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type bookTickerFrame struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

type tradeFrame struct {
	Symbol      string `json:"s"`
	EventTimeMs int64  `json:"T"`
	Qty         string `json:"q"`
}

func (in *Ingestor) handleBookTickerFrame(raw []byte) {
	var f bookTickerFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}
	bid, err1 := decimal.NewFromString(f.Bid)
	ask, err2 := decimal.NewFromString(f.Ask)
	if err1 != nil || err2 != nil || f.Symbol == "" {
		return
	}
	in.enqueue(rawEvent{kind: eventBookTicker, symbol: f.Symbol, bid: bid, ask: ask})
}

func (in *Ingestor) handleTradeFrame(raw []byte) {
	var f tradeFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}
	qty, err := decimal.NewFromString(f.Qty)
	if err != nil || f.Symbol == "" {
		return
	}
	in.enqueue(rawEvent{kind: eventTrade, symbol: f.Symbol, eventTimeMs: f.EventTimeMs, qty: qty})
}

// enqueue is non-blocking from the reader's perspective up to the
// channel's buffer; a full buffer means the dispatch loop has fallen
// behind and the frame is dropped rather than stalling the reader.
func (in *Ingestor) enqueue(e rawEvent) {
	select {
	case in.events <- e:
	default:
		in.logErrorf("event buffer full, dropping %s frame for %s", frameName(e.kind), e.symbol)
	}
}

func frameName(k eventKind) string {
	if k == eventBookTicker {
		return "book-ticker"
	}
	return "trade"
}

// dispatchLoop is the engine's sole writer (spec.md §5's trade-reader
// task): it drains events and applies them to the symbol engine one at
// a time, with no locking required.
func (in *Ingestor) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-in.events:
			now := in.clock()
			switch e.kind {
			case eventBookTicker:
				in.engine.OnBookTicker(e.symbol, e.bid, e.ask)
			case eventTrade:
				in.engine.OnTrade(e.symbol, e.eventTimeMs, e.qty, now)
			}
		}
	}
}

func (in *Ingestor) logErrorf(format string, args ...any) {
	if in.log != nil {
		in.log.Errorf(format, args...)
	}
}

