// Package types provides shared domain value types for the signal and
// paper-trading engine.
package types

import (
	"github.com/shopspring/decimal"
)

// Direction is the side of a signal or position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Mode selects the threshold/cooldown set a signal is evaluated under.
type Mode string

const (
	ModeEarly Mode = "early"
	ModeMain  Mode = "main"
)

// Regime is the market-wide state emitted by the regime engine.
type Regime string

const (
	RegimeNormal   Regime = "NORMAL"
	RegimeTrend    Regime = "TREND"
	RegimeRange    Regime = "RANGE"
	RegimePanic    Regime = "PANIC"
	RegimeRecovery Regime = "RECOVERY"
)

// Candle is an aggregated O/H/L/C/V summary over a bucket of width
// end_ts - start_ts. Invariant: low <= min(open,close) <= max(open,close) <= high.
type Candle struct {
	Open    decimal.Decimal
	High    decimal.Decimal
	Low     decimal.Decimal
	Close   decimal.Decimal
	Volume  decimal.Decimal
	StartTS int64
	EndTS   int64
}

// RegimeResult is the output of the market regime engine.
type RegimeResult struct {
	Regime   Regime
	Panic    bool
	RiskMult decimal.Decimal
	Reason   string
}

// SignalChecks carries each named sub-check the scorer evaluated, for
// notification formatting and testing.
type SignalChecks struct {
	EMAGap          bool
	EMAGapValue     decimal.Decimal
	VolumeSpike     bool
	VolumeRatio     decimal.Decimal
	WickOK          bool
	MomentumOK      bool
	ATRSqueeze      bool
	ATRShortPct     decimal.Decimal
	ATRLongPct      decimal.Decimal
	SqueezeRatio    decimal.Decimal
	BreakoutHighLow bool
	SpreadOK        bool
	LiquidityOK     bool
}

// Signal is the scorer's verdict for one closed candle.
type Signal struct {
	Symbol       string
	Mode         Mode
	Direction    Direction
	Score        int
	HighConf     bool
	MarketRegime Regime
	MarketPanic  bool
	Spread       decimal.Decimal
	Checks       SignalChecks
}

// RiskPlan is the risk planner's output for an accepted signal.
type RiskPlan struct {
	Symbol     string
	Direction  Direction
	Entry      decimal.Decimal
	SL         decimal.Decimal
	TP         decimal.Decimal
	Qty        decimal.Decimal
	RiskUSD    decimal.Decimal
	RiskPct    decimal.Decimal
	RR         decimal.Decimal
	SLATRMult  decimal.Decimal
	ATRValue   decimal.Decimal
	ATRPct     decimal.Decimal
	Notes      string
}

// Position is a live simulated position. The portfolio gatekeeper and
// the execution simulator each key it by symbol in their own map.
type Position struct {
	ID           string
	Symbol       string
	Direction    Direction
	Qty          decimal.Decimal
	Entry        decimal.Decimal
	SL           decimal.Decimal
	TP           decimal.Decimal
	RiskUSD      decimal.Decimal
	RR           decimal.Decimal
	OpenedAtUnix int64
	PriceHistory []decimal.Decimal
}

// DrawdownState is a snapshot of the drawdown manager.
type DrawdownState struct {
	PeakNAV     decimal.Decimal
	NAV         decimal.Decimal
	DDPct       decimal.Decimal
	Soft        bool
	Hard        bool
	Kill        bool
	HaltedUntil int64 // unix seconds; 0 = not halted, math.MaxInt64 = halted for good (kill switch, see drawdown package)
}

// GateResult is the (allowed, reason) contract shared by every gate in
// the pipeline (decision engine, portfolio gatekeeper, drawdown manager).
// Per spec.md §7, a gate rejection is not an error.
type GateResult struct {
	Allowed bool
	Reason  string
}

// CloseResult describes a position closed by the execution simulator.
type CloseResult struct {
	ID        string
	Symbol    string
	Direction Direction
	Result    string // "SL" or "TP"
	Exit      decimal.Decimal
	PnL       decimal.Decimal
	RR        decimal.Decimal
	NAV       decimal.Decimal
}

// SimulatorSummary is the execution simulator's running statistics.
type SimulatorSummary struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRatePct  decimal.Decimal
	TotalPnL    decimal.Decimal
	NAV         decimal.Decimal
}
