package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModeThresholds is the per-mode (early/main) threshold table consulted
// by the signal scorer.
type ModeThresholds struct {
	EMAGap      decimal.Decimal
	VolumeRatio decimal.Decimal
	WickMax     decimal.Decimal
	MomentumMin decimal.Decimal
	SpreadMax   decimal.Decimal
	Cooldown    time.Duration
}

// RegimeConfig groups the regime engine's thresholds.
type RegimeConfig struct {
	PanicATRRatio    decimal.Decimal
	PanicDropPct     decimal.Decimal
	RecoveryATRRatio decimal.Decimal
	TrendEMAFast     int
	TrendEMASlow     int
	TrendGapMin      decimal.Decimal
	RangeATRMax      decimal.Decimal
	RangeGapMax      decimal.Decimal
	MinHold          time.Duration
	AlertCooldown    time.Duration
	ProxySymbols     [2]string
}

// RiskConfig groups the risk planner's sizing inputs.
type RiskConfig struct {
	BaseRiskPct      map[Mode]decimal.Decimal
	RiskMaxPct       decimal.Decimal
	SLATRMult        decimal.Decimal
	RR               decimal.Decimal
	TargetVolPct     decimal.Decimal
	EnableVolAdjust  bool
	EntryOffsetMode  string // "regime" | "confirm" | "none" -- see DESIGN.md Open Questions
	BreakoutPct      decimal.Decimal
	PullbackPct      decimal.Decimal
	ConfirmMin       decimal.Decimal
	ConfirmMax       decimal.Decimal
	SlippageBps      decimal.Decimal
	AvgVolumeUSD     decimal.Decimal
}

// PortfolioConfig groups the portfolio gatekeeper's limits.
type PortfolioConfig struct {
	MaxPositions      int
	MaxTotalRiskPct   decimal.Decimal
	MaxTotalRiskUSD   decimal.Decimal
	MaxCorrelation    decimal.Decimal
	MinLiquidityUSD   decimal.Decimal
}

// DrawdownConfig groups the drawdown manager's thresholds.
type DrawdownConfig struct {
	SoftPct       decimal.Decimal
	HardPct       decimal.Decimal
	KillPct       decimal.Decimal
	HardCooldown  time.Duration
	MinRiskMult   decimal.Decimal
}

// SimulatorConfig groups the paper execution simulator's settings.
type SimulatorConfig struct {
	Enabled        bool
	StartingNAV    decimal.Decimal
	RR             decimal.Decimal
	ReportInterval time.Duration
	ExitSlippage   decimal.Decimal
}

// IndicatorConfig groups EMA/ATR/filter periods and enable flags.
type IndicatorConfig struct {
	ATRShort                int
	ATRLong                 int
	ATRCompressionRatio     decimal.Decimal
	VolumeSMALen            int
	EnableWickFilter        bool
	EnableMomentumFilter    bool
	EnableATRCompression    bool
	EMAPanicShort           int
	EMAPanicLong            int
}

// ScoreConfig groups the decision engine's score thresholds.
type ScoreConfig struct {
	EarlyMin        int
	MainMin         int
	HighConfMin     int
	ScoreMinPanic   int
}

// Config is the full, immutable configuration loaded once at startup.
type Config struct {
	Symbols            []string
	EnableEarlySignals bool

	MainTimeframeSec  int64
	EarlyTimeframeSec int64
	BufferCap         int

	Thresholds map[Mode]ModeThresholds
	Indicators IndicatorConfig
	Scoring    ScoreConfig
	Regime     RegimeConfig
	Risk       RiskConfig
	Portfolio  PortfolioConfig
	Drawdown   DrawdownConfig
	Simulator  SimulatorConfig

	WebsocketBaseURL string
	HTTPAddr         string
	EnableMetrics    bool
	LogDebug         bool

	NotifyQueueCap     int
	NotifyMinInterval  time.Duration
}
