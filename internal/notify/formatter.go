package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Formatter renders pipeline events into the multi-line alert text the
// queue enqueues, mirroring original_source/app/alert_formatter.py's
// fmt_signal_message/fmt_regime_message.
type Formatter struct{}

// NewFormatter constructs a Formatter. It holds no state.
func NewFormatter() *Formatter {
	return &Formatter{}
}

func checkMark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// FormatSignal renders a scored signal with its WHY sub-check breakdown
// and a PLAN execution suggestion.
func (f *Formatter) FormatSignal(sig types.Signal) string {
	var b strings.Builder

	tag := strings.ToUpper(string(sig.Mode))
	conf := ""
	if sig.HighConf {
		conf = " 🔥 HIGH-CONF"
	}
	panicNote := ""
	if sig.MarketPanic {
		panicNote = " (panic)"
	}
	fmt.Fprintf(&b, "📡 [%s] %s %s  score=%d%s\n", tag, sig.Symbol, sig.Direction, sig.Score, conf)
	fmt.Fprintf(&b, "regime: %s%s  spread: %s\n", sig.MarketRegime, panicNote, sig.Spread.StringFixed(5))

	b.WriteString("WHY:\n")
	c := sig.Checks
	fmt.Fprintf(&b, "  ema_gap: %s%% (needed)\n", c.EMAGapValue.Mul(hundred).StringFixed(3))
	fmt.Fprintf(&b, "  volume: x%s ratio %s\n", c.VolumeRatio.StringFixed(2), checkMark(c.VolumeSpike))
	fmt.Fprintf(&b, "  wick %s  momentum %s\n", checkMark(c.WickOK), checkMark(c.MomentumOK))
	fmt.Fprintf(&b, "  spread %s  liquidity %s\n", checkMark(c.SpreadOK), checkMark(c.LiquidityOK))

	if sig.Mode == types.ModeMain {
		fmt.Fprintf(&b, "  atr_squeeze %s  breakout20 %s\n", checkMark(c.ATRSqueeze), checkMark(c.BreakoutHighLow))
		fmt.Fprintf(&b, "  atr5: %s%%  atr20: %s%%  squeeze_ratio: %s\n",
			c.ATRShortPct.Mul(hundred).StringFixed(3),
			c.ATRLongPct.Mul(hundred).StringFixed(3),
			c.SqueezeRatio.StringFixed(2))
	}

	b.WriteString("PLAN:\n")
	b.WriteString("  entry near last close; stop at entry ± ATR×SL-mult; size per risk%% of NAV\n")

	return b.String()
}

// FormatRegimeChange renders an emoji-tagged regime transition message.
func (f *Formatter) FormatRegimeChange(res types.RegimeResult) string {
	var header, action string
	switch res.Regime {
	case types.RegimePanic:
		header = "⛔ PANIC MODE ON"
		action = "LONG and EARLY entries blocked, MAIN SHORT at reduced risk"
	case types.RegimeRecovery:
		header = "⚠️ RECOVERY MODE"
		action = "re-entries allowed at reduced size"
	case types.RegimeRange:
		header = "🟨 RANGE MODE"
		action = "mean-reversion setups favored"
	case types.RegimeTrend:
		header = "🟩 TREND MODE"
		action = "breakout/continuation setups favored"
	default:
		header = fmt.Sprintf("📌 REGIME → %s", res.Regime)
		action = "no regime-specific bias"
	}
	return fmt.Sprintf("%s\nreason: %s\nAction: %s\n", header, res.Reason, action)
}

// FormatOpen renders a newly opened paper position.
func (f *Formatter) FormatOpen(pos types.Position, plan types.RiskPlan) string {
	return fmt.Sprintf(
		"🟢 OPEN %s %s [%s]\nentry=%s sl=%s tp=%s qty=%s\nrisk=$%s (%s%%) rr=%s\n",
		pos.Symbol, pos.Direction, pos.ID,
		pos.Entry.StringFixed(6), pos.SL.StringFixed(6), pos.TP.StringFixed(6), pos.Qty.StringFixed(6),
		plan.RiskUSD.StringFixed(2), plan.RiskPct.StringFixed(2), plan.RR.StringFixed(2),
	)
}

// FormatClose renders a position close against the running summary.
func (f *Formatter) FormatClose(res types.CloseResult, summary types.SimulatorSummary) string {
	icon := "🔴"
	if res.PnL.IsPositive() {
		icon = "🟢"
	}
	return fmt.Sprintf(
		"%s CLOSE %s %s via %s [%s]\nexit=%s pnl=$%s rr=%s\nNAV=$%s trades=%d win_rate=%s%%\n",
		icon, res.Symbol, res.Direction, res.Result, res.ID,
		res.Exit.StringFixed(6), res.PnL.StringFixed(2), res.RR.StringFixed(2),
		summary.NAV.StringFixed(2), summary.TotalTrades, summary.WinRatePct.StringFixed(1),
	)
}

// FormatStartup renders the one-line banner published when the engine
// comes up (spec.md §6).
func (f *Formatter) FormatStartup(symbols []string) string {
	return fmt.Sprintf("🚀 perpsignal engine started, watching %d symbols: %s\n", len(symbols), strings.Join(symbols, ","))
}

// FormatStatus renders the periodic NAV/stats snapshot enqueued by the
// feed ingestor's reporter task (spec.md §5/§6).
func (f *Formatter) FormatStatus(summary types.SimulatorSummary) string {
	return fmt.Sprintf(
		"📊 STATUS NAV=$%s trades=%d (%dW/%dL) win_rate=%s%% total_pnl=$%s\n",
		summary.NAV.StringFixed(2), summary.TotalTrades, summary.Wins, summary.Losses,
		summary.WinRatePct.StringFixed(1), summary.TotalPnL.StringFixed(2),
	)
}
