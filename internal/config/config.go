// Package config loads the engine's startup configuration (spec.md §7):
// defaults, optionally overlaid by a YAML file, with environment
// variables taking precedence over both, producing an immutable
// types.Config. A load failure is
// fatal — the engine never starts half-configured.
//
// Adapted from the teacher's pkg/types/config.go field shape. The
// teacher lists viper in go.mod but never imports it; wired here.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/perpsignal/engine/pkg/types"
)

// Load reads configuration from environment variables (prefixed
// PERPSIGNAL_) and, if present, a YAML file at path. path may be empty,
// in which case only environment variables and defaults apply.
func Load(path string) (types.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PERPSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return types.Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := build(v)
	if err := validate(cfg); err != nil {
		return types.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbols", []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})
	v.SetDefault("enable_early_signals", true)
	v.SetDefault("main_timeframe_sec", 300)
	v.SetDefault("early_timeframe_sec", 60)
	v.SetDefault("buffer_cap", 500)

	v.SetDefault("indicators.atr_short", 5)
	v.SetDefault("indicators.atr_long", 20)
	v.SetDefault("indicators.atr_compression_ratio", "0.5")
	v.SetDefault("indicators.volume_sma_len", 20)
	v.SetDefault("indicators.enable_wick_filter", true)
	v.SetDefault("indicators.enable_momentum_filter", true)
	v.SetDefault("indicators.enable_atr_compression", true)
	v.SetDefault("indicators.ema_panic_short", 5)
	v.SetDefault("indicators.ema_panic_long", 20)

	v.SetDefault("scoring.early_min", 5)
	v.SetDefault("scoring.main_min", 8)
	v.SetDefault("scoring.high_conf_min", 12)
	v.SetDefault("scoring.score_min_panic", 10)

	v.SetDefault("regime.proxy_symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("regime.panic_atr_ratio", "3.0")
	v.SetDefault("regime.panic_drop_pct", "0.05")
	v.SetDefault("regime.recovery_atr_ratio", "1.5")
	v.SetDefault("regime.trend_ema_fast", 20)
	v.SetDefault("regime.trend_ema_slow", 50)
	v.SetDefault("regime.trend_gap_min", "0.01")
	v.SetDefault("regime.range_atr_max", "0.003")
	v.SetDefault("regime.range_gap_max", "0.002")
	v.SetDefault("regime.min_hold_sec", 900)
	v.SetDefault("regime.alert_cooldown_sec", 300)

	v.SetDefault("risk.base_risk_pct_early", "0.5")
	v.SetDefault("risk.base_risk_pct_main", "1.0")
	v.SetDefault("risk.risk_max_pct", "2.0")
	v.SetDefault("risk.sl_atr_mult", "1.5")
	v.SetDefault("risk.rr", "2.0")
	v.SetDefault("risk.target_vol_pct", "0.01")
	v.SetDefault("risk.enable_vol_adjust", false)
	v.SetDefault("risk.entry_offset_mode", "none")
	v.SetDefault("risk.breakout_pct", "0.001")
	v.SetDefault("risk.pullback_pct", "0.001")
	v.SetDefault("risk.confirm_min", "0.0005")
	v.SetDefault("risk.confirm_max", "0.003")
	v.SetDefault("risk.slippage_bps", "2")
	v.SetDefault("risk.avg_volume_usd", "0")

	v.SetDefault("portfolio.max_positions", 5)
	v.SetDefault("portfolio.max_total_risk_pct", "5.0")
	v.SetDefault("portfolio.max_total_risk_usd", "0")
	v.SetDefault("portfolio.max_correlation", "0.8")
	v.SetDefault("portfolio.min_liquidity_usd", "0")

	v.SetDefault("drawdown.soft_pct", "0.06")
	v.SetDefault("drawdown.hard_pct", "0.10")
	v.SetDefault("drawdown.kill_pct", "0.18")
	v.SetDefault("drawdown.hard_cooldown_sec", 3600)
	v.SetDefault("drawdown.min_risk_mult", "0.35")

	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.starting_nav", "10000")
	v.SetDefault("simulator.rr", "2.0")
	v.SetDefault("simulator.report_interval_sec", 3600)
	v.SetDefault("simulator.exit_slippage", "0.0005")

	v.SetDefault("websocket_base_url", "wss://fstream.binance.com")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("enable_metrics", true)
	v.SetDefault("log_debug", false)

	v.SetDefault("notify.queue_cap", 500)
	v.SetDefault("notify.min_interval_ms", 200)

	v.SetDefault("thresholds.early.ema_gap", "0.0015")
	v.SetDefault("thresholds.early.volume_ratio", "1.3")
	v.SetDefault("thresholds.early.wick_max", "0.6")
	v.SetDefault("thresholds.early.momentum_min", "0.0005")
	v.SetDefault("thresholds.early.spread_max", "0.001")
	v.SetDefault("thresholds.early.cooldown", "5m")

	v.SetDefault("thresholds.main.ema_gap", "0.003")
	v.SetDefault("thresholds.main.volume_ratio", "1.5")
	v.SetDefault("thresholds.main.wick_max", "0.5")
	v.SetDefault("thresholds.main.momentum_min", "0.001")
	v.SetDefault("thresholds.main.spread_max", "0.0015")
	v.SetDefault("thresholds.main.cooldown", "15m")
}

func dec(v *viper.Viper, key string) decimal.Decimal {
	s := v.GetString(key)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func build(v *viper.Viper) types.Config {
	proxies := v.GetStringSlice("regime.proxy_symbols")
	var proxyArr [2]string
	for i := 0; i < len(proxies) && i < 2; i++ {
		proxyArr[i] = proxies[i]
	}

	thresholds := map[types.Mode]types.ModeThresholds{
		types.ModeEarly: {
			EMAGap:      dec(v, "thresholds.early.ema_gap"),
			VolumeRatio: dec(v, "thresholds.early.volume_ratio"),
			WickMax:     dec(v, "thresholds.early.wick_max"),
			MomentumMin: dec(v, "thresholds.early.momentum_min"),
			SpreadMax:   dec(v, "thresholds.early.spread_max"),
			Cooldown:    v.GetDuration("thresholds.early.cooldown"),
		},
		types.ModeMain: {
			EMAGap:      dec(v, "thresholds.main.ema_gap"),
			VolumeRatio: dec(v, "thresholds.main.volume_ratio"),
			WickMax:     dec(v, "thresholds.main.wick_max"),
			MomentumMin: dec(v, "thresholds.main.momentum_min"),
			SpreadMax:   dec(v, "thresholds.main.spread_max"),
			Cooldown:    v.GetDuration("thresholds.main.cooldown"),
		},
	}

	return types.Config{
		Symbols:            v.GetStringSlice("symbols"),
		EnableEarlySignals: v.GetBool("enable_early_signals"),
		MainTimeframeSec:   v.GetInt64("main_timeframe_sec"),
		EarlyTimeframeSec:  v.GetInt64("early_timeframe_sec"),
		BufferCap:          v.GetInt("buffer_cap"),

		Thresholds: thresholds,
		Indicators: types.IndicatorConfig{
			ATRShort:             v.GetInt("indicators.atr_short"),
			ATRLong:              v.GetInt("indicators.atr_long"),
			ATRCompressionRatio:  dec(v, "indicators.atr_compression_ratio"),
			VolumeSMALen:         v.GetInt("indicators.volume_sma_len"),
			EnableWickFilter:     v.GetBool("indicators.enable_wick_filter"),
			EnableMomentumFilter: v.GetBool("indicators.enable_momentum_filter"),
			EnableATRCompression: v.GetBool("indicators.enable_atr_compression"),
			EMAPanicShort:        v.GetInt("indicators.ema_panic_short"),
			EMAPanicLong:         v.GetInt("indicators.ema_panic_long"),
		},
		Scoring: types.ScoreConfig{
			EarlyMin:      v.GetInt("scoring.early_min"),
			MainMin:       v.GetInt("scoring.main_min"),
			HighConfMin:   v.GetInt("scoring.high_conf_min"),
			ScoreMinPanic: v.GetInt("scoring.score_min_panic"),
		},
		Regime: types.RegimeConfig{
			ProxySymbols:     proxyArr,
			PanicATRRatio:    dec(v, "regime.panic_atr_ratio"),
			PanicDropPct:     dec(v, "regime.panic_drop_pct"),
			RecoveryATRRatio: dec(v, "regime.recovery_atr_ratio"),
			TrendEMAFast:     v.GetInt("regime.trend_ema_fast"),
			TrendEMASlow:     v.GetInt("regime.trend_ema_slow"),
			TrendGapMin:      dec(v, "regime.trend_gap_min"),
			RangeATRMax:      dec(v, "regime.range_atr_max"),
			RangeGapMax:      dec(v, "regime.range_gap_max"),
			MinHold:          time.Duration(v.GetInt64("regime.min_hold_sec")) * time.Second,
			AlertCooldown:    time.Duration(v.GetInt64("regime.alert_cooldown_sec")) * time.Second,
		},
		Risk: types.RiskConfig{
			BaseRiskPct: map[types.Mode]decimal.Decimal{
				types.ModeEarly: dec(v, "risk.base_risk_pct_early"),
				types.ModeMain:  dec(v, "risk.base_risk_pct_main"),
			},
			RiskMaxPct:      dec(v, "risk.risk_max_pct"),
			SLATRMult:       dec(v, "risk.sl_atr_mult"),
			RR:              dec(v, "risk.rr"),
			TargetVolPct:    dec(v, "risk.target_vol_pct"),
			EnableVolAdjust: v.GetBool("risk.enable_vol_adjust"),
			EntryOffsetMode: v.GetString("risk.entry_offset_mode"),
			BreakoutPct:     dec(v, "risk.breakout_pct"),
			PullbackPct:     dec(v, "risk.pullback_pct"),
			ConfirmMin:      dec(v, "risk.confirm_min"),
			ConfirmMax:      dec(v, "risk.confirm_max"),
			SlippageBps:     dec(v, "risk.slippage_bps"),
			AvgVolumeUSD:    dec(v, "risk.avg_volume_usd"),
		},
		Portfolio: types.PortfolioConfig{
			MaxPositions:    v.GetInt("portfolio.max_positions"),
			MaxTotalRiskPct: dec(v, "portfolio.max_total_risk_pct"),
			MaxTotalRiskUSD: dec(v, "portfolio.max_total_risk_usd"),
			MaxCorrelation:  dec(v, "portfolio.max_correlation"),
			MinLiquidityUSD: dec(v, "portfolio.min_liquidity_usd"),
		},
		Drawdown: types.DrawdownConfig{
			SoftPct:      dec(v, "drawdown.soft_pct"),
			HardPct:      dec(v, "drawdown.hard_pct"),
			KillPct:      dec(v, "drawdown.kill_pct"),
			HardCooldown: time.Duration(v.GetInt64("drawdown.hard_cooldown_sec")) * time.Second,
			MinRiskMult:  dec(v, "drawdown.min_risk_mult"),
		},
		Simulator: types.SimulatorConfig{
			Enabled:        v.GetBool("simulator.enabled"),
			StartingNAV:    dec(v, "simulator.starting_nav"),
			RR:             dec(v, "simulator.rr"),
			ReportInterval: time.Duration(v.GetInt64("simulator.report_interval_sec")) * time.Second,
			ExitSlippage:   dec(v, "simulator.exit_slippage"),
		},

		WebsocketBaseURL: v.GetString("websocket_base_url"),
		HTTPAddr:         v.GetString("http_addr"),
		EnableMetrics:    v.GetBool("enable_metrics"),
		LogDebug:         v.GetBool("log_debug"),

		NotifyQueueCap:    v.GetInt("notify.queue_cap"),
		NotifyMinInterval: time.Duration(v.GetInt64("notify.min_interval_ms")) * time.Millisecond,
	}
}

func validate(cfg types.Config) error {
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	if cfg.MainTimeframeSec <= 0 {
		return fmt.Errorf("main_timeframe_sec must be positive")
	}
	if cfg.Regime.ProxySymbols[0] == "" || cfg.Regime.ProxySymbols[1] == "" {
		return fmt.Errorf("regime.proxy_symbols must name two symbols")
	}
	if cfg.Simulator.StartingNAV.IsZero() || cfg.Simulator.StartingNAV.IsNegative() {
		return fmt.Errorf("simulator.starting_nav must be positive")
	}
	return nil
}
