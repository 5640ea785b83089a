// Package integration_test drives the symbol engine, notify queue,
// metrics collectors and status API together, the way they are wired in
// cmd/server/main.go, end to end.
package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpsignal/engine/internal/api"
	"github.com/perpsignal/engine/internal/metrics"
	"github.com/perpsignal/engine/internal/notify"
	"github.com/perpsignal/engine/internal/symbolengine"
	"github.com/perpsignal/engine/pkg/types"
)

func dec(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func testConfig() types.Config {
	return types.Config{
		Symbols:            []string{"AAAUSDT", "BTCPROXY", "ETHPROXY"},
		EnableEarlySignals: false,
		MainTimeframeSec:   1,
		BufferCap:          300,
		Thresholds: map[types.Mode]types.ModeThresholds{
			types.ModeMain: {
				EMAGap:      dec("0.0001"),
				VolumeRatio: dec("1.01"),
				WickMax:     dec("0.9"),
				MomentumMin: dec("0.0001"),
				SpreadMax:   dec("0.05"),
			},
		},
		Indicators: types.IndicatorConfig{ATRShort: 3, ATRLong: 10, VolumeSMALen: 5},
		Scoring:    types.ScoreConfig{EarlyMin: 1, MainMin: 1, HighConfMin: 12, ScoreMinPanic: 10},
		Regime: types.RegimeConfig{
			ProxySymbols:  [2]string{"BTCPROXY", "ETHPROXY"},
			PanicATRRatio: dec("3"),
			PanicDropPct:  dec("0.05"),
			TrendEMAFast:  2,
			TrendEMASlow:  4,
			TrendGapMin:   dec("0.01"),
			RangeATRMax:   dec("0.003"),
			RangeGapMax:   dec("0.002"),
		},
		Risk: types.RiskConfig{
			BaseRiskPct: map[types.Mode]decimal.Decimal{types.ModeMain: dec("1.0")},
			RiskMaxPct:  dec("2.0"),
			SLATRMult:   dec("1.5"),
			RR:          dec("2.0"),
		},
		Portfolio: types.PortfolioConfig{MaxPositions: 5, MaxTotalRiskPct: dec("5")},
		Drawdown: types.DrawdownConfig{
			SoftPct: dec("0.06"), HardPct: dec("0.10"), KillPct: dec("0.18"), MinRiskMult: dec("0.35"),
		},
		Simulator:     types.SimulatorConfig{Enabled: true, StartingNAV: dec("10000"), RR: dec("2.0")},
		HTTPAddr:      ":0",
		EnableMetrics: false,
	}
}

// TestPipelineWiringRecordsSignalsAndServesStatus feeds a rising-price,
// volume-spiking trade stream through the engine, with the notification
// queue and metrics collectors hooked in as main.go wires them, and
// checks that /status serves a summary and that at least one notification
// reaches the sink. The collectors are fed but not asserted on here.
func TestPipelineWiringRecordsSignalsAndServesStatus(t *testing.T) {
	log := zap.NewNop().Sugar()

	reg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(reg)

	var mu sync.Mutex
	var messages []string
	queueCfg := notify.DefaultConfig()
	queueCfg.MinDelay = time.Millisecond
	queue := notify.NewQueue(queueCfg, func(msg string) error {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
		return nil
	}, log)

	formatter := notify.NewFormatter()
	var engine *symbolengine.Engine
	var server *api.Server

	hooks := symbolengine.Hooks{
		OnSignal: func(sig types.Signal) {
			queue.Enqueue(formatter.FormatSignal(sig))
			collectors.RecordSignal(sig)
		},
		OnOpen: func(pos types.Position, plan types.RiskPlan) {
			queue.Enqueue(formatter.FormatOpen(pos, plan))
			collectors.RecordOpen(pos)
		},
		OnClose: func(res types.CloseResult, summary types.SimulatorSummary) {
			queue.Enqueue(formatter.FormatClose(res, summary))
			collectors.RecordClose(res)
		},
	}

	engine = symbolengine.New(testConfig(), log, hooks)
	server = api.NewServer(log, ":0", false, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Run(ctx)

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	engine.OnBookTicker("AAAUSDT", dec("99.9"), dec("100.1"))
	price := dec("100")
	for i := int64(0); i < 60; i++ {
		vol := dec("1")
		if i > 30 {
			vol = dec("50")
			price = price.Add(dec("0.5"))
		}
		engine.OnBookTicker("AAAUSDT", price.Sub(dec("0.05")), price.Add(dec("0.05")))
		engine.OnTrade("AAAUSDT", i*1000, vol, i)
	}

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if _, ok := body["summary"]; !ok {
		t.Fatal("expected status response to include a summary field")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(messages)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	got := len(messages)
	mu.Unlock()
	if got == 0 {
		t.Fatal("expected at least one notification message from the signal/open pipeline")
	}
}
