package signals

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

func dec(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func flatCandles(n int, price string) []*types.Candle {
	out := make([]*types.Candle, 0, n)
	p := dec(price)
	for i := 0; i < n; i++ {
		out = append(out, &types.Candle{Open: p, High: p, Low: p, Close: p, Volume: dec("10"), StartTS: int64(i), EndTS: int64(i + 1)})
	}
	return out
}

func testThresholds() map[types.Mode]Thresholds {
	th := Thresholds{
		EMAGap:      dec("0.001"),
		VolumeRatio: dec("1.5"),
		WickMax:     dec("0.5"),
		MomentumMin: dec("0.0005"),
		SpreadMax:   dec("0.002"),
	}
	return map[types.Mode]Thresholds{types.ModeMain: th, types.ModeEarly: th}
}

func TestScorerVolumeGateIsMandatory(t *testing.T) {
	s := NewScorer(ScorerConfig{VolumeSMA: 10, Thresholds: testThresholds()})

	candles := flatCandles(30, "100")
	candles[len(candles)-1].Close = dec("102")
	volumes := make([]decimal.Decimal, 30)
	for i := range volumes {
		volumes[i] = dec("10") // flat volume, last vol won't spike
	}

	score := s.Evaluate(candles, volumes, dec("0.001"), types.ModeMain)
	if score.Total != 0 {
		t.Fatalf("expected score 0 when volume spike check fails, got %d", score.Total)
	}
	if score.Checks.VolumeSpike {
		t.Fatal("expected VolumeSpike=false")
	}
}

func TestScorerUnderProvisionedReturnsZero(t *testing.T) {
	s := NewScorer(ScorerConfig{VolumeSMA: 10, Thresholds: testThresholds()})
	score := s.Evaluate(flatCandles(5, "100"), make([]decimal.Decimal, 5), decimal.Zero, types.ModeMain)
	if score.Total != 0 {
		t.Fatalf("expected zero score on insufficient history, got %d", score.Total)
	}
}

func TestScorerHonorsDisabledFilters(t *testing.T) {
	candles := flatCandles(30, "100")
	last := candles[len(candles)-1]
	last.Open = dec("100")
	last.Close = dec("100.0001") // tiny body: momentum check fails when enabled
	last.High = dec("110")       // huge upper wick: wick check fails when enabled
	last.Low = dec("100")

	volumes := make([]decimal.Decimal, 30)
	for i := range volumes {
		volumes[i] = dec("10")
	}
	volumes[len(volumes)-1] = dec("50") // spike so the mandatory gate passes

	enabled := NewScorer(ScorerConfig{
		Indicators: types.IndicatorConfig{EnableWickFilter: true, EnableMomentumFilter: true},
		VolumeSMA:  10, Thresholds: testThresholds(),
	})
	score := enabled.Evaluate(candles, volumes, dec("0.001"), types.ModeMain)
	if score.Checks.WickOK {
		t.Fatal("expected WickOK=false with a dominant wick and the filter enabled")
	}
	if score.Checks.MomentumOK {
		t.Fatal("expected MomentumOK=false with negligible momentum and the filter enabled")
	}

	disabled := NewScorer(ScorerConfig{
		Indicators: types.IndicatorConfig{EnableWickFilter: false, EnableMomentumFilter: false},
		VolumeSMA:  10, Thresholds: testThresholds(),
	})
	score2 := disabled.Evaluate(candles, volumes, dec("0.001"), types.ModeMain)
	if !score2.Checks.WickOK || !score2.Checks.MomentumOK {
		t.Fatal("expected both checks to auto-pass when their filters are disabled")
	}
	if score2.Total != score.Total+4 {
		t.Fatalf("expected disabling both filters to add 4 to the score, got %d vs %d", score2.Total, score.Total)
	}
}

func TestLiquidityOK(t *testing.T) {
	if LiquidityOK(dec("1000"), dec("2000")) {
		t.Fatal("expected liquidity check to fail below minimum")
	}
	if !LiquidityOK(dec("3000"), dec("2000")) {
		t.Fatal("expected liquidity check to pass above minimum")
	}
}
