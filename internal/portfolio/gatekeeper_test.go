package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

func dec(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

// TestGatekeeperRiskCap matches spec.md's concrete scenario 3: NAV
// 10,000, max total risk 3%, two positions at risk 100 each; a third at
// risk 120 pushes the sum to 320 > 300 and is rejected; at risk 80 it is
// accepted (sum 280 <= 300).
func TestGatekeeperRiskCap(t *testing.T) {
	g := NewGatekeeper(types.PortfolioConfig{MaxPositions: 10, MaxTotalRiskPct: dec("3")})
	g.UpdateNAV(dec("10000"))

	g.OpenPosition(types.RiskPlan{Symbol: "AAA", RiskUSD: dec("100")}, 0, nil)
	g.OpenPosition(types.RiskPlan{Symbol: "BBB", RiskUSD: dec("100")}, 0, nil)

	res := g.CanOpen("CCC", dec("120"), nil)
	if res.Allowed {
		t.Fatalf("expected rejection: 320 > 300 cap, got allowed")
	}
	if res.Reason != "max_total_risk_reached" {
		t.Fatalf("unexpected reason: %s", res.Reason)
	}

	res2 := g.CanOpen("CCC", dec("80"), nil)
	if !res2.Allowed {
		t.Fatalf("expected acceptance: 280 <= 300 cap, got rejected: %s", res2.Reason)
	}
}

func TestGatekeeperPositionExists(t *testing.T) {
	g := NewGatekeeper(types.PortfolioConfig{MaxPositions: 10})
	g.OpenPosition(types.RiskPlan{Symbol: "AAA", RiskUSD: dec("10")}, 0, nil)
	res := g.CanOpen("AAA", dec("10"), nil)
	if res.Allowed || res.Reason != "position_exists" {
		t.Fatalf("expected position_exists rejection, got %+v", res)
	}
}

func TestGatekeeperMaxPositions(t *testing.T) {
	g := NewGatekeeper(types.PortfolioConfig{MaxPositions: 1})
	g.OpenPosition(types.RiskPlan{Symbol: "AAA", RiskUSD: dec("10")}, 0, nil)
	res := g.CanOpen("BBB", dec("10"), nil)
	if res.Allowed || res.Reason != "max_positions_reached" {
		t.Fatalf("expected max_positions_reached, got %+v", res)
	}
}

func TestGatekeeperCorrelationDontKnowDontBlock(t *testing.T) {
	g := NewGatekeeper(types.PortfolioConfig{MaxPositions: 10, MaxCorrelation: dec("0.85")})
	g.OpenPosition(types.RiskPlan{Symbol: "AAA", RiskUSD: dec("10")}, 0, []decimal.Decimal{dec("1"), dec("2")})
	res := g.CanOpen("BBB", dec("10"), []decimal.Decimal{dec("1"), dec("2")})
	if !res.Allowed {
		t.Fatalf("expected don't-know-don't-block with short history, got %+v", res)
	}
}

func TestGatekeeperCorrelationBlocksHighlyCorrelated(t *testing.T) {
	g := NewGatekeeper(types.PortfolioConfig{MaxPositions: 10, MaxCorrelation: dec("0.9")})

	history := make([]decimal.Decimal, 25)
	p := dec("100")
	for i := range history {
		p = p.Add(dec("1"))
		history[i] = p
	}
	g.OpenPosition(types.RiskPlan{Symbol: "AAA", RiskUSD: dec("10")}, 0, history)

	res := g.CanOpen("BBB", dec("10"), history)
	if res.Allowed {
		t.Fatalf("expected correlation block for identical price series, got allowed")
	}
}
