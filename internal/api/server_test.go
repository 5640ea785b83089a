package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpsignal/engine/internal/api"
	"github.com/perpsignal/engine/pkg/types"
)

type fakeStatus struct {
	summary types.SimulatorSummary
	regime  types.RegimeResult
}

func (f fakeStatus) Summary() types.SimulatorSummary { return f.summary }
func (f fakeStatus) Regime() types.RegimeResult      { return f.regime }

func TestHealthEndpointReportsOK(t *testing.T) {
	srv := api.NewServer(zap.NewNop().Sugar(), ":0", false, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpointIncludesEngineSummary(t *testing.T) {
	engine := fakeStatus{
		summary: types.SimulatorSummary{NAV: decimal.NewFromInt(10500), TotalTrades: 3},
		regime:  types.RegimeResult{Regime: types.RegimeTrend, Reason: "ema gap"},
	}
	srv := api.NewServer(zap.NewNop().Sugar(), ":0", false, engine)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body["summary"]; !ok {
		t.Fatal("expected status response to include a summary field")
	}
	if _, ok := body["regime"]; !ok {
		t.Fatal("expected status response to include a regime field")
	}
}

func TestMetricsEndpointDisabledByDefault(t *testing.T) {
	srv := api.NewServer(zap.NewNop().Sugar(), ":0", false, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected metrics route absent when disabled, got %d", resp.StatusCode)
	}
}
