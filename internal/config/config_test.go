package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error loading defaults: %v", err)
	}
	if len(cfg.Symbols) == 0 {
		t.Fatal("expected default symbol list to be non-empty")
	}
	if cfg.Regime.ProxySymbols[0] == "" || cfg.Regime.ProxySymbols[1] == "" {
		t.Fatal("expected default proxy symbols to be set")
	}
	if cfg.Simulator.StartingNAV.IsZero() {
		t.Fatal("expected a non-zero starting NAV default")
	}
	if _, ok := cfg.Thresholds["main"]; !ok {
		t.Fatal("expected main mode thresholds to be populated")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}
