package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: plain\nretries: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AOPRISM_OUTPUT", "json")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadFileOverridesPolicy(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	body := `
quote_timeout: 3s
weights:
  receive: 0.5
  fee: 0.2
risk:
  large_amount: 50000
  slow_time: 30m
  safe_score_below: 25
providers:
  debridge:
    base_url: http://localhost:9001
rpc:
  Ethereum: http://localhost:8545
security:
  verified_contracts:
    - "0xABC"
  scam_addresses:
    - "0xBAD"
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := Load(GlobalFlags{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.QuoteTimeout.Seconds() != 3 {
		t.Errorf("quoteTimeout = %v", settings.QuoteTimeout)
	}
	if settings.Weights.Receive != 0.5 || settings.Weights.Fee != 0.2 {
		t.Errorf("weights = %+v", settings.Weights)
	}
	// unset weights keep their defaults
	if settings.Weights.Time != 0.2 || settings.Weights.Slippage != 0.1 {
		t.Errorf("default weights lost: %+v", settings.Weights)
	}
	if settings.Risk.LargeAmount != 50000 || settings.Risk.SlowTimeSec != 1800 || settings.Risk.SafeScoreBelow != 25 {
		t.Errorf("risk = %+v", settings.Risk)
	}
	if settings.DeBridgeBaseURL != "http://localhost:9001" {
		t.Errorf("debridge base = %q", settings.DeBridgeBaseURL)
	}
	if settings.RPCOverrides["ethereum"] != "http://localhost:8545" {
		t.Errorf("rpc overrides = %v", settings.RPCOverrides)
	}
	if len(settings.VerifiedContracts) != 1 || len(settings.ScamAddresses) != 1 {
		t.Errorf("security lists = %v / %v", settings.VerifiedContracts, settings.ScamAddresses)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("timeout: soon\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(GlobalFlags{ConfigPath: configPath}); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
