package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Incentives.PostingCredit != 25 {
		t.Errorf("posting credit = %d, want 25", cfg.Incentives.PostingCredit)
	}
	if cfg.Incentives.HireRatePercent != 10 {
		t.Errorf("hire rate = %d, want 10", cfg.Incentives.HireRatePercent)
	}
	if cfg.Incentives.MismatchPenalty != 50 {
		t.Errorf("mismatch penalty = %d, want 50", cfg.Incentives.MismatchPenalty)
	}
	if cfg.Trust.SuccessDelta != 5 || cfg.Trust.FailureDelta != -15 {
		t.Errorf("trust deltas = %v/%v, want 5/-15", cfg.Trust.SuccessDelta, cfg.Trust.FailureDelta)
	}
	if cfg.Limits.MaxAccepted != 3 {
		t.Errorf("max accepted = %d, want 3", cfg.Limits.MaxAccepted)
	}
	if cfg.ClassifierTimeout() != 10*time.Second {
		t.Errorf("classifier timeout = %v, want 10s", cfg.ClassifierTimeout())
	}
}

func TestFromYAMLPartialOverride(t *testing.T) {
	cfg, err := FromYAML([]byte("limits:\n  max_accepted: 5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Limits.MaxAccepted != 5 {
		t.Errorf("max accepted = %d, want 5", cfg.Limits.MaxAccepted)
	}
	// Omitted sections keep their defaults.
	if cfg.Incentives.PostingCredit != 25 {
		t.Errorf("posting credit = %d, want default 25", cfg.Incentives.PostingCredit)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := []string{
		"limits:\n  max_accepted: 0\n",
		"incentives:\n  hire_rate_percent: 150\n",
		"trust:\n  failure_delta: 2\n",
		"not yaml: [",
	}
	for _, in := range cases {
		if _, err := FromYAML([]byte(in)); err == nil {
			t.Errorf("accepted invalid config %q", in)
		}
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Limits.MaxAccepted != 3 {
		t.Fatalf("missing file should yield defaults, got %+v", cfg.Limits)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "gigline.yml"), []byte("incentives:\n  posting_credit: 1\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Incentives.PostingCredit != 1 {
		t.Fatalf("posting credit = %d, want 1", cfg.Incentives.PostingCredit)
	}
}
