package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("inter_shot_gap_ms: 5000\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InterShotGapMs != 5000 {
		t.Fatalf("file value not applied: %d", cfg.InterShotGapMs)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
	if cfg.HighlightLimit != Default().HighlightLimit {
		t.Fatal("unset keys must keep their defaults")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("highlight_limit: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RALLY_HIGHLIGHT_LIMIT", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HighlightLimit != 7 {
		t.Fatalf("env must win over file: %d", cfg.HighlightLimit)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("RALLY_INTER_SHOT_GAP_MS", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("zero gap must be rejected")
	}
}

func TestValidateBounds(t *testing.T) {
	cfg := Default()
	cfg.LowConfidenceThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("threshold above 1 must be rejected")
	}

	cfg = Default()
	cfg.WeightSpeed = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative weight must be rejected")
	}
}
