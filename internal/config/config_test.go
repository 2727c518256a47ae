package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.BlockProcessLimit != 10000 {
		t.Fatalf("block process limit = %d, want 10000", cfg.BlockProcessLimit)
	}
	if cfg.MinWindowSize != 100 {
		t.Fatalf("min window size = %d, want 100", cfg.MinWindowSize)
	}
	if cfg.WindowStep != 10000 {
		t.Fatalf("window step = %d, want 10000", cfg.WindowStep)
	}
	if cfg.UpdatedBlocksBehind != 300 {
		t.Fatalf("updated blocks behind = %d, want 300", cfg.UpdatedBlocksBehind)
	}
	if cfg.QueryChunkSize != 500 {
		t.Fatalf("query chunk size = %d, want 500", cfg.QueryChunkSize)
	}
	if cfg.FastThreshold != 2*time.Second || cfg.TargetThreshold != 5*time.Second || cfg.SlowThreshold != 30*time.Second {
		t.Fatalf("unexpected thresholds: %v / %v / %v", cfg.FastThreshold, cfg.TargetThreshold, cfg.SlowThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q, want info", cfg.LogLevel)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SCANNER_BLOCK_PROCESS_LIMIT", "5000")
	t.Setenv("SCANNER_PG_DSN", "postgres://localhost/scan")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BlockProcessLimit != 5000 {
		t.Fatalf("block process limit = %d, want 5000", cfg.BlockProcessLimit)
	}
	if cfg.PGDSN != "postgres://localhost/scan" {
		t.Fatalf("pg dsn = %q", cfg.PGDSN)
	}
}

func TestLoadRejectsInvalidTuning(t *testing.T) {
	t.Setenv("SCANNER_MIN_WINDOW_SIZE", "20000")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected error when floor exceeds initial window")
	}
}

func TestLoadRejectsOverlappingThresholds(t *testing.T) {
	t.Setenv("SCANNER_FAST_THRESHOLD", "10s")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected error for fast >= target threshold")
	}
}
