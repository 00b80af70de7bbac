package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"PORT", "LOG_LEVEL", "SAMPLE_DATASET_URL", "TEST_RATIO", "SPLIT_SEED",
	"STREAM_INTERVAL", "STREAM_CAPACITY", "ALERT_PROVIDER", "MAILGUN_DOMAIN",
	"MAILGUN_API_KEY", "ALERT_SENDER", "ALERT_EMAIL", "ALERT_PRIORITY",
	"ALERT_RATE_PER_MINUTE", "ALERT_DEDUPE_TTL", "ALERT_TIMEOUT", "METRIC_DISPLAY",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" || cfg.TestRatio != 0.2 || cfg.StreamInterval != 2*time.Second || cfg.StreamCapacity != 50 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.AlertProvider != "log" || cfg.AlertPriority != "high" || cfg.MetricDisplayBanded {
		t.Errorf("unexpected alert defaults %+v", cfg)
	}
	if cfg.MailgunConfigured() {
		t.Error("mailgun should not be configured by default")
	}
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("TEST_RATIO", "0.3")
	t.Setenv("SPLIT_SEED", "42")
	t.Setenv("STREAM_INTERVAL", "500ms")
	t.Setenv("ALERT_PROVIDER", "Mailgun")
	t.Setenv("METRIC_DISPLAY", "BANDED")
	t.Setenv("ALERT_RATE_PER_MINUTE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.TestRatio != 0.3 || cfg.SplitSeed != 42 || cfg.StreamInterval != 500*time.Millisecond {
		t.Errorf("environment not applied: %+v", cfg)
	}
	if cfg.AlertProvider != "mailgun" || !cfg.MetricDisplayBanded {
		t.Errorf("provider/display not applied: %+v", cfg)
	}
	if cfg.AlertRatePerMinute != 30 {
		t.Errorf("invalid integer should fall back to default, got %d", cfg.AlertRatePerMinute)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	content := "MAILGUN_DOMAIN=mg.example.com\nMAILGUN_API_KEY=key-123\nALERT_SENDER=alerts@mg.example.com\nALERT_EMAIL=ops@example.com\nSTREAM_CAPACITY=5\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.MailgunConfigured() || cfg.StreamCapacity != 5 {
		t.Errorf(".env not applied: %+v", cfg)
	}
}

func TestLoad_Validation(t *testing.T) {
	chdir(t, t.TempDir())
	clearEnv(t)

	t.Setenv("TEST_RATIO", "1.5")
	if _, err := Load(); err == nil {
		t.Error("expected error for TEST_RATIO outside (0, 1)")
	}

	t.Setenv("TEST_RATIO", "0.2")
	t.Setenv("STREAM_CAPACITY", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for zero STREAM_CAPACITY")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for an explicitly named missing env file")
	}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir on go1.21).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}
