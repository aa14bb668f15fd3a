package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SOURCES_FILE", "sources.yaml")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "digest@example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
	}
	if cfg.ScrapeDelay != 500*time.Millisecond {
		t.Errorf("ScrapeDelay = %v, want 500ms", cfg.ScrapeDelay)
	}
	if cfg.SMTPPort != 465 || cfg.SMTPTLS != "tls" {
		t.Errorf("SMTP defaults = %d/%s, want 465/tls", cfg.SMTPPort, cfg.SMTPTLS)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.RunMode != "once" {
		t.Errorf("RunMode = %q, want once", cfg.RunMode)
	}
	if !strings.Contains(cfg.UserAgent, "Mozilla/5.0") {
		t.Errorf("UserAgent = %q, want a browser UA", cfg.UserAgent)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("MAX_AGE_DAYS", "7")
	t.Setenv("GROUP_ORDER", "Regulatory, Technology ,Market")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", cfg.BatchSize)
	}
	if cfg.MaxAgeDays != 7 {
		t.Errorf("MaxAgeDays = %d, want 7", cfg.MaxAgeDays)
	}
	want := []string{"Regulatory", "Technology", "Market"}
	if len(cfg.GroupOrder) != len(want) {
		t.Fatalf("GroupOrder = %v, want %v", cfg.GroupOrder, want)
	}
	for i := range want {
		if cfg.GroupOrder[i] != want[i] {
			t.Errorf("GroupOrder[%d] = %q, want %q", i, cfg.GroupOrder[i], want[i])
		}
	}
}

func TestLoad_MissingGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SOURCES_FILE", "sources.yaml")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "digest@example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing GEMINI_API_KEY")
	}
}

func TestLoad_NoDeliveryChannel(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SOURCES_FILE", "sources.yaml")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_FROM", "")
	t.Setenv("DIGEST_PREFIX", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when neither SMTP nor digest drop is configured")
	}
}

func TestLookback_WeekdayDefaults(t *testing.T) {
	cfg := &Config{}

	monday := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
	if got := cfg.Lookback(monday); got != 3 {
		t.Errorf("Monday lookback = %d, want 3", got)
	}

	wednesday := time.Date(2025, 6, 4, 7, 0, 0, 0, time.UTC)
	if got := cfg.Lookback(wednesday); got != 1 {
		t.Errorf("Wednesday lookback = %d, want 1", got)
	}

	cfg.MaxAgeDays = 5
	if got := cfg.Lookback(monday); got != 5 {
		t.Errorf("explicit MaxAgeDays must win, got %d", got)
	}
}
