// Package config loads the pipeline configuration from the environment.
// Source lists (feeds, keywords, recipients, scrape targets) are loaded
// separately, from published spreadsheet tabs or a local YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Source configuration
	FeedsTabURL      string
	KeywordsTabURL   string
	RecipientsTabURL string
	ScrapeTabURL     string
	SourcesFile      string

	// Filtering
	MaxAgeDays     int // 0 = weekday default (3 on Mondays, 1 otherwise)
	UserAgent      string
	AcceptLanguage string

	// HTTP / scraping
	RequestTimeout time.Duration
	ScrapeDelay    time.Duration

	// Summarizer
	GeminiAPIKey    string
	GeminiModel     string
	MaxGenRequests  int // per-run generation request cap (0 = unlimited)
	BatchSize       int
	SummaryCacheTTL time.Duration

	// Seen-store and digest file-drop
	SeenFilePath  string
	SeenObjectKey string
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	DigestPrefix  string // object key prefix for the rendered digest; empty disables the drop

	// SMTP delivery
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLS      string // tls | starttls | none

	// Rendering
	GroupOrder []string

	// Ops notifier
	TelegramToken  string
	TelegramChatID string

	// Scheduling
	RunMode  string // once | daemon
	CronSpec string

	// App settings
	Debug         bool
	RetryAttempts int
	RetryDelay    time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		SourcesFile:     getEnvOrDefault("SOURCES_FILE", ""),
		MaxAgeDays:      getEnvIntOrDefault("MAX_AGE_DAYS", 0),
		UserAgent:       getEnvOrDefault("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		AcceptLanguage:  getEnvOrDefault("ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
		RequestTimeout:  time.Duration(getEnvIntOrDefault("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		ScrapeDelay:     time.Duration(getEnvIntOrDefault("SCRAPE_DELAY_MS", 500)) * time.Millisecond,
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxGenRequests:  getEnvIntOrDefault("MAX_GEN_REQUESTS", 25),
		BatchSize:       getEnvIntOrDefault("BATCH_SIZE", 10),
		SummaryCacheTTL: time.Duration(getEnvIntOrDefault("SUMMARY_CACHE_TTL_HOURS", 48)) * time.Hour,
		SeenFilePath:    getEnvOrDefault("SEEN_FILE_PATH", "seen_links.txt"),
		SeenObjectKey:   getEnvOrDefault("SEEN_OBJECT_KEY", "state/seen_links.txt"),
		SMTPPort:        getEnvIntOrDefault("SMTP_PORT", 465),
		SMTPTLS:         getEnvOrDefault("SMTP_TLS", "tls"),
		RunMode:         getEnvOrDefault("RUN_MODE", "once"),
		CronSpec:        getEnvOrDefault("CRON_SPEC", "0 7 * * *"),
		RetryAttempts:   getEnvIntOrDefault("RETRY_ATTEMPTS", 3),
		RetryDelay:      time.Duration(getEnvIntOrDefault("RETRY_DELAY_SECONDS", 5)) * time.Second,
	}

	cfg.FeedsTabURL = os.Getenv("FEEDS_TAB_URL")
	cfg.KeywordsTabURL = os.Getenv("KEYWORDS_TAB_URL")
	cfg.RecipientsTabURL = os.Getenv("RECIPIENTS_TAB_URL")
	cfg.ScrapeTabURL = os.Getenv("SCRAPE_TAB_URL")

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3Region = getEnvOrDefault("S3_REGION", "auto")
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3AccessKey = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretKey = os.Getenv("S3_SECRET_ACCESS_KEY")
	cfg.DigestPrefix = os.Getenv("DIGEST_PREFIX")

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPUser == "" {
		cfg.SMTPUser = cfg.SMTPFrom
	}

	if order := os.Getenv("GROUP_ORDER"); order != "" {
		for _, g := range strings.Split(order, ",") {
			if g = strings.TrimSpace(g); g != "" {
				cfg.GroupOrder = append(cfg.GroupOrder, g)
			}
		}
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

// Lookback returns the max article age in days for a run starting at now.
// Monday runs look back over the weekend.
func (c *Config) Lookback(now time.Time) int {
	if c.MaxAgeDays > 0 {
		return c.MaxAgeDays
	}
	if now.Weekday() == time.Monday {
		return 3
	}
	return 1
}

// S3Configured reports whether the object-store credentials are complete.
func (c *Config) S3Configured() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// SMTPConfigured reports whether email delivery can be attempted.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.FeedsTabURL == "" && c.SourcesFile == "" {
		return fmt.Errorf("either FEEDS_TAB_URL or SOURCES_FILE is required")
	}
	if c.FeedsTabURL != "" && c.KeywordsTabURL == "" {
		return fmt.Errorf("KEYWORDS_TAB_URL is required when loading from spreadsheet tabs")
	}
	if !c.SMTPConfigured() && c.DigestPrefix == "" {
		return fmt.Errorf("no delivery channel: configure SMTP_HOST/SMTP_FROM or DIGEST_PREFIX")
	}
	if c.DigestPrefix != "" && !c.S3Configured() {
		return fmt.Errorf("DIGEST_PREFIX requires S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY")
	}
	switch c.SMTPTLS {
	case "tls", "starttls", "none":
	default:
		return fmt.Errorf("SMTP_TLS must be 'tls', 'starttls' or 'none'")
	}
	if c.RunMode != "once" && c.RunMode != "daemon" {
		return fmt.Errorf("RUN_MODE must be 'once' or 'daemon'")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
