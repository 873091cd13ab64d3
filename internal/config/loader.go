package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults and applies TRADINGHALL_* environment variable overrides.
// An empty path skips the file. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from TRADINGHALL_* variables that
// are set and non-empty.
func applyEnvOverrides(cfg *Config) {
	// ── Hall ──
	setStr(&cfg.Hall.Symbol, "TRADINGHALL_HALL_SYMBOL")
	setStr(&cfg.Hall.Quote, "TRADINGHALL_HALL_QUOTE")
	setStr(&cfg.Hall.Locale, "TRADINGHALL_HALL_LOCALE")
	setDuration(&cfg.Hall.TickInterval, "TRADINGHALL_HALL_TICK_INTERVAL")
	setDuration(&cfg.Hall.TradingBubbleTTL, "TRADINGHALL_HALL_TRADING_BUBBLE_TTL")
	setDuration(&cfg.Hall.RefreshInterval, "TRADINGHALL_HALL_REFRESH_INTERVAL")
	setUint64(&cfg.Hall.Seed, "TRADINGHALL_HALL_SEED")
	setBool(&cfg.Hall.Autostart, "TRADINGHALL_HALL_AUTOSTART")
	setInt(&cfg.Hall.DecisionLogSize, "TRADINGHALL_HALL_DECISION_LOG_SIZE")

	// ── Decision ──
	setStr(&cfg.Decision.BaseURL, "TRADINGHALL_DECISION_BASE_URL")
	setDuration(&cfg.Decision.Timeout, "TRADINGHALL_DECISION_TIMEOUT")
	setInt(&cfg.Decision.LookbackDays, "TRADINGHALL_DECISION_LOOKBACK_DAYS")
	setBool(&cfg.Decision.Stub, "TRADINGHALL_DECISION_STUB")
	setDuration(&cfg.Decision.StubLatency, "TRADINGHALL_DECISION_STUB_LATENCY")
	setFloat64(&cfg.Decision.StubRateLim, "TRADINGHALL_DECISION_STUB_RATE_LIMIT_RATE")
	setFloat64(&cfg.Decision.StubFailRate, "TRADINGHALL_DECISION_STUB_FAILURE_RATE")

	// ── Journal ──
	setBool(&cfg.Journal.Enabled, "TRADINGHALL_JOURNAL_ENABLED")
	setStr(&cfg.Journal.Path, "TRADINGHALL_JOURNAL_PATH")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "TRADINGHALL_FEED_ENABLED")
	setStr(&cfg.Feed.Addr, "TRADINGHALL_FEED_ADDR")
	setDuration(&cfg.Feed.Poll, "TRADINGHALL_FEED_POLL_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TRADINGHALL_LOG_LEVEL")
	setStr(&cfg.LogFile, "TRADINGHALL_LOG_FILE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
