// Package config defines the top-level configuration for the trading hall
// and converts it into the per-package configs the subsystems consume.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/zappabad/tradinghall/internal/decision/client"
	"github.com/zappabad/tradinghall/internal/decision/stub"
	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/service"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADINGHALL_* environment variables.
type Config struct {
	Hall     HallConfig     `toml:"hall"`
	Decision DecisionConfig `toml:"decision"`
	Journal  JournalConfig  `toml:"journal"`
	Feed     FeedConfig     `toml:"feed"`
	LogLevel string         `toml:"log_level"`
	LogFile  string         `toml:"log_file"`
}

// HallConfig controls the simulation itself.
type HallConfig struct {
	Symbol           string   `toml:"symbol"`
	Quote            string   `toml:"quote"`
	Locale           string   `toml:"locale"`
	TickInterval     duration `toml:"tick_interval"`
	TradingBubbleTTL duration `toml:"trading_bubble_ttl"`
	RefreshInterval  duration `toml:"refresh_interval"`
	Seed             uint64   `toml:"seed"`
	Autostart        bool     `toml:"autostart"`
	DecisionLogSize  int      `toml:"decision_log_size"`

	// Agents replaces the default cast when non-empty.
	Agents []AgentConfig `toml:"agents"`
}

// AgentConfig describes one agent of the starting cast.
type AgentConfig struct {
	ID     string  `toml:"id"`
	Name   string  `toml:"name"`
	Kind   string  `toml:"kind"`
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Facing string  `toml:"facing"`
}

// DecisionConfig selects and tunes the decision backend.
type DecisionConfig struct {
	BaseURL      string   `toml:"base_url"`
	Timeout      duration `toml:"timeout"`
	LookbackDays int      `toml:"lookback_days"`
	Stub         bool     `toml:"stub"`
	StubLatency  duration `toml:"stub_latency"`
	StubRateLim  float64  `toml:"stub_rate_limit_rate"`
	StubFailRate float64  `toml:"stub_failure_rate"`
}

// JournalConfig controls the sqlite outcome journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// FeedConfig controls the HTTP and websocket snapshot feed.
type FeedConfig struct {
	Enabled bool     `toml:"enabled"`
	Addr    string   `toml:"addr"`
	Poll    duration `toml:"poll_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "100ms", "3s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config matching the built-in behaviour of every subsystem.
func Defaults() Config {
	svc := service.DefaultConfig()
	cl := client.DefaultConfig()
	st := stub.DefaultConfig()

	return Config{
		Hall: HallConfig{
			Symbol:           svc.Symbol,
			Quote:            svc.Quote,
			Locale:           svc.Locale,
			TickInterval:     duration{svc.TickInterval},
			TradingBubbleTTL: duration{svc.TradeTTL},
			Autostart:        svc.Autostart,
			DecisionLogSize:  svc.DecisionTapeSize,
		},
		Decision: DecisionConfig{
			BaseURL:      cl.BaseURL,
			Timeout:      duration{svc.RequestTimeout},
			LookbackDays: svc.LookbackDays,
			StubLatency:  duration{st.Latency},
			StubRateLim:  st.RateLimitRate,
			StubFailRate: st.FailureRate,
		},
		Journal: JournalConfig{
			Path: "tradinghall.db",
		},
		Feed: FeedConfig{
			Addr: "127.0.0.1:8090",
			Poll: duration{100 * time.Millisecond},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Hall.Symbol) == "" {
		errs = append(errs, "hall: symbol must not be empty")
	}
	if strings.TrimSpace(c.Hall.Quote) == "" {
		errs = append(errs, "hall: quote must not be empty")
	}
	if _, ok := core.LookupLocale(c.Hall.Locale); !ok {
		errs = append(errs, fmt.Sprintf("hall: unknown locale %q (valid: en, zh)", c.Hall.Locale))
	}
	if c.Hall.TickInterval.Duration <= 0 {
		errs = append(errs, "hall: tick_interval must be positive")
	}
	if c.Hall.TradingBubbleTTL.Duration <= 0 {
		errs = append(errs, "hall: trading_bubble_ttl must be positive")
	}
	if c.Hall.RefreshInterval.Duration < 0 {
		errs = append(errs, "hall: refresh_interval must not be negative")
	}
	if _, err := c.Agents(); err != nil {
		errs = append(errs, "hall: "+err.Error())
	}

	if c.Decision.Timeout.Duration <= 0 {
		errs = append(errs, "decision: timeout must be positive")
	}
	if c.Decision.LookbackDays <= 0 {
		errs = append(errs, "decision: lookback_days must be positive")
	}
	if !c.Decision.Stub && c.Decision.BaseURL == "" {
		errs = append(errs, "decision: base_url must be set unless stub is enabled")
	}
	if r := c.Decision.StubRateLim + c.Decision.StubFailRate; c.Decision.StubRateLim < 0 || c.Decision.StubFailRate < 0 || r > 1 {
		errs = append(errs, "decision: stub rates must be within [0,1] and sum to at most 1")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal: path is required when enabled")
	}
	if c.Feed.Enabled && c.Feed.Addr == "" {
		errs = append(errs, "feed: addr is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Agents converts the configured cast into hall agents.
func (c *Config) Agents() ([]hall.Agent, error) {
	if len(c.Hall.Agents) == 0 {
		return hall.DefaultAgents(), nil
	}
	out := make([]hall.Agent, 0, len(c.Hall.Agents))
	for i, ac := range c.Hall.Agents {
		if ac.ID == "" {
			return nil, fmt.Errorf("agent %d: id is required", i)
		}
		kind, ok := hall.ParseAgentKind(ac.Kind)
		if !ok {
			return nil, fmt.Errorf("agent %s: unknown kind %q", ac.ID, ac.Kind)
		}
		facing := hall.Down
		if ac.Facing != "" {
			if facing, ok = hall.ParseDirection(ac.Facing); !ok {
				return nil, fmt.Errorf("agent %s: unknown facing %q", ac.ID, ac.Facing)
			}
		}
		name := ac.Name
		if name == "" {
			name = ac.ID
		}
		out = append(out, hall.Agent{
			ID:     hall.AgentID(ac.ID),
			Name:   name,
			Kind:   kind,
			Pos:    hall.Point{X: ac.X, Y: ac.Y},
			Facing: facing,
		})
	}
	return out, nil
}

// Service returns the hall service configuration.
func (c *Config) Service() (service.Config, error) {
	agents, err := c.Agents()
	if err != nil {
		return service.Config{}, err
	}
	cfg := service.DefaultConfig()
	cfg.Symbol = c.Hall.Symbol
	cfg.Quote = c.Hall.Quote
	cfg.Locale = c.Hall.Locale
	cfg.TickInterval = c.Hall.TickInterval.Duration
	cfg.TradeTTL = c.Hall.TradingBubbleTTL.Duration
	cfg.RefreshInterval = c.Hall.RefreshInterval.Duration
	cfg.RequestTimeout = c.Decision.Timeout.Duration
	cfg.LookbackDays = c.Decision.LookbackDays
	cfg.Seed = c.Hall.Seed
	cfg.Autostart = c.Hall.Autostart
	cfg.DecisionTapeSize = c.Hall.DecisionLogSize
	cfg.Agents = agents
	return cfg, nil
}

// Client returns the HTTP decision client configuration.
func (c *Config) Client() client.Config {
	cfg := client.DefaultConfig()
	cfg.BaseURL = c.Decision.BaseURL
	// the per-request deadline lives in the service; the transport gets headroom
	cfg.Timeout = c.Decision.Timeout.Duration + time.Second
	return cfg
}

// Stub returns the offline decision source configuration.
func (c *Config) Stub() stub.Config {
	return stub.Config{
		Latency:       c.Decision.StubLatency.Duration,
		RateLimitRate: c.Decision.StubRateLim,
		FailureRate:   c.Decision.StubFailRate,
		Seed:          c.Hall.Seed,
	}
}
