package service

import (
	"time"

	"github.com/zappabad/tradinghall/internal/hall"
)

// Config holds configuration for the hall service.
type Config struct {
	// TickInterval is how often agents move while running.
	TickInterval time.Duration
	// TradeTTL is how long a trading bubble stays on screen.
	TradeTTL time.Duration
	// RefreshInterval re-runs the decision cycle periodically. Zero disables it.
	RefreshInterval time.Duration
	// RequestTimeout bounds every single decision request.
	RequestTimeout time.Duration
	// JournalTimeout bounds writes to the recorder.
	JournalTimeout time.Duration
	// LookbackDays is passed to the decision service as the analysis window.
	LookbackDays int

	Symbol string
	Quote  string
	Locale string

	// Seed drives agent motion. Zero picks a seed from the clock.
	Seed uint64
	// Autostart starts the tick loop immediately.
	Autostart bool

	Agents []hall.Agent
	Arena  hall.Arena

	// CommandBuffer is the size of the inbound command channel.
	CommandBuffer int
	// EventBuffer is the size of the internal event channel.
	EventBuffer int
	// ExternalEventBuffer is the size of the channel returned by Events.
	ExternalEventBuffer int
	// DropExternalEvents drops external events on overflow instead of blocking.
	DropExternalEvents bool
	// DecisionTapeSize is the capacity of the decisions log.
	DecisionTapeSize int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:        100 * time.Millisecond,
		TradeTTL:            3 * time.Second,
		RequestTimeout:      10 * time.Second,
		JournalTimeout:      2 * time.Second,
		LookbackDays:        7,
		Symbol:              "btc",
		Quote:               "usd",
		Locale:              "en",
		Autostart:           true,
		Arena:               hall.DefaultArena,
		CommandBuffer:       256,
		EventBuffer:         1024,
		ExternalEventBuffer: 256,
		DropExternalEvents:  true,
		DecisionTapeSize:    200,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.TradeTTL <= 0 {
		cfg.TradeTTL = def.TradeTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.JournalTimeout <= 0 {
		cfg.JournalTimeout = def.JournalTimeout
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = def.LookbackDays
	}
	if cfg.Symbol == "" {
		cfg.Symbol = def.Symbol
	}
	if cfg.Quote == "" {
		cfg.Quote = def.Quote
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = hall.DefaultAgents()
	}
	if cfg.Arena == (hall.Arena{}) {
		cfg.Arena = def.Arena
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = def.CommandBuffer
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.ExternalEventBuffer <= 0 {
		cfg.ExternalEventBuffer = def.ExternalEventBuffer
	}
	if cfg.DecisionTapeSize <= 0 {
		cfg.DecisionTapeSize = def.DecisionTapeSize
	}
	return cfg
}
