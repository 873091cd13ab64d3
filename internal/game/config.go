package game

import (
	"github.com/zappabad/tradinghall/internal/config"
	"github.com/zappabad/tradinghall/internal/decision/client"
	"github.com/zappabad/tradinghall/internal/decision/stub"
	"github.com/zappabad/tradinghall/internal/feed"
	"github.com/zappabad/tradinghall/internal/hall/service"
)

// Config holds configuration for the game.
type Config struct {
	// HallConfig is the configuration for the hall service.
	HallConfig service.Config
	// ClientConfig configures the HTTP decision client.
	ClientConfig client.Config
	// StubConfig configures the offline decision source.
	StubConfig stub.Config
	// FeedConfig is the configuration for the snapshot feed.
	FeedConfig feed.Config
	// JournalPath is the sqlite file outcomes are recorded to.
	JournalPath string

	// UseStub replaces the HTTP client with the offline source.
	UseStub bool
	// EnableJournal determines whether fetch outcomes are recorded.
	EnableJournal bool
	// EnableFeed determines whether the HTTP and websocket feed is served.
	EnableFeed bool
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		HallConfig:   service.DefaultConfig(),
		ClientConfig: client.DefaultConfig(),
		StubConfig:   stub.DefaultConfig(),
		FeedConfig:   feed.DefaultConfig(),
		JournalPath:  "tradinghall.db",
	}
}

// FromFile converts a loaded file configuration into a game Config.
func FromFile(c *config.Config) (Config, error) {
	hallCfg, err := c.Service()
	if err != nil {
		return Config{}, err
	}
	feedCfg := feed.DefaultConfig()
	feedCfg.Addr = c.Feed.Addr
	feedCfg.PollInterval = c.Feed.Poll.Duration

	return Config{
		HallConfig:    hallCfg,
		ClientConfig:  c.Client(),
		StubConfig:    c.Stub(),
		FeedConfig:    feedCfg,
		JournalPath:   c.Journal.Path,
		UseStub:       c.Decision.Stub,
		EnableJournal: c.Journal.Enabled,
		EnableFeed:    c.Feed.Enabled,
	}, nil
}
