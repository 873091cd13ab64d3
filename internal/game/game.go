package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/decision/client"
	"github.com/zappabad/tradinghall/internal/decision/stub"
	"github.com/zappabad/tradinghall/internal/feed"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/service"
	"github.com/zappabad/tradinghall/internal/journal"
)

// Game owns all the hall subsystems and manages their lifecycle.
type Game struct {
	Hall    *service.Service
	Journal *journal.Journal
	Feed    *feed.Server

	cfg Config
	log *slog.Logger
	mu  sync.Mutex
}

// NewGame creates a new Game with the given configuration. The hall starts
// moving and fetching immediately.
func NewGame(cfg Config, logger *slog.Logger) (*Game, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Game{cfg: cfg, log: logger}

	// Create decision source
	var (
		src    decision.Source
		market decision.MarketData
	)
	if cfg.UseStub {
		s := stub.New(cfg.StubConfig)
		src, market = s, s
		logger.Info("using offline decision source")
	} else {
		c := client.New(cfg.ClientConfig)
		src, market = c, c
		logger.Info("using decision service", "base_url", cfg.ClientConfig.BaseURL)
	}

	// Open journal if enabled
	deps := service.Deps{Source: src, Market: market, Logger: logger}
	if cfg.EnableJournal {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("game: %w", err)
		}
		g.Journal = j
		deps.Recorder = j
	}

	// Create hall service
	svc, err := service.NewService(cfg.HallConfig, deps)
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("game: %w", err)
	}
	g.Hall = svc

	// Create feed if enabled
	if cfg.EnableFeed {
		g.Feed = feed.NewServer(cfg.FeedConfig, svc, logger)
	}

	return g, nil
}

// Run serves the feed and logs hall events until ctx is cancelled or the
// hall closes.
func (g *Game) Run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		logEvents(ctx, g.Hall.Events(), g.log.With("component", "events"))
		return nil
	})

	if g.Feed != nil {
		grp.Go(func() error {
			return g.Feed.Run(ctx)
		})
	}

	err := grp.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close shuts down all subsystems in reverse dependency order.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Stop the hall first so nothing records after the journal closes
	if g.Hall != nil {
		g.Hall.Close()
		if n := g.Hall.DroppedExternalEvents(); n > 0 {
			g.log.Debug("dropped hall events", "count", n)
		}
	}

	// Close journal last
	if g.Journal != nil {
		if err := g.Journal.Close(); err != nil {
			g.log.Warn("close journal", "err", err)
		}
		g.Journal = nil
	}
}

// logEvents writes one log line per hall event until the channel closes or
// ctx is done.
func logEvents(ctx context.Context, events <-chan core.Event, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, ev)
		}
	}
}

func logEvent(log *slog.Logger, ev core.Event) {
	switch e := ev.(type) {
	case core.DecisionUpdatedEvent:
		if e.Decision.IsError {
			log.Warn("decision failed", "agent", e.AgentID, "symbol", e.Symbol, "message", e.Decision.Message)
			return
		}
		log.Info("decision updated",
			"agent", e.AgentID,
			"kind", e.Kind,
			"symbol", e.Symbol,
			"action", e.Decision.Action,
			"confidence", e.Decision.Confidence,
		)
	case core.DecisionRetainedEvent:
		log.Debug("decision retained", "agent", e.AgentID, "reason", e.Reason, "err", e.Err)
	case core.TradeOpenedEvent:
		log.Info("trade", "agent", e.Bubble.AgentID, "action", e.Bubble.Action, "pair", e.Bubble.Pair, "price", e.Bubble.Price)
	case core.TradeExpiredEvent:
		log.Debug("trade bubble expired", "id", e.ID)
	case core.SymbolChangedEvent:
		log.Info("symbol changed", "from", e.From, "to", e.To)
	case core.FetchStartedEvent:
		log.Debug("fetch cycle started", "generation", e.Generation, "symbol", e.Symbol)
	case core.FetchFinishedEvent:
		log.Debug("fetch cycle finished", "generation", e.Generation)
	case core.StaleOutcomeEvent:
		log.Debug("stale outcome discarded", "agent", e.AgentID, "generation", e.Generation)
	case core.RunningChangedEvent:
		log.Info("running changed", "running", e.Running)
	}
}
