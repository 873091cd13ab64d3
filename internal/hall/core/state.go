package core

import (
	"errors"
	"strings"
	"time"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
)

var (
	ErrNoAgents     = errors.New("hall has no agents")
	ErrDuplicateID  = errors.New("duplicate agent id")
	ErrOutsideArena = errors.New("agent outside arena")
	ErrEmptySymbol  = errors.New("empty symbol")
)

// State is a complete, immutable picture of the hall. Operations on Core
// return a new State and never modify the slices or maps of the old one.
type State struct {
	Agents     []hall.Agent
	Cache      map[hall.AgentID]decision.Decision
	Chat       map[hall.AgentID]ChatBubble
	Trades     []TradingBubble // in creation order
	Symbol     string
	Quote      string
	Running    bool
	Fetching   bool
	Generation uint64
	Tick       uint64
}

// Agent returns the agent with the given id.
func (s State) Agent(id hall.AgentID) (hall.Agent, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return hall.Agent{}, false
}

// Trade returns the trading bubble with the given id.
func (s State) Trade(id string) (TradingBubble, bool) {
	for _, t := range s.Trades {
		if t.ID == id {
			return t, true
		}
	}
	return TradingBubble{}, false
}

func (s State) hasTrade(id string) bool {
	_, ok := s.Trade(id)
	return ok
}

// Options configures a Core.
type Options struct {
	Arena    hall.Arena
	TradeTTL time.Duration
	Locale   Locale
	Rand     Rand
	Quote    string
}

// Core is the deterministic hall engine.
// It has no goroutines, mutexes, channels, or time calls.
type Core struct {
	arena hall.Arena
	ttl   time.Duration
	loc   Locale
	rng   Rand
	quote string
}

// NewCore creates a Core. Rand is required.
func NewCore(opts Options) *Core {
	if opts.Arena == (hall.Arena{}) {
		opts.Arena = hall.DefaultArena
	}
	if opts.Locale.Name == "" {
		opts.Locale = English
	}
	if opts.Quote == "" {
		opts.Quote = "usd"
	}
	return &Core{
		arena: opts.Arena,
		ttl:   opts.TradeTTL,
		loc:   opts.Locale,
		rng:   opts.Rand,
		quote: strings.ToLower(opts.Quote),
	}
}

// Locale returns the locale the core renders messages with.
func (c *Core) Locale() Locale { return c.loc }

// Init validates the cast and builds the starting state.
func (c *Core) Init(agents []hall.Agent, symbol string) (State, error) {
	if len(agents) == 0 {
		return State{}, ErrNoAgents
	}
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return State{}, ErrEmptySymbol
	}
	seen := make(map[hall.AgentID]struct{}, len(agents))
	for _, a := range agents {
		if _, dup := seen[a.ID]; dup || a.ID == "" {
			return State{}, ErrDuplicateID
		}
		seen[a.ID] = struct{}{}
		if !c.arena.Contains(a.Pos) {
			return State{}, ErrOutsideArena
		}
	}
	s := State{
		Agents: append([]hall.Agent(nil), agents...),
		Cache:  map[hall.AgentID]decision.Decision{},
		Symbol: symbol,
		Quote:  c.quote,
	}
	s.Chat = RecomputeChat(nil, s.Agents, s.Cache, c.rng, c.loc)
	return s, nil
}

// Tick advances every agent one step. It is a no-op while the hall is paused.
func (c *Core) Tick(s State) (State, []Event) {
	if !s.Running {
		return s, nil
	}
	s.Agents = Advance(s.Agents, c.rng, c.arena)
	s.Chat = RecomputeChat(s.Chat, s.Agents, s.Cache, c.rng, c.loc)
	s.Tick++
	return s, nil
}

// SetRunning starts or pauses motion.
func (c *Core) SetRunning(s State, running bool) (State, []Event) {
	if s.Running == running {
		return s, nil
	}
	s.Running = running
	return s, []Event{RunningChangedEvent{Running: running}}
}

// BeginFetch opens a new decision cycle. ok is false when one is already in flight.
func (c *Core) BeginFetch(s State) (next State, gen uint64, ok bool, evs []Event) {
	if s.Fetching {
		return s, s.Generation, false, nil
	}
	s.Fetching = true
	s.Generation++
	return s, s.Generation, true, []Event{FetchStartedEvent{Generation: s.Generation, Symbol: s.Symbol}}
}

// FinishFetch closes cycle gen. Cycles that were already superseded are ignored.
func (c *Core) FinishFetch(s State, gen uint64) (State, []Event) {
	if gen != s.Generation || !s.Fetching {
		return s, nil
	}
	s.Fetching = false
	s.Chat = RecomputeChat(s.Chat, s.Agents, s.Cache, c.rng, c.loc)
	return s, []Event{FetchFinishedEvent{Generation: gen}}
}

// SetSymbol switches the hall to another asset and invalidates any cycle in
// flight. Cached decisions stay until the next cycle replaces them.
func (c *Core) SetSymbol(s State, symbol string) (State, []Event, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return s, nil, ErrEmptySymbol
	}
	if symbol == s.Symbol {
		return s, nil, nil
	}
	from := s.Symbol
	s.Symbol = symbol
	s.Fetching = false
	s.Generation++
	return s, []Event{SymbolChangedEvent{From: from, To: symbol, Generation: s.Generation}}, nil
}

// ApplyOutcome merges one agent's fetch result produced by cycle gen.
// BUY and SELL decisions also open a trading bubble at the agent's current
// position, reported through TradeOpenedEvent.
func (c *Core) ApplyOutcome(s State, gen uint64, out Outcome, now time.Time) (State, []Event) {
	if gen != s.Generation {
		return s, []Event{StaleOutcomeEvent{AgentID: out.AgentID, Generation: gen}}
	}
	agent, ok := s.Agent(out.AgentID)
	if !ok || agent.IsHuman() {
		return s, nil
	}

	var prev *decision.Decision
	if d, ok := s.Cache[agent.ID]; ok {
		prev = &d
	}
	merged := Merge(prev, out, c.loc)
	if merged == prev {
		kind := decision.Classify(out.Normalize().Err)
		return s, []Event{DecisionRetainedEvent{AgentID: agent.ID, Reason: kind, Err: out.Err}}
	}

	cache := make(map[hall.AgentID]decision.Decision, len(s.Cache)+1)
	for k, v := range s.Cache {
		cache[k] = v
	}
	cache[agent.ID] = *merged
	s.Cache = cache
	evs := []Event{DecisionUpdatedEvent{
		AgentID:    agent.ID,
		Kind:       agent.Kind,
		Symbol:     s.Symbol,
		Decision:   *merged,
		Generation: gen,
		At:         now,
	}}

	if merged.Valid() && merged.Action.IsTrade() {
		tb := NewTradingBubble(agent, *merged, s.Symbol, s.Quote, now, c.ttl, c.loc, s.hasTrade)
		trades := make([]TradingBubble, len(s.Trades), len(s.Trades)+1)
		copy(trades, s.Trades)
		s.Trades = append(trades, tb)
		evs = append(evs, TradeOpenedEvent{Bubble: tb})
	}

	s.Chat = RecomputeChat(s.Chat, s.Agents, s.Cache, c.rng, c.loc)
	return s, evs
}

// ExpireTrade removes the trading bubble with the given id. Unknown ids are a no-op.
func (c *Core) ExpireTrade(s State, id string) (State, []Event) {
	idx := -1
	for i, t := range s.Trades {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, nil
	}
	removed := s.Trades[idx]
	trades := make([]TradingBubble, 0, len(s.Trades)-1)
	trades = append(trades, s.Trades[:idx]...)
	trades = append(trades, s.Trades[idx+1:]...)
	s.Trades = trades
	return s, []Event{TradeExpiredEvent{ID: id, AgentID: removed.AgentID}}
}

func normalizeSymbol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
