package core

import (
	"time"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
)

// Event is the interface for all hall events.
type Event interface {
	isEvent()
}

// FetchStartedEvent is emitted when a decision cycle begins.
type FetchStartedEvent struct {
	Generation uint64
	Symbol     string
}

func (FetchStartedEvent) isEvent() {}

// FetchFinishedEvent is emitted when a cycle has visited every agent.
type FetchFinishedEvent struct {
	Generation uint64
}

func (FetchFinishedEvent) isEvent() {}

// DecisionUpdatedEvent is emitted when an agent's cache entry changes.
type DecisionUpdatedEvent struct {
	AgentID    hall.AgentID
	Kind       hall.AgentKind
	Symbol     string
	Decision   decision.Decision
	Generation uint64
	At         time.Time
}

func (DecisionUpdatedEvent) isEvent() {}

// DecisionRetainedEvent is emitted when a failed fetch left the cache untouched.
type DecisionRetainedEvent struct {
	AgentID hall.AgentID
	Reason  decision.ErrorKind
	Err     error
}

func (DecisionRetainedEvent) isEvent() {}

// StaleOutcomeEvent is emitted when an outcome from a superseded cycle is dropped.
type StaleOutcomeEvent struct {
	AgentID    hall.AgentID
	Generation uint64
}

func (StaleOutcomeEvent) isEvent() {}

// TradeOpenedEvent is emitted when a trading bubble is created.
type TradeOpenedEvent struct {
	Bubble TradingBubble
}

func (TradeOpenedEvent) isEvent() {}

// TradeExpiredEvent is emitted when a trading bubble is removed.
type TradeExpiredEvent struct {
	ID      string
	AgentID hall.AgentID
}

func (TradeExpiredEvent) isEvent() {}

// SymbolChangedEvent is emitted when the hall switches to another asset.
type SymbolChangedEvent struct {
	From       string
	To         string
	Generation uint64
}

func (SymbolChangedEvent) isEvent() {}

// RunningChangedEvent is emitted when the tick loop is started or stopped.
type RunningChangedEvent struct {
	Running bool
}

func (RunningChangedEvent) isEvent() {}
