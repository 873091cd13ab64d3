package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
)

const (
	ChatOffsetY  = -30.0
	TradeOffsetY = -80.0
)

// BubbleState is what a chat bubble currently shows.
type BubbleState uint8

const (
	BubblePlaceholder BubbleState = iota
	BubbleAnalyzing
	BubbleDecided
	BubbleError
)

func (s BubbleState) String() string {
	switch s {
	case BubblePlaceholder:
		return "placeholder"
	case BubbleAnalyzing:
		return "analyzing"
	case BubbleDecided:
		return "decided"
	case BubbleError:
		return "error"
	default:
		return "unknown"
	}
}

func (s BubbleState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ChatBubble is the persistent bubble above an agent.
type ChatBubble struct {
	AgentID  hall.AgentID       `json:"agent_id"`
	Kind     hall.AgentKind     `json:"kind"`
	Pos      hall.Point         `json:"pos"`
	State    BubbleState        `json:"state"`
	Message  string             `json:"message,omitempty"`
	Decision *decision.Decision `json:"decision,omitempty"`
}

// TradingBubble is a short-lived trade notice shown for BUY and SELL decisions.
type TradingBubble struct {
	ID        string          `json:"id"`
	AgentID   hall.AgentID    `json:"agent_id"`
	Kind      hall.AgentKind  `json:"kind"`
	Pos       hall.Point      `json:"pos"`
	Action    decision.Action `json:"action"`
	Label     string          `json:"label"`
	Pair      string          `json:"pair"`
	Price     string          `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Pair formats a trading pair such as BTC/USD.
func Pair(symbol, quote string) string {
	return strings.ToUpper(symbol) + "/" + strings.ToUpper(quote)
}

// RecomputeChat derives every agent's chat bubble from the previous bubbles and
// the decision cache. Positions always follow the agents. A decided bubble
// keeps its payload until a newer valid decision arrives.
func RecomputeChat(
	prev map[hall.AgentID]ChatBubble,
	agents []hall.Agent,
	cache map[hall.AgentID]decision.Decision,
	rng Rand,
	loc Locale,
) map[hall.AgentID]ChatBubble {
	out := make(map[hall.AgentID]ChatBubble, len(agents))
	for _, a := range agents {
		b := ChatBubble{
			AgentID: a.ID,
			Kind:    a.Kind,
			Pos:     a.Pos.Offset(0, ChatOffsetY),
		}
		old, hadOld := prev[a.ID]
		cached, hasCached := cache[a.ID]
		cachedValid := hasCached && cached.Valid()

		switch {
		case hadOld && old.Decision != nil && old.Decision.Valid() && !cachedValid:
			b.State = BubbleDecided
			b.Decision = old.Decision
			b.Message = old.Message
		case a.IsHuman():
			b.State = BubblePlaceholder
			if hadOld && old.State == BubblePlaceholder && old.Message != "" {
				b.Message = old.Message
			} else {
				b.Message = loc.placeholder(rng)
			}
		case cachedValid:
			d := cached
			b.State = BubbleDecided
			b.Decision = &d
			b.Message = d.Reasoning
		case hasCached:
			b.State = BubbleError
			b.Message = cached.Message
		default:
			b.State = BubbleAnalyzing
			b.Message = loc.Analyzing
		}
		out[a.ID] = b
	}
	return out
}

// NewTradingBubble builds the trade notice for agent's decision. taken reports
// ids already in use; a sequence suffix is appended only on collision.
func NewTradingBubble(
	agent hall.Agent,
	d decision.Decision,
	symbol, quote string,
	now time.Time,
	ttl time.Duration,
	loc Locale,
	taken func(id string) bool,
) TradingBubble {
	base := fmt.Sprintf("%s-%d", agent.ID, now.UnixMilli())
	id := base
	for seq := 1; taken != nil && taken(id); seq++ {
		id = fmt.Sprintf("%s-%d", base, seq)
	}
	return TradingBubble{
		ID:        id,
		AgentID:   agent.ID,
		Kind:      agent.Kind,
		Pos:       agent.Pos.Offset(0, TradeOffsetY),
		Action:    d.Action,
		Label:     loc.TradeLabel(d.Action),
		Pair:      Pair(symbol, quote),
		Price:     d.PriceOrZero().StringFixed(2),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
