package view

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/core"
)

// Market summarizes the latest candles for the hall's symbol.
type Market struct {
	Symbol  string          `json:"symbol"`
	Last    decimal.Decimal `json:"last"`
	Open    decimal.Decimal `json:"open"`
	High    decimal.Decimal `json:"high"`
	Low     decimal.Decimal `json:"low"`
	Candles int             `json:"candles"`
	AsOf    time.Time       `json:"as_of"`
}

// Change returns the move from the first open to the last close as a fraction.
func (m Market) Change() decimal.Decimal {
	if m.Open.IsZero() {
		return decimal.Zero
	}
	return m.Last.Sub(m.Open).Div(m.Open)
}

// Summarize reduces candles to a Market. ok is false when there are none.
func Summarize(symbol string, candles []decision.Candle) (Market, bool) {
	if len(candles) == 0 {
		return Market{}, false
	}
	m := Market{
		Symbol:  symbol,
		Open:    candles[0].Open,
		High:    candles[0].High,
		Low:     candles[0].Low,
		Last:    candles[len(candles)-1].Close,
		AsOf:    candles[len(candles)-1].Time,
		Candles: len(candles),
	}
	for _, c := range candles[1:] {
		if c.High.GreaterThan(m.High) {
			m.High = c.High
		}
		if c.Low.LessThan(m.Low) {
			m.Low = c.Low
		}
	}
	return m, true
}

// Snapshot is an immutable picture of the hall for presenters.
type Snapshot struct {
	Version    uint64               `json:"version"`
	Symbol     string               `json:"symbol"`
	Pair       string               `json:"pair"`
	Running    bool                 `json:"running"`
	Fetching   bool                 `json:"fetching"`
	Generation uint64               `json:"generation"`
	Tick       uint64               `json:"tick"`
	Agents     []hall.Agent         `json:"agents"`
	Chat       []core.ChatBubble    `json:"chat"`   // in agent order
	Trades     []core.TradingBubble `json:"trades"` // oldest first
	Market     *Market              `json:"market,omitempty"`
}

// ChatFor returns the chat bubble of the given agent.
func (s Snapshot) ChatFor(id hall.AgentID) (core.ChatBubble, bool) {
	for _, b := range s.Chat {
		if b.AgentID == id {
			return b, true
		}
	}
	return core.ChatBubble{}, false
}

// HallView holds the latest published snapshot and the decision tape.
// It is thread-safe and returns copies (not internal references).
type HallView struct {
	mu      sync.RWMutex
	snap    Snapshot
	market  map[string]Market
	tape    *DecisionTape
	version uint64
}

// NewHallView creates a HallView with the given tape capacity.
func NewHallView(tapeCapacity int) *HallView {
	return &HallView{
		market: map[string]Market{},
		tape:   NewDecisionTape(tapeCapacity),
	}
}

// Publish replaces the snapshot with one built from s.
func (v *HallView) Publish(s core.State) {
	snap := Snapshot{
		Symbol:     s.Symbol,
		Pair:       core.Pair(s.Symbol, s.Quote),
		Running:    s.Running,
		Fetching:   s.Fetching,
		Generation: s.Generation,
		Tick:       s.Tick,
		Agents:     append([]hall.Agent(nil), s.Agents...),
		Chat:       make([]core.ChatBubble, 0, len(s.Agents)),
		Trades:     append([]core.TradingBubble(nil), s.Trades...),
	}
	for _, a := range s.Agents {
		if b, ok := s.Chat[a.ID]; ok {
			snap.Chat = append(snap.Chat, b)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if m, ok := v.market[s.Symbol]; ok {
		snap.Market = &m
	}
	v.version++
	snap.Version = v.version
	v.snap = snap
}

// Apply records events the view keeps history for.
func (v *HallView) Apply(ev core.Event) {
	e, ok := ev.(core.DecisionUpdatedEvent)
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tape.Append(DecisionRecord{
		AgentID:  e.AgentID,
		Kind:     e.Kind,
		Symbol:   e.Symbol,
		Decision: e.Decision,
		At:       e.At,
	})
}

// SetMarket stores the market summary for its symbol. It shows up in the
// next published snapshot for that symbol.
func (v *HallView) SetMarket(m Market) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.market[m.Symbol] = m
	if v.snap.Symbol == m.Symbol {
		v.snap.Market = &m
		v.version++
		v.snap.Version = v.version
	}
}

// Snapshot returns the latest snapshot.
func (v *HallView) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}

// Version returns the version of the latest snapshot.
func (v *HallView) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// DecisionsLast returns the last n decision records, oldest first.
func (v *HallView) DecisionsLast(n int) []DecisionRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tape.Last(n)
}
