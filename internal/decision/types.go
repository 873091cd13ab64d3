// Package decision defines the trading decisions the hall displays and the
// contracts of the remote services that produce them.
package decision

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the recommendation carried by a Decision.
type Action string

const (
	ActionNone Action = ""
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction normalizes case and surrounding space. Unknown actions are kept verbatim.
func ParseAction(s string) Action {
	return Action(strings.ToUpper(strings.TrimSpace(s)))
}

// IsTrade reports whether the action executes a trade (BUY or SELL).
func (a Action) IsTrade() bool { return a == ActionBuy || a == ActionSell }

// Decision is one agent's latest recommendation or an error marker.
// Values are treated as immutable once stored in the hall state.
type Decision struct {
	Action      Action              `json:"action,omitempty"`
	Confidence  float64             `json:"confidence"`
	Reasoning   string              `json:"reasoning,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	StopLoss    decimal.NullDecimal `json:"stop_loss"`
	Message     string              `json:"message,omitempty"`
	IsError     bool                `json:"is_error,omitempty"`
}

// Meaningful reports whether a payload carries anything worth showing:
// an action, reasoning, a price or a message.
func (d Decision) Meaningful() bool {
	return d.Action != ActionNone || d.Reasoning != "" || d.Price.Valid || d.Message != ""
}

// Valid reports whether d is a real decision rather than an error marker.
func (d Decision) Valid() bool { return !d.IsError }

// PriceOrZero returns the quoted price, or zero when the source gave none.
func (d Decision) PriceOrZero() decimal.Decimal {
	if d.Price.Valid {
		return d.Price.Decimal
	}
	return decimal.Zero
}

// ErrorDecision builds the cache entry shown when a fetch hard-failed.
func ErrorDecision(message string) Decision {
	return Decision{IsError: true, Message: message}
}

// Candle is one OHLC bar.
type Candle struct {
	Time  time.Time       `json:"time"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}
