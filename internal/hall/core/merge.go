package core

import (
	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
)

// Outcome is the result of one agent's fetch.
type Outcome struct {
	AgentID  hall.AgentID
	Decision decision.Decision
	Err      error
}

// Normalize turns an empty success into a malformed-payload failure.
func (o Outcome) Normalize() Outcome {
	if o.Err == nil && !o.Decision.Meaningful() {
		o.Err = decision.NewFetchError(decision.KindMalformed, 0, nil)
	}
	return o
}

// Merge folds a fetch outcome into an agent's cache entry. A nil result means
// the agent has no entry.
//
// A meaningful success always replaces the entry. Rate limiting leaves it as
// is. Any other failure keeps a valid previous decision and otherwise records
// an error entry.
func Merge(prev *decision.Decision, out Outcome, loc Locale) *decision.Decision {
	out = out.Normalize()
	if out.Err == nil {
		d := out.Decision
		d.IsError = false
		return &d
	}
	if decision.Classify(out.Err).Soft() {
		return prev
	}
	if prev != nil && prev.Valid() {
		return prev
	}
	d := decision.ErrorDecision(loc.ErrorMessage(out.Err))
	return &d
}
