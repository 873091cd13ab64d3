package view

import (
	"time"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
)

// DecisionRecord is one cache update kept for the decisions log.
type DecisionRecord struct {
	AgentID  hall.AgentID      `json:"agent_id"`
	Kind     hall.AgentKind    `json:"kind"`
	Symbol   string            `json:"symbol"`
	Decision decision.Decision `json:"decision"`
	At       time.Time         `json:"at"`
}

// DecisionTape is a ring buffer of decision records (bounded memory).
type DecisionTape struct {
	buf   []DecisionRecord
	size  int
	start int
	count int
}

// NewDecisionTape creates a DecisionTape with the given capacity.
func NewDecisionTape(capacity int) *DecisionTape {
	if capacity <= 0 {
		capacity = 1
	}
	return &DecisionTape{
		buf:  make([]DecisionRecord, capacity),
		size: capacity,
	}
}

// Append adds a record, overwriting the oldest when full.
func (t *DecisionTape) Append(r DecisionRecord) {
	if t.count < t.size {
		t.buf[(t.start+t.count)%t.size] = r
		t.count++
		return
	}
	t.buf[t.start] = r
	t.start = (t.start + 1) % t.size
}

// Last returns up to n records, oldest first.
func (t *DecisionTape) Last(n int) []DecisionRecord {
	if n <= 0 || t.count == 0 {
		return nil
	}
	if n > t.count {
		n = t.count
	}
	out := make([]DecisionRecord, n)
	first := (t.start + (t.count - n)) % t.size
	for i := 0; i < n; i++ {
		out[i] = t.buf[(first+i)%t.size]
	}
	return out
}

func (t *DecisionTape) Count() int {
	return t.count
}
