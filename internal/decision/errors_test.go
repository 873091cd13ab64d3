package decision

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"fetch error", NewFetchError(KindUpstream, 502, nil), KindUpstream},
		{"wrapped fetch error", fmt.Errorf("gambler-1: %w", NewFetchError(KindRateLimited, 429, nil)), KindRateLimited},
		{"sentinel", fmt.Errorf("call: %w", ErrConnection), KindConnection},
		{"deadline", context.DeadlineExceeded, KindConnection},
		{"malformed sentinel", ErrMalformed, KindMalformed},
		{"unknown", errors.New("boom"), KindServer},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestFetchErrorMatchesSentinel(t *testing.T) {
	err := NewFetchError(KindRateLimited, 429, errors.New("Too Many Requests"))
	if !errors.Is(err, ErrRateLimited) {
		t.Error("expected errors.Is to match ErrRateLimited")
	}
	if errors.Is(err, ErrServer) {
		t.Error("did not expect a match on ErrServer")
	}
	if got := err.Error(); got != "rate limited (status 429): Too Many Requests" {
		t.Errorf("unexpected message %q", got)
	}
	if !KindRateLimited.Soft() || KindServer.Soft() {
		t.Error("only rate limiting should be soft")
	}
}

func TestDecisionMeaningful(t *testing.T) {
	if (Decision{}).Meaningful() {
		t.Error("empty decision must not be meaningful")
	}
	if !(Decision{Reasoning: "trend up"}).Meaningful() {
		t.Error("reasoning alone is meaningful")
	}
	if !(Decision{Action: ActionHold}).Meaningful() {
		t.Error("action alone is meaningful")
	}
	if got := (Decision{}).PriceOrZero().StringFixed(2); got != "0.00" {
		t.Errorf("expected 0.00, got %s", got)
	}
	if ParseAction(" buy ") != ActionBuy || !ActionSell.IsTrade() || ActionHold.IsTrade() {
		t.Error("action parsing or trade detection broken")
	}
}
