package stub

import (
	"context"
	"testing"
	"time"

	"github.com/zappabad/tradinghall/internal/decision"
)

func TestDecisionsAreMeaningful(t *testing.T) {
	s := New(Config{Seed: 9})
	for i := 0; i < 50; i++ {
		d, err := s.Technical(context.Background(), "btc", "usd", 7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Meaningful() || d.Price.Decimal.IsZero() {
			t.Fatalf("expected a priced decision, got %+v", d)
		}
		if d.Confidence < 0.5 || d.Confidence > 1 {
			t.Errorf("confidence out of range: %v", d.Confidence)
		}
	}
}

func TestRateLimiting(t *testing.T) {
	s := New(Config{Seed: 3, RateLimitRate: 1})
	_, err := s.Value(context.Background(), "eth", "usd", 7)
	if decision.Classify(err) != decision.KindRateLimited {
		t.Errorf("expected rate limiting, got %v", err)
	}
}

func TestLatencyHonorsContext(t *testing.T) {
	s := New(Config{Seed: 1, Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Technical(ctx, "btc", "usd", 7)
	if decision.Classify(err) != decision.KindConnection {
		t.Errorf("expected connection failure on timeout, got %v", err)
	}
}

func TestOHLC(t *testing.T) {
	s := New(Config{Seed: 5})
	candles, err := s.OHLC(context.Background(), "sol", "usd", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 96 {
		t.Fatalf("expected 96 candles, got %d", len(candles))
	}
	for i, c := range candles {
		if c.High.LessThan(c.Low) || c.High.LessThan(c.Open) || c.Low.GreaterThan(c.Close) {
			t.Errorf("candle %d is inconsistent: %+v", i, c)
		}
		if i > 0 && !c.Time.After(candles[i-1].Time) {
			t.Errorf("candle %d is out of order", i)
		}
	}
}
