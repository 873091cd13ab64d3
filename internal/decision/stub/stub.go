// Package stub provides an offline decision source for demos and tests.
package stub

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zappabad/tradinghall/internal/decision"
)

// Config holds configuration for the stub source.
type Config struct {
	// Latency is the mean simulated response time.
	Latency time.Duration
	// RateLimitRate is the probability a request is rejected with 429.
	RateLimitRate float64
	// FailureRate is the probability a request fails with a server error.
	FailureRate float64
	Seed        uint64
}

// DefaultConfig returns a Config with a little latency and occasional rate limiting.
func DefaultConfig() Config {
	return Config{
		Latency:       300 * time.Millisecond,
		RateLimitRate: 0.1,
		FailureRate:   0.02,
		Seed:          1,
	}
}

// basePrices are rough reference prices used to seed the random walk.
var basePrices = map[string]float64{
	"btc":  65000,
	"eth":  3200,
	"mon":  0.5,
	"usdt": 1,
	"bnb":  580,
	"sol":  150,
	"xrp":  0.6,
	"ada":  0.45,
	"doge": 0.15,
}

// Source implements decision.Source and decision.MarketData without a network.
type Source struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

var (
	_ decision.Source     = (*Source)(nil)
	_ decision.MarketData = (*Source)(nil)
)

// New creates a stub Source.
func New(cfg Config) *Source {
	if cfg.Seed == 0 {
		cfg.Seed = DefaultConfig().Seed
	}
	return &Source{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
	}
}

func (s *Source) Technical(ctx context.Context, symbol, quote string, days int) (decision.Decision, error) {
	return s.decide(ctx, symbol, true)
}

func (s *Source) Value(ctx context.Context, symbol, quote string, days int) (decision.Decision, error) {
	return s.decide(ctx, symbol, false)
}

// OHLC returns a random walk of 30 minute candles ending now.
func (s *Source) OHLC(ctx context.Context, symbol, quote string, days int) ([]decision.Candle, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 1
	}
	n := days * 48
	step := 30 * time.Minute
	start := time.Now().Truncate(step).Add(-time.Duration(n) * step)

	s.mu.Lock()
	defer s.mu.Unlock()

	price := referencePrice(symbol)
	out := make([]decision.Candle, 0, n)
	for i := 0; i < n; i++ {
		open := price
		cls := open * (1 + (s.rng.Float64()-0.5)*0.02)
		high := max(open, cls) * (1 + s.rng.Float64()*0.005)
		low := min(open, cls) * (1 - s.rng.Float64()*0.005)
		out = append(out, decision.Candle{
			Time:  start.Add(time.Duration(i) * step),
			Open:  round(open),
			High:  round(high),
			Low:   round(low),
			Close: round(cls),
		})
		price = cls
	}
	return out, nil
}

func (s *Source) decide(ctx context.Context, symbol string, technical bool) (decision.Decision, error) {
	if err := s.wait(ctx); err != nil {
		return decision.Decision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roll := s.rng.Float64()
	switch {
	case roll < s.cfg.RateLimitRate:
		return decision.Decision{}, decision.NewFetchError(decision.KindRateLimited, 429, nil)
	case roll < s.cfg.RateLimitRate+s.cfg.FailureRate:
		return decision.Decision{}, decision.NewFetchError(decision.KindServer, 500, fmt.Errorf("stub failure"))
	}

	price := referencePrice(symbol) * (1 + (s.rng.Float64()-0.5)*0.04)
	actions := [...]decision.Action{decision.ActionBuy, decision.ActionSell, decision.ActionHold}
	action := actions[s.rng.IntN(len(actions))]
	confidence := 0.5 + s.rng.Float64()*0.45

	d := decision.Decision{
		Action:     action,
		Confidence: float64(int(confidence*100)) / 100,
		Price:      decimal.NewNullDecimal(round(price)),
		Reasoning:  reasoning(symbol, action, technical),
	}
	switch action {
	case decision.ActionBuy:
		d.TargetPrice = decimal.NewNullDecimal(round(price * 1.08))
		d.StopLoss = decimal.NewNullDecimal(round(price * 0.95))
	case decision.ActionSell:
		d.TargetPrice = decimal.NewNullDecimal(round(price * 0.92))
		d.StopLoss = decimal.NewNullDecimal(round(price * 1.05))
	}
	return d, nil
}

// wait sleeps for a jittered latency or until ctx is done.
func (s *Source) wait(ctx context.Context) error {
	if s.cfg.Latency <= 0 {
		return ctx.Err()
	}
	s.mu.Lock()
	d := time.Duration(float64(s.cfg.Latency) * (0.5 + s.rng.Float64()))
	s.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return decision.NewFetchError(decision.KindConnection, 0, ctx.Err())
	}
}

func referencePrice(symbol string) float64 {
	if p, ok := basePrices[strings.ToLower(symbol)]; ok {
		return p
	}
	return 100
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}

func reasoning(symbol string, a decision.Action, technical bool) string {
	sym := strings.ToUpper(symbol)
	if technical {
		switch a {
		case decision.ActionBuy:
			return fmt.Sprintf("%s broke above the 20-period moving average with rising volume.", sym)
		case decision.ActionSell:
			return fmt.Sprintf("%s lost support and momentum is rolling over.", sym)
		default:
			return fmt.Sprintf("%s is ranging, no clear signal yet.", sym)
		}
	}
	switch a {
	case decision.ActionBuy:
		return fmt.Sprintf("%s trades below its long-run fair value.", sym)
	case decision.ActionSell:
		return fmt.Sprintf("%s looks stretched against fundamentals.", sym)
	default:
		return fmt.Sprintf("%s is close to fair value, holding.", sym)
	}
}
