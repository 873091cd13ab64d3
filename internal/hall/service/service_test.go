package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/journal"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []string
	gate  chan struct{}
	tech  func(symbol string) (decision.Decision, error)
	value func(symbol string) (decision.Decision, error)
}

func (f *fakeSource) call(ctx context.Context, model, symbol string, fn func(string) (decision.Decision, error)) (decision.Decision, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model+":"+symbol)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return decision.Decision{}, ctx.Err()
		}
	}
	if fn == nil {
		return decision.Decision{Action: decision.ActionHold, Reasoning: "wait"}, nil
	}
	return fn(symbol)
}

func (f *fakeSource) Technical(ctx context.Context, symbol, quote string, days int) (decision.Decision, error) {
	return f.call(ctx, "technical", symbol, f.tech)
}

func (f *fakeSource) Value(ctx context.Context, symbol, quote string, days int) (decision.Decision, error) {
	return f.call(ctx, "value", symbol, f.value)
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *fakeRecorder) Record(ctx context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.TradeTTL = 200 * time.Millisecond
	cfg.RequestTimeout = time.Second
	cfg.Seed = 42
	cfg.DropExternalEvents = true
	return cfg
}

func newTestService(t *testing.T, cfg Config, src decision.Source, rec Recorder) *Service {
	t.Helper()
	svc, err := NewService(cfg, Deps{
		Source:   src,
		Recorder: rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func buyAt(v int64) func(string) (decision.Decision, error) {
	return func(string) (decision.Decision, error) {
		return decision.Decision{
			Action: decision.ActionBuy,
			Price:  decimal.NewNullDecimal(decimal.NewFromInt(v)),
		}, nil
	}
}

func TestServiceInitialCycle(t *testing.T) {
	src := &fakeSource{tech: buyAt(50000)}
	rec := &fakeRecorder{}
	svc := newTestService(t, testConfig(), src, rec)

	waitFor(t, "first cycle", func() bool {
		snap := svc.Snapshot()
		return snap.Generation >= 1 && !snap.Fetching
	})

	snap := svc.Snapshot()
	for _, b := range snap.Chat {
		if b.Kind == hall.KindHuman {
			if b.State != core.BubblePlaceholder {
				t.Errorf("expected placeholder for the user, got %v", b.State)
			}
			continue
		}
		if b.State != core.BubbleDecided {
			t.Errorf("agent %s: expected decided bubble, got %v", b.AgentID, b.State)
		}
	}
	if len(snap.Trades) != 2 {
		t.Fatalf("expected 2 trading bubbles from the gamblers, got %d", len(snap.Trades))
	}
	if snap.Trades[0].Pair != "BTC/USD" || snap.Trades[0].Price != "50000.00" {
		t.Errorf("unexpected trading bubble %+v", snap.Trades[0])
	}
	if got := len(src.Calls()); got != 4 {
		t.Errorf("expected 4 source calls, got %d", got)
	}
	if rec.Len() != 4 {
		t.Errorf("expected 4 journal entries, got %d", rec.Len())
	}

	waitFor(t, "trading bubbles to expire", func() bool {
		return len(svc.Snapshot().Trades) == 0
	})
	if len(svc.Decisions(10)) != 4 {
		t.Errorf("expected 4 decision records, got %d", len(svc.Decisions(10)))
	}
}

func TestServiceTicksOnlyWhileRunning(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeSource{}, nil)
	ctx := context.Background()

	waitFor(t, "agents to move", func() bool { return svc.Snapshot().Tick > 3 })

	if err := svc.SetRunning(ctx, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	paused := svc.Snapshot().Tick
	time.Sleep(30 * time.Millisecond)
	if got := svc.Snapshot().Tick; got != paused {
		t.Errorf("expected no ticks while paused, got %d -> %d", paused, got)
	}
	if svc.Snapshot().Running {
		t.Error("expected running=false")
	}

	if err := svc.SetRunning(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "motion to resume", func() bool { return svc.Snapshot().Tick > paused })

	for _, a := range svc.Snapshot().Agents {
		if a.Pos.X < 50 || a.Pos.X > 750 || a.Pos.Y < 50 || a.Pos.Y > 650 {
			t.Errorf("agent %s out of bounds at %+v", a.ID, a.Pos)
		}
	}
}

func TestServiceTriggerIsDeduplicated(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	svc := newTestService(t, testConfig(), src, nil)
	ctx := context.Background()

	waitFor(t, "first call", func() bool { return len(src.Calls()) == 1 })

	started, err := svc.TriggerFetch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started {
		t.Error("trigger while in flight must be a no-op")
	}

	close(src.gate)
	waitFor(t, "cycle to finish", func() bool { return !svc.Snapshot().Fetching })

	started, err = svc.TriggerFetch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !started {
		t.Error("expected a new cycle once the previous one finished")
	}
	waitFor(t, "second cycle", func() bool { return len(src.Calls()) == 8 })
}

func TestServiceSymbolChangeSupersedesCycle(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{gate: gate, tech: buyAt(1)}
	svc := newTestService(t, testConfig(), src, nil)
	ctx := context.Background()

	waitFor(t, "first call", func() bool { return len(src.Calls()) == 1 })
	firstGen := svc.Snapshot().Generation

	src.mu.Lock()
	src.gate = nil
	src.mu.Unlock()

	if err := svc.SetSymbol(ctx, "ETH"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "eth cycle", func() bool {
		snap := svc.Snapshot()
		return snap.Symbol == "eth" && !snap.Fetching && snap.Generation > firstGen+1
	})

	snap := svc.Snapshot()
	if snap.Pair != "ETH/USD" {
		t.Errorf("expected ETH/USD, got %s", snap.Pair)
	}
	for _, tb := range snap.Trades {
		if tb.Pair != "ETH/USD" {
			t.Errorf("trading bubble from the old symbol survived: %+v", tb)
		}
	}
	if !snap.Running {
		t.Error("symbol change must not stop the tick loop")
	}

	var eth int
	for _, c := range src.Calls() {
		if c == "technical:eth" || c == "value:eth" {
			eth++
		}
	}
	if eth != 4 {
		t.Errorf("expected 4 calls for eth, got %d (%v)", eth, src.Calls())
	}

	if err := svc.SetSymbol(ctx, "  "); err == nil {
		t.Error("expected an error for an empty symbol")
	}
}

func TestServiceRecoversFromSourcePanic(t *testing.T) {
	src := &fakeSource{
		tech: func(string) (decision.Decision, error) { panic("boom") },
	}
	svc := newTestService(t, testConfig(), src, nil)

	waitFor(t, "cycle to finish", func() bool {
		snap := svc.Snapshot()
		return snap.Generation >= 1 && !snap.Fetching
	})

	snap := svc.Snapshot()
	b, ok := snap.ChatFor("gambler-1")
	if !ok || b.State != core.BubbleError {
		t.Errorf("expected an error bubble after a panic, got %+v", b)
	}
	b, _ = snap.ChatFor("value-1")
	if b.State != core.BubbleDecided {
		t.Errorf("other agents must still be served, got %v", b.State)
	}
}

func TestServiceRateLimitKeepsDecision(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	src := &fakeSource{
		value: func(string) (decision.Decision, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls > 2 {
				return decision.Decision{}, decision.NewFetchError(decision.KindRateLimited, 429, nil)
			}
			return decision.Decision{Action: decision.ActionHold, Reasoning: "patience"}, nil
		},
	}
	svc := newTestService(t, testConfig(), src, nil)
	ctx := context.Background()

	waitFor(t, "first cycle", func() bool {
		snap := svc.Snapshot()
		return snap.Generation >= 1 && !snap.Fetching
	})
	if _, err := svc.TriggerFetch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "second cycle", func() bool {
		snap := svc.Snapshot()
		return snap.Generation >= 2 && !snap.Fetching
	})

	b, _ := svc.Snapshot().ChatFor("value-1")
	if b.State != core.BubbleDecided || b.Decision.Reasoning != "patience" {
		t.Errorf("expected HOLD to survive rate limiting, got %+v", b)
	}
}

func TestServiceCloseIsClean(t *testing.T) {
	src := &fakeSource{tech: buyAt(5)}
	cfg := testConfig()
	cfg.TradeTTL = time.Hour
	cfg.DropExternalEvents = false
	svc, err := NewService(cfg, Deps{Source: src, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	drained := make(chan struct{})
	go func() {
		for range svc.Events() {
		}
		close(drained)
	}()

	waitFor(t, "trading bubbles", func() bool { return len(svc.Snapshot().Trades) == 2 })
	svc.Close()
	svc.Close()

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("events channel was not closed")
	}
	if err := svc.SetRunning(context.Background(), false); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(DefaultConfig(), Deps{}); err == nil {
		t.Error("expected an error without a source")
	}
	cfg := DefaultConfig()
	cfg.Locale = "fr"
	if _, err := NewService(cfg, Deps{Source: &fakeSource{}}); err == nil {
		t.Error("expected an error for an unknown locale")
	}
}

func TestServiceStaleOutcomeKeepsVersion(t *testing.T) {
	cfg := testConfig()
	cfg.Autostart = false
	svc := newTestService(t, cfg, &fakeSource{}, nil)
	ctx := context.Background()

	waitFor(t, "first cycle", func() bool {
		snap := svc.Snapshot()
		return snap.Generation >= 1 && !snap.Fetching
	})
	before := svc.Snapshot().Version

	svc.send(command{
		typ:     cmdOutcome,
		gen:     svc.Snapshot().Generation - 1,
		outcome: core.Outcome{AgentID: "gambler-1", Decision: decision.Decision{Action: decision.ActionSell, Reasoning: "late"}},
		at:      time.Now(),
	})
	// a no-op request queues behind the outcome, so it has been processed on return
	if err := svc.SetRunning(ctx, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := svc.Snapshot().Version; got != before {
		t.Errorf("stale outcome republished the snapshot: version %d -> %d", before, got)
	}
	b, _ := svc.Snapshot().ChatFor("gambler-1")
	if b.Decision != nil && b.Decision.Reasoning == "late" {
		t.Error("stale outcome reached the chat bubble")
	}
}

func TestServiceJournalsEmptyPayloadAsMalformed(t *testing.T) {
	src := &fakeSource{
		tech: func(string) (decision.Decision, error) { return decision.Decision{}, nil },
	}
	rec := &fakeRecorder{}
	svc := newTestService(t, testConfig(), src, rec)

	waitFor(t, "first cycle", func() bool {
		snap := svc.Snapshot()
		return snap.Generation >= 1 && !snap.Fetching
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var malformed int
	for _, e := range rec.entries {
		switch e.AgentKind {
		case "gambler":
			if e.ErrorKind != decision.KindMalformed.String() {
				t.Errorf("agent %s: expected malformed entry, got %q", e.AgentID, e.ErrorKind)
			}
			malformed++
		case "value":
			if e.Failed() {
				t.Errorf("agent %s: unexpected failure %q", e.AgentID, e.ErrorKind)
			}
		}
	}
	if malformed != 2 {
		t.Errorf("expected 2 malformed entries, got %d", malformed)
	}

	b, _ := svc.Snapshot().ChatFor("gambler-1")
	if b.State != core.BubbleError {
		t.Errorf("expected an error bubble for the empty payload, got %v", b.State)
	}
}
