package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/service"
	"github.com/zappabad/tradinghall/internal/hall/view"
)

type fakeHall struct {
	mu       sync.Mutex
	snap     view.Snapshot
	records  []view.DecisionRecord
	fetching bool
	closed   bool
	limits   []int
}

func (f *fakeHall) Snapshot() view.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeHall) Decisions(n int) []view.DecisionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, n)
	if n > len(f.records) {
		n = len(f.records)
	}
	return f.records[len(f.records)-n:]
}

func (f *fakeHall) SetRunning(ctx context.Context, running bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return service.ErrClosed
	}
	f.snap.Running = running
	f.snap.Version++
	return nil
}

func (f *fakeHall) SetSymbol(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return core.ErrEmptySymbol
	}
	f.snap.Symbol = symbol
	f.snap.Version++
	return nil
}

func (f *fakeHall) TriggerFetch(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetching {
		return false, nil
	}
	f.fetching = true
	return true, nil
}

func (f *fakeHall) bump() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Version++
	f.snap.Tick++
}

func newTestFeed(t *testing.T, h Hall) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(Config{PollInterval: 5 * time.Millisecond}, h, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestSnapshotEndpoint(t *testing.T) {
	h := &fakeHall{snap: view.Snapshot{Version: 3, Symbol: "btc", Pair: "BTC/USD", Running: true}}
	_, ts := newTestFeed(t, h)

	resp, err := http.Get(ts.URL + "/api/hall/snapshot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got view.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Pair != "BTC/USD" || got.Version != 3 || !got.Running {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestDecisionsEndpoint(t *testing.T) {
	h := &fakeHall{records: []view.DecisionRecord{
		{AgentID: "gambler-1", Symbol: "btc", Decision: decision.Decision{Action: decision.ActionBuy}},
		{AgentID: "value-1", Symbol: "btc", Decision: decision.Decision{Action: decision.ActionHold}},
	}}
	_, ts := newTestFeed(t, h)

	resp, err := http.Get(ts.URL + "/api/hall/decisions?limit=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Decisions []view.DecisionRecord `json:"decisions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Decisions) != 1 || body.Decisions[0].AgentID != "value-1" {
		t.Errorf("unexpected decisions %+v", body.Decisions)
	}

	resp, err = http.Get(ts.URL + "/api/hall/decisions?limit=9999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if got := h.limits[len(h.limits)-1]; got != maxDecisionLimit {
		t.Errorf("expected limit capped at %d, got %d", maxDecisionLimit, got)
	}

	resp, err = http.Get(ts.URL + "/api/hall/decisions?limit=abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %d", resp.StatusCode)
	}
}

func TestControlEndpoints(t *testing.T) {
	h := &fakeHall{snap: view.Snapshot{Symbol: "btc", Running: true}}
	_, ts := newTestFeed(t, h)

	post := func(path, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()
		return resp
	}

	if resp := post("/api/hall/symbol", `{"symbol":"ETH"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if h.Snapshot().Symbol != "eth" {
		t.Errorf("expected eth, got %s", h.Snapshot().Symbol)
	}
	if resp := post("/api/hall/symbol", `{"symbol":" "}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for an empty symbol, got %d", resp.StatusCode)
	}
	if resp := post("/api/hall/symbol", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad body, got %d", resp.StatusCode)
	}

	if resp := post("/api/hall/running", `{"running":false}`); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if h.Snapshot().Running {
		t.Error("expected the hall to be paused")
	}

	if resp := post("/api/hall/refresh", ``); resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202 for a new cycle, got %d", resp.StatusCode)
	}
	if resp := post("/api/hall/refresh", ``); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 while a cycle is in flight, got %d", resp.StatusCode)
	}

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	if resp := post("/api/hall/running", `{"running":true}`); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after close, got %d", resp.StatusCode)
	}
}

func TestWebsocketPushesOnVersionChange(t *testing.T) {
	h := &fakeHall{snap: view.Snapshot{Version: 1, Symbol: "btc"}}
	srv, ts := newTestFeed(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Hub().Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() view.Snapshot {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg struct {
			Type    string        `json:"type"`
			Payload view.Snapshot `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "snapshot" {
			t.Fatalf("unexpected frame type %q", msg.Type)
		}
		return msg.Payload
	}

	first := read()
	if first.Symbol != "btc" {
		t.Errorf("expected the current snapshot on connect, got %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.bump()
	h.bump()

	var latest view.Snapshot
	for latest.Version < 3 {
		latest = read()
	}
	if latest.Tick != 2 {
		t.Errorf("expected tick 2, got %d", latest.Tick)
	}
}
