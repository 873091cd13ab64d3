package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zappabad/tradinghall/internal/decision"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second})
}

func TestTechnicalDecision(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"action":"buy","confidence":0.82,"reasoning":"MACD crossover","price":50000,"target_price":"55000.5","stop_loss":null}`))
	})

	d, err := c.Technical(context.Background(), "BTC", "USD", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/coins/btc/decision/technical-analyst" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotQuery != "days=7&vs_currency=usd" {
		t.Errorf("unexpected query %s", gotQuery)
	}
	if d.Action != decision.ActionBuy {
		t.Errorf("expected BUY, got %q", d.Action)
	}
	if d.Price.Decimal.StringFixed(2) != "50000.00" {
		t.Errorf("unexpected price %s", d.Price.Decimal)
	}
	if !d.TargetPrice.Valid || d.TargetPrice.Decimal.String() != "55000.5" {
		t.Errorf("unexpected target %+v", d.TargetPrice)
	}
	if d.StopLoss.Valid {
		t.Error("expected no stop loss")
	}
	if d.Confidence != 0.82 {
		t.Errorf("unexpected confidence %v", d.Confidence)
	}
}

func TestValueDecisionPath(t *testing.T) {
	var gotPath string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"action":"HOLD","confidence":0.5,"reasoning":"fair value"}`))
	})
	d, err := c.Value(context.Background(), "eth", "usd", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/coins/eth/decision/value-investor" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if d.Action != decision.ActionHold || d.Price.Valid {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   decision.ErrorKind
		detail string
	}{
		{http.StatusTooManyRequests, `{"detail":"slow down"}`, decision.KindRateLimited, "slow down"},
		{http.StatusBadGateway, `{"detail":"CoinGecko API error"}`, decision.KindUpstream, "CoinGecko API error"},
		{http.StatusInternalServerError, `{"detail":"Internal server error: boom"}`, decision.KindServer, "Internal server error: boom"},
		{http.StatusNotFound, `not json`, decision.KindServer, "Not Found"},
	}
	for _, tt := range tests {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		})
		_, err := c.Technical(context.Background(), "btc", "usd", 7)
		var fe *decision.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("status %d: expected FetchError, got %v", tt.status, err)
		}
		if fe.Kind != tt.want || fe.Status != tt.status {
			t.Errorf("status %d: expected %v, got %v/%d", tt.status, tt.want, fe.Kind, fe.Status)
		}
		if fe.Err == nil || fe.Err.Error() != tt.detail {
			t.Errorf("status %d: expected detail %q, got %v", tt.status, tt.detail, fe.Err)
		}
	}
}

func TestMalformedBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"action":`))
	})
	_, err := c.Value(context.Background(), "btc", "usd", 7)
	if decision.Classify(err) != decision.KindMalformed {
		t.Errorf("expected malformed, got %v", err)
	}
}

func TestConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second})
	_, err := c.Technical(context.Background(), "btc", "usd", 7)
	if !errors.Is(err, decision.ErrConnection) {
		t.Errorf("expected connection error, got %v", err)
	}
}

func TestContextDeadline(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Technical(ctx, "btc", "usd", 7)
	if decision.Classify(err) != decision.KindConnection {
		t.Errorf("expected timeout to count as connection failure, got %v", err)
	}
}

func TestOHLC(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/coins/sol/ohlc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"coin_id":"sol","vs_currency":"usd","days":1,"ohlc":[[1700000000000,10.5,11,10,10.75],[1700001800000,10.75,12,10.5,11.9]]}`))
	})
	candles, err := c.OHLC(context.Background(), "sol", "usd", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if !candles[0].Time.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected time %v", candles[0].Time)
	}
	if candles[1].Close.String() != "11.9" {
		t.Errorf("unexpected close %s", candles[1].Close)
	}
}

func TestOHLCShortRow(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ohlc":[[1700000000000,1,2]]}`))
	})
	_, err := c.OHLC(context.Background(), "btc", "usd", 1)
	if !errors.Is(err, decision.ErrMalformed) {
		t.Errorf("expected malformed error, got %v", err)
	}
}
