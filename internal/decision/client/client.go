// Package client talks to the remote decision service over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/zappabad/tradinghall/internal/decision"
)

// Config holds configuration for the HTTP client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string
	// Timeout is the transport-level ceiling for a single request.
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns a Config pointing at a local backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8000/api",
		Timeout:   10 * time.Second,
		UserAgent: "tradinghall",
	}
}

// Client implements decision.Source and decision.MarketData.
type Client struct {
	http *resty.Client
}

var (
	_ decision.Source     = (*Client)(nil)
	_ decision.MarketData = (*Client)(nil)
)

// New creates a Client. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}

	rc := resty.New()
	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	rc.SetTimeout(cfg.Timeout)
	rc.SetHeader("Accept", "application/json")
	rc.SetHeader("User-Agent", cfg.UserAgent)

	return &Client{http: rc}
}

// decisionPayload is the wire form of a trading decision.
type decisionPayload struct {
	Action      string              `json:"action"`
	Confidence  float64             `json:"confidence"`
	Reasoning   string              `json:"reasoning"`
	Price       decimal.NullDecimal `json:"price"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	StopLoss    decimal.NullDecimal `json:"stop_loss"`
	Message     string              `json:"message"`
}

type ohlcPayload struct {
	CoinID string              `json:"coin_id"`
	OHLC   [][]decimal.Decimal `json:"ohlc"`
}

type errorPayload struct {
	Detail any `json:"detail"`
}

// Technical asks the technical-analyst model for a decision.
func (c *Client) Technical(ctx context.Context, symbol, quote string, days int) (decision.Decision, error) {
	return c.fetchDecision(ctx, "technical-analyst", symbol, quote, days)
}

// Value asks the value-investor model for a decision.
func (c *Client) Value(ctx context.Context, symbol, quote string, days int) (decision.Decision, error) {
	return c.fetchDecision(ctx, "value-investor", symbol, quote, days)
}

func (c *Client) fetchDecision(ctx context.Context, model, symbol, quote string, days int) (decision.Decision, error) {
	resp, err := c.get(ctx, "/coins/{symbol}/decision/"+model, symbol, quote, days)
	if err != nil {
		return decision.Decision{}, err
	}

	var p decisionPayload
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return decision.Decision{}, decision.NewFetchError(decision.KindMalformed, resp.StatusCode(), err)
	}
	return decision.Decision{
		Action:      decision.ParseAction(p.Action),
		Confidence:  p.Confidence,
		Reasoning:   p.Reasoning,
		Price:       p.Price,
		TargetPrice: p.TargetPrice,
		StopLoss:    p.StopLoss,
		Message:     p.Message,
	}, nil
}

// OHLC fetches candles for symbol priced in quote.
func (c *Client) OHLC(ctx context.Context, symbol, quote string, days int) ([]decision.Candle, error) {
	resp, err := c.get(ctx, "/coins/{symbol}/ohlc", symbol, quote, days)
	if err != nil {
		return nil, err
	}

	var p ohlcPayload
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return nil, decision.NewFetchError(decision.KindMalformed, resp.StatusCode(), err)
	}
	candles := make([]decision.Candle, 0, len(p.OHLC))
	for i, row := range p.OHLC {
		if len(row) < 5 {
			return nil, decision.NewFetchError(decision.KindMalformed, resp.StatusCode(),
				fmt.Errorf("candle %d has %d fields", i, len(row)))
		}
		candles = append(candles, decision.Candle{
			Time:  time.UnixMilli(row[0].IntPart()).UTC(),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	return candles, nil
}

func (c *Client) get(ctx context.Context, path, symbol, quote string, days int) (*resty.Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("symbol", strings.ToLower(symbol)).
		SetQueryParams(map[string]string{
			"vs_currency": strings.ToLower(quote),
			"days":        strconv.Itoa(days),
		}).
		Get(path)
	if err != nil {
		return nil, decision.NewFetchError(decision.KindConnection, 0, err)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// statusError maps a non-2xx response onto the fetch error taxonomy.
func statusError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code < http.StatusBadRequest {
		return nil
	}
	detail := errors.New(errorDetail(resp))
	switch code {
	case http.StatusTooManyRequests:
		return decision.NewFetchError(decision.KindRateLimited, code, detail)
	case http.StatusBadGateway:
		return decision.NewFetchError(decision.KindUpstream, code, detail)
	default:
		return decision.NewFetchError(decision.KindServer, code, detail)
	}
}

// errorDetail extracts the backend's error detail, falling back to the status text.
func errorDetail(resp *resty.Response) string {
	var p errorPayload
	if err := json.Unmarshal(resp.Body(), &p); err == nil {
		switch d := p.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
	}
	return http.StatusText(resp.StatusCode())
}
