package decision

import "context"

// Source produces decisions for one symbol priced in quote, using the last days of data.
// Technical backs gambler-style agents, Value backs value-style agents.
// Errors should be *FetchError values or wrap one of the sentinels in errors.go.
type Source interface {
	Technical(ctx context.Context, symbol, quote string, days int) (Decision, error)
	Value(ctx context.Context, symbol, quote string, days int) (Decision, error)
}

// MarketData serves price history for presenters.
type MarketData interface {
	OHLC(ctx context.Context, symbol, quote string, days int) ([]Candle, error)
}
